package models

import "time"

// Repayment settles part of a debt between two users, independently of lendings.
type Repayment struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"groupId"`
	PaidBy    string    `json:"paidBy"`
	PaidTo    string    `json:"paidTo"`
	Amount    int64     `json:"amount"`
	PaidAt    time.Time `json:"paidAt"`
	CreatedAt time.Time `json:"createdAt"`
}
