package models

import "time"

// Debt is one member's share of a lending, owed to the payer.
// PaymentID is only set for debts that already exist on the server.
type Debt struct {
	PaymentID string `json:"paymentId,omitempty" example:"p_01"`
	PaidTo    string `json:"paidTo" example:"u_02"`
	Amount    int64  `json:"amount" example:"100"` // in yen
}

// Lending is a shared-expense event: PaidBy covered Amount for the group and
// every Debt is a share owed back. The unallocated remainder is the payer's burden.
type Lending struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"groupId"`
	Name      string    `json:"name" example:"Dinner"`
	EventedAt time.Time `json:"eventedAt"`
	Amount    int64     `json:"amount" example:"300"`
	PaidBy    string    `json:"paidBy" example:"u_01"`
	Payments  []Debt    `json:"payments"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Allocated returns the sum of all debt amounts.
func (l Lending) Allocated() int64 {
	var sum int64
	for _, d := range l.Payments {
		sum += d.Amount
	}
	return sum
}
