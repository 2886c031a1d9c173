package models

// Member is a user belonging to a group. UserID is unique within the group.
type Member struct {
	UserID string `json:"userId" example:"u_01"` // Member user ID
	Name   string `json:"name" example:"Taro"`   // Display name
}

// Credit is a member's net balance inside a group as computed by the Datti API.
// Positive means the member is owed money.
type Credit struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Amount int64  `json:"amount"` // in yen
}
