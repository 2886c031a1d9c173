package models

// User is the signed-in account as reported by the Datti API.
type User struct {
	ID       string `json:"id" example:"u_01"`                // User ID
	Name     string `json:"name" example:"Taro"`              // Display name
	Email    string `json:"email" example:"taro@example.com"` // User email
	PhotoURL string `json:"photoUrl,omitempty"`               // Avatar URL
}
