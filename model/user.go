package model

// User is the minimal directory row the module reads for name expansion
// and preview titles. User management lives outside the module.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
