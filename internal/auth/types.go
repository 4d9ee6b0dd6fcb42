package auth

import "time"

// Account is an identity in the account store. Its ID doubles as the employee record key.
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
