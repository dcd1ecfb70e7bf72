package domain

import (
	"time"
)

// Account is a registered marketplace member.
type Account struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Address      string `json:"address"`
	State        string `json:"selectedState"`
	ZipCode      string `json:"zipCode"`
	Phone        string `json:"phoneNumber"`
	ProfileImage string `json:"profileImage"`
	IsActive     bool   `json:"isActive"`

	VerificationToken          *string    `json:"-"`
	VerificationTokenExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CanAuthenticate reports whether the account may log in.
func (a *Account) CanAuthenticate() bool {
	return a.IsActive
}
