package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  *string   `json:"-"` // Never expose password hash in JSON; nil for social-only accounts
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasPassword reports whether the user has a password credential
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Account is a federated identity linked to a user
type Account struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	Provider          string     `json:"provider"`
	ProviderAccountID string     `json:"provider_account_id"`
	AccessToken       string     `json:"-"`
	RefreshToken      string     `json:"-"`
	TokenExpiresAt    *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// AccountTokens carries provider-issued tokens for a linked account
type AccountTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}
