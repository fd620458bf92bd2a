package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the users table row. Emails are stored lower-cased; uniqueness is
// enforced by the database so duplicate sign-ups fail atomically.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID            uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Email         string    `bun:"email,notnull,unique"`
	Name          string    `bun:"name"`
	PasswordHash  *string   `bun:"password_hash"` // nil for social-only accounts
	EmailVerified bool      `bun:"email_verified,notnull,default:false"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Session is the sessions table row. Only the SHA-256 of the bearer token is
// stored; the raw token exists only in the client's cookie.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:uuid"`
	TokenHash string    `bun:"token_hash,notnull,unique"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	IPAddress string    `bun:"ip_address"`
	UserAgent string    `bun:"user_agent"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Account is a linked external identity. The (provider, provider_account_id)
// pair carries a unique constraint.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID                uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	UserID            uuid.UUID  `bun:"user_id,notnull,type:uuid"`
	Provider          string     `bun:"provider,notnull,unique:accounts_provider_account"`
	ProviderAccountID string     `bun:"provider_account_id,notnull,unique:accounts_provider_account"`
	AccessToken       string     `bun:"access_token"`
	RefreshToken      string     `bun:"refresh_token"`
	TokenExpiresAt    *time.Time `bun:"token_expires_at"`
	CreatedAt         time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt         time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}
