package auth

import (
	"time"

	"github.com/google/uuid"
)

// Session is one authenticated browser/client context. The bearer token
// itself is never stored; TokenHash holds its SHA-256.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	IPAddress string    `json:"-"`
	UserAgent string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExpired reports whether the session is past its expiry
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// ClientMeta is optional request metadata recorded on session creation
type ClientMeta struct {
	IPAddress string
	UserAgent string
}
