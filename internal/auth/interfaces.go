package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cwllll/auth-service/internal/user"
)

// UserRepository is the credential store surface the service depends on.
// Implemented by user.Repository; tests use in-memory fakes.
type UserRepository interface {
	Create(ctx context.Context, email, name string, passwordHash *string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	MarkEmailVerified(ctx context.Context, userID uuid.UUID) error
	LinkAccount(ctx context.Context, userID uuid.UUID, provider, providerAccountID string, tokens user.AccountTokens) (*user.Account, error)
	GetAccount(ctx context.Context, provider, providerAccountID string) (*user.Account, error)
	UpdateAccountTokens(ctx context.Context, accountID uuid.UUID, tokens user.AccountTokens) error
}

// SessionRepository defines the interface for session storage
type SessionRepository interface {
	Create(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time, meta ClientMeta) (*Session, error)
	// GetByTokenHash returns ErrSessionNotFound for unknown and expired
	// hashes alike; expiry is enforced at lookup, not by a sweep.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	// Touch extends a session's expiry (sliding refresh)
	Touch(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	// DeleteByTokenHash is idempotent; deleting an unknown hash is not an error
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
	DeleteExpired(ctx context.Context) error
}

// VerificationStore defines the interface for single-use verification
// artifacts. Consume operations are atomic: under concurrent consumption of
// the same artifact exactly one caller succeeds.
type VerificationStore interface {
	// StoreLinkToken replaces any unconsumed link token for the identifier
	StoreLinkToken(ctx context.Context, identifier, token string, ttl time.Duration) error
	// ConsumeLinkToken returns the identifier the token was issued for and
	// invalidates it, or ErrVerificationNotFound (expired == unknown).
	ConsumeLinkToken(ctx context.Context, token string) (string, error)
	// StoreOTP replaces any unconsumed code for the identifier
	StoreOTP(ctx context.Context, identifier, code string, ttl time.Duration) error
	// ConsumeOTP invalidates the code on success, or returns
	// ErrVerificationNotFound for a wrong, expired or consumed code.
	ConsumeOTP(ctx context.Context, identifier, code string) error
}

// EmailService defines the interface for email operations. Sends are awaited
// by callers; a returned error means the message was not dispatched.
type EmailService interface {
	SendVerificationEmail(ctx context.Context, toEmail, name, token string) error
	SendOTPEmail(ctx context.Context, toEmail, code string) error
}

// RateLimiter bounds request frequency per client IP and per email address
type RateLimiter interface {
	CheckIPRateLimit(ctx context.Context, ip, purpose string) (bool, error)
	RecordIPRequest(ctx context.Context, ip, purpose string) error
	CheckEmailCooldown(ctx context.Context, email string) (bool, error)
	SetEmailCooldown(ctx context.Context, email string) error
}
