package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/cwllll/auth-service/internal/logging"
	"github.com/cwllll/auth-service/internal/user"
)

// Service orchestrates the credential/session lifecycle: sign-up with email
// verification, password and OTP sign-in, social sign-in, and session
// issuance/revocation.
type Service struct {
	users            UserRepository
	sessions         SessionRepository
	verifications    VerificationStore
	emailService     EmailService
	logger           *logging.Logger
	sessionTTL       time.Duration
	sessionUpdateAge time.Duration
	linkTokenTTL     time.Duration
	otpTTL           time.Duration
}

func NewService(
	users UserRepository,
	sessions SessionRepository,
	verifications VerificationStore,
	emailService EmailService,
	logger *logging.Logger,
	sessionTTL time.Duration,
	sessionUpdateAge time.Duration,
	linkTokenTTL time.Duration,
	otpTTL time.Duration,
) *Service {
	return &Service{
		users:            users,
		sessions:         sessions,
		verifications:    verifications,
		emailService:     emailService,
		logger:           logger,
		sessionTTL:       sessionTTL,
		sessionUpdateAge: sessionUpdateAge,
		linkTokenTTL:     linkTokenTTL,
		otpTTL:           otpTTL,
	}
}

// SignUp creates a new user account and dispatches a verification email.
// The send is awaited: a delivery failure surfaces as ErrEmailDeliveryFailed
// but the created user stays, so verification can be retried via resend.
func (s *Service) SignUp(ctx context.Context, email, name, password string) (*user.User, error) {
	// Validate input
	if email == "" {
		return nil, ErrEmailRequired
	}
	if len(email) > 254 {
		return nil, ErrInvalidEmailFormat
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmailFormat
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if len(password) < 8 {
		return nil, ErrPasswordTooShort
	}

	passwordHash, err := user.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser, err := s.users.Create(ctx, email, name, &passwordHash)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.sendVerificationLink(ctx, newUser.Email, newUser.Name); err != nil {
		return newUser, err
	}

	return newUser, nil
}

// SignIn authenticates with email and password and issues a session.
// Unknown email and wrong password produce the same error. Unverified
// accounts cannot sign in at all.
func (s *Service) SignIn(ctx context.Context, email, password string, meta ClientMeta) (*user.User, string, *Session, error) {
	if email == "" || password == "" {
		return nil, "", nil, ErrInvalidCredentials
	}

	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, "", nil, ErrInvalidCredentials
		}
		return nil, "", nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !existingUser.HasPassword() || !user.VerifyPassword(*existingUser.PasswordHash, password) {
		return nil, "", nil, ErrInvalidCredentials
	}

	if !existingUser.EmailVerified {
		return nil, "", nil, ErrEmailNotVerified
	}

	token, session, err := s.createSession(ctx, existingUser, meta)
	if err != nil {
		return nil, "", nil, err
	}

	return existingUser, token, session, nil
}

// GetSession resolves a bearer token to its user and session. Unknown,
// expired and revoked tokens all come back as (nil, nil, nil) so callers
// render a logged-out state uniformly. A read on a session that has gone
// stale extends its expiry (sliding refresh).
func (s *Service) GetSession(ctx context.Context, token string) (*user.User, *Session, error) {
	if token == "" {
		return nil, nil, nil
	}

	session, err := s.sessions.GetByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	sessionUser, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// Orphaned session; treat as logged out
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to get session user: %w", err)
	}

	// Sliding refresh: extend expiry when the session has not been touched
	// within the update age
	if time.Since(session.UpdatedAt) > s.sessionUpdateAge {
		newExpiry := time.Now().Add(s.sessionTTL)
		if err := s.sessions.Touch(ctx, session.ID, newExpiry); err != nil {
			// The session just resolved; losing the extension is harmless
			s.logger.Warn("failed to extend session expiry", "session_id", session.ID, "error", err)
		} else {
			session.ExpiresAt = newExpiry
			session.UpdatedAt = time.Now()
		}
	}

	return sessionUser, session, nil
}

// SignOut revokes the session for a bearer token. Revoking an unknown or
// already-expired token is not an error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.DeleteByTokenHash(ctx, hashToken(token))
}

// SignOutEverywhere revokes every session belonging to the user
func (s *Service) SignOutEverywhere(ctx context.Context, u *user.User) error {
	return s.sessions.DeleteAllForUser(ctx, u.ID)
}

// VerifyEmail consumes a verification link token and flips the user's
// emailVerified flag. The consumption is single-use: a second visit with the
// same token fails with ErrInvalidOrExpiredToken.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidOrExpiredToken
	}

	identifier, err := s.verifications.ConsumeLinkToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrVerificationNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("failed to consume link token: %w", err)
	}

	existingUser, err := s.users.GetByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if existingUser.EmailVerified {
		// Token consumed but nothing to flip; the flag flips exactly once
		return nil
	}

	if err := s.users.MarkEmailVerified(ctx, existingUser.ID); err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}

	return nil
}

// ResendVerification issues a fresh link token, replacing any prior one.
// Always returns nil for unknown or already-verified emails to prevent
// enumeration.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		s.logger.Warn("failed to get user for resend verification", "error", err)
		return nil
	}

	if existingUser.EmailVerified {
		return nil
	}

	if err := s.sendVerificationLink(ctx, existingUser.Email, existingUser.Name); err != nil {
		return err
	}

	return nil
}

// createSession issues a fresh opaque token and persists the session.
// Returns the raw token (for the cookie) alongside the stored record.
func (s *Service) createSession(ctx context.Context, u *user.User, meta ClientMeta) (string, *Session, error) {
	token, err := NewSessionToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	expiresAt := time.Now().Add(s.sessionTTL)
	session, err := s.sessions.Create(ctx, u.ID, hashToken(token), expiresAt, meta)
	if err != nil {
		return "", nil, fmt.Errorf("failed to store session: %w", err)
	}

	return token, session, nil
}

// sendVerificationLink generates, stores and dispatches a link token.
// Storing replaces any prior unconsumed token for the email.
func (s *Service) sendVerificationLink(ctx context.Context, email, name string) error {
	token, err := NewLinkToken()
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}

	if err := s.verifications.StoreLinkToken(ctx, email, token, s.linkTokenTTL); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	if err := s.emailService.SendVerificationEmail(ctx, email, name, token); err != nil {
		s.logger.Warn("verification email dispatch failed", "email", email, "error", err)
		return ErrEmailDeliveryFailed
	}

	return nil
}
