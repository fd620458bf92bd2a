package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwllll/auth-service/internal/user"
)

// SendOTP generates a one-time sign-in code for the email and dispatches it.
// Returns nil for unknown emails so the endpoint never confirms whether an
// account exists; a genuine dispatch failure still surfaces as
// ErrEmailDeliveryFailed.
func (s *Service) SendOTP(ctx context.Context, email string) error {
	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	code, err := NewOTPCode()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	// Replaces any prior unconsumed code for this email
	if err := s.verifications.StoreOTP(ctx, existingUser.Email, code, s.otpTTL); err != nil {
		return fmt.Errorf("failed to store code: %w", err)
	}

	if err := s.emailService.SendOTPEmail(ctx, existingUser.Email, code); err != nil {
		s.logger.Warn("sign-in code dispatch failed", "email", existingUser.Email, "error", err)
		return ErrEmailDeliveryFailed
	}

	return nil
}

// VerifyOTP consumes a one-time code and signs the user in directly,
// skipping the password check. Consumption is atomic: when two requests race
// on the same code exactly one session is created. Proving mailbox control
// also verifies the email if it was not already.
func (s *Service) VerifyOTP(ctx context.Context, email, code string, meta ClientMeta) (*user.User, string, *Session, error) {
	if email == "" || len(code) != OTPLength {
		return nil, "", nil, ErrInvalidOrExpiredToken
	}

	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, "", nil, ErrInvalidOrExpiredToken
		}
		return nil, "", nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.verifications.ConsumeOTP(ctx, existingUser.Email, code); err != nil {
		if errors.Is(err, ErrVerificationNotFound) {
			return nil, "", nil, ErrInvalidOrExpiredToken
		}
		return nil, "", nil, fmt.Errorf("failed to consume code: %w", err)
	}

	if !existingUser.EmailVerified {
		if err := s.users.MarkEmailVerified(ctx, existingUser.ID); err != nil {
			return nil, "", nil, fmt.Errorf("failed to mark email verified: %w", err)
		}
		existingUser.EmailVerified = true
	}

	token, session, err := s.createSession(ctx, existingUser, meta)
	if err != nil {
		return nil, "", nil, err
	}

	return existingUser, token, session, nil
}
