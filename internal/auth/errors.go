package auth

import "errors"

var (
	ErrEmailRequired      = errors.New("email is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrInvalidEmailFormat = errors.New("invalid email format")

	// ErrInvalidCredentials covers both unknown email and wrong password;
	// callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email not verified, please check your inbox")

	// ErrInvalidOrExpiredToken covers unknown, expired and already-consumed
	// verification artifacts. One error for all three, no enumeration oracle.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	ErrEmailDeliveryFailed = errors.New("failed to deliver email")
	ErrUnknownProvider     = errors.New("unknown sign-in provider")

	ErrSessionNotFound      = errors.New("session not found")
	ErrVerificationNotFound = errors.New("verification not found")
)
