package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
)

// OTPLength is the number of digits in a one-time sign-in code
const OTPLength = 6

// NewSessionToken creates an opaque bearer token with 256 bits of entropy.
// The token carries no structure; validity is decided by store lookup only.
func NewSessionToken() (string, error) {
	return newRandomToken()
}

// NewLinkToken creates an opaque email-verification link token
func NewLinkToken() (string, error) {
	return newRandomToken()
}

// NewOTPCode creates a uniformly random 6-digit numeric code, zero-padded
// for human entry.
func NewOTPCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < OTPLength; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", OTPLength, n), nil
}

// hashToken returns the hex-encoded SHA-256 of a token. Stores persist only
// hashes so a leaked database cannot be replayed as bearer credentials.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
