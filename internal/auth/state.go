package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
)

const stateTTL = 10 * time.Minute

// StateService issues and verifies OAuth state parameters as PASETO
// v4.local tokens. The state binds the callback to the provider the redirect
// was issued for and expires on its own, so it never needs server storage;
// the nonce is mirrored in a short-lived cookie to tie the callback to the
// browser that started the flow.
type StateService struct {
	symmetricKey paseto.V4SymmetricKey
}

func NewStateService(symmetricKey []byte) (*StateService, error) {
	if len(symmetricKey) != 32 {
		return nil, fmt.Errorf("symmetric key must be exactly 32 bytes, got %d", len(symmetricKey))
	}

	key, err := paseto.V4SymmetricKeyFromBytes(symmetricKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create symmetric key: %w", err)
	}

	return &StateService{symmetricKey: key}, nil
}

// Issue creates a state token for a provider redirect
func (s *StateService) Issue(provider string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}

	now := time.Now()
	token := paseto.NewToken()
	token.SetIssuedAt(now)
	token.SetExpiration(now.Add(stateTTL))
	token.SetString("provider", provider)
	token.SetString("nonce", base64.RawURLEncoding.EncodeToString(nonce))

	return token.V4Encrypt(s.symmetricKey, nil), nil
}

// Verify checks a state token from a callback and confirms it was issued
// for the expected provider. The parser rejects expired tokens.
func (s *StateService) Verify(state, expectedProvider string) error {
	parser := paseto.NewParser()

	token, err := parser.ParseV4Local(s.symmetricKey, state, nil)
	if err != nil {
		return ErrInvalidOrExpiredToken
	}

	provider, err := token.GetString("provider")
	if err != nil || provider != expectedProvider {
		return ErrInvalidOrExpiredToken
	}

	return nil
}
