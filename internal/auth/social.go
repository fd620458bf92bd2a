package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwllll/auth-service/internal/oauth"
	"github.com/cwllll/auth-service/internal/user"
)

// SignInSocial signs a user in through a federated identity. First sign-in
// provisions the user (no password credential) and links the account;
// subsequent sign-ins refresh the stored provider tokens. Provider-asserted
// emails count as verified.
func (s *Service) SignInSocial(ctx context.Context, provider string, identity *oauth.Identity, tokens user.AccountTokens, meta ClientMeta) (*user.User, string, *Session, error) {
	if identity.ID == "" || identity.Email == "" {
		return nil, "", nil, fmt.Errorf("provider %s returned an incomplete identity", provider)
	}

	account, err := s.users.GetAccount(ctx, provider, identity.ID)
	switch {
	case err == nil:
		// Known account: refresh provider tokens and sign in
		if err := s.users.UpdateAccountTokens(ctx, account.ID, tokens); err != nil {
			s.logger.Warn("failed to refresh account tokens", "provider", provider, "error", err)
		}

		existingUser, err := s.users.GetByID(ctx, account.UserID)
		if err != nil {
			return nil, "", nil, fmt.Errorf("failed to get account user: %w", err)
		}

		token, session, err := s.createSession(ctx, existingUser, meta)
		if err != nil {
			return nil, "", nil, err
		}
		return existingUser, token, session, nil

	case errors.Is(err, user.ErrAccountNotFound):
		// Fall through to provisioning/linking below
	default:
		return nil, "", nil, fmt.Errorf("failed to get account: %w", err)
	}

	existingUser, err := s.users.GetByEmail(ctx, identity.Email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return nil, "", nil, fmt.Errorf("failed to get user: %w", err)
		}

		// First social sign-in: provision the user without a password
		existingUser, err = s.users.Create(ctx, identity.Email, identity.Name, nil)
		if err != nil {
			return nil, "", nil, fmt.Errorf("failed to provision user: %w", err)
		}
	}

	if !existingUser.EmailVerified {
		if err := s.users.MarkEmailVerified(ctx, existingUser.ID); err != nil {
			return nil, "", nil, fmt.Errorf("failed to mark email verified: %w", err)
		}
		existingUser.EmailVerified = true
	}

	if _, err := s.users.LinkAccount(ctx, existingUser.ID, provider, identity.ID, tokens); err != nil {
		// A concurrent callback may have linked first; that is fine
		if !errors.Is(err, user.ErrDuplicateAccount) {
			return nil, "", nil, fmt.Errorf("failed to link account: %w", err)
		}
	}

	token, session, err := s.createSession(ctx, existingUser, meta)
	if err != nil {
		return nil, "", nil, err
	}

	return existingUser, token, session, nil
}
