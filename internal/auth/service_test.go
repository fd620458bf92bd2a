package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwllll/auth-service/internal/user"
)

func TestSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("creates unverified user and sends one verification link", func(t *testing.T) {
		env := newTestEnv()

		created, err := env.service.SignUp(ctx, "Alice@Example.com", "Alice", "correct horse battery")
		require.NoError(t, err)
		require.NotNil(t, created)

		assert.Equal(t, "alice@example.com", created.Email)
		assert.False(t, created.EmailVerified)
		assert.True(t, created.HasPassword())

		require.Len(t, env.emails.verifications, 1)
		assert.Equal(t, "alice@example.com", env.emails.lastVerification().To)
		assert.Equal(t, 1, env.verifications.linkTokenCount("alice@example.com"))
	})

	t.Run("rejects duplicate email without creating a second user", func(t *testing.T) {
		env := newTestEnv()

		_, err := env.service.SignUp(ctx, "alice@example.com", "Alice", "password123")
		require.NoError(t, err)

		_, err = env.service.SignUp(ctx, "ALICE@example.com", "Imposter", "password456")
		assert.ErrorIs(t, err, user.ErrDuplicateEmail)
		assert.Equal(t, 1, env.users.count())
	})

	t.Run("validates input", func(t *testing.T) {
		env := newTestEnv()

		tests := []struct {
			name     string
			email    string
			password string
			wantErr  error
		}{
			{"empty email", "", "password123", ErrEmailRequired},
			{"malformed email", "not-an-email", "password123", ErrInvalidEmailFormat},
			{"empty password", "bob@example.com", "", ErrPasswordRequired},
			{"short password", "bob@example.com", "1234567", ErrPasswordTooShort},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				_, err := env.service.SignUp(ctx, tc.email, "Bob", tc.password)
				assert.ErrorIs(t, err, tc.wantErr)
			})
		}

		assert.Equal(t, 0, env.users.count())
	})

	t.Run("keeps the user when the verification email fails", func(t *testing.T) {
		env := newTestEnv()
		env.emails.fail = true

		created, err := env.service.SignUp(ctx, "carol@example.com", "Carol", "password123")
		assert.ErrorIs(t, err, ErrEmailDeliveryFailed)
		require.NotNil(t, created)
		assert.Equal(t, 1, env.users.count())

		// Delivery can be retried later
		env.emails.fail = false
		require.NoError(t, env.service.ResendVerification(ctx, "carol@example.com"))
		require.Len(t, env.emails.verifications, 1)
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	meta := ClientMeta{IPAddress: "203.0.113.9", UserAgent: "test"}

	t.Run("unknown email and wrong password yield the same error", func(t *testing.T) {
		env := newTestEnv()
		require.NoError(t, env.signUpVerified(ctx, "alice@example.com", "password123"))

		_, _, _, errUnknown := env.service.SignIn(ctx, "nobody@example.com", "password123", meta)
		_, _, _, errWrongPassword := env.service.SignIn(ctx, "alice@example.com", "hunter2hunter2", meta)

		assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
		assert.ErrorIs(t, errWrongPassword, ErrInvalidCredentials)
		assert.Empty(t, env.sessions.sessions)
	})

	t.Run("unverified account cannot sign in", func(t *testing.T) {
		env := newTestEnv()
		_, err := env.service.SignUp(ctx, "bob@example.com", "Bob", "password123")
		require.NoError(t, err)

		_, _, _, err = env.service.SignIn(ctx, "bob@example.com", "password123", meta)
		assert.ErrorIs(t, err, ErrEmailNotVerified)
	})

	t.Run("verified account signs in and the token resolves", func(t *testing.T) {
		env := newTestEnv()
		require.NoError(t, env.signUpVerified(ctx, "alice@example.com", "password123"))

		signedIn, token, session, err := env.service.SignIn(ctx, "alice@example.com", "password123", meta)
		require.NoError(t, err)
		require.NotEmpty(t, token)
		require.NotNil(t, session)

		assert.Equal(t, "203.0.113.9", session.IPAddress)
		assert.NotContains(t, session.TokenHash, token, "raw token must not be stored")

		resolvedUser, resolvedSession, err := env.service.GetSession(ctx, token)
		require.NoError(t, err)
		require.NotNil(t, resolvedUser)
		assert.Equal(t, signedIn.ID, resolvedUser.ID)
		assert.Equal(t, session.ID, resolvedSession.ID)
	})
}

func TestGetSession(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown and empty tokens resolve to logged out", func(t *testing.T) {
		env := newTestEnv()

		u, s, err := env.service.GetSession(ctx, "")
		require.NoError(t, err)
		assert.Nil(t, u)
		assert.Nil(t, s)

		u, s, err = env.service.GetSession(ctx, "bogus-token")
		require.NoError(t, err)
		assert.Nil(t, u)
		assert.Nil(t, s)
	})

	t.Run("expired session resolves to logged out", func(t *testing.T) {
		env := newTestEnv()
		require.NoError(t, env.signUpVerified(ctx, "alice@example.com", "password123"))
		_, token, _, err := env.service.SignIn(ctx, "alice@example.com", "password123", ClientMeta{})
		require.NoError(t, err)

		env.sessions.backdate(hashToken(token), time.Now().Add(-31*24*time.Hour), time.Now().Add(-time.Hour))

		u, s, err := env.service.GetSession(ctx, token)
		require.NoError(t, err)
		assert.Nil(t, u)
		assert.Nil(t, s)
	})

	t.Run("stale session gets a sliding refresh", func(t *testing.T) {
		env := newTestEnv()
		require.NoError(t, env.signUpVerified(ctx, "alice@example.com", "password123"))
		_, token, _, err := env.service.SignIn(ctx, "alice@example.com", "password123", ClientMeta{})
		require.NoError(t, err)

		// Last touched 25h ago, expiring in an hour
		shortExpiry := time.Now().Add(time.Hour)
		env.sessions.backdate(hashToken(token), time.Now().Add(-25*time.Hour), shortExpiry)

		_, refreshed, err := env.service.GetSession(ctx, token)
		require.NoError(t, err)
		require.NotNil(t, refreshed)
		assert.True(t, refreshed.ExpiresAt.After(time.Now().Add(29*24*time.Hour)),
			"expiry should be pushed out to a full TTL")
	})

	t.Run("fresh session is not touched", func(t *testing.T) {
		env := newTestEnv()
		require.NoError(t, env.signUpVerified(ctx, "alice@example.com", "password123"))
		_, token, created, err := env.service.SignIn(ctx, "alice@example.com", "password123", ClientMeta{})
		require.NoError(t, err)

		_, resolved, err := env.service.GetSession(ctx, token)
		require.NoError(t, err)
		assert.WithinDuration(t, created.ExpiresAt, resolved.ExpiresAt, time.Second)
	})
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()

	t.Run("revoked token stops resolving", func(t *testing.T) {
		env := newTestEnv()
		require.NoError(t, env.signUpVerified(ctx, "alice@example.com", "password123"))
		_, token, _, err := env.service.SignIn(ctx, "alice@example.com", "password123", ClientMeta{})
		require.NoError(t, err)

		require.NoError(t, env.service.SignOut(ctx, token))

		u, s, err := env.service.GetSession(ctx, token)
		require.NoError(t, err)
		assert.Nil(t, u)
		assert.Nil(t, s)
	})

	t.Run("is idempotent", func(t *testing.T) {
		env := newTestEnv()
		assert.NoError(t, env.service.SignOut(ctx, "never-issued"))
		assert.NoError(t, env.service.SignOut(ctx, ""))
	})

	t.Run("sweeping expired sessions leaves live ones alone", func(t *testing.T) {
		env := newTestEnv()
		require.NoError(t, env.signUpVerified(ctx, "alice@example.com", "password123"))

		_, liveToken, _, err := env.service.SignIn(ctx, "alice@example.com", "password123", ClientMeta{})
		require.NoError(t, err)
		_, staleToken, _, err := env.service.SignIn(ctx, "alice@example.com", "password123", ClientMeta{})
		require.NoError(t, err)

		env.sessions.backdate(hashToken(staleToken), time.Now().Add(-31*24*time.Hour), time.Now().Add(-time.Hour))
		require.NoError(t, env.sessions.DeleteExpired(ctx))

		u, _, err := env.service.GetSession(ctx, liveToken)
		require.NoError(t, err)
		assert.NotNil(t, u)
		assert.Len(t, env.sessions.sessions, 1)
	})

	t.Run("sign out everywhere revokes all of the user's sessions", func(t *testing.T) {
		env := newTestEnv()
		require.NoError(t, env.signUpVerified(ctx, "alice@example.com", "password123"))

		signedIn, token1, _, err := env.service.SignIn(ctx, "alice@example.com", "password123", ClientMeta{})
		require.NoError(t, err)
		_, token2, _, err := env.service.SignIn(ctx, "alice@example.com", "password123", ClientMeta{})
		require.NoError(t, err)

		require.NoError(t, env.service.SignOutEverywhere(ctx, signedIn))

		for _, token := range []string{token1, token2} {
			u, _, err := env.service.GetSession(ctx, token)
			require.NoError(t, err)
			assert.Nil(t, u)
		}
	})
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("link token is single use", func(t *testing.T) {
		env := newTestEnv()
		_, err := env.service.SignUp(ctx, "alice@example.com", "Alice", "password123")
		require.NoError(t, err)
		token := env.emails.lastVerification().Token

		require.NoError(t, env.service.VerifyEmail(ctx, token))

		verified, err := env.users.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.True(t, verified.EmailVerified)

		assert.ErrorIs(t, env.service.VerifyEmail(ctx, token), ErrInvalidOrExpiredToken)
	})

	t.Run("rejects unknown and empty tokens", func(t *testing.T) {
		env := newTestEnv()
		assert.ErrorIs(t, env.service.VerifyEmail(ctx, "never-issued"), ErrInvalidOrExpiredToken)
		assert.ErrorIs(t, env.service.VerifyEmail(ctx, ""), ErrInvalidOrExpiredToken)
	})

	t.Run("resend replaces the outstanding token", func(t *testing.T) {
		env := newTestEnv()
		_, err := env.service.SignUp(ctx, "alice@example.com", "Alice", "password123")
		require.NoError(t, err)
		firstToken := env.emails.lastVerification().Token

		require.NoError(t, env.service.ResendVerification(ctx, "alice@example.com"))
		secondToken := env.emails.lastVerification().Token
		require.NotEqual(t, firstToken, secondToken)
		assert.Equal(t, 1, env.verifications.linkTokenCount("alice@example.com"))

		assert.ErrorIs(t, env.service.VerifyEmail(ctx, firstToken), ErrInvalidOrExpiredToken)
		assert.NoError(t, env.service.VerifyEmail(ctx, secondToken))
	})

	t.Run("resend is silent for unknown and already-verified emails", func(t *testing.T) {
		env := newTestEnv()
		require.NoError(t, env.signUpVerified(ctx, "alice@example.com", "password123"))
		sentBefore := len(env.emails.verifications)

		assert.NoError(t, env.service.ResendVerification(ctx, "nobody@example.com"))
		assert.NoError(t, env.service.ResendVerification(ctx, "alice@example.com"))
		assert.Len(t, env.emails.verifications, sentBefore)
	})
}
