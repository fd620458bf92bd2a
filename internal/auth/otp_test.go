package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendOTP(t *testing.T) {
	ctx := context.Background()

	t.Run("sends a code to an existing account", func(t *testing.T) {
		env := newTestEnv()
		require.NoError(t, env.signUpVerified(ctx, "alice@example.com", "password123"))

		require.NoError(t, env.service.SendOTP(ctx, "alice@example.com"))

		require.Len(t, env.emails.otps, 1)
		sent := env.emails.lastOTP()
		assert.Equal(t, "alice@example.com", sent.To)
		assert.Len(t, sent.Code, OTPLength)
	})

	t.Run("is silent for unknown emails", func(t *testing.T) {
		env := newTestEnv()

		require.NoError(t, env.service.SendOTP(ctx, "nobody@example.com"))
		assert.Empty(t, env.emails.otps)
	})

	t.Run("surfaces delivery failures", func(t *testing.T) {
		env := newTestEnv()
		require.NoError(t, env.signUpVerified(ctx, "alice@example.com", "password123"))
		env.emails.fail = true

		assert.ErrorIs(t, env.service.SendOTP(ctx, "alice@example.com"), ErrEmailDeliveryFailed)
	})
}

func TestVerifyOTP(t *testing.T) {
	ctx := context.Background()
	meta := ClientMeta{IPAddress: "203.0.113.9"}

	t.Run("valid code signs in and is consumed", func(t *testing.T) {
		env := newTestEnv()
		require.NoError(t, env.signUpVerified(ctx, "alice@example.com", "password123"))
		require.NoError(t, env.service.SendOTP(ctx, "alice@example.com"))
		code := env.emails.lastOTP().Code

		signedIn, token, session, err := env.service.VerifyOTP(ctx, "alice@example.com", code, meta)
		require.NoError(t, err)
		require.NotNil(t, session)
		require.NotEmpty(t, token)
		assert.Equal(t, "alice@example.com", signedIn.Email)

		_, _, _, err = env.service.VerifyOTP(ctx, "alice@example.com", code, meta)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("wrong code fails and the real code survives", func(t *testing.T) {
		env := newTestEnv()
		require.NoError(t, env.signUpVerified(ctx, "alice@example.com", "password123"))
		require.NoError(t, env.service.SendOTP(ctx, "alice@example.com"))
		code := env.emails.lastOTP().Code

		wrong := "000000"
		if wrong == code {
			wrong = "000001"
		}
		_, _, _, err := env.service.VerifyOTP(ctx, "alice@example.com", wrong, meta)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

		_, _, _, err = env.service.VerifyOTP(ctx, "alice@example.com", code, meta)
		assert.NoError(t, err)
	})

	t.Run("rejects unknown emails and malformed codes", func(t *testing.T) {
		env := newTestEnv()

		_, _, _, err := env.service.VerifyOTP(ctx, "nobody@example.com", "123456", meta)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

		_, _, _, err = env.service.VerifyOTP(ctx, "nobody@example.com", "12345", meta)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

		_, _, _, err = env.service.VerifyOTP(ctx, "", "123456", meta)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("verifies the email as a side effect", func(t *testing.T) {
		env := newTestEnv()
		_, err := env.service.SignUp(ctx, "bob@example.com", "Bob", "password123")
		require.NoError(t, err)
		require.NoError(t, env.service.SendOTP(ctx, "bob@example.com"))
		code := env.emails.lastOTP().Code

		signedIn, _, _, err := env.service.VerifyOTP(ctx, "bob@example.com", code, meta)
		require.NoError(t, err)
		assert.True(t, signedIn.EmailVerified)

		stored, err := env.users.GetByEmail(ctx, "bob@example.com")
		require.NoError(t, err)
		assert.True(t, stored.EmailVerified)
	})

	t.Run("racing requests on one code produce exactly one session", func(t *testing.T) {
		env := newTestEnv()
		require.NoError(t, env.signUpVerified(ctx, "alice@example.com", "password123"))
		require.NoError(t, env.service.SendOTP(ctx, "alice@example.com"))
		code := env.emails.lastOTP().Code

		const attempts = 8
		var wg sync.WaitGroup
		errs := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _, _, errs[i] = env.service.VerifyOTP(ctx, "alice@example.com", code, meta)
			}(i)
		}
		wg.Wait()

		successes := 0
		for _, err := range errs {
			if err == nil {
				successes++
			} else {
				assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
			}
		}
		assert.Equal(t, 1, successes)
	})

	t.Run("new code replaces the previous one", func(t *testing.T) {
		env := newTestEnv()
		require.NoError(t, env.signUpVerified(ctx, "alice@example.com", "password123"))

		require.NoError(t, env.service.SendOTP(ctx, "alice@example.com"))
		firstCode := env.emails.lastOTP().Code
		require.NoError(t, env.service.SendOTP(ctx, "alice@example.com"))
		secondCode := env.emails.lastOTP().Code

		if firstCode != secondCode {
			_, _, _, err := env.service.VerifyOTP(ctx, "alice@example.com", firstCode, meta)
			assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
		}

		_, _, _, err := env.service.VerifyOTP(ctx, "alice@example.com", secondCode, meta)
		assert.NoError(t, err)
	})
}
