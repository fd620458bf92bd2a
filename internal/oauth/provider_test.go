package oauth

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGoogle(t *testing.T) {
	p := NewGoogle("client-id", "client-secret", "https://auth.example.com/sign-in/social/google/callback")
	assert.Equal(t, "google", p.Name())

	raw := p.AuthCodeURL("the-state")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	q := parsed.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "the-state", q.Get("state"))
	assert.Equal(t, "https://auth.example.com/sign-in/social/google/callback", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "userinfo.email")
	assert.NotContains(t, raw, "client-secret")
}

func TestNewGitHub(t *testing.T) {
	p := NewGitHub("client-id", "client-secret", "https://auth.example.com/sign-in/social/github/callback")
	assert.Equal(t, "github", p.Name())

	parsed, err := url.Parse(p.AuthCodeURL("the-state"))
	require.NoError(t, err)
	assert.Equal(t, "github.com", parsed.Host)

	q := parsed.Query()
	assert.Equal(t, "the-state", q.Get("state"))
	assert.Contains(t, q.Get("scope"), "user:email")
}
