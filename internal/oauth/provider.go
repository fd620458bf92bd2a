// Package oauth wraps golang.org/x/oauth2 for the social sign-in providers
// the service supports. Providers expose the redirect URL, the code
// exchange, and a normalized identity fetch.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// Identity is the normalized profile a provider asserts for a user
type Identity struct {
	ID    string
	Email string
	Name  string
}

// Provider is one configured OAuth2 identity provider
type Provider struct {
	name          string
	config        *oauth2.Config
	fetchIdentity func(ctx context.Context, client *http.Client) (*Identity, error)
}

func (p *Provider) Name() string {
	return p.name
}

// AuthCodeURL builds the provider redirect URL for the given state
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for provider tokens
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange with %s failed: %w", p.name, err)
	}
	return token, nil
}

// Identity fetches the provider profile for an exchanged token
func (p *Provider) Identity(ctx context.Context, token *oauth2.Token) (*Identity, error) {
	client := p.config.Client(ctx, token)
	identity, err := p.fetchIdentity(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("identity fetch from %s failed: %w", p.name, err)
	}
	return identity, nil
}

// getJSON fetches a provider API endpoint and decodes the response
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
