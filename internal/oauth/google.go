package oauth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// NewGoogle configures the Google sign-in provider
func NewGoogle(clientID, clientSecret, callbackURL string) *Provider {
	return &Provider{
		name: "google",
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		fetchIdentity: fetchGoogleIdentity,
	}
}

func fetchGoogleIdentity(ctx context.Context, client *http.Client) (*Identity, error) {
	var info struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		Name          string `json:"name"`
	}
	if err := getJSON(ctx, client, googleUserInfoURL, &info); err != nil {
		return nil, err
	}

	if !info.VerifiedEmail {
		return nil, fmt.Errorf("google account email is unverified")
	}

	return &Identity{
		ID:    info.ID,
		Email: info.Email,
		Name:  info.Name,
	}, nil
}
