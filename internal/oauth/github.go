package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
)

// NewGitHub configures the GitHub sign-in provider
func NewGitHub(clientID, clientSecret, callbackURL string) *Provider {
	return &Provider{
		name: "github",
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		fetchIdentity: fetchGitHubIdentity,
	}
}

func fetchGitHubIdentity(ctx context.Context, client *http.Client) (*Identity, error) {
	var profile struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := getJSON(ctx, client, githubUserURL, &profile); err != nil {
		return nil, err
	}

	name := profile.Name
	if name == "" {
		name = profile.Login
	}

	email := profile.Email
	if email == "" {
		// The profile email is empty when the user keeps it private;
		// the emails endpoint lists addresses with verification flags.
		primary, err := fetchGitHubPrimaryEmail(ctx, client)
		if err != nil {
			return nil, err
		}
		email = primary
	}

	return &Identity{
		ID:    strconv.FormatInt(profile.ID, 10),
		Email: email,
		Name:  name,
	}, nil
}

func fetchGitHubPrimaryEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, githubEmailsURL, &emails); err != nil {
		return "", err
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}

	return "", fmt.Errorf("github account has no verified primary email")
}
