package auth

import (
	"errors"
	"net/http"
	"time"
)

const (
	// SessionCookieName carries the opaque bearer token. HttpOnly and
	// SameSite=Lax keep it out of script reach and off cross-site posts.
	SessionCookieName = "auth_session"

	// StateCookieName mirrors the OAuth state during a social sign-in
	StateCookieName = "auth_oauth_state"
)

var ErrNoSessionCookie = errors.New("session cookie not present")

// SetSessionCookie writes the session token cookie. Secure is tied to the
// environment so local development over plain HTTP still works.
func SetSessionCookie(w http.ResponseWriter, token, domain string, isProduction bool, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie
func ClearSessionCookie(w http.ResponseWriter, domain string, isProduction bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetSessionTokenFromCookie reads the bearer token from the session cookie
func GetSessionTokenFromCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", ErrNoSessionCookie
	}
	return cookie.Value, nil
}

// SetStateCookie mirrors the OAuth state token for the duration of the
// redirect round-trip
func SetStateCookie(w http.ResponseWriter, state string, isProduction bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearStateCookie removes the OAuth state cookie after the callback
func ClearStateCookie(w http.ResponseWriter, isProduction bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}
