package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/cwllll/auth-service/internal/httputil"
	"github.com/cwllll/auth-service/internal/user"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	UserContextKey    ContextKey = "auth_user"
	SessionContextKey ContextKey = "auth_session"
)

// Middleware guards protected routes behind a valid session
type Middleware struct {
	service *Service
}

func NewMiddleware(service *Service) *Middleware {
	return &Middleware{service: service}
}

// RequireSession resolves the caller's session and rejects the request when
// none resolves. Expired, revoked and unknown tokens are all the same 401.
func (m *Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := SessionTokenFromRequest(r)
		if token == "" {
			httputil.RespondError(w, "authentication required", httputil.CodeUnauthorized, http.StatusUnauthorized)
			return
		}

		sessionUser, session, err := m.service.GetSession(r.Context(), token)
		if err != nil {
			httputil.RespondError(w, "failed to resolve session", httputil.CodeInternalError, http.StatusInternalServerError)
			return
		}
		if session == nil {
			httputil.RespondError(w, "authentication required", httputil.CodeUnauthorized, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, sessionUser)
		ctx = context.WithValue(ctx, SessionContextKey, session)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionTokenFromRequest extracts the bearer token, preferring the
// Authorization header over the session cookie.
func SessionTokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}

	token, err := GetSessionTokenFromCookie(r)
	if err != nil {
		return ""
	}
	return token
}

// GetUserFromContext extracts the authenticated user from the request context
func GetUserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*user.User)
	return u, ok
}

// GetSessionFromContext extracts the session from the request context
func GetSessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(SessionContextKey).(*Session)
	return s, ok
}
