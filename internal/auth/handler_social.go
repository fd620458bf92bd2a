package auth

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/cwllll/auth-service/internal/httputil"
	"github.com/cwllll/auth-service/internal/logging"
	"github.com/cwllll/auth-service/internal/user"
)

// SocialRedirect starts a social sign-in flow
// @Summary      Redirect to a social sign-in provider
// @Description  Issue a state token and redirect the browser to the provider's consent page.
// @Tags         auth
// @Param        provider path string true "Provider name (google, github)"
// @Success      302
// @Failure      404 {object} httputil.ErrorEnvelope "Unknown provider"
// @Router       /sign-in/social/{provider} [get]
func (h *Handler) SocialRedirect(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	providerName := chi.URLParam(r, "provider")
	provider, ok := h.providers[providerName]
	if !ok {
		httputil.RespondError(w, "unknown sign-in provider", httputil.CodeUnknownProvider, http.StatusNotFound)
		return
	}

	state, err := h.state.Issue(providerName)
	if err != nil {
		logger.Error("failed to issue oauth state", "provider", providerName, "error", err.Error())
		h.reporter.ReportError(r.Context(), err, map[string]any{"operation": "social-redirect"})
		httputil.RespondError(w, "failed to start sign-in", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	SetStateCookie(w, state, h.isProduction)

	logger.Info("social sign-in started", "provider", providerName)

	http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
}

// SocialCallback completes a social sign-in flow
// @Summary      Social sign-in callback
// @Description  Validate the state, exchange the code, provision or link the user, and redirect back to the frontend with a session cookie.
// @Tags         auth
// @Param        provider path string true "Provider name (google, github)"
// @Param        state query string true "State token from the redirect"
// @Param        code query string true "Authorization code"
// @Success      302
// @Router       /sign-in/social/{provider}/callback [get]
func (h *Handler) SocialCallback(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	providerName := chi.URLParam(r, "provider")
	provider, ok := h.providers[providerName]
	if !ok {
		httputil.RespondError(w, "unknown sign-in provider", httputil.CodeUnknownProvider, http.StatusNotFound)
		return
	}

	// The state must round-trip twice: through the provider (query) and
	// through the browser (cookie). Both copies must match and parse.
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(StateCookieName)
	if err != nil || state == "" || stateCookie.Value != state {
		logger.Warn("social callback state mismatch", "provider", providerName)
		h.redirectSignInError(w, r, "state_mismatch")
		return
	}
	if err := h.state.Verify(state, providerName); err != nil {
		logger.Warn("social callback state invalid", "provider", providerName)
		h.redirectSignInError(w, r, "state_invalid")
		return
	}

	ClearStateCookie(w, h.isProduction)

	code := r.URL.Query().Get("code")
	if code == "" {
		// The provider redirects without a code when the user denies consent
		h.redirectSignInError(w, r, "access_denied")
		return
	}

	token, err := provider.Exchange(r.Context(), code)
	if err != nil {
		logger.Warn("social callback code exchange failed", "provider", providerName, "error", err.Error())
		h.redirectSignInError(w, r, "exchange_failed")
		return
	}

	identity, err := provider.Identity(r.Context(), token)
	if err != nil {
		logger.Warn("social callback identity fetch failed", "provider", providerName, "error", err.Error())
		h.redirectSignInError(w, r, "identity_failed")
		return
	}

	tokens := user.AccountTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		tokens.ExpiresAt = &expiry
	}

	signedInUser, sessionToken, _, err := h.service.SignInSocial(r.Context(), providerName, identity, tokens, clientMeta(r))
	if err != nil {
		logger.Error("social sign-in failed", "provider", providerName, "error", err.Error())
		h.reporter.ReportError(r.Context(), err, map[string]any{"operation": "social-callback", "provider": providerName})
		h.redirectSignInError(w, r, "sign_in_failed")
		return
	}

	SetSessionCookie(w, sessionToken, h.cookieDomain, h.isProduction, h.sessionTTL)

	logger.Info("user signed in via social provider", "provider", providerName, "user_id", signedInUser.ID)

	http.Redirect(w, r, h.frontendURL, http.StatusFound)
}

// redirectSignInError sends the browser back to the frontend sign-in page
// with a coarse error tag; details stay in the logs.
func (h *Handler) redirectSignInError(w http.ResponseWriter, r *http.Request, tag string) {
	target := fmt.Sprintf("%s/sign-in?error=%s", h.frontendURL, url.QueryEscape(tag))
	http.Redirect(w, r, target, http.StatusFound)
}
