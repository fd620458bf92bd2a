package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cwllll/auth-service/internal/httputil"
	"github.com/cwllll/auth-service/internal/logging"
	"github.com/cwllll/auth-service/internal/oauth"
	"github.com/cwllll/auth-service/internal/telemetry"
	"github.com/cwllll/auth-service/internal/user"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service      *Service
	rateLimiter  RateLimiter
	reporter     telemetry.Reporter
	logger       *logging.Logger
	state        *StateService
	providers    map[string]*oauth.Provider
	isProduction bool
	cookieDomain string
	sessionTTL   time.Duration
	frontendURL  string
}

func NewHandler(
	service *Service,
	rateLimiter RateLimiter,
	reporter telemetry.Reporter,
	logger *logging.Logger,
	state *StateService,
	providers map[string]*oauth.Provider,
	isProduction bool,
	cookieDomain string,
	sessionTTL time.Duration,
	frontendURL string,
) *Handler {
	return &Handler{
		service:      service,
		rateLimiter:  rateLimiter,
		reporter:     reporter,
		logger:       logger,
		state:        state,
		providers:    providers,
		isProduction: isProduction,
		cookieDomain: cookieDomain,
		sessionTTL:   sessionTTL,
		frontendURL:  frontendURL,
	}
}

// SignUpRequest represents the sign-up request body
type SignUpRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// SignInRequest represents the password sign-in request body
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OTPSendRequest represents the one-time-code send request body
type OTPSendRequest struct {
	Email string `json:"email"`
}

// OTPVerifyRequest represents the one-time-code verification request body
type OTPVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// ResendVerificationRequest represents the resend verification request body
type ResendVerificationRequest struct {
	Email string `json:"email"`
}

// SessionData is the payload of session-bearing responses. Token is only
// populated for non-browser clients; browsers get the HttpOnly cookie.
type SessionData struct {
	User    *user.User `json:"user"`
	Session *Session   `json:"session"`
	Token   string     `json:"token,omitempty"`
}

// SignUp handles user registration
// @Summary      Sign up with email and password
// @Description  Create a user account. A verification email is dispatched before the response; sign-in is blocked until the link is visited.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SignUpRequest true "Sign-up credentials"
// @Success      201 {object} httputil.Envelope
// @Failure      400 {object} httputil.ErrorEnvelope "Invalid request or validation error"
// @Failure      409 {object} httputil.ErrorEnvelope "Email already exists"
// @Failure      502 {object} httputil.ErrorEnvelope "Verification email could not be dispatched"
// @Router       /sign-up [post]
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.rateLimitedByIP(w, r, "sign-up") {
		return
	}

	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid sign-up request body", "error", err.Error())
		httputil.RespondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	newUser, err := h.service.SignUp(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrDuplicateEmail):
			logger.Warn("sign-up failed: email already exists")
			httputil.RespondError(w, "email already exists", httputil.CodeDuplicateEmail, http.StatusConflict)
		case errors.Is(err, ErrEmailRequired):
			httputil.RespondError(w, err.Error(), httputil.CodeEmailRequired, http.StatusBadRequest)
		case errors.Is(err, ErrPasswordRequired):
			httputil.RespondError(w, err.Error(), httputil.CodePasswordRequired, http.StatusBadRequest)
		case errors.Is(err, ErrPasswordTooShort):
			httputil.RespondError(w, err.Error(), httputil.CodePasswordTooShort, http.StatusBadRequest)
		case errors.Is(err, ErrInvalidEmailFormat):
			httputil.RespondError(w, err.Error(), httputil.CodeInvalidEmailFormat, http.StatusBadRequest)
		case errors.Is(err, ErrEmailDeliveryFailed):
			// The account exists; verification stays retriable via resend
			logger.Warn("sign-up created user but verification email failed")
			httputil.RespondError(w, "could not send verification email, please request a new one", httputil.CodeEmailDeliveryFailed, http.StatusBadGateway)
		default:
			logger.Error("sign-up failed: internal error", "error", err.Error())
			h.reporter.ReportError(r.Context(), err, map[string]any{"operation": "sign-up"})
			httputil.RespondError(w, "failed to sign up", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user signed up", "user_id", newUser.ID)

	httputil.RespondJSON(w, httputil.Envelope{
		OK:      true,
		Message: "Sign-up successful. Please check your email to verify your account.",
		Data:    map[string]any{"user": newUser},
	}, http.StatusCreated)
}

// SignIn handles password sign-in
// @Summary      Sign in with email and password
// @Description  Authenticate and receive a session. Browsers get an HttpOnly cookie; other clients get the bearer token in the body.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SignInRequest true "Sign-in credentials"
// @Success      200 {object} httputil.Envelope
// @Failure      401 {object} httputil.ErrorEnvelope "Invalid credentials"
// @Failure      403 {object} httputil.ErrorEnvelope "Email not verified"
// @Router       /sign-in [post]
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.rateLimitedByIP(w, r, "sign-in") {
		return
	}

	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid sign-in request body", "error", err.Error())
		httputil.RespondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	signedInUser, token, session, err := h.service.SignIn(r.Context(), req.Email, req.Password, clientMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			logger.Warn("sign-in failed: invalid credentials")
			httputil.RespondError(w, "invalid credentials", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
		case errors.Is(err, ErrEmailNotVerified):
			logger.Warn("sign-in failed: email not verified")
			httputil.RespondError(w, "email not verified, please check your inbox", httputil.CodeEmailNotVerified, http.StatusForbidden)
		default:
			logger.Error("sign-in failed: internal error", "error", err.Error())
			h.reporter.ReportError(r.Context(), err, map[string]any{"operation": "sign-in"})
			httputil.RespondError(w, "failed to sign in", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user signed in", "user_id", signedInUser.ID)

	h.respondSession(w, r, signedInUser, token, session)
}

// SendOTP handles one-time-code dispatch
// @Summary      Send a one-time sign-in code
// @Description  Email a 6-digit code to the address. Always acknowledges for unknown addresses to prevent enumeration.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body OTPSendRequest true "Email address"
// @Success      200 {object} httputil.Envelope
// @Failure      429 {object} httputil.ErrorEnvelope "Too many requests"
// @Failure      502 {object} httputil.ErrorEnvelope "Code email could not be dispatched"
// @Router       /sign-in/otp/send [post]
func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req OTPSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid otp send request body", "error", err.Error())
		httputil.RespondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if h.rateLimitedByIP(w, r, "otp-send") {
		return
	}
	if h.emailOnCooldown(w, r, req.Email) {
		return
	}

	if err := h.service.SendOTP(r.Context(), req.Email); err != nil {
		if errors.Is(err, ErrEmailDeliveryFailed) {
			logger.Warn("otp send failed: email delivery", "email", req.Email)
			httputil.RespondError(w, "could not send sign-in code, please try again", httputil.CodeEmailDeliveryFailed, http.StatusBadGateway)
			return
		}
		logger.Error("otp send failed: internal error", "error", err.Error())
		h.reporter.ReportError(r.Context(), err, map[string]any{"operation": "otp-send"})
		httputil.RespondError(w, "failed to send sign-in code", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	// Same acknowledgement whether or not the email is registered
	httputil.RespondOK(w, "If your email is registered, a sign-in code has been sent.", http.StatusOK)
}

// VerifyOTP handles one-time-code sign-in
// @Summary      Sign in with a one-time code
// @Description  Verify the emailed 6-digit code and receive a session. The code is consumed on first use.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body OTPVerifyRequest true "Email and code"
// @Success      200 {object} httputil.Envelope
// @Failure      401 {object} httputil.ErrorEnvelope "Wrong, expired or consumed code"
// @Router       /sign-in/otp/verify [post]
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.rateLimitedByIP(w, r, "otp-verify") {
		return
	}

	var req OTPVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid otp verify request body", "error", err.Error())
		httputil.RespondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	signedInUser, token, session, err := h.service.VerifyOTP(r.Context(), req.Email, strings.TrimSpace(req.Code), clientMeta(r))
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredToken) {
			// One message for wrong, expired and consumed codes alike
			logger.Warn("otp verify failed")
			httputil.RespondError(w, "unable to verify code", httputil.CodeInvalidToken, http.StatusUnauthorized)
			return
		}
		logger.Error("otp verify failed: internal error", "error", err.Error())
		h.reporter.ReportError(r.Context(), err, map[string]any{"operation": "otp-verify"})
		httputil.RespondError(w, "failed to verify code", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user signed in via one-time code", "user_id", signedInUser.ID)

	h.respondSession(w, r, signedInUser, token, session)
}

// SignOut handles session revocation
// @Summary      Sign out
// @Description  Revoke the current session and clear the cookie. Signing out an expired or unknown session succeeds.
// @Tags         auth
// @Produce      json
// @Success      200 {object} httputil.Envelope
// @Router       /sign-out [post]
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	token := SessionTokenFromRequest(r)
	if token != "" {
		if err := h.service.SignOut(r.Context(), token); err != nil {
			// Still clear the cookie; revocation is retriable on next request
			logger.Warn("failed to revoke session", "error", err.Error())
		}
	}

	ClearSessionCookie(w, h.cookieDomain, h.isProduction)

	logger.Info("user signed out")

	httputil.RespondOK(w, "signed out", http.StatusOK)
}

// Session handles session reads
// @Summary      Read the current session
// @Description  Resolve the session cookie or bearer token. Logged-out callers get data null, not an error.
// @Tags         auth
// @Produce      json
// @Success      200 {object} httputil.Envelope
// @Router       /session [get]
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	sessionUser, session, err := h.service.GetSession(r.Context(), SessionTokenFromRequest(r))
	if err != nil {
		logger := logging.GetLoggerFromContext(r.Context())
		logger.Error("session read failed: internal error", "error", err.Error())
		h.reporter.ReportError(r.Context(), err, map[string]any{"operation": "session-read"})
		httputil.RespondError(w, "failed to read session", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	if session == nil {
		// Uniform logged-out shape for unknown, expired and revoked tokens
		httputil.RespondJSON(w, httputil.Envelope{OK: true, Data: nil}, http.StatusOK)
		return
	}

	httputil.RespondData(w, SessionData{User: sessionUser, Session: session}, http.StatusOK)
}

// VerifyEmail handles email verification links
// @Summary      Verify an email address
// @Description  Consume a verification link token. Tokens are single-use; a second visit fails.
// @Tags         auth
// @Produce      json
// @Param        token query string true "Verification token"
// @Success      200 {object} httputil.Envelope
// @Failure      400 {object} httputil.ErrorEnvelope "Invalid, expired, or already used token"
// @Router       /verify-email [get]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	token := r.URL.Query().Get("token")

	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		if errors.Is(err, ErrInvalidOrExpiredToken) {
			// Expired and unknown are deliberately the same message
			logger.Warn("email verification failed")
			httputil.RespondError(w, "unable to verify email, the link may have expired", httputil.CodeInvalidToken, http.StatusBadRequest)
			return
		}
		logger.Error("email verification failed: internal error", "error", err.Error())
		h.reporter.ReportError(r.Context(), err, map[string]any{"operation": "verify-email"})
		httputil.RespondError(w, "failed to verify email", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("email verified")

	httputil.RespondOK(w, "Email verified successfully. You can now sign in.", http.StatusOK)
}

// ResendVerification handles verification email resends
// @Summary      Resend the verification email
// @Description  Issue a fresh verification link, invalidating any previous one. Always acknowledges for unknown addresses.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResendVerificationRequest true "Email address"
// @Success      200 {object} httputil.Envelope
// @Failure      429 {object} httputil.ErrorEnvelope "Too many requests"
// @Router       /resend-verification [post]
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid resend verification request body", "error", err.Error())
		httputil.RespondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if h.rateLimitedByIP(w, r, "resend-verification") {
		return
	}
	if h.emailOnCooldown(w, r, req.Email) {
		return
	}

	if err := h.service.ResendVerification(r.Context(), req.Email); err != nil {
		if errors.Is(err, ErrEmailDeliveryFailed) {
			httputil.RespondError(w, "could not send verification email, please try again", httputil.CodeEmailDeliveryFailed, http.StatusBadGateway)
			return
		}
		logger.Error("resend verification failed: internal error", "error", err.Error())
		h.reporter.ReportError(r.Context(), err, map[string]any{"operation": "resend-verification"})
		httputil.RespondError(w, "failed to resend verification email", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondOK(w, "If your email is registered and not verified, a new verification link has been sent.", http.StatusOK)
}

// SignOutEverywhere revokes all sessions of the authenticated user
// @Summary      Sign out everywhere
// @Description  Revoke every session belonging to the authenticated user.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} httputil.Envelope
// @Failure      401 {object} httputil.ErrorEnvelope "Unauthorized"
// @Router       /sessions/revoke-all [post]
func (h *Handler) SignOutEverywhere(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	currentUser, ok := GetUserFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, "authentication required", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	if err := h.service.SignOutEverywhere(r.Context(), currentUser); err != nil {
		logger.Error("sign out everywhere failed", "error", err.Error())
		h.reporter.ReportError(r.Context(), err, map[string]any{"operation": "sign-out-everywhere"})
		httputil.RespondError(w, "failed to revoke sessions", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	ClearSessionCookie(w, h.cookieDomain, h.isProduction)

	logger.Info("all sessions revoked", "user_id", currentUser.ID)

	httputil.RespondOK(w, "signed out everywhere", http.StatusOK)
}

// respondSession sets the session cookie for browser callers and returns the
// raw token only to non-browser clients.
func (h *Handler) respondSession(w http.ResponseWriter, r *http.Request, u *user.User, token string, session *Session) {
	data := SessionData{User: u, Session: session}

	if shouldUseCookies(r) {
		SetSessionCookie(w, token, h.cookieDomain, h.isProduction, h.sessionTTL)
	} else {
		data.Token = token
	}

	httputil.RespondData(w, data, http.StatusOK)
}

// rateLimitedByIP enforces the per-IP fixed window for a purpose and
// records the request. Limiter outages fail open.
func (h *Handler) rateLimitedByIP(w http.ResponseWriter, r *http.Request, purpose string) bool {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimit(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		httputil.RespondError(w, "too many requests, please try again later", httputil.CodeRateLimited, http.StatusTooManyRequests)
		return true
	}

	if err := h.rateLimiter.RecordIPRequest(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	return false
}

// emailOnCooldown enforces the per-email send cooldown and arms it
func (h *Handler) emailOnCooldown(w http.ResponseWriter, r *http.Request, email string) bool {
	logger := logging.GetLoggerFromContext(r.Context())

	onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), email)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
	} else if onCooldown {
		logger.Warn("email on cooldown", "email", email)
		httputil.RespondError(w, "please wait before requesting another email", httputil.CodeRateLimited, http.StatusTooManyRequests)
		return true
	}

	if err := h.rateLimiter.SetEmailCooldown(r.Context(), email); err != nil {
		logger.Error("failed to set email cooldown", "error", err.Error())
	}

	return false
}

// shouldUseCookies reports whether the caller is a browser. Browsers send an
// Origin or Referer header; API clients authenticate with bearer tokens.
func shouldUseCookies(r *http.Request) bool {
	return r.Header.Get("Origin") != "" || r.Header.Get("Referer") != ""
}

// clientMeta captures request metadata recorded on the session
func clientMeta(r *http.Request) ClientMeta {
	return ClientMeta{
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (behind proxy/load balancer)
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	// Check X-Real-IP header
	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fallback to RemoteAddr
	ip := r.RemoteAddr
	// RemoteAddr format is "IP:port", extract just the IP
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
