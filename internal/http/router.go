package http

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/cwllll/auth-service/internal/auth"
	"github.com/cwllll/auth-service/internal/config"
	"github.com/cwllll/auth-service/internal/httputil"
	"github.com/cwllll/auth-service/internal/logging"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, authHandler *auth.Handler, authMiddleware *auth.Middleware, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	// Global middleware
	r.Use(SecurityHeaders)               // Security headers on all responses
	r.Use(NoStore)                       // Auth responses must never be cached
	r.Use(middleware.Recoverer)          // Recover from panics
	r.Use(middleware.RequestID)          // Add request ID
	r.Use(middleware.RealIP)             // Set RemoteAddr to real IP
	r.Use(logging.RequestLogger(logger)) // Structured logging with request context
	r.Use(middleware.Compress(5))        // Compress responses

	// Public routes
	r.Get("/health", handleHealth)

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		log.Println("Swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	// Credential and session operations. Cookie-setting POSTs sit behind the
	// trusted-origin check so a hostile site cannot drive them.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireTrustedOrigin(cfg.Server.TrustedOrigins))

		r.Post("/sign-up", authHandler.SignUp)
		r.Post("/sign-in", authHandler.SignIn)
		r.Post("/sign-in/otp/send", authHandler.SendOTP)
		r.Post("/sign-in/otp/verify", authHandler.VerifyOTP)
		r.Post("/sign-out", authHandler.SignOut)
		r.Post("/resend-verification", authHandler.ResendVerification)
	})

	// Redirect- and link-driven flows (no Origin header on navigations)
	r.Get("/session", authHandler.Session)
	r.Get("/verify-email", authHandler.VerifyEmail)
	r.Get("/sign-in/social/{provider}", authHandler.SocialRedirect)
	r.Get("/sign-in/social/{provider}/callback", authHandler.SocialCallback)

	// Protected routes (require an authenticated session)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.RequireSession)
		r.Post("/sessions/revoke-all", authHandler.SignOutEverywhere)
	})

	return r
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} httputil.Envelope
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondOK(w, "api is running", http.StatusOK)
}
