package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/cwllll/auth-service/internal/auth"
	"github.com/cwllll/auth-service/internal/config"
	"github.com/cwllll/auth-service/internal/database"
	"github.com/cwllll/auth-service/internal/email"
	httpServer "github.com/cwllll/auth-service/internal/http"
	"github.com/cwllll/auth-service/internal/logging"
	"github.com/cwllll/auth-service/internal/oauth"
	"github.com/cwllll/auth-service/internal/ratelimit"
	"github.com/cwllll/auth-service/internal/telemetry"
	"github.com/cwllll/auth-service/internal/user"
)

// @title           Auth Service
// @version         1.0
// @description     Standalone authentication service: email+password sign-up with verification, one-time-code and social sign-in, opaque cookie sessions.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.

const sessionSweepInterval = time.Hour

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting auth service",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	reporter := telemetry.NewLogReporter(logger)

	// Initialize database connection
	db, err := initDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Initialize Redis connection
	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Initialize repositories and stores
	userRepo := user.NewRepository(db)
	sessionRepo := auth.NewBunSessionRepository(db)
	verificationStore := auth.NewRedisVerificationStore(redisClient)

	// Initialize rate limiter
	rateLimiter := ratelimit.NewLimiter(redisClient)

	// Initialize OAuth state service
	stateService, err := auth.NewStateService(cfg.Auth.StateKey)
	if err != nil {
		return fmt.Errorf("failed to initialize state service: %w", err)
	}

	// Initialize email service
	emailService := email.NewService(
		cfg.Email.ResendAPIKey,
		cfg.Email.FromEmail,
		cfg.Email.FromName,
		cfg.Server.PublicURL,
	)

	// Initialize auth service
	authService := auth.NewService(
		userRepo,
		sessionRepo,
		verificationStore,
		emailService,
		logger,
		cfg.Auth.SessionTTL,
		cfg.Auth.SessionUpdateAge,
		cfg.Auth.LinkTokenTTL,
		cfg.Auth.OTPTTL,
	)

	// Initialize HTTP handlers
	authHandler := auth.NewHandler(
		authService,
		rateLimiter,
		reporter,
		logger,
		stateService,
		socialProviders(cfg),
		!cfg.Server.IsDevelopment(), // isProduction
		cfg.Auth.CookieDomain,
		cfg.Auth.SessionTTL,
		cfg.Server.FrontendURL,
	)
	authMiddleware := auth.NewMiddleware(authService)

	// Initialize router
	router := httpServer.NewRouter(cfg, authHandler, authMiddleware, logger)

	// Initialize HTTP server
	serverAddr := ":" + cfg.Server.Port
	server := httpServer.NewServer(
		serverAddr,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
	)

	// Periodic sweep of expired session rows. Expired sessions are already
	// rejected at lookup; the sweep only keeps the table small.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweepExpiredSessions(sweepCtx, sessionRepo, logger)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

func initDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return database.NewBunDB(sqlDB), nil
}

func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

// socialProviders builds the provider registry from configured credentials.
// Providers with missing credentials are simply not registered.
func socialProviders(cfg *config.Config) map[string]*oauth.Provider {
	providers := make(map[string]*oauth.Provider)

	callbackURL := func(name string) string {
		return fmt.Sprintf("%s/sign-in/social/%s/callback", cfg.Server.PublicURL, name)
	}

	if cfg.OAuth.GoogleClientID != "" && cfg.OAuth.GoogleClientSecret != "" {
		providers["google"] = oauth.NewGoogle(
			cfg.OAuth.GoogleClientID,
			cfg.OAuth.GoogleClientSecret,
			callbackURL("google"),
		)
	}

	if cfg.OAuth.GitHubClientID != "" && cfg.OAuth.GitHubClientSecret != "" {
		providers["github"] = oauth.NewGitHub(
			cfg.OAuth.GitHubClientID,
			cfg.OAuth.GitHubClientSecret,
			callbackURL("github"),
		)
	}

	return providers
}

func sweepExpiredSessions(ctx context.Context, sessions auth.SessionRepository, logger *logging.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.DeleteExpired(ctx); err != nil {
				logger.Warn("expired session sweep failed", "error", err)
			}
		}
	}
}
