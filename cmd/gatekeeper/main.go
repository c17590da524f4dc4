package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onairfm/gatekeeper/internal/config"
	httpserver "github.com/onairfm/gatekeeper/internal/http"
	"github.com/onairfm/gatekeeper/internal/realtime"
	"github.com/onairfm/gatekeeper/pkg/auth"
	"github.com/onairfm/gatekeeper/pkg/gate"
	"github.com/onairfm/gatekeeper/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	dbConfig := repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}
	db, err := repository.NewDB(dbConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	// Apply migrations
	if err := repository.Migrate(db); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	usersRepo := repository.NewUsersRepository(db)
	credsRepo := repository.NewCredentialsRepository(db)
	sessionsRepo := repository.NewSessionsRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	betaKeysRepo := repository.NewBetaKeysRepository(db)

	// Initialize services
	passwordPolicy := &auth.PasswordPolicy{
		MinLength:        cfg.PasswordMinLength,
		RequireUppercase: cfg.PasswordRequireUppercase,
		RequireLowercase: cfg.PasswordRequireLowercase,
		RequireNumber:    cfg.PasswordRequireNumber,
	}
	passwordService := auth.NewPasswordService(db, usersRepo, credsRepo, passwordPolicy)
	sessionService := auth.NewSessionService(auth.SessionConfig{
		AccessTokenTTL:     cfg.AccessTokenTTL,
		RefreshTokenTTL:    cfg.RefreshTokenTTL,
		JWTSecret:          []byte(cfg.JWTSecret),
		Issuer:             cfg.JWTIssuer,
		FingerprintEnabled: cfg.SessionSecurity.FingerprintEnabled,
		DetectReuseEnabled: cfg.SessionSecurity.DetectReuse,
	}, sessionsRepo, usersRepo)

	// Initialize the gate
	watcher := gate.NewWatcher(settingsRepo, cfg.MaintenanceLoadTimeout, logger)
	enforcer := gate.NewEnforcer(usersRepo, sessionsRepo, logger)
	redeemer := gate.NewRedeemer(betaKeysRepo, logger)

	// Resolve maintenance state before accepting traffic so the first page
	// render never sees an undecided gate. Failure or timeout means the gate
	// starts inactive.
	watcher.Load(context.Background())

	// Follow settings and ban changes through the database change feed.
	realtimeCtx, cancelRealtime := context.WithCancel(context.Background())
	defer cancelRealtime()

	listener := realtime.NewListener(dbConfig.DSN(), logger)
	dispatcher := realtime.NewDispatcher(watcher, enforcer, sessionsRepo, logger)
	dispatcher.Register(listener)
	go func() {
		if err := listener.Run(realtimeCtx); err != nil {
			logger.Error("realtime listener stopped", "error", err)
		}
	}()

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          logger,
		PasswordService: passwordService,
		SessionService:  sessionService,
		Watcher:         watcher,
		Enforcer:        enforcer,
		Redeemer:        redeemer,
		UsersRepo:       usersRepo,
		SettingsRepo:    settingsRepo,
		BetaKeysRepo:    betaKeysRepo,
		GrantSignKey:    []byte(cfg.JWTSecret),
		RateLimitConfig: cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
		MaxRequestBody:  cfg.MaxRequestBodySize,
		CookieSecure:    cfg.CookieSecure,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr, "maintenance", watcher.Current().Enabled)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	cancelRealtime()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
