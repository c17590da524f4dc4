// Package gatekeeper provides the access-gating layer for the site:
// maintenance mode with realtime propagation, session ban enforcement, and
// beta key redemption.
//
// Setup:
//
//  1. Run migrations from migrations/ folder (repository.Migrate does this)
//  2. Create a Gatekeeper instance, load the gate, and mount the router
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", dsn)
//
//	gk, err := gatekeeper.New(gatekeeper.Config{
//	    DB:        db,
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	gk.LoadGate(ctx)            // resolve maintenance state before serving
//	go gk.RunRealtime(ctx, dsn) // follow settings and ban changes
//	http.ListenAndServe(":8080", gk.Handler())
package gatekeeper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/onairfm/gatekeeper/internal/config"
	gatehttp "github.com/onairfm/gatekeeper/internal/http"
	"github.com/onairfm/gatekeeper/internal/http/middleware"
	"github.com/onairfm/gatekeeper/internal/httputil"
	"github.com/onairfm/gatekeeper/internal/realtime"
	"github.com/onairfm/gatekeeper/pkg/auth"
	"github.com/onairfm/gatekeeper/pkg/gate"
	"github.com/onairfm/gatekeeper/pkg/repository"
)

// Config holds the configuration for the gatekeeper library.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// JWTSecret is the secret key for signing JWT tokens (required, min 32 chars).
	// It also signs the beta grant cookies.
	JWTSecret string

	// JWTIssuer is the issuer claim in JWT tokens (default: "gatekeeper").
	JWTIssuer string

	// AccessTokenTTL is the lifetime of access tokens (default: 15 minutes).
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the lifetime of refresh tokens (default: 7 days).
	RefreshTokenTTL time.Duration

	// MaintenanceLoadTimeout bounds the initial settings load. On timeout the
	// gate defaults to inactive (default: 8 seconds).
	MaintenanceLoadTimeout time.Duration

	// PasswordPolicy overrides the default password policy (optional).
	PasswordPolicy *auth.PasswordPolicy

	// SessionSecurity configures session fingerprinting (optional).
	SessionSecurity config.SessionSecurityConfig

	// RateLimit configures per-endpoint rate limiting (optional, disabled
	// when zero).
	RateLimit config.RateLimitConfig

	// SecurityHeaders configures response security headers (optional,
	// disabled when zero).
	SecurityHeaders config.SecurityHeadersConfig

	// MaxRequestBodySize limits request bodies (default: 1 MiB).
	MaxRequestBodySize int64

	// CookieSecure sets the Secure flag on cookies (true behind HTTPS).
	CookieSecure bool

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// Gatekeeper is the main access-gating instance.
type Gatekeeper struct {
	config          Config
	db              *sql.DB
	usersRepo       *repository.UsersRepository
	credsRepo       *repository.CredentialsRepository
	sessionsRepo    *repository.SessionsRepository
	settingsRepo    *repository.SettingsRepository
	betaKeysRepo    *repository.BetaKeysRepository
	passwordService *auth.PasswordService
	sessionService  *auth.SessionService
	watcher         *gate.Watcher
	enforcer        *gate.Enforcer
	redeemer        *gate.Redeemer
}

// New creates a new Gatekeeper instance with the given configuration.
// Returns an error if required database tables don't exist.
// Run migrations first - see migrations/ folder for SQL files.
func New(cfg Config) (*Gatekeeper, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateSchema(cfg.DB); err != nil {
		return nil, err
	}

	usersRepo := repository.NewUsersRepository(cfg.DB)
	credsRepo := repository.NewCredentialsRepository(cfg.DB)
	sessionsRepo := repository.NewSessionsRepository(cfg.DB)
	settingsRepo := repository.NewSettingsRepository(cfg.DB)
	betaKeysRepo := repository.NewBetaKeysRepository(cfg.DB)

	policy := cfg.PasswordPolicy
	if policy == nil {
		policy = auth.DefaultPasswordPolicy()
	}

	passwordService := auth.NewPasswordService(cfg.DB, usersRepo, credsRepo, policy)
	sessionService := auth.NewSessionService(auth.SessionConfig{
		AccessTokenTTL:     cfg.AccessTokenTTL,
		RefreshTokenTTL:    cfg.RefreshTokenTTL,
		JWTSecret:          []byte(cfg.JWTSecret),
		Issuer:             cfg.JWTIssuer,
		FingerprintEnabled: cfg.SessionSecurity.FingerprintEnabled,
		DetectReuseEnabled: cfg.SessionSecurity.DetectReuse,
	}, sessionsRepo, usersRepo)

	watcher := gate.NewWatcher(settingsRepo, cfg.MaintenanceLoadTimeout, cfg.Logger)
	enforcer := gate.NewEnforcer(usersRepo, sessionsRepo, cfg.Logger)
	redeemer := gate.NewRedeemer(betaKeysRepo, cfg.Logger)

	return &Gatekeeper{
		config:          cfg,
		db:              cfg.DB,
		usersRepo:       usersRepo,
		credsRepo:       credsRepo,
		sessionsRepo:    sessionsRepo,
		settingsRepo:    settingsRepo,
		betaKeysRepo:    betaKeysRepo,
		passwordService: passwordService,
		sessionService:  sessionService,
		watcher:         watcher,
		enforcer:        enforcer,
		redeemer:        redeemer,
	}, nil
}

// LoadGate resolves the initial maintenance state. Call it before serving
// traffic so the first page render sees a decided gate. On error or timeout
// the gate defaults to inactive.
func (g *Gatekeeper) LoadGate(ctx context.Context) {
	g.watcher.Load(ctx)
}

// RunRealtime connects to the database change feed and follows maintenance
// settings and ban updates until ctx is cancelled. After a connection drop it
// resubscribes and reconciles the full state.
func (g *Gatekeeper) RunRealtime(ctx context.Context, dsn string) error {
	listener := realtime.NewListener(dsn, g.config.Logger)
	dispatcher := realtime.NewDispatcher(g.watcher, g.enforcer, g.sessionsRepo, g.config.Logger)
	dispatcher.Register(listener)
	return listener.Run(ctx)
}

// Handler returns the full HTTP API as an http.Handler.
func (g *Gatekeeper) Handler() http.Handler {
	return gatehttp.NewRouter(gatehttp.RouterConfig{
		Logger:          g.config.Logger,
		PasswordService: g.passwordService,
		SessionService:  g.sessionService,
		Watcher:         g.watcher,
		Enforcer:        g.enforcer,
		Redeemer:        g.redeemer,
		UsersRepo:       g.usersRepo,
		SettingsRepo:    g.settingsRepo,
		BetaKeysRepo:    g.betaKeysRepo,
		GrantSignKey:    []byte(g.config.JWTSecret),
		RateLimitConfig: g.config.RateLimit,
		SecurityHeaders: g.config.SecurityHeaders,
		MaxRequestBody:  g.config.MaxRequestBodySize,
		CookieSecure:    g.config.CookieSecure,
	})
}

// Watcher returns the maintenance flag watcher.
func (g *Gatekeeper) Watcher() *gate.Watcher {
	return g.watcher
}

// Enforcer returns the session ban enforcer.
func (g *Gatekeeper) Enforcer() *gate.Enforcer {
	return g.enforcer
}

// SessionService returns the session service, for embedding applications that
// mount their own authenticated routes.
func (g *Gatekeeper) SessionService() *auth.SessionService {
	return g.sessionService
}

// AuthMiddleware returns the JWT validation middleware for embedding
// applications:
//
//	r.With(gk.AuthMiddleware()).Get("/app", appHandler)
func (g *Gatekeeper) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(g.sessionService)
}

// AdminMiddleware returns the middleware that re-verifies ban state and the
// admin flag. Apply after AuthMiddleware.
func (g *Gatekeeper) AdminMiddleware() func(http.Handler) http.Handler {
	return middleware.RequireAdmin(g.enforcer, cookieConfig(g.config))
}

func cookieConfig(cfg Config) httputil.CookieConfig {
	c := httputil.DefaultCookieConfig()
	c.Secure = cfg.CookieSecure
	return c
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("gatekeeper: DB is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("gatekeeper: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("gatekeeper: JWTSecret must be at least 32 characters")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "gatekeeper"
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.RefreshTokenTTL == 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.MaintenanceLoadTimeout == 0 {
		cfg.MaintenanceLoadTimeout = gate.DefaultLoadTimeout
	}
	if cfg.MaxRequestBodySize == 0 {
		cfg.MaxRequestBodySize = 1 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(db *sql.DB) error {
	requiredTables := []string{"users", "user_password", "sessions", "site_settings", "beta_keys"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(query, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("gatekeeper: missing table '%s' - run migrations first (see migrations/ folder)", table)
		}
		if err != nil {
			return fmt.Errorf("gatekeeper: failed to check schema: %w", err)
		}
	}

	return nil
}
