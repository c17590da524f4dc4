package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/onairfm/gatekeeper/internal/config"
	"github.com/onairfm/gatekeeper/internal/http/features/admin"
	gatefeature "github.com/onairfm/gatekeeper/internal/http/features/gate"
	"github.com/onairfm/gatekeeper/internal/http/features/me"
	"github.com/onairfm/gatekeeper/internal/http/features/password"
	"github.com/onairfm/gatekeeper/internal/http/features/session"
	"github.com/onairfm/gatekeeper/internal/http/middleware"
	"github.com/onairfm/gatekeeper/internal/httputil"
	"github.com/onairfm/gatekeeper/pkg/auth"
	"github.com/onairfm/gatekeeper/pkg/gate"
	"github.com/onairfm/gatekeeper/pkg/repository"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	PasswordService *auth.PasswordService
	SessionService  *auth.SessionService
	Watcher         *gate.Watcher
	Enforcer        *gate.Enforcer
	Redeemer        *gate.Redeemer
	UsersRepo       *repository.UsersRepository
	SettingsRepo    *repository.SettingsRepository
	BetaKeysRepo    *repository.BetaKeysRepository
	GrantSignKey    []byte
	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	MaxRequestBody  int64
	CookieSecure    bool
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBody))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	cookieConfig := httputil.DefaultCookieConfig()
	cookieConfig.Secure = cfg.CookieSecure

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	// Password authentication
	passwordHandler := password.NewHandler(
		cfg.Logger,
		cfg.PasswordService,
		cfg.SessionService,
		cfg.Enforcer,
		cookieConfig,
	)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["auth"])
		r.Post("/v1/auth/password/register", passwordHandler.Register)
		r.Post("/v1/auth/password/login", passwordHandler.Login)
	})

	// Sessions
	sessionHandler := session.NewHandler(cfg.SessionService, cfg.Enforcer, cookieConfig)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["auth"])
		r.Post("/v1/auth/refresh", sessionHandler.Refresh)
	})
	r.Post("/v1/auth/logout", sessionHandler.Logout)
	r.With(middleware.Auth(cfg.SessionService)).Post("/v1/auth/logout/all", sessionHandler.LogoutAll)

	// Maintenance gate
	gateHandler := gatefeature.NewHandler(
		cfg.Logger,
		cfg.Watcher,
		cfg.Redeemer,
		cfg.Enforcer,
		cfg.PasswordService,
		cfg.SessionService,
		cfg.GrantSignKey,
		cookieConfig,
	)
	r.Get("/v1/gate/status", gateHandler.Status)
	r.With(rateLimiters["redeem"]).Post("/v1/gate/beta/redeem", gateHandler.Redeem)
	r.With(rateLimiters["unlock"]).Post("/v1/gate/admin/unlock", gateHandler.Unlock)

	// User profile
	meHandler := me.NewHandler(cfg.Logger, cfg.UsersRepo)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.SessionService))
		r.Get("/v1/me", meHandler.GetMe)
		r.Patch("/v1/me", meHandler.UpdateMe)
	})

	// Admin: the ban check runs in RequireAdmin before any handler below.
	adminHandler := admin.NewHandler(
		cfg.Logger,
		cfg.SettingsRepo,
		cfg.UsersRepo,
		cfg.BetaKeysRepo,
		cfg.Watcher,
		cfg.Enforcer,
	)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.SessionService))
		r.Use(middleware.RequireAdmin(cfg.Enforcer, cookieConfig))
		r.Get("/v1/admin/maintenance", adminHandler.GetMaintenance)
		r.Put("/v1/admin/maintenance", adminHandler.SetMaintenance)
		r.Post("/v1/admin/users/{id}/ban", adminHandler.BanUser)
		r.Post("/v1/admin/users/{id}/unban", adminHandler.UnbanUser)
		r.Post("/v1/admin/beta-keys", adminHandler.CreateBetaKey)
	})

	return r
}
