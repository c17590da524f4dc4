package gate

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/onairfm/gatekeeper/internal/httputil"
	"github.com/onairfm/gatekeeper/pkg/auth"
	"github.com/onairfm/gatekeeper/pkg/domain"
	gatecore "github.com/onairfm/gatekeeper/pkg/gate"
)

// Handler handles the maintenance gate endpoints: the per-render status
// decision, beta key redemption, and the admin unlock flow shown on the
// maintenance takeover page.
type Handler struct {
	logger          *slog.Logger
	watcher         *gatecore.Watcher
	redeemer        *gatecore.Redeemer
	enforcer        *gatecore.Enforcer
	passwordService *auth.PasswordService
	sessionService  *auth.SessionService
	grantSignKey    []byte
	cookieConfig    httputil.CookieConfig
}

// NewHandler creates a new gate handler.
func NewHandler(
	logger *slog.Logger,
	watcher *gatecore.Watcher,
	redeemer *gatecore.Redeemer,
	enforcer *gatecore.Enforcer,
	passwordService *auth.PasswordService,
	sessionService *auth.SessionService,
	grantSignKey []byte,
	cookieConfig httputil.CookieConfig,
) *Handler {
	return &Handler{
		logger:          logger,
		watcher:         watcher,
		redeemer:        redeemer,
		enforcer:        enforcer,
		passwordService: passwordService,
		sessionService:  sessionService,
		grantSignKey:    grantSignKey,
		cookieConfig:    cookieConfig,
	}
}

// StatusResponse tells the frontend what to render for this page load.
type StatusResponse struct {
	Outcome     string                  `json:"outcome"`
	Maintenance domain.MaintenanceState `json:"maintenance"`
	IsAdmin     bool                    `json:"is_admin"`
	HasGrant    bool                    `json:"has_grant"`
}

// Status resolves the presentation decision for the caller.
// GET /v1/gate/status
//
// Authentication is optional: anonymous viewers still get a decision. When a
// token is present the ban enforcer runs before the admin flag is trusted, so
// a banned admin hitting this endpoint loses their sessions right here.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	state := h.watcher.Current()

	isAdmin := false
	if userID, ok := h.authenticatedUser(r); ok {
		result := h.enforcer.Check(r.Context(), userID)
		if result.Decision == gatecore.DecisionAuthorized {
			isAdmin = result.IsAdmin
		} else {
			httputil.ClearAuthCookies(w, h.cookieConfig)
		}
	}

	grants := httputil.NewCookieGrantStore(h.grantSignKey, h.cookieConfig, w, r)
	hasGrant := h.redeemer.HasValidGrant(grants)

	outcome := gatecore.Decide(state.Enabled, isAdmin, hasGrant)
	httputil.JSON(w, http.StatusOK, StatusResponse{
		Outcome:     outcome.String(),
		Maintenance: state,
		IsAdmin:     isAdmin,
		HasGrant:    hasGrant,
	})
}

// RedeemRequest carries the beta key entered on the takeover page.
type RedeemRequest struct {
	Key string `json:"key"`
}

// RedeemResponse confirms a successful redemption.
type RedeemResponse struct {
	Outcome string           `json:"outcome"`
	Grant   domain.BetaGrant `json:"grant"`
}

// Redeem consumes one use of a beta key and stores a grant in the browser.
// POST /v1/gate/beta/redeem
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	grants := httputil.NewCookieGrantStore(h.grantSignKey, h.cookieConfig, w, r)
	grant, err := h.redeemer.Redeem(r.Context(), grants, req.Key)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidKey):
			httputil.Error(w, http.StatusNotFound, "invalid or inactive key")
		case errors.Is(err, domain.ErrKeyExpired):
			httputil.Error(w, http.StatusGone, "key has expired")
		case errors.Is(err, domain.ErrKeyQuotaExceeded):
			httputil.Error(w, http.StatusConflict, "key usage limit reached")
		case errors.Is(err, domain.ErrKeyAlreadyUsed):
			httputil.Error(w, http.StatusConflict, "key already redeemed in this browser")
		case errors.Is(err, domain.ErrConcurrentRedemption):
			httputil.Error(w, http.StatusConflict, "key was redeemed concurrently, please try again")
		default:
			h.logger.Error("beta key redemption failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "redemption failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, RedeemResponse{
		Outcome: gatecore.OutcomeContent.String(),
		Grant:   *grant,
	})
}

// UnlockRequest carries admin credentials entered on the takeover page.
type UnlockRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

// Unlock signs an admin in from the maintenance takeover page.
// POST /v1/gate/admin/unlock
//
// Credentials are verified, then the ban enforcer runs, then the admin flag
// is checked against the database record. Only after all three pass is a
// session issued. A non-admin with valid credentials gets a plain denial and
// no session.
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	userID, err := h.passwordService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			httputil.Error(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		if errors.Is(err, domain.ErrAccountLocked) {
			httputil.Error(w, http.StatusForbidden, "account temporarily locked due to too many failed login attempts")
			return
		}
		h.logger.Error("unlock authentication failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "authentication failed")
		return
	}

	result := h.enforcer.Check(r.Context(), userID)
	switch result.Decision {
	case gatecore.DecisionRejected:
		httputil.JSON(w, http.StatusForbidden, map[string]interface{}{
			"error": "account is banned",
			"ban":   result.Ban,
		})
		return
	case gatecore.DecisionError:
		httputil.Error(w, http.StatusUnauthorized, "account could not be verified")
		return
	}

	if !result.IsAdmin {
		h.logger.Warn("non-admin attempted maintenance unlock", "user_id", userID)
		httputil.Error(w, http.StatusForbidden, "admin access required")
		return
	}

	user, err := h.passwordService.GetUserByID(r.Context(), userID)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "authentication failed")
		return
	}

	if user.TOTPSecret != nil && *user.TOTPSecret != "" {
		if req.TOTPCode == "" {
			httputil.JSON(w, http.StatusUnauthorized, map[string]interface{}{
				"error":         "totp code required",
				"totp_required": true,
			})
			return
		}
		if !auth.ValidateTOTP(req.TOTPCode, *user.TOTPSecret) {
			httputil.Error(w, http.StatusUnauthorized, "invalid totp code")
			return
		}
	}

	opts := auth.IssueSessionOpts{
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
		Request:   r,
	}
	tokens, err := h.sessionService.IssueSession(r.Context(), userID, opts)
	if err != nil {
		h.logger.Error("failed to issue session", "error", err, "user_id", userID)
		httputil.Error(w, http.StatusInternalServerError, "failed to issue session")
		return
	}

	if httputil.IsMobileClient(r) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"token_type":    tokens.TokenType,
			"expires_in":    tokens.ExpiresIn,
			"outcome":       gatecore.OutcomeContentWithBanner.String(),
		})
		return
	}

	httputil.SetAuthCookies(
		w,
		tokens.AccessToken,
		tokens.RefreshToken,
		h.sessionService.AccessTokenTTL(),
		h.sessionService.RefreshTokenTTL(),
		h.cookieConfig,
	)
	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"token_type": tokens.TokenType,
		"expires_in": tokens.ExpiresIn,
		"outcome":    gatecore.OutcomeContentWithBanner.String(),
	})
}

// authenticatedUser extracts and validates an optional access token.
func (h *Handler) authenticatedUser(r *http.Request) (uuid.UUID, bool) {
	var tokenString string

	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			tokenString = parts[1]
		}
	}
	if tokenString == "" {
		if token, ok := httputil.GetAccessTokenFromCookie(r); ok {
			tokenString = token
		}
	}
	if tokenString == "" {
		return uuid.Nil, false
	}

	claims, err := h.sessionService.ValidateAccessToken(tokenString)
	if err != nil {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}
