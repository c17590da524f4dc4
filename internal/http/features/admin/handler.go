package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/onairfm/gatekeeper/internal/httputil"
	"github.com/onairfm/gatekeeper/pkg/domain"
	"github.com/onairfm/gatekeeper/pkg/gate"
	"github.com/onairfm/gatekeeper/pkg/repository"
)

// Handler handles admin endpoints: maintenance mode control, user bans, and
// beta key management. All routes are behind the RequireAdmin middleware.
type Handler struct {
	logger   *slog.Logger
	settings *repository.SettingsRepository
	users    *repository.UsersRepository
	keys     *repository.BetaKeysRepository
	watcher  *gate.Watcher
	enforcer *gate.Enforcer
}

// NewHandler creates a new admin handler.
func NewHandler(
	logger *slog.Logger,
	settings *repository.SettingsRepository,
	users *repository.UsersRepository,
	keys *repository.BetaKeysRepository,
	watcher *gate.Watcher,
	enforcer *gate.Enforcer,
) *Handler {
	return &Handler{
		logger:   logger,
		settings: settings,
		users:    users,
		keys:     keys,
		watcher:  watcher,
		enforcer: enforcer,
	}
}

// GetMaintenance returns the current maintenance settings.
// GET /v1/admin/maintenance
func (h *Handler) GetMaintenance(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, h.watcher.Current())
}

// MaintenanceRequest is the desired maintenance configuration.
type MaintenanceRequest struct {
	Enabled bool       `json:"enabled"`
	Reason  string     `json:"reason"`
	EndTime *time.Time `json:"end_time"`
}

// SetMaintenance updates the maintenance settings.
// PUT /v1/admin/maintenance
//
// Each changed row fires the settings trigger, so every replica converges
// through the realtime feed. The local watcher is updated directly as well so
// this process does not wait on its own notification.
func (h *Handler) SetMaintenance(w http.ResponseWriter, r *http.Request) {
	var req MaintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	endTime := ""
	if req.EndTime != nil {
		endTime = req.EndTime.UTC().Format(time.RFC3339)
	}

	updates := []domain.SettingUpdate{
		{Category: domain.SettingsCategorySystem, Key: domain.SettingMaintenanceMode, Value: strconv.FormatBool(req.Enabled)},
		{Category: domain.SettingsCategorySystem, Key: domain.SettingMaintenanceReason, Value: req.Reason},
		{Category: domain.SettingsCategorySystem, Key: domain.SettingMaintenanceEndTime, Value: endTime},
	}

	for _, u := range updates {
		if err := h.settings.Set(r.Context(), u.Category, u.Key, u.Value); err != nil {
			h.logger.Error("failed to update setting", "key", u.Key, "error", err)
			httputil.Error(w, http.StatusInternalServerError, "failed to update maintenance settings")
			return
		}
		h.watcher.Apply(u)
	}

	h.logger.Info("maintenance settings updated",
		"enabled", req.Enabled, "reason", req.Reason, "end_time", endTime)

	httputil.JSON(w, http.StatusOK, h.watcher.Current())
}

// BanRequest describes the ban to apply.
type BanRequest struct {
	Until  time.Time `json:"until"`
	Reason string    `json:"reason"`
}

// BanUser bans a user until the given time and revokes their sessions.
// POST /v1/admin/users/{id}/ban
//
// Session revocation happens immediately here; the ban trigger additionally
// notifies every replica so sessions created against another process die too.
func (h *Handler) BanUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req BanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Until.IsZero() || !req.Until.After(time.Now()) {
		httputil.Error(w, http.StatusBadRequest, "until must be in the future")
		return
	}

	if err := h.users.SetBan(r.Context(), userID, req.Until, req.Reason); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("failed to ban user", "user_id", userID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to ban user")
		return
	}

	// Eject the user now rather than waiting for the realtime feed.
	result := h.enforcer.Check(r.Context(), userID)

	h.logger.Info("user banned",
		"user_id", userID, "until", req.Until, "reason", req.Reason,
		"decision", result.Decision.String())

	w.WriteHeader(http.StatusNoContent)
}

// UnbanUser lifts a user's ban.
// POST /v1/admin/users/{id}/unban
func (h *Handler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.users.ClearBan(r.Context(), userID); err != nil {
		h.logger.Error("failed to unban user", "user_id", userID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to unban user")
		return
	}

	h.logger.Info("user unbanned", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

// CreateKeyRequest describes a new beta key.
type CreateKeyRequest struct {
	KeyCode   string    `json:"key_code"`
	ExpiresAt time.Time `json:"expires_at"`
	MaxUsage  int       `json:"max_usage"`
}

// CreateBetaKey creates a beta access key.
// POST /v1/admin/beta-keys
func (h *Handler) CreateBetaKey(w http.ResponseWriter, r *http.Request) {
	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	code := gate.NormalizeKeyCode(req.KeyCode)
	if code == "" {
		httputil.Error(w, http.StatusBadRequest, "key_code is required")
		return
	}
	if req.MaxUsage <= 0 {
		httputil.Error(w, http.StatusBadRequest, "max_usage must be positive")
		return
	}
	if !req.ExpiresAt.After(time.Now()) {
		httputil.Error(w, http.StatusBadRequest, "expires_at must be in the future")
		return
	}

	key := &domain.BetaKey{
		KeyCode:   code,
		IsActive:  true,
		ExpiresAt: req.ExpiresAt,
		MaxUsage:  req.MaxUsage,
	}
	if err := h.keys.Create(r.Context(), key); err != nil {
		h.logger.Error("failed to create beta key", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to create beta key")
		return
	}

	h.logger.Info("beta key created", "key_code", code, "max_usage", req.MaxUsage)
	httputil.JSON(w, http.StatusCreated, map[string]interface{}{
		"key_code":   key.KeyCode,
		"expires_at": key.ExpiresAt,
		"max_usage":  key.MaxUsage,
	})
}
