package me

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/onairfm/gatekeeper/internal/http/middleware"
	"github.com/onairfm/gatekeeper/internal/httputil"
	"github.com/onairfm/gatekeeper/pkg/domain"
	"github.com/onairfm/gatekeeper/pkg/repository"
)

// Handler handles user profile endpoints.
type Handler struct {
	logger *slog.Logger
	users  *repository.UsersRepository
}

// NewHandler creates a new profile handler.
func NewHandler(logger *slog.Logger, users *repository.UsersRepository) *Handler {
	return &Handler{
		logger: logger,
		users:  users,
	}
}

// UserResponse represents the current user's profile.
type UserResponse struct {
	ID        string             `json:"id"`
	Email     string             `json:"email"`
	Name      *string            `json:"name,omitempty"`
	IsAdmin   bool               `json:"is_admin"`
	Ban       *domain.BanDetails `json:"ban,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// UpdateMeRequest represents a profile update.
type UpdateMeRequest struct {
	Name *string `json:"name"`
}

// GetMe returns the current user's profile.
// GET /v1/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("failed to get user", "user_id", userID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to get user")
		return
	}

	httputil.JSON(w, http.StatusOK, UserResponse{
		ID:        user.ID.String(),
		Email:     user.Email,
		Name:      user.Name,
		IsAdmin:   user.IsAdmin,
		Ban:       user.BanDetailsAt(time.Now()),
		CreatedAt: user.CreatedAt,
	})
}

// UpdateMe updates the current user's profile.
// PATCH /v1/me
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.users.UpdateProfile(r.Context(), userID, req.Name); err != nil {
		h.logger.Error("failed to update profile", "user_id", userID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	h.GetMe(w, r)
}
