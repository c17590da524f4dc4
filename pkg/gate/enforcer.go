package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/onairfm/gatekeeper/pkg/domain"
)

// ProfileStore reads user profiles and clears stale bans.
type ProfileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ClearBan(ctx context.Context, id uuid.UUID) error
}

// SessionRevoker terminates every session a user holds.
type SessionRevoker interface {
	RevokeAllByUserID(ctx context.Context, userID uuid.UUID) error
}

// Decision is the outcome of a ban check.
type Decision int

const (
	// DecisionAuthorized means the user may keep their session.
	DecisionAuthorized Decision = iota
	// DecisionRejected means the user is banned; all sessions were revoked.
	DecisionRejected
	// DecisionError means ban status could not be verified; fail closed,
	// all sessions were revoked.
	DecisionError
)

func (d Decision) String() string {
	switch d {
	case DecisionAuthorized:
		return "authorized"
	case DecisionRejected:
		return "rejected"
	case DecisionError:
		return "error"
	default:
		return "unknown"
	}
}

// CheckResult carries the decision plus what the caller needs to act on it.
type CheckResult struct {
	Decision Decision
	IsAdmin  bool
	// Ban is populated only when Decision is DecisionRejected.
	Ban *domain.BanDetails
}

// Enforcer guarantees that no banned user retains a usable session. It runs
// on sign-in, token refresh, admin-gated requests, and realtime ban updates.
type Enforcer struct {
	profiles ProfileStore
	sessions SessionRevoker
	logger   *slog.Logger
	now      func() time.Time
}

// NewEnforcer creates a ban enforcer.
func NewEnforcer(profiles ProfileStore, sessions SessionRevoker, logger *slog.Logger) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		profiles: profiles,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// Check re-validates a user against stored ban state.
//
// An unreadable or missing profile fails closed: an unverifiable ban status
// must never be treated as "not banned", so the sessions are revoked. A ban
// in the future rejects and revokes. An expired ban is cleaned up best-effort
// on the way to authorization; cleanup failure never blocks the user.
func (e *Enforcer) Check(ctx context.Context, userID uuid.UUID) CheckResult {
	user, err := e.profiles.GetByID(ctx, userID)
	if err != nil {
		e.logger.Error("ban check failed, revoking sessions", "user_id", userID, "error", err)
		e.revokeAll(ctx, userID)
		return CheckResult{Decision: DecisionError}
	}

	now := e.now()

	if user.IsBannedAt(now) {
		e.logger.Info("banned user detected, revoking sessions",
			"user_id", userID, "banned_until", user.BannedUntil)
		e.revokeAll(ctx, userID)
		return CheckResult{
			Decision: DecisionRejected,
			Ban:      user.BanDetailsAt(now),
		}
	}

	if user.HasStaleBanAt(now) {
		if err := e.profiles.ClearBan(ctx, userID); err != nil {
			e.logger.Warn("failed to clear expired ban", "user_id", userID, "error", err)
		}
	}

	return CheckResult{
		Decision: DecisionAuthorized,
		IsAdmin:  user.IsAdmin,
	}
}

func (e *Enforcer) revokeAll(ctx context.Context, userID uuid.UUID) {
	if err := e.sessions.RevokeAllByUserID(ctx, userID); err != nil {
		e.logger.Error("failed to revoke sessions", "user_id", userID, "error", err)
	}
}
