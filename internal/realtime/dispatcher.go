package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/onairfm/gatekeeper/pkg/domain"
	"github.com/onairfm/gatekeeper/pkg/gate"
)

// ActiveSessions lists users who currently hold live sessions.
type ActiveSessions interface {
	ActiveUserIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Dispatcher routes realtime events into the maintenance watcher and the ban
// enforcer, so connected sessions react to admin actions without polling.
type Dispatcher struct {
	watcher  *gate.Watcher
	enforcer *gate.Enforcer
	sessions ActiveSessions
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(watcher *gate.Watcher, enforcer *gate.Enforcer, sessions ActiveSessions, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		watcher:  watcher,
		enforcer: enforcer,
		sessions: sessions,
		logger:   logger,
	}
}

// Register wires the dispatcher's handlers onto a listener.
func (d *Dispatcher) Register(l *Listener) {
	l.Handle(ChannelSettingsChanged, d.handleSettings)
	l.Handle(ChannelBanChanged, d.handleBan)
	l.OnReconnect(d.reconcile)
}

func (d *Dispatcher) handleSettings(_ context.Context, payload string) {
	var update domain.SettingUpdate
	if err := json.Unmarshal([]byte(payload), &update); err != nil {
		d.logger.Warn("malformed settings notification", "payload", payload, "error", err)
		return
	}
	d.watcher.Apply(update)
}

type banPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

func (d *Dispatcher) handleBan(ctx context.Context, payload string) {
	var p banPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		d.logger.Warn("malformed ban notification", "payload", payload, "error", err)
		return
	}

	result := d.enforcer.Check(ctx, p.UserID)
	d.logger.Info("ban notification processed", "user_id", p.UserID, "decision", result.Decision.String())
}

// reconcile re-reads authoritative state after a transport drop: reload the
// maintenance flag and re-check every user with a live session, since ban
// notifications may have been lost during the gap.
func (d *Dispatcher) reconcile(ctx context.Context) {
	d.watcher.Load(ctx)

	ids, err := d.sessions.ActiveUserIDs(ctx)
	if err != nil {
		d.logger.Error("reconcile: failed to list active sessions", "error", err)
		return
	}
	for _, id := range ids {
		d.enforcer.Check(ctx, id)
	}
}
