// Package realtime delivers Postgres NOTIFY events to the access gate.
// No polling: triggers on site_settings and users emit notifications, and the
// listener reconciles state after every transport drop since delivery during
// the gap is lost.
package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Notification channels, matching the trigger functions in migrations.
const (
	ChannelSettingsChanged = "site_settings_changed"
	ChannelBanChanged      = "user_ban_changed"
)

const (
	minReconnectInterval = time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// Handler processes one notification payload.
type Handler func(ctx context.Context, payload string)

// Listener wraps pq.Listener with per-channel handlers and a reconcile hook.
type Listener struct {
	pl          *pq.Listener
	logger      *slog.Logger
	handlers    map[string]Handler
	onReconnect func(ctx context.Context)
}

// NewListener creates a listener for the given lib/pq DSN.
func NewListener(dsn string, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}

	pl := pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("realtime listener event", "event", ev, "error", err)
			}
		})

	return &Listener{
		pl:       pl,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Handle registers a handler for a notification channel.
// Must be called before Run.
func (l *Listener) Handle(channel string, h Handler) {
	l.handlers[channel] = h
}

// OnReconnect registers the reconcile hook, invoked after the underlying
// connection was re-established. Notifications sent during the gap are lost,
// so the hook must re-read authoritative state.
func (l *Listener) OnReconnect(fn func(ctx context.Context)) {
	l.onReconnect = fn
}

// Run subscribes to all registered channels and dispatches notifications
// until the context is cancelled. Per-channel arrival order is preserved;
// nothing is guaranteed across channels.
func (l *Listener) Run(ctx context.Context) error {
	for channel := range l.handlers {
		if err := l.pl.Listen(channel); err != nil {
			return err
		}
	}

	defer l.pl.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case n := <-l.pl.Notify:
			if n == nil {
				// nil notification signals a reconnect
				l.logger.Info("realtime connection re-established, reconciling")
				if l.onReconnect != nil {
					l.onReconnect(ctx)
				}
				continue
			}
			if h, ok := l.handlers[n.Channel]; ok {
				h(ctx, n.Extra)
			}

		case <-time.After(pingInterval):
			if err := l.pl.Ping(); err != nil {
				l.logger.Warn("realtime ping failed", "error", err)
			}
		}
	}
}
