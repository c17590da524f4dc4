package gate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onairfm/gatekeeper/pkg/domain"
)

// DefaultLoadTimeout bounds the settings read on startup. The read is
// non-critical: a timeout falls back to "maintenance inactive" so page
// rendering is never blocked on it.
const DefaultLoadTimeout = 8 * time.Second

// SettingsReader reads site settings by category.
type SettingsReader interface {
	GetAll(ctx context.Context, category string) (map[string]string, error)
}

// Watcher tracks the site-wide maintenance flag and its display metadata.
// It refreshes at load and on every pushed settings change, and never writes
// settings itself.
type Watcher struct {
	settings SettingsReader
	timeout  time.Duration
	logger   *slog.Logger

	mu    sync.RWMutex
	state domain.MaintenanceState
	subs  []func(domain.MaintenanceState)
}

// NewWatcher creates a maintenance watcher. A zero timeout uses the default.
func NewWatcher(settings SettingsReader, timeout time.Duration, logger *slog.Logger) *Watcher {
	if timeout == 0 {
		timeout = DefaultLoadTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		settings: settings,
		timeout:  timeout,
		logger:   logger,
	}
}

// Load reads the maintenance settings within the configured timeout.
// Read failure or timeout defaults to "maintenance inactive" and is logged,
// never surfaced: availability wins over strict correctness for this read.
func (w *Watcher) Load(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	values, err := w.settings.GetAll(ctx, domain.SettingsCategorySystem)
	if err != nil {
		w.logger.Warn("failed to load maintenance settings, assuming inactive", "error", err)
		w.setState(domain.MaintenanceState{})
		return
	}

	w.setState(parseMaintenanceState(values))
}

// Current returns a snapshot of the maintenance state.
func (w *Watcher) Current() domain.MaintenanceState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Apply folds a pushed settings change into the current state immediately.
// Changes outside the system category are ignored.
func (w *Watcher) Apply(update domain.SettingUpdate) {
	if update.Category != domain.SettingsCategorySystem {
		return
	}

	w.mu.Lock()
	switch update.Key {
	case domain.SettingMaintenanceMode:
		w.state.Enabled = update.Value == "true"
	case domain.SettingMaintenanceReason:
		w.state.Reason = update.Value
	case domain.SettingMaintenanceEndTime:
		w.state.EndTime = parseEndTime(update.Value)
	default:
		w.mu.Unlock()
		return
	}
	state := w.state
	subs := w.subs
	w.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// Subscribe registers a callback invoked after every state change.
// Callbacks run in registration order on the caller's goroutine.
func (w *Watcher) Subscribe(fn func(domain.MaintenanceState)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append(w.subs, fn)
}

func (w *Watcher) setState(state domain.MaintenanceState) {
	w.mu.Lock()
	w.state = state
	subs := w.subs
	w.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

func parseMaintenanceState(values map[string]string) domain.MaintenanceState {
	return domain.MaintenanceState{
		Enabled: values[domain.SettingMaintenanceMode] == "true",
		Reason:  values[domain.SettingMaintenanceReason],
		EndTime: parseEndTime(values[domain.SettingMaintenanceEndTime]),
	}
}

func parseEndTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}
