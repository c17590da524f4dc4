package gate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/onairfm/gatekeeper/pkg/domain"
)

// KeyStore reads and redeems beta keys.
type KeyStore interface {
	GetActiveByCode(ctx context.Context, code string) (*domain.BetaKey, error)
	// Redeem increments the usage counter with a compare-and-swap on the
	// observed count. Returns domain.ErrConcurrentRedemption on a lost race.
	Redeem(ctx context.Context, code string, observedCount int) error
}

// GrantStore is the per-browser side of redemption: it holds at most one
// active grant plus the replay-guard list of keys this browser already used.
// The HTTP layer backs it with signed cookies; tests use the memory store.
type GrantStore interface {
	Grant() (domain.BetaGrant, bool)
	SaveGrant(domain.BetaGrant)
	ClearGrant()
	WasUsed(code string) bool
	MarkUsed(code string)
}

// Redeemer validates and atomically consumes beta access keys.
type Redeemer struct {
	keys   KeyStore
	logger *slog.Logger
	now    func() time.Time
}

// NewRedeemer creates a beta key redeemer.
func NewRedeemer(keys KeyStore, logger *slog.Logger) *Redeemer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redeemer{
		keys:   keys,
		logger: logger,
		now:    time.Now,
	}
}

// NormalizeKeyCode canonicalizes user input. Key codes are case-insensitive:
// codes are stored and compared upper-cased.
func NormalizeKeyCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Redeem consumes one use of a beta key for the given browser.
//
// The local replay guard is checked first so a browser can never consume a
// second quota unit for a key it already holds. The server-side counter is
// the authoritative limit; the increment is compare-and-swap guarded, and a
// lost race returns ErrConcurrentRedemption rather than retrying, so the user
// learns the key was just used by someone else.
func (r *Redeemer) Redeem(ctx context.Context, store GrantStore, code string) (*domain.BetaGrant, error) {
	code = NormalizeKeyCode(code)
	if code == "" {
		return nil, domain.ErrInvalidKey
	}

	if store.WasUsed(code) {
		return nil, domain.ErrKeyAlreadyUsed
	}

	key, err := r.keys.GetActiveByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if key.IsExpiredAt(r.now()) {
		return nil, domain.ErrKeyExpired
	}

	if key.IsExhausted() {
		return nil, domain.ErrKeyQuotaExceeded
	}

	if err := r.keys.Redeem(ctx, code, key.UsageCount); err != nil {
		return nil, err
	}

	r.logger.Info("beta key redeemed", "key_code", code, "uses_left", key.MaxUsage-key.UsageCount-1)

	store.MarkUsed(code)
	grant := domain.BetaGrant{
		UsedKey: code,
		Expiry:  key.ExpiresAt,
	}
	store.SaveGrant(grant)

	return &grant, nil
}

// HasValidGrant reports whether the browser holds a live grant. Purely local,
// no network call; expired grants are purged.
func (r *Redeemer) HasValidGrant(store GrantStore) bool {
	grant, ok := store.Grant()
	if !ok {
		return false
	}
	if !grant.IsValidAt(r.now()) {
		store.ClearGrant()
		return false
	}
	return true
}
