package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onairfm/gatekeeper/pkg/domain"
)

// fakeKeyStore implements the same compare-and-swap semantics as the SQL
// repository so redemption races behave as they would against Postgres.
type fakeKeyStore struct {
	mu   sync.Mutex
	keys map[string]*domain.BetaKey
}

func newFakeKeyStore(keys ...*domain.BetaKey) *fakeKeyStore {
	s := &fakeKeyStore{keys: make(map[string]*domain.BetaKey)}
	for _, k := range keys {
		s.keys[k.KeyCode] = k
	}
	return s
}

func (s *fakeKeyStore) GetActiveByCode(_ context.Context, code string) (*domain.BetaKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[code]
	if !ok || !k.IsActive {
		return nil, domain.ErrInvalidKey
	}
	copied := *k
	return &copied, nil
}

func (s *fakeKeyStore) Redeem(_ context.Context, code string, observedCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[code]
	if !ok || !k.IsActive || k.UsageCount != observedCount {
		return domain.ErrConcurrentRedemption
	}
	k.UsageCount++
	if k.UsageCount >= k.MaxUsage {
		k.IsActive = false
	}
	return nil
}

func activeKey(code string, usage, max int) *domain.BetaKey {
	return &domain.BetaKey{
		KeyCode:    code,
		IsActive:   true,
		ExpiresAt:  time.Now().Add(24 * time.Hour),
		UsageCount: usage,
		MaxUsage:   max,
	}
}

func TestRedeemer_Success(t *testing.T) {
	keys := newFakeKeyStore(activeKey("ONAIR-2024", 0, 5))
	redeemer := NewRedeemer(keys, nil)
	store := NewMemoryGrantStore()

	grant, err := redeemer.Redeem(context.Background(), store, "onair-2024")
	require.NoError(t, err)

	assert.Equal(t, "ONAIR-2024", grant.UsedKey, "codes are case-insensitive, stored upper-cased")
	assert.True(t, redeemer.HasValidGrant(store))
	assert.True(t, store.WasUsed("ONAIR-2024"))
	assert.Equal(t, 1, keys.keys["ONAIR-2024"].UsageCount)
}

func TestRedeemer_LocalReplayGuardWins(t *testing.T) {
	// Server state says the key is still active and under quota, but this
	// browser already redeemed it: the local guard must win.
	keys := newFakeKeyStore(activeKey("ONAIR-2024", 1, 5))
	redeemer := NewRedeemer(keys, nil)
	store := NewMemoryGrantStore()
	store.MarkUsed("ONAIR-2024")

	_, err := redeemer.Redeem(context.Background(), store, "ONAIR-2024")
	assert.ErrorIs(t, err, domain.ErrKeyAlreadyUsed)
	assert.Equal(t, 1, keys.keys["ONAIR-2024"].UsageCount, "server counter must not move")
}

func TestRedeemer_InvalidAndExpiredAndExhausted(t *testing.T) {
	expired := activeKey("EXPIRED", 0, 5)
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	exhausted := activeKey("FULL", 5, 5)

	keys := newFakeKeyStore(expired, exhausted)
	redeemer := NewRedeemer(keys, nil)

	_, err := redeemer.Redeem(context.Background(), NewMemoryGrantStore(), "NOSUCH")
	assert.ErrorIs(t, err, domain.ErrInvalidKey)

	_, err = redeemer.Redeem(context.Background(), NewMemoryGrantStore(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidKey)

	_, err = redeemer.Redeem(context.Background(), NewMemoryGrantStore(), "EXPIRED")
	assert.ErrorIs(t, err, domain.ErrKeyExpired)

	_, err = redeemer.Redeem(context.Background(), NewMemoryGrantStore(), "FULL")
	assert.ErrorIs(t, err, domain.ErrKeyQuotaExceeded)
}

func TestRedeemer_LastUseDeactivatesKey(t *testing.T) {
	keys := newFakeKeyStore(activeKey("LAST", 4, 5))
	redeemer := NewRedeemer(keys, nil)

	_, err := redeemer.Redeem(context.Background(), NewMemoryGrantStore(), "LAST")
	require.NoError(t, err)
	assert.False(t, keys.keys["LAST"].IsActive, "key must self-deactivate at max_usage")

	// A different browser now sees an inactive key, not a quota error.
	_, err = redeemer.Redeem(context.Background(), NewMemoryGrantStore(), "LAST")
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
}

func TestRedeemer_ConcurrentRedemptionExactlyOnce(t *testing.T) {
	keys := newFakeKeyStore(activeKey("SINGLE", 0, 1))
	redeemer := NewRedeemer(keys, nil)

	// Two browsers race for a max_usage=1 key. Both read usage_count=0
	// before either writes, so exactly one CAS can succeed.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})

	key, err := keys.GetActiveByCode(context.Background(), "SINGLE")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = keys.Redeem(context.Background(), "SINGLE", key.UsageCount)
		}(i)
	}
	close(start)
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, domain.ErrConcurrentRedemption):
			conflicts++
		}
	}
	assert.Equal(t, 1, successes, "exactly one redemption must succeed")
	assert.Equal(t, 1, conflicts, "the loser must see a concurrency conflict")
	assert.Equal(t, 1, keys.keys["SINGLE"].UsageCount)

	// The full Redeem path reports the conflict distinctly too.
	_, err = redeemer.Redeem(context.Background(), NewMemoryGrantStore(), "SINGLE")
	assert.ErrorIs(t, err, domain.ErrInvalidKey, "deactivated key is invalid, not quota-exceeded")
}

func TestRedeemer_HasValidGrantPurgesExpired(t *testing.T) {
	redeemer := NewRedeemer(newFakeKeyStore(), nil)
	store := NewMemoryGrantStore()

	store.SaveGrant(domain.BetaGrant{UsedKey: "OLD", Expiry: time.Now().Add(-time.Hour)})
	assert.False(t, redeemer.HasValidGrant(store))

	_, ok := store.Grant()
	assert.False(t, ok, "expired grant must be purged")

	store.SaveGrant(domain.BetaGrant{UsedKey: "FRESH", Expiry: time.Now().Add(time.Hour)})
	assert.True(t, redeemer.HasValidGrant(store))
}
