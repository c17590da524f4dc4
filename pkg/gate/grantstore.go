package gate

import (
	"sync"

	"github.com/onairfm/gatekeeper/pkg/domain"
)

// MemoryGrantStore is an in-process GrantStore. Used in tests and wherever a
// single browser-equivalent needs to be simulated server-side.
type MemoryGrantStore struct {
	mu    sync.Mutex
	grant *domain.BetaGrant
	used  map[string]bool
}

// NewMemoryGrantStore creates an empty grant store.
func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{used: make(map[string]bool)}
}

// Grant returns the stored grant, if any.
func (s *MemoryGrantStore) Grant() (domain.BetaGrant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grant == nil {
		return domain.BetaGrant{}, false
	}
	return *s.grant, true
}

// SaveGrant stores the grant, replacing any previous one.
func (s *MemoryGrantStore) SaveGrant(grant domain.BetaGrant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grant = &grant
}

// ClearGrant discards the stored grant.
func (s *MemoryGrantStore) ClearGrant() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grant = nil
}

// WasUsed reports whether a key code is on the replay-guard list.
func (s *MemoryGrantStore) WasUsed(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used[code]
}

// MarkUsed adds a key code to the replay-guard list.
func (s *MemoryGrantStore) MarkUsed(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used[code] = true
}
