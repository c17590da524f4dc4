package domain

import "time"

// BetaKey is a server-issued access key that lets a browser bypass an active
// maintenance gate. Keys are rate-limited by a global usage counter and
// self-deactivate once the counter reaches max_usage.
type BetaKey struct {
	KeyCode    string
	IsActive   bool
	ExpiresAt  time.Time
	UsageCount int
	MaxUsage   int
	CreatedAt  time.Time
}

// IsExpiredAt returns true if the key has expired at the given instant.
func (k *BetaKey) IsExpiredAt(now time.Time) bool {
	return now.After(k.ExpiresAt)
}

// IsExhausted returns true if the key has no remaining uses.
func (k *BetaKey) IsExhausted() bool {
	return k.UsageCount >= k.MaxUsage
}
