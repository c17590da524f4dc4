package domain

import "time"

// BetaGrant is a local, time-limited permission record allowing one browser to
// bypass maintenance mode. It never leaves the browser that redeemed the key
// and is not a security boundary: clearing storage discards it.
type BetaGrant struct {
	UsedKey string    `json:"used_key"`
	Expiry  time.Time `json:"expiry"`
}

// IsValidAt returns true if the grant is still usable at the given instant.
func (g *BetaGrant) IsValidAt(now time.Time) bool {
	return g.Expiry.After(now)
}
