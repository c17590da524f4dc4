package domain

import (
	"time"

	"github.com/google/uuid"
)

// PermanentBanHorizon is how far in the future banned_until must lie for the
// ban to be displayed as permanent. Display heuristic only, never stored.
const PermanentBanHorizon = 10 * 365 * 24 * time.Hour

// User represents a listener account.
type User struct {
	ID                  uuid.UUID
	Email               string
	Name                *string
	IsAdmin             bool
	BannedUntil         *time.Time
	BanReason           *string
	TOTPSecret          *string
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           *time.Time
}

// IsLocked returns true if the account is currently locked out of login.
func (u *User) IsLocked() bool {
	if u.LockedUntil == nil {
		return false
	}
	return time.Now().Before(*u.LockedUntil)
}

// IsBannedAt returns true if the user is banned at the given instant.
// A ban row with banned_until in the past is stale and should be cleaned up.
func (u *User) IsBannedAt(now time.Time) bool {
	if u.BannedUntil == nil {
		return false
	}
	return u.BannedUntil.After(now)
}

// HasStaleBanAt returns true if ban fields are present but already expired.
func (u *User) HasStaleBanAt(now time.Time) bool {
	return u.BannedUntil != nil && !u.BannedUntil.After(now)
}

// BanDetails is the display projection of an active ban.
type BanDetails struct {
	ExpiresAt time.Time `json:"expires_at"`
	Reason    string    `json:"reason"`
	Permanent bool      `json:"permanent"`
}

// BanDetailsAt builds the display projection for an active ban, or nil if the
// user is not banned at the given instant.
func (u *User) BanDetailsAt(now time.Time) *BanDetails {
	if !u.IsBannedAt(now) {
		return nil
	}
	reason := ""
	if u.BanReason != nil {
		reason = *u.BanReason
	}
	return &BanDetails{
		ExpiresAt: *u.BannedUntil,
		Reason:    reason,
		Permanent: u.BannedUntil.After(now.Add(PermanentBanHorizon)),
	}
}

// UserPassword stores password credentials separately from the user profile.
type UserPassword struct {
	UserID            uuid.UUID
	PasswordHash      string
	PasswordUpdatedAt time.Time
}
