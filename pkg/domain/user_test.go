package domain

import (
	"testing"
	"time"
)

func TestUser_IsBannedAt(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		bannedUntil *time.Time
		want        bool
	}{
		{
			name:        "no ban",
			bannedUntil: nil,
			want:        false,
		},
		{
			name:        "ban in the future",
			bannedUntil: timePtr(now.Add(24 * time.Hour)),
			want:        true,
		},
		{
			name:        "ban expired",
			bannedUntil: timePtr(now.Add(-time.Minute)),
			want:        false,
		},
		{
			name:        "ban expires exactly now",
			bannedUntil: timePtr(now),
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{BannedUntil: tt.bannedUntil}
			if got := u.IsBannedAt(now); got != tt.want {
				t.Errorf("IsBannedAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUser_HasStaleBanAt(t *testing.T) {
	now := time.Now()

	u := &User{BannedUntil: timePtr(now.Add(-time.Hour))}
	if !u.HasStaleBanAt(now) {
		t.Error("expired ban should be reported stale")
	}

	u = &User{BannedUntil: timePtr(now.Add(time.Hour))}
	if u.HasStaleBanAt(now) {
		t.Error("active ban should not be reported stale")
	}

	u = &User{}
	if u.HasStaleBanAt(now) {
		t.Error("absent ban should not be reported stale")
	}
}

func TestUser_BanDetailsAt_Permanence(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name          string
		bannedUntil   time.Time
		wantPermanent bool
	}{
		{
			name:          "one day past the horizon is permanent",
			bannedUntil:   now.Add(PermanentBanHorizon + 24*time.Hour),
			wantPermanent: true,
		},
		{
			name:          "one day short of the horizon is not permanent",
			bannedUntil:   now.Add(PermanentBanHorizon - 24*time.Hour),
			wantPermanent: false,
		},
		{
			name:          "one day ban is not permanent",
			bannedUntil:   now.Add(24 * time.Hour),
			wantPermanent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := "spamming the chat"
			u := &User{BannedUntil: &tt.bannedUntil, BanReason: &reason}

			details := u.BanDetailsAt(now)
			if details == nil {
				t.Fatal("expected ban details for an active ban")
			}
			if details.Permanent != tt.wantPermanent {
				t.Errorf("Permanent = %v, want %v", details.Permanent, tt.wantPermanent)
			}
			if details.Reason != reason {
				t.Errorf("Reason = %q, want %q", details.Reason, reason)
			}
			if !details.ExpiresAt.Equal(tt.bannedUntil) {
				t.Errorf("ExpiresAt = %v, want %v", details.ExpiresAt, tt.bannedUntil)
			}
		})
	}
}

func TestUser_BanDetailsAt_NotBanned(t *testing.T) {
	now := time.Now()

	u := &User{}
	if u.BanDetailsAt(now) != nil {
		t.Error("unbanned user should have nil ban details")
	}

	u = &User{BannedUntil: timePtr(now.Add(-time.Hour))}
	if u.BanDetailsAt(now) != nil {
		t.Error("expired ban should have nil ban details")
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
