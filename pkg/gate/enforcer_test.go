package gate

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onairfm/gatekeeper/pkg/domain"
)

type fakeProfiles struct {
	users      map[uuid.UUID]*domain.User
	getErr     error
	clearErr   error
	clearCalls int
}

func (f *fakeProfiles) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeProfiles) ClearBan(_ context.Context, id uuid.UUID) error {
	f.clearCalls++
	if f.clearErr != nil {
		return f.clearErr
	}
	if u, ok := f.users[id]; ok {
		u.BannedUntil = nil
		u.BanReason = nil
	}
	return nil
}

type fakeRevoker struct {
	revoked map[uuid.UUID]int
	err     error
}

func (f *fakeRevoker) RevokeAllByUserID(_ context.Context, userID uuid.UUID) error {
	if f.revoked == nil {
		f.revoked = make(map[uuid.UUID]int)
	}
	f.revoked[userID]++
	return f.err
}

func newTestEnforcer(profiles *fakeProfiles, revoker *fakeRevoker) *Enforcer {
	return NewEnforcer(profiles, revoker, slog.Default())
}

func TestEnforcer_ActiveBanRejectsAndRevokes(t *testing.T) {
	id := uuid.New()
	until := time.Now().Add(48 * time.Hour)
	reason := "abusive chat messages"

	profiles := &fakeProfiles{users: map[uuid.UUID]*domain.User{
		id: {ID: id, Email: "banned@example.com", BannedUntil: &until, BanReason: &reason},
	}}
	revoker := &fakeRevoker{}

	result := newTestEnforcer(profiles, revoker).Check(context.Background(), id)

	assert.Equal(t, DecisionRejected, result.Decision)
	assert.Equal(t, 1, revoker.revoked[id], "all sessions must be revoked")
	require.NotNil(t, result.Ban)
	assert.Equal(t, reason, result.Ban.Reason)
	assert.False(t, result.Ban.Permanent)
	assert.True(t, result.Ban.ExpiresAt.Equal(until))
}

func TestEnforcer_PermanentBanFlag(t *testing.T) {
	id := uuid.New()
	until := time.Now().Add(domain.PermanentBanHorizon + 24*time.Hour)

	profiles := &fakeProfiles{users: map[uuid.UUID]*domain.User{
		id: {ID: id, Email: "perma@example.com", BannedUntil: &until},
	}}

	result := newTestEnforcer(profiles, &fakeRevoker{}).Check(context.Background(), id)

	require.Equal(t, DecisionRejected, result.Decision)
	assert.True(t, result.Ban.Permanent)
}

func TestEnforcer_ExpiredBanCleansUpOnce(t *testing.T) {
	id := uuid.New()
	until := time.Now().Add(-time.Hour)
	reason := "old incident"

	profiles := &fakeProfiles{users: map[uuid.UUID]*domain.User{
		id: {ID: id, Email: "reformed@example.com", BannedUntil: &until, BanReason: &reason},
	}}
	revoker := &fakeRevoker{}
	enforcer := newTestEnforcer(profiles, revoker)

	// First check authorizes and clears the stale ban.
	result := enforcer.Check(context.Background(), id)
	assert.Equal(t, DecisionAuthorized, result.Decision)
	assert.Nil(t, result.Ban)
	assert.Equal(t, 1, profiles.clearCalls)
	assert.Empty(t, revoker.revoked)

	// Second check finds no ban fields and performs no write.
	result = enforcer.Check(context.Background(), id)
	assert.Equal(t, DecisionAuthorized, result.Decision)
	assert.Equal(t, 1, profiles.clearCalls, "cleanup must not repeat")
}

func TestEnforcer_CleanupFailureStillAuthorizes(t *testing.T) {
	id := uuid.New()
	until := time.Now().Add(-time.Minute)

	profiles := &fakeProfiles{
		users: map[uuid.UUID]*domain.User{
			id: {ID: id, Email: "user@example.com", BannedUntil: &until},
		},
		clearErr: errors.New("write conflict"),
	}

	result := newTestEnforcer(profiles, &fakeRevoker{}).Check(context.Background(), id)

	assert.Equal(t, DecisionAuthorized, result.Decision, "cleanup failure must never block authorization")
}

func TestEnforcer_FailsClosedOnFetchError(t *testing.T) {
	id := uuid.New()
	profiles := &fakeProfiles{getErr: errors.New("connection refused")}
	revoker := &fakeRevoker{}

	result := newTestEnforcer(profiles, revoker).Check(context.Background(), id)

	assert.Equal(t, DecisionError, result.Decision)
	assert.Equal(t, 1, revoked(revoker, id), "unverifiable ban status must revoke sessions")
}

func TestEnforcer_FailsClosedOnMissingProfile(t *testing.T) {
	id := uuid.New()
	profiles := &fakeProfiles{users: map[uuid.UUID]*domain.User{}}
	revoker := &fakeRevoker{}

	result := newTestEnforcer(profiles, revoker).Check(context.Background(), id)

	assert.Equal(t, DecisionError, result.Decision)
	assert.Equal(t, 1, revoked(revoker, id))
}

func TestEnforcer_AuthorizedCarriesAdminFlag(t *testing.T) {
	adminID := uuid.New()
	listenerID := uuid.New()

	profiles := &fakeProfiles{users: map[uuid.UUID]*domain.User{
		adminID:    {ID: adminID, Email: "admin@example.com", IsAdmin: true},
		listenerID: {ID: listenerID, Email: "listener@example.com"},
	}}
	enforcer := newTestEnforcer(profiles, &fakeRevoker{})

	assert.True(t, enforcer.Check(context.Background(), adminID).IsAdmin)
	assert.False(t, enforcer.Check(context.Background(), listenerID).IsAdmin)
}

func revoked(r *fakeRevoker, id uuid.UUID) int {
	return r.revoked[id]
}
