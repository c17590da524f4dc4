package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onairfm/gatekeeper/internal/httputil"
	"github.com/onairfm/gatekeeper/pkg/domain"
	gatecore "github.com/onairfm/gatekeeper/pkg/gate"
)

var testGrantKey = []byte("gate-handler-test-signing-key-01")

type fakeSettings struct {
	values map[string]string
}

func (f *fakeSettings) GetAll(ctx context.Context, category string) (map[string]string, error) {
	return f.values, nil
}

type fakeKeys struct {
	keys map[string]*domain.BetaKey
}

func (f *fakeKeys) GetActiveByCode(ctx context.Context, code string) (*domain.BetaKey, error) {
	key, ok := f.keys[code]
	if !ok || !key.IsActive {
		return nil, domain.ErrInvalidKey
	}
	copied := *key
	return &copied, nil
}

func (f *fakeKeys) Redeem(ctx context.Context, code string, observedCount int) error {
	key, ok := f.keys[code]
	if !ok || !key.IsActive || key.UsageCount != observedCount {
		return domain.ErrConcurrentRedemption
	}
	key.UsageCount++
	if key.UsageCount >= key.MaxUsage {
		key.IsActive = false
	}
	return nil
}

func newTestHandler(t *testing.T, maintenanceOn bool, keys *fakeKeys) *Handler {
	t.Helper()

	values := map[string]string{
		domain.SettingMaintenanceMode:   "false",
		domain.SettingMaintenanceReason: "",
	}
	if maintenanceOn {
		values[domain.SettingMaintenanceMode] = "true"
		values[domain.SettingMaintenanceReason] = "upgrading the stream servers"
	}

	watcher := gatecore.NewWatcher(&fakeSettings{values: values}, time.Second, nil)
	watcher.Load(context.Background())

	if keys == nil {
		keys = &fakeKeys{keys: map[string]*domain.BetaKey{}}
	}
	redeemer := gatecore.NewRedeemer(keys, nil)

	return NewHandler(nil, watcher, redeemer, nil, nil, nil, testGrantKey, httputil.DefaultCookieConfig())
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) StatusResponse {
	t.Helper()
	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode status response: %v", err)
	}
	return resp
}

func TestStatus_NoMaintenance(t *testing.T) {
	handler := newTestHandler(t, false, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/gate/status", nil)
	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeStatus(t, rec)
	if resp.Outcome != "content" {
		t.Errorf("outcome = %q, want %q", resp.Outcome, "content")
	}
	if resp.Maintenance.Enabled {
		t.Error("maintenance should be off")
	}
}

func TestStatus_MaintenanceAnonymous(t *testing.T) {
	handler := newTestHandler(t, true, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/gate/status", nil)
	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	resp := decodeStatus(t, rec)
	if resp.Outcome != "takeover" {
		t.Errorf("outcome = %q, want %q", resp.Outcome, "takeover")
	}
	if resp.Maintenance.Reason != "upgrading the stream servers" {
		t.Errorf("reason = %q", resp.Maintenance.Reason)
	}
}

func TestStatus_MaintenanceWithGrant(t *testing.T) {
	handler := newTestHandler(t, true, nil)

	// Write a grant cookie the way a prior redemption would have.
	seed := httptest.NewRecorder()
	store := httputil.NewCookieGrantStore(testGrantKey, httputil.DefaultCookieConfig(), seed, httptest.NewRequest(http.MethodGet, "/", nil))
	store.SaveGrant(domain.BetaGrant{UsedKey: "RADIO-BETA", Expiry: time.Now().Add(time.Hour)})

	req := httptest.NewRequest(http.MethodGet, "/v1/gate/status", nil)
	for _, c := range seed.Result().Cookies() {
		if c.MaxAge > 0 {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}

	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	resp := decodeStatus(t, rec)
	if resp.Outcome != "content" {
		t.Errorf("outcome = %q, want %q", resp.Outcome, "content")
	}
	if !resp.HasGrant {
		t.Error("grant should be recognized")
	}
}

func TestStatus_ExpiredGrantGetsTakeover(t *testing.T) {
	handler := newTestHandler(t, true, nil)

	seed := httptest.NewRecorder()
	store := httputil.NewCookieGrantStore(testGrantKey, httputil.DefaultCookieConfig(), seed, httptest.NewRequest(http.MethodGet, "/", nil))
	store.SaveGrant(domain.BetaGrant{UsedKey: "RADIO-BETA", Expiry: time.Now().Add(-time.Hour)})

	req := httptest.NewRequest(http.MethodGet, "/v1/gate/status", nil)
	for _, c := range seed.Result().Cookies() {
		if c.MaxAge > 0 {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}

	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	resp := decodeStatus(t, rec)
	if resp.Outcome != "takeover" {
		t.Errorf("outcome = %q, want %q", resp.Outcome, "takeover")
	}
	if resp.HasGrant {
		t.Error("expired grant must not count")
	}
}

func TestRedeem_Success(t *testing.T) {
	keys := &fakeKeys{keys: map[string]*domain.BetaKey{
		"RADIO-BETA": {
			KeyCode:   "RADIO-BETA",
			IsActive:  true,
			ExpiresAt: time.Now().Add(24 * time.Hour),
			MaxUsage:  10,
		},
	}}
	handler := newTestHandler(t, true, keys)

	body := bytes.NewBufferString(`{"key": "radio-beta"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/gate/beta/redeem", body)
	rec := httptest.NewRecorder()
	handler.Redeem(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp RedeemResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Grant.UsedKey != "RADIO-BETA" {
		t.Errorf("used key = %q, want normalized %q", resp.Grant.UsedKey, "RADIO-BETA")
	}
	if keys.keys["RADIO-BETA"].UsageCount != 1 {
		t.Errorf("usage count = %d, want 1", keys.keys["RADIO-BETA"].UsageCount)
	}

	// The grant must land in a cookie for the next page load.
	grantSet := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "beta_grant" && c.Value != "" {
			grantSet = true
		}
	}
	if !grantSet {
		t.Error("redemption should set the grant cookie")
	}
}

func TestRedeem_ErrorMapping(t *testing.T) {
	expired := &domain.BetaKey{
		KeyCode:   "OLD-KEY",
		IsActive:  true,
		ExpiresAt: time.Now().Add(-time.Hour),
		MaxUsage:  10,
	}
	keys := &fakeKeys{keys: map[string]*domain.BetaKey{"OLD-KEY": expired}}
	handler := newTestHandler(t, true, keys)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"invalid json", `{bad`, http.StatusBadRequest},
		{"unknown key", `{"key": "NOPE"}`, http.StatusNotFound},
		{"empty key", `{"key": ""}`, http.StatusNotFound},
		{"expired key", `{"key": "OLD-KEY"}`, http.StatusGone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/gate/beta/redeem", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			handler.Redeem(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestUnlock_Validation(t *testing.T) {
	handler := newTestHandler(t, true, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"invalid json", `{bad`, http.StatusBadRequest},
		{"missing credentials", `{}`, http.StatusBadRequest},
		{"missing password", `{"email": "dj@onair.fm"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/gate/admin/unlock", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			defer func() {
				if r := recover(); r != nil {
					t.Errorf("validation should have failed before reaching services")
				}
			}()

			handler.Unlock(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
