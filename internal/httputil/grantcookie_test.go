package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onairfm/gatekeeper/pkg/domain"
)

var testSignKey = []byte("grant-cookie-test-key-0123456789")

func roundTrip(t *testing.T, write func(*CookieGrantStore)) *http.Request {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	write(NewCookieGrantStore(testSignKey, DefaultCookieConfig(), rec, req))

	// Carry the response cookies into a fresh request, like a browser would.
	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge > 0 {
			next.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return next
}

func TestCookieGrantStore_GrantRoundTrip(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)

	req := roundTrip(t, func(s *CookieGrantStore) {
		s.SaveGrant(domain.BetaGrant{UsedKey: "ONAIR-GOLD", Expiry: expiry})
	})

	store := NewCookieGrantStore(testSignKey, DefaultCookieConfig(), httptest.NewRecorder(), req)
	grant, ok := store.Grant()
	if !ok {
		t.Fatal("grant should round-trip through the cookie")
	}
	if grant.UsedKey != "ONAIR-GOLD" {
		t.Errorf("UsedKey = %q, want %q", grant.UsedKey, "ONAIR-GOLD")
	}
	if !grant.Expiry.Equal(expiry) {
		t.Errorf("Expiry = %v, want %v", grant.Expiry, expiry)
	}
}

func TestCookieGrantStore_TamperedCookieRejected(t *testing.T) {
	req := roundTrip(t, func(s *CookieGrantStore) {
		s.SaveGrant(domain.BetaGrant{UsedKey: "ONAIR-GOLD", Expiry: time.Now().Add(time.Hour)})
	})

	// Re-read with a different key, as if the cookie were forged.
	otherKey := []byte("a-completely-different-signing-key")
	store := NewCookieGrantStore(otherKey, DefaultCookieConfig(), httptest.NewRecorder(), req)
	if _, ok := store.Grant(); ok {
		t.Error("grant signed with another key must be rejected")
	}
}

func TestCookieGrantStore_ReplayList(t *testing.T) {
	req := roundTrip(t, func(s *CookieGrantStore) {
		s.MarkUsed("KEY-ONE")
		if !s.WasUsed("KEY-ONE") {
			t.Error("WasUsed should see the key within the same request")
		}
		s.MarkUsed("KEY-TWO")
	})

	store := NewCookieGrantStore(testSignKey, DefaultCookieConfig(), httptest.NewRecorder(), req)
	if !store.WasUsed("KEY-ONE") || !store.WasUsed("KEY-TWO") {
		t.Error("replay list should survive the cookie round trip")
	}
	if store.WasUsed("KEY-THREE") {
		t.Error("unknown key should not appear used")
	}
}

func TestCookieGrantStore_NoCookies(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	store := NewCookieGrantStore(testSignKey, DefaultCookieConfig(), httptest.NewRecorder(), req)

	if _, ok := store.Grant(); ok {
		t.Error("no cookie should mean no grant")
	}
	if store.WasUsed("ANY") {
		t.Error("no cookie should mean empty replay list")
	}
}
