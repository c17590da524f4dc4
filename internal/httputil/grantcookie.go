package httputil

import (
	"time"

	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/onairfm/gatekeeper/pkg/domain"
)

const (
	grantCookieName  = "beta_grant"
	replayCookieName = "beta_used"

	// Replay entries outlive any key expiry; a year is plenty.
	replayCookieMaxAge = 365 * 24 * time.Hour
)

// CookieGrantStore is the per-browser grant store backed by signed cookies.
// The grant and the replay-guard list live in the visitor's browser, JWT
// signed so they cannot be forged. It is still not a security boundary: a
// different browser or cleared cookies bypass it, and the server-side usage
// counter remains the authoritative limit.
//
// One store is built per request; reads come from the request cookies and
// writes go out on the response.
type CookieGrantStore struct {
	signKey []byte
	cookie  CookieConfig
	w       http.ResponseWriter
	r       *http.Request

	// replaces the request cookie after MarkUsed within the same request
	replayOverride []string
}

// NewCookieGrantStore creates a grant store for one request/response pair.
func NewCookieGrantStore(signKey []byte, cookie CookieConfig, w http.ResponseWriter, r *http.Request) *CookieGrantStore {
	return &CookieGrantStore{
		signKey: signKey,
		cookie:  cookie,
		w:       w,
		r:       r,
	}
}

type grantClaims struct {
	jwt.RegisteredClaims
	UsedKey string `json:"used_key"`
}

type replayClaims struct {
	jwt.RegisteredClaims
	Keys []string `json:"keys"`
}

// Grant returns the browser's grant, if a validly signed one is present.
func (s *CookieGrantStore) Grant() (domain.BetaGrant, bool) {
	cookie, err := s.r.Cookie(grantCookieName)
	if err != nil {
		return domain.BetaGrant{}, false
	}

	claims := &grantClaims{}
	if !s.parse(cookie.Value, claims) || claims.ExpiresAt == nil {
		return domain.BetaGrant{}, false
	}

	return domain.BetaGrant{
		UsedKey: claims.UsedKey,
		Expiry:  claims.ExpiresAt.Time,
	}, true
}

// SaveGrant writes the grant cookie, valid until the grant's expiry.
func (s *CookieGrantStore) SaveGrant(grant domain.BetaGrant) {
	claims := grantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(grant.Expiry),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UsedKey: grant.UsedKey,
	}

	signed, err := s.sign(claims)
	if err != nil {
		return
	}

	s.set(grantCookieName, signed, time.Until(grant.Expiry))
}

// ClearGrant expires the grant cookie.
func (s *CookieGrantStore) ClearGrant() {
	s.set(grantCookieName, "", -time.Second)
}

// WasUsed reports whether the code is on this browser's replay-guard list.
func (s *CookieGrantStore) WasUsed(code string) bool {
	for _, k := range s.usedKeys() {
		if k == code {
			return true
		}
	}
	return false
}

// MarkUsed appends the code to the replay-guard list and rewrites the cookie.
func (s *CookieGrantStore) MarkUsed(code string) {
	keys := append(s.usedKeys(), code)
	s.replayOverride = keys

	claims := replayClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(replayCookieMaxAge)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Keys: keys,
	}

	signed, err := s.sign(claims)
	if err != nil {
		return
	}

	s.set(replayCookieName, signed, replayCookieMaxAge)
}

func (s *CookieGrantStore) usedKeys() []string {
	if s.replayOverride != nil {
		return s.replayOverride
	}

	cookie, err := s.r.Cookie(replayCookieName)
	if err != nil {
		return nil
	}

	claims := &replayClaims{}
	if !s.parse(cookie.Value, claims) {
		return nil
	}
	return claims.Keys
}

func (s *CookieGrantStore) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
}

func (s *CookieGrantStore) parse(tokenString string, claims jwt.Claims) bool {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.signKey, nil
	})
	return err == nil && token.Valid
}

func (s *CookieGrantStore) set(name, value string, ttl time.Duration) {
	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.cookie.Path,
		Domain:   s.cookie.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: s.cookie.SameSite,
	})
}
