package middleware

import (
	"net/http"

	"github.com/onairfm/gatekeeper/internal/httputil"
	"github.com/onairfm/gatekeeper/pkg/gate"
)

// RequireAdmin re-verifies the authenticated user against the current ban
// state and admin flag before any admin handler runs. The is_admin claim in
// the token is advisory only; the database record is the source of truth.
// This middleware must be applied AFTER the Auth middleware.
//
// A banned user loses all sessions here, and an unverifiable profile is
// treated the same way: sessions revoked, request denied.
func RequireAdmin(enforcer *gate.Enforcer, cookies httputil.CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r.Context())
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			result := enforcer.Check(r.Context(), userID)
			switch result.Decision {
			case gate.DecisionRejected:
				httputil.ClearAuthCookies(w, cookies)
				httputil.JSON(w, http.StatusForbidden, map[string]interface{}{
					"error": "account is banned",
					"ban":   result.Ban,
				})
				return
			case gate.DecisionError:
				httputil.ClearAuthCookies(w, cookies)
				httputil.Error(w, http.StatusUnauthorized, "account could not be verified")
				return
			}

			if !result.IsAdmin {
				httputil.Error(w, http.StatusForbidden, "admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
