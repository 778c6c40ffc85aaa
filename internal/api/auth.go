package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuth rejects any request whose Authorization header does not
// carry the daemon's token. Comparison is constant-time.
func BearerAuth(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "missing or invalid API token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
