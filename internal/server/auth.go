package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authMiddleware validates the static API token. Requests may present it as
// "Authorization: Bearer <token>" or in the x-api-key header. An empty
// configured token disables authentication.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		presented := strings.TrimSpace(r.Header.Get("x-api-key"))
		if presented == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				presented = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			http.Error(w, `{"error":"unauthorized","code":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
