// Package middleware provides HTTP middleware for the API surface.
package middleware

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health": true,
}

// Auth returns middleware that validates the owner API key against its bcrypt
// hash. An empty hash disables authentication entirely.
func Auth(apiKeyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKeyHash == "" || publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			// WebSocket clients cannot set headers; accept ?token= there.
			key := ""
			if r.URL.Path == "/ws" {
				key = r.URL.Query().Get("token")
			} else if h := r.Header.Get("Authorization"); h != "" {
				key = strings.TrimPrefix(h, "Bearer ")
				if key == h {
					http.Error(w, `{"error":"invalid authorization header"}`, http.StatusUnauthorized)
					return
				}
			} else {
				key = r.Header.Get("X-API-Key")
			}

			if key == "" {
				http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
				return
			}
			if bcrypt.CompareHashAndPassword([]byte(apiKeyHash), []byte(key)) != nil {
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
