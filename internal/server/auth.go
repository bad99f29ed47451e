package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

// Authenticator decides whether a request carries a valid caller identity.
// The dashboard's real identity provider lives outside this service; the
// server only needs the opaque yes/no answer.
type Authenticator interface {
	Authenticate(r *http.Request) bool
}

// TokenAuthenticator accepts requests bearing a pre-shared API token.
type TokenAuthenticator struct {
	token string
}

// NewTokenAuthenticator creates an authenticator for a static bearer token.
func NewTokenAuthenticator(token string) *TokenAuthenticator {
	return &TokenAuthenticator{token: token}
}

// Authenticate checks the Authorization header in constant time.
func (a *TokenAuthenticator) Authenticate(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	presented, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || a.token == "" {
		return false
	}

	// Hash both sides so the comparison stays constant-time regardless of
	// length mismatch.
	want := sha256.Sum256([]byte(a.token))
	got := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}

// RequireAuth rejects unauthenticated requests with 401.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Auth.Authenticate(r) {
			s.respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
