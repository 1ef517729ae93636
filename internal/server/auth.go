package server

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// NewAPIKey generates a random agent key. The raw key goes to the agent
// config; only its hash is stored server-side.
func NewAPIKey() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("server: generate api key: %w", err)
	}
	return strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)), nil
}

// HashAPIKey returns the bcrypt hash of key for the server config.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("server: hash api key: %w", err)
	}
	return string(hash), nil
}

// VerifyAPIKey reports whether key matches the stored bcrypt hash.
func VerifyAPIKey(hash, key string) bool {
	if hash == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// requestKey extracts the agent key from a request: Authorization Bearer
// header first, then the key query parameter (used by websocket dials,
// which cannot always set headers).
func requestKey(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.URL.Query().Get("key")
}

// requireKey wraps a handler with agent key authentication. An empty
// configured hash disables auth, which is only sensible for local
// development setups.
func (s *Server) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKeyHash != "" && !VerifyAPIKey(s.apiKeyHash, requestKey(r)) {
			writeError(w, http.StatusUnauthorized, "invalid or missing api key")
			return
		}
		next(w, r)
	}
}
