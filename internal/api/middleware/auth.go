package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/api"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
)

type contextKey string

// ClientIDKey holds the fingerprint of the API key that authenticated the request.
const ClientIDKey contextKey = "client_id"

// ClientIDHeader carries the same fingerprint back to outer middleware, which
// never sees the derived context.
const ClientIDHeader = "X-Client-ID"

type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (string, error)
}

// StaticKeys validates bearer tokens against a fixed set of API keys.
type StaticKeys struct {
	keys [][]byte
}

// NewStaticKeys ignores blank entries.
func NewStaticKeys(keys []string) *StaticKeys {
	s := &StaticKeys{}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			s.keys = append(s.keys, []byte(k))
		}
	}
	return s
}

// Enabled reports whether any key is configured.
func (s *StaticKeys) Enabled() bool {
	return s != nil && len(s.keys) > 0
}

// ValidateAPIKey compares token with every configured key in constant time and
// returns a short fingerprint identifying the key.
func (s *StaticKeys) ValidateAPIKey(_ context.Context, token string) (string, error) {
	candidate := []byte(token)
	match := 0
	for _, k := range s.keys {
		match |= subtle.ConstantTimeCompare(k, candidate)
	}
	if match != 1 {
		return "", domain.ErrInvalidAPIKey
	}
	return KeyFingerprint(token), nil
}

// KeyFingerprint is safe to log.
func KeyFingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "key_" + hex.EncodeToString(sum[:4])
}

func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			clientID, err := validator.ValidateAPIKey(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			r.Header.Set(ClientIDHeader, clientID)
			ctx := context.WithValue(r.Context(), ClientIDKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClientID(ctx context.Context) string {
	clientID, _ := ctx.Value(ClientIDKey).(string)
	return clientID
}

func clientIDOf(r *http.Request) string {
	if id := GetClientID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get(ClientIDHeader)
}
