package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
)

// HeaderName is the request header carrying the key
const HeaderName = "X-Api-Key"

// APIKeyAuth provides a simple API key authentication. With no keys
// configured every request is allowed.
type APIKeyAuth struct {
	mu        sync.RWMutex
	validKeys []string
}

// NewAPIKeyAuth creates a new API key authentication middleware
func NewAPIKeyAuth(keys []string) *APIKeyAuth {
	a := &APIKeyAuth{}
	for _, key := range keys {
		a.AddKey(key)
	}
	return a
}

// AddKey adds a new valid API key. Blank keys are ignored.
func (a *APIKeyAuth) AddKey(key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.validKeys = append(a.validKeys, key)
}

// RemoveKey removes a valid API key
func (a *APIKeyAuth) RemoveKey(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.validKeys[:0]
	for _, k := range a.validKeys {
		if k != key {
			kept = append(kept, k)
		}
	}
	a.validKeys = kept
}

// Enabled reports whether any key is configured
func (a *APIKeyAuth) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.validKeys) > 0
}

// IsValidKey checks if a key is valid
func (a *APIKeyAuth) IsValidKey(key string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.validKeys) == 0 {
		return true
	}

	valid := false
	for _, k := range a.validKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			valid = true
		}
	}
	return valid
}

// KeyFromRequest reads the key from the header, or from the api_key query
// parameter for browsers that cannot set headers on a WebSocket handshake
func KeyFromRequest(r *http.Request) string {
	if key := r.Header.Get(HeaderName); key != "" {
		return key
	}
	return r.URL.Query().Get("api_key")
}
