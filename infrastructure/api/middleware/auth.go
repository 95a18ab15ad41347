package middleware

import (
	"net/http"
)

// AuthConfig holds the accepted API keys.
type AuthConfig struct {
	apiKeys map[string]struct{}
	enabled bool
}

// NewAuthConfigWithKeys creates a new AuthConfig. Empty keys are ignored and
// an empty set disables authentication.
func NewAuthConfigWithKeys(apiKeys []string) AuthConfig {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	if len(keys) == 0 {
		return AuthConfig{enabled: false}
	}
	return AuthConfig{apiKeys: keys, enabled: true}
}

// Enabled returns true if authentication is enabled.
func (c AuthConfig) Enabled() bool { return c.enabled }

// WriteProtect returns a middleware that requires a valid X-API-KEY header on
// mutating requests. GET, HEAD and OPTIONS pass through.
func WriteProtect(config AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.enabled {
				next.ServeHTTP(w, r)
				return
			}

			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-KEY")
			if apiKey == "" {
				WriteError(w, r, NewAuthenticationError("X-API-KEY header is required"), nil)
				return
			}
			if _, ok := config.apiKeys[apiKey]; !ok {
				WriteError(w, r, NewAuthenticationError("invalid API key"), nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WriteProtectAuth creates write-protect middleware from a slice of API keys.
func WriteProtectAuth(apiKeys []string) func(http.Handler) http.Handler {
	return WriteProtect(NewAuthConfigWithKeys(apiKeys))
}
