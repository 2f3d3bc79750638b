package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/shplep/homecontentslistpro-sub000/internal/config"
	"github.com/shplep/homecontentslistpro-sub000/internal/logging"
)

// APIKeyAuth checks the X-API-Key header against the configured keys.
// When RequireAPIKey is false every request passes.
func APIKeyAuth(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				logging.FromContext(r.Context()).Warn("auth: missing API key",
					"path", r.URL.Path, "method", r.Method, "remote_addr", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "AUTH002",
					"An API key is required.", "Send your key in the X-API-Key header.")
				return
			}

			if !isValidAPIKey(apiKey, cfg.APIKeys) {
				logging.FromContext(r.Context()).Warn("auth: invalid API key",
					"path", r.URL.Path, "method", r.Method, "remote_addr", r.RemoteAddr)
				writeError(w, http.StatusForbidden, "AUTH003",
					"The API key was not accepted.", "Check the key with your administrator.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isValidAPIKey compares key against every configured key in constant time.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}
