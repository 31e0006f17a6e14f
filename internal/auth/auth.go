package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/star/impactsim/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// exemptPaths are always public regardless of auth configuration.
var exemptPaths = map[string]bool{
	"/":           true,
	"/index.html": true,
	"/app.js":     true,
	"/styles.css": true,
	"/healthz":    true,
	"/readyz":     true,
	"/metrics":    true,
}

// exemptPrefixes are path prefixes that are always public. EventSource
// clients cannot send an Authorization header.
var exemptPrefixes = []string{
	"/api/v1/stream/",
}

// readOnlyPrefixes are public for GET and HEAD only.
var readOnlyPrefixes = []string{
	"/api/v1/scenarios",
	"/api/v1/tracks.kml",
}

// isExempt returns true if the request does not need a token.
func isExempt(r *http.Request) bool {
	path := r.URL.Path
	if exemptPaths[path] {
		return true
	}
	for _, prefix := range exemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		for _, prefix := range readOnlyPrefixes {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
	}
	return false
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on non-exempt requests when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isExempt(r) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")

			if header == "" || token == header || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
