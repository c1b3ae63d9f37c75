package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/ragpack/internal/logger"
)

const bearerScheme = "bearer"

// BearerAuthMiddleware validates Bearer tokens against apiKeys and tags the request logger
// with the position of the matching key. If apiKeys is empty, authentication is disabled.
func BearerAuthMiddleware(apiKeys []string, logger *zap.Logger) func(http.Handler) http.Handler {
	validKeys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			validKeys = append(validKeys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, "missing or non-Bearer authorization header")
				return
			}

			idx := keyIndex(validKeys, []byte(token))
			if idx < 0 {
				logpkg.FromContext(r.Context(), logger).Info("Rejected api key")
				unauthorized(w, "invalid api key")
				return
			}

			reqLogger := logpkg.FromContext(r.Context(), logger).With(zap.Int("api_key", idx))
			next.ServeHTTP(w, r.WithContext(logpkg.ContextWithLogger(r.Context(), reqLogger)))
		})
	}
}

// bearerToken extracts the credentials of a Bearer Authorization header; the scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="ragpack"`)
	writeError(w, http.StatusUnauthorized, CodeUnauthorized, msg)
}

// keyIndex compares the token with every key in constant time and returns the match, or -1.
func keyIndex(keys [][]byte, token []byte) int {
	idx := -1
	for i, k := range keys {
		if subtle.ConstantTimeCompare(k, token) == 1 {
			idx = i
		}
	}
	return idx
}
