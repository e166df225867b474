package http

import (
	"net/http"

	"yacht-twin/monitor/internal/auth"
	"yacht-twin/monitor/internal/metrics"
)

const apiKeyHeader = "X-API-Key"

// requireAPIKey lets a request through to next only when it carries a key
// the authenticator accepts. Rejections are counted per route.
func requireAPIKey(a *auth.Authenticator, route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			metrics.AuthRejections.WithLabelValues(route, "missing").Inc()
			writeJSONError(w, http.StatusUnauthorized, "missing "+apiKeyHeader+" header")
			return
		}

		if _, ok := a.Owner(r.Context(), key); !ok {
			metrics.AuthRejections.WithLabelValues(route, "invalid").Inc()
			writeJSONError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}
