package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// originVerifyHeader is injected by the CDN in front of the API.
const originVerifyHeader = "x-origin-verify"

// withOriginVerify rejects requests lacking the configured shared secret.
// The health check is always reachable.
func (s *server) withOriginVerify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.originVerify == "" || r.URL.Path == "/api/health" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get(originVerifyHeader) != s.originVerify {
			log.Warn().Str("path", r.URL.Path).Msg("Blocked request: missing or invalid x-origin-verify header")
			httpError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// withMetrics emits request latency and count per normalized endpoint.
func (s *server) withMetrics(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sr, r)
		s.metrics.Request(normalizeEndpoint(r.URL.Path), r.Method, sr.statusCode, time.Since(start))
	})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sr, r)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("folder", r.URL.Query().Get("folder")).
				Int("status", sr.statusCode).
				Dur("duration", time.Since(start)).
				Msg("API request")
		}
	})
}

// knownEndpoints are the routes reported as metric dimensions. Anything else
// collapses to "other" to keep cardinality bounded.
var knownEndpoints = map[string]bool{
	"/api/health":            true,
	"/api/photos":            true,
	"/api/photos/order":      true,
	"/api/photos/order/swap": true,
	"/api/photos/group":      true,
	"/api/photos/all":        true,
	"/api/galleries":         true,
	"/api/galleries/order":   true,
}

// normalizeEndpoint maps request paths to low-cardinality endpoint names.
func normalizeEndpoint(path string) string {
	path = strings.TrimSuffix(path, "/")
	if knownEndpoints[path] {
		return path
	}
	if strings.HasPrefix(path, "/api/galleries/") {
		return "/api/galleries/*"
	}
	return "other"
}
