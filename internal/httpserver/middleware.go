package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/apierr"
	"github.com/integrum-global/kaizen-studio/internal/auth"
	"github.com/integrum-global/kaizen-studio/internal/telemetry"
)

// csrfExemptPaths are exempt from the CSRF origin check even though they are
// state-changing: auth bootstrap and OAuth callbacks (spec.md §4.1).
var csrfExemptPaths = map[string]bool{
	"/api/v1/auth/register": true,
	"/api/v1/auth/login":    true,
	"/api/v1/auth/refresh":  true,
	"/api/v1/auth/callback": true,
}

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFromContext extracts the request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// RequestID injects a unique request ID into each request's context and response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger logs every request with method, path, status, and duration.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", RequestIDFromContext(r.Context()),
			)
		})
	}
}

// Metrics records request count and duration to the supplied collectors.
func Metrics(m *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			routePath := r.URL.Path
			if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
				if pattern := routeCtx.RoutePattern(); pattern != "" {
					routePath = pattern
				}
			}

			status := strconv.Itoa(sw.status)
			m.HTTPRequestDuration.WithLabelValues(r.Method, routePath).Observe(time.Since(start).Seconds())
			m.HTTPRequestsTotal.WithLabelValues(r.Method, routePath, status).Inc()
		})
	}
}

// CSRFGuard enforces spec.md §4.1's CSRF rule: in production, state-changing
// methods require an Origin or Referer whose origin is in allowedOrigins,
// except csrfExemptPaths and API-key-authenticated requests (a key can only
// be obtained out-of-band, so it carries no ambient-authority risk a browser
// CSRF attack relies on). Must run after the authenticator so Identity.Method
// is already resolved.
func CSRFGuard(isProduction bool, allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isProduction || !isStateChanging(r.Method) || csrfExemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if identity := auth.FromContext(r.Context()); identity.Method == auth.MethodAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			if origin := r.Header.Get("Origin"); origin != "" {
				if !originAllowed(origin, allowedOrigins) {
					RespondError(w, r, apierr.WithDetails(apierr.CodeForbidden, "origin not allowed", map[string]any{"code": "CSRF_INVALID_ORIGIN"}))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			referer := r.Header.Get("Referer")
			if referer == "" || !refererAllowed(referer, allowedOrigins) {
				RespondError(w, r, apierr.WithDetails(apierr.CodeForbidden, "referer not allowed", map[string]any{"code": "CSRF_INVALID_REFERER"}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func originAllowed(origin string, allowed []string) bool {
	return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}

func refererAllowed(referer string, allowed []string) bool {
	u, err := url.Parse(referer)
	if err != nil {
		return false
	}
	return originAllowed(u.Scheme+"://"+u.Host, allowed)
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}
