// ABOUTME: HTTP request logging middleware.
// ABOUTME: Captures method, path, status, duration, and size, and logs them through logrus.

package logging

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	bytes      int
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Flush implements http.Flusher when the wrapped writer does.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// RouteFromPath buckets a request path into the area of the admin surface it hits.
func RouteFromPath(path string) string {
	switch {
	case path == "/healthz":
		return "health"
	case path == "/metrics":
		return "metrics"
	case strings.HasPrefix(path, "/admin/plugins"):
		return "plugins"
	case strings.HasPrefix(path, "/admin/providers"), strings.HasPrefix(path, "/admin/bindings"):
		return "providers"
	case strings.HasPrefix(path, "/admin/events"):
		return "events"
	case strings.HasPrefix(path, "/admin"):
		return "admin"
	}
	return "unknown"
}

// Middleware logs every request. Health checks and metric scrapes log at debug
// so pollers don't flood the output.
func Middleware(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			route := RouteFromPath(r.URL.Path)
			entry := log.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"route":       route,
				"status":      wrapped.statusCode,
				"bytes":       wrapped.bytes,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			if id := middleware.GetReqID(r.Context()); id != "" {
				entry = entry.WithField("request_id", id)
			}

			switch {
			case wrapped.statusCode >= http.StatusInternalServerError:
				entry.Error("request failed")
			case route == "health" || route == "metrics":
				entry.Debug("request")
			default:
				entry.Info("request")
			}
		})
	}
}
