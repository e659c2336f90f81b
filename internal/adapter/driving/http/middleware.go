package httphandler

import (
	"log/slog"
	"net/http"
	"time"
)

// maxRequestBody caps every request body, including webhook payloads.
const maxRequestBody = 5 << 20

// statusWriter wraps http.ResponseWriter to capture the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the embedded writer.
func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

// ApplyMiddleware wraps next with body limiting, panic recovery and request
// logging. Recovery sits inside logging so recovered panics are logged as 500s.
func ApplyMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	wrapped := bodyLimitMiddleware(maxRequestBody, next)
	wrapped = recoveryMiddleware(logger, wrapped)
	return loggingMiddleware(logger, wrapped)
}

// bodyLimitMiddleware rejects bodies larger than limit bytes once they are read.
func bodyLimitMiddleware(limit int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each HTTP request with method, path, status, and duration.
// GitHub deliveries also carry their delivery ID.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).Round(time.Microsecond),
		}
		if id := r.Header.Get("X-GitHub-Delivery"); id != "" {
			attrs = append(attrs, "delivery_id", id)
		}
		logger.Info("http request", attrs...)
	})
}

// recoveryMiddleware recovers from panics in HTTP handlers, logs the error,
// and returns a 500 response.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("panic recovered",
					"panic", v,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
