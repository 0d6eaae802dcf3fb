package api

import (
	"deployd/internal/apperrors"
	"deployd/internal/auth"
	"deployd/internal/observability"
	"log/slog"
	"mime"
	"net/http"
	"time"
)

// LoggingMiddleware logs every request once it completes. Server errors are
// logged at error level.
func LoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			level := slog.LevelInfo
			if wrapped.statusCode >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.Log(r.Context(), level, "HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", time.Since(start),
				"remote", clientIP(r),
			)
		})
	}
}

// MetricsMiddleware records HTTP request metrics (latency, traffic, errors).
func MetricsMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, wrapped.statusCode, time.Since(start).Seconds())
		})
	}
}

// RecoveryMiddleware turns a handler panic into a 500 JSON answer.
func RecoveryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					slog.ErrorContext(r.Context(), "Panic recovered", "panic", p, "path", r.URL.Path)
					writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// ContentTypeMiddleware rejects POST bodies that are not JSON. A missing
// Content-Type is accepted.
func ContentTypeMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodPut {
				if ct := r.Header.Get("Content-Type"); ct != "" {
					mediaType, _, err := mime.ParseMediaType(ct)
					if err != nil || mediaType != "application/json" {
						writeJSON(w, http.StatusUnsupportedMediaType, errorResponse{Error: "Content-Type must be application/json"})
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware adds CORS headers and answers preflight requests.
func CORSMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware requires a valid Bearer token and stores the caller's
// claims in the request context. A nil manager disables authentication.
func AuthMiddleware(tokens *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="deployd"`)
				writeJSON(w, apperrors.HTTPStatus(err), errorResponse{Error: err.Error()})
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

// responseWriter captures the status code written by the inner handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
