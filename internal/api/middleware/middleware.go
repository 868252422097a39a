// internal/api/middleware/middleware.go
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"
	"unicode"

	"internship-portal/internal/api/response"
	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/common/logger"
	"internship-portal/internal/common/metrics"

	"github.com/google/uuid"
)

type Middleware func(http.Handler) http.Handler

// Chain wraps h so the first middleware is the outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID propagates the caller's request id or assigns a new one, and
// attaches a request-scoped logger to the context.
func RequestID(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 64 {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			ctx = logger.IntoContext(ctx, log.WithFields(map[string]interface{}{"requestId": id}))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer, which
// the websocket upgrade needs for hijacking.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Logging records method, route, status and latency for every request.
func Logging(fallback logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := Route(r.URL.Path)
			elapsed := time.Since(start)
			metrics.HTTPRequestDuration.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())

			fields := map[string]interface{}{
				"method":     r.Method,
				"route":      route,
				"status":     rec.status,
				"durationMs": elapsed.Milliseconds(),
			}
			log := logger.FromContext(r.Context(), fallback)
			if rec.status >= http.StatusInternalServerError {
				log.Error("Request failed", fields)
				return
			}
			log.Info("Request handled", fields)
		})
	}
}

// Recover converts a panic into a 500 response.
func Recover(fallback logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rv := recover(); rv != nil {
					if rv == http.ErrAbortHandler {
						panic(rv)
					}
					logger.FromContext(r.Context(), fallback).Error("Handler panic", map[string]interface{}{
						"panic": fmt.Sprint(rv),
						"stack": string(debug.Stack()),
					})
					response.Error(w, apperrors.NewInternalError(fmt.Errorf("panic: %v", rv)))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func BodyLimit(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout bounds the request context. A zero duration disables it.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Route collapses identifier segments so metrics labels stay bounded:
// /api/applications/9b1d.../payments becomes /api/applications/{id}/payments.
func Route(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if looksLikeID(p) {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func looksLikeID(segment string) bool {
	if segment == "" {
		return false
	}
	if len(segment) > 24 {
		return true
	}
	for _, r := range segment {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
