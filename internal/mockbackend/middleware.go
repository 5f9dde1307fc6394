// SPDX-License-Identifier: MIT

package mockbackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/kenttv99/MM-sub001/internal/log"
)

// recoverer keeps a panicking handler from taking the backend down and
// answers with a JSON 500.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				buf := make([]byte, 8192)
				n := runtime.Stack(buf, false)

				logger := log.WithComponentFromContext(r.Context(), "mockbackend")
				logger.Error().
					Str(log.FieldEvent, "panic.recovered").
					Str(log.FieldMethod, r.Method).
					Str(log.FieldPath, r.URL.Path).
					Interface("panic_value", rec).
					Str("stack_trace", string(buf[:n])).
					Msg("panic recovered in HTTP handler")

				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestID echoes or assigns X-Request-ID and puts it on the context.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := log.ContextWithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog writes one debug line per request.
func accessLog(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			mockRequestsTotal.WithLabelValues(name, r.Method, fmt.Sprintf("%d", status)).Inc()

			logger := log.WithComponentFromContext(r.Context(), "mockbackend")
			logger.Debug().
				Str(log.FieldBackend, name).
				Str(log.FieldMethod, r.Method).
				Str(log.FieldPath, r.URL.Path).
				Int(log.FieldStatus, status).
				Dur("duration", time.Since(start)).
				Msg("request served")
		})
	}
}

// rateLimit limits each client IP with a sliding window.
func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
		}),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError uses the {"detail": ...} shape of the real backends.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
