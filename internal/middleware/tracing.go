package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Tracing assigns each request a trace ID, echoes it in the response and
// logs the request once it completes.
type Tracing struct {
	logger zerolog.Logger
}

// NewTracing creates the tracing middleware.
func NewTracing(logger zerolog.Logger) *Tracing {
	return &Tracing{logger: logger.With().Str("component", "http").Logger()}
}

// Handler returns the tracing middleware handler.
func (t *Tracing) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		w.Header().Set("X-Trace-ID", traceID)

		logger := t.logger.With().Str("trace_id", traceID).Logger()
		r = r.WithContext(logger.WithContext(r.Context()))

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(wrapped, r)

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
