package middleware

import (
	"net/http"
	"time"

	"aeroclub-shop/utils"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
)

const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestLogger tags each request with an id, stores a request-scoped logger in
// the context and writes one access log line per request.
func RequestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.Must(uuid.NewV4()).String()
			}
			w.Header().Set(RequestIDHeader, requestID)

			logger := base.With().Str("request_id", requestID).Logger()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			defer func() {
				if p := recover(); p != nil {
					logger.Error().Interface("panic", p).Str("method", r.Method).Str("path", r.URL.Path).Msg("handler panicked")
					utils.RespondError(rec, http.StatusInternalServerError, "internal server error")
				}
				logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", rec.status).
					Dur("duration", time.Since(start)).
					Msg("request handled")
			}()

			next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context())))
		})
	}
}
