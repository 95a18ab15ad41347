package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/helixml/cinerag/internal/log"
)

// CorrelationIDHeader carries the correlation id on requests and responses.
const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationID returns a middleware that adds a correlation ID to the request context.
// It uses the X-Correlation-ID header when present and falls back to chi's request ID.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		correlationID := r.Header.Get(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = requestID
		}

		w.Header().Set(CorrelationIDHeader, correlationID)

		ctx := log.WithCorrelationID(r.Context(), correlationID)
		if requestID != "" {
			ctx = log.WithRequestID(ctx, requestID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCorrelationID retrieves the correlation ID from the context.
func GetCorrelationID(ctx context.Context) string {
	return log.CorrelationID(ctx)
}
