// Package request provides request ID middleware for correlation across
// logs, audit entries, and error responses.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"famledger/pkg/requestcontext"
)

const headerRequestID = "X-Request-ID"

// Middleware assigns each request a correlation ID, honoring an inbound
// X-Request-ID header when present, and echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(headerRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
