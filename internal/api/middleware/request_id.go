package middleware

import (
	"context"
	"net/http"

	"github.com/oklog/ulid/v2"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"

	maxClientRequestIDLength = 128
)

// RequestID is a middleware that adds a unique request ID to each request.
// A well-formed client-supplied X-Request-ID is kept; otherwise a ULID is
// generated. The ID is echoed in the response headers and stored in the
// request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !acceptableRequestID(requestID) {
			requestID = generateRequestID()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateRequestID returns a new lexically sortable ULID.
func generateRequestID() string {
	return ulid.Make().String()
}

// acceptableRequestID rejects empty, oversized or non-printable IDs so they
// cannot pollute logs.
func acceptableRequestID(id string) bool {
	if id == "" || len(id) > maxClientRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
