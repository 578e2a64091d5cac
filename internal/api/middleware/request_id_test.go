package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestRequestID(t *testing.T) {
	t.Run("generates request ID when not provided", func(t *testing.T) {
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())
			if requestID == "" {
				t.Error("expected request ID to be set in context")
			}
			if _, err := ulid.ParseStrict(requestID); err != nil {
				t.Errorf("expected a ULID, got %q: %v", requestID, err)
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if len(rec.Header().Get("X-Request-ID")) != ulid.EncodedSize {
			t.Errorf("expected X-Request-ID of length %d, got %q", ulid.EncodedSize, rec.Header().Get("X-Request-ID"))
		}
	})

	t.Run("uses client-provided request ID", func(t *testing.T) {
		expectedID := "client-request-123"
		var actualID string

		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actualID = GetRequestID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Request-ID", expectedID)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if actualID != expectedID {
			t.Errorf("expected request ID %q, got %q", expectedID, actualID)
		}
		if responseID := rec.Header().Get("X-Request-ID"); responseID != expectedID {
			t.Errorf("expected X-Request-ID header %q, got %q", expectedID, responseID)
		}
	})

	t.Run("replaces malformed client IDs", func(t *testing.T) {
		for _, bad := range []string{"has space", strings.Repeat("x", 129), "tab\there"} {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("X-Request-ID", bad)
			rec := httptest.NewRecorder()

			RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, req)

			if got := rec.Header().Get("X-Request-ID"); got == bad || len(got) != ulid.EncodedSize {
				t.Errorf("malformed ID %q not replaced, got %q", bad, got)
			}
		}
	})

	t.Run("GetRequestID returns empty string when not set", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if requestID := GetRequestID(req.Context()); requestID != "" {
			t.Errorf("expected empty string, got %q", requestID)
		}
	})

	t.Run("generates unique IDs for different requests", func(t *testing.T) {
		ids := make(map[string]bool)

		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ids[GetRequestID(r.Context())] = true
			w.WriteHeader(http.StatusOK)
		}))

		for i := 0; i < 100; i++ {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
		}

		if len(ids) != 100 {
			t.Errorf("expected 100 unique IDs, got %d", len(ids))
		}
	})
}

func TestGenerateRequestIDSortable(t *testing.T) {
	id1 := generateRequestID()
	id2 := generateRequestID()
	if id1 == id2 {
		t.Fatal("generateRequestID returned same ID twice")
	}
	if id1 > id2 {
		t.Fatalf("ULIDs should sort by creation: %s > %s", id1, id2)
	}
}
