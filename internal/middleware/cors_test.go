package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/majianyu/gemini-chat/backend/internal/middleware"
)

func TestCORSSetsHeadersAndForwards(t *testing.T) {
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	middleware.CORS(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))

	if !called {
		t.Fatal("expected inner handler to run")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Fatal("expected methods header set")
	}
}

func TestCORSShortCircuitsPreflight(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the inner handler")
	})

	rec := httptest.NewRecorder()
	middleware.CORS(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/models", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
}
