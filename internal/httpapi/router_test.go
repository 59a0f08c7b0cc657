package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/notesync/core/internal/authgw"
)

func TestHealthCheck_Unauthenticated(t *testing.T) {
	s := &Server{Auth: authgw.Config{HS256Secret: "dev-secret"}}
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestPostSync_RejectsMissingToken(t *testing.T) {
	s := &Server{Auth: authgw.Config{HS256Secret: "dev-secret"}}
	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	rec := httptest.NewRecorder()

	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
