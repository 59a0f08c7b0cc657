package authgw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func issueHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestValidateToken_HS256RoundTrip(t *testing.T) {
	cfg := Config{HS256Secret: "dev-secret"}
	tok := issueHS256(t, cfg.HS256Secret, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	sub, err := ValidateToken(tok, cfg, nil)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("sub = %q, want user-1", sub)
	}
}

func TestValidateToken_RejectsWrongSecret(t *testing.T) {
	cfg := Config{HS256Secret: "dev-secret"}
	tok := issueHS256(t, "other-secret", jwt.MapClaims{"sub": "user-1"})

	if _, err := ValidateToken(tok, cfg, nil); err == nil {
		t.Fatal("ValidateToken: want error for token signed with a different secret")
	}
}

func TestValidateToken_RejectsIssuerMismatch(t *testing.T) {
	cfg := Config{HS256Secret: "dev-secret", Issuer: "notesync"}
	tok := issueHS256(t, cfg.HS256Secret, jwt.MapClaims{"sub": "user-1", "iss": "someone-else"})

	if _, err := ValidateToken(tok, cfg, nil); err == nil {
		t.Fatal("ValidateToken: want error for issuer mismatch")
	}
}

func TestMiddleware_RequiresAuthorization(t *testing.T) {
	mw := Middleware(Config{HS256Secret: "dev-secret"})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMiddleware_AcceptsBearerToken(t *testing.T) {
	cfg := Config{HS256Secret: "dev-secret"}
	tok := issueHS256(t, cfg.HS256Secret, jwt.MapClaims{"sub": "user-1"})

	var gotUID string
	mw := Middleware(cfg)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUID = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotUID != "user-1" {
		t.Fatalf("UserID = %q, want user-1", gotUID)
	}
}

func TestMiddleware_DevModeDebugHeader(t *testing.T) {
	cfg := Config{HS256Secret: "dev-secret", DevMode: true}

	var gotUID string
	mw := Middleware(cfg)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUID = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	req.Header.Set("X-Debug-Sub", "dev-user")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || gotUID != "dev-user" {
		t.Fatalf("status=%d uid=%q, want 200/dev-user", rec.Code, gotUID)
	}
}
