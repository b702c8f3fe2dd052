package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestTokenService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Secret:         "test-secret-test-secret-test-secret",
		AccessTokenTTL: time.Minute,
		Issuer:         "vat-api",
		Audience:       "vat-admin",
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRequireAdminAcceptsAdminToken(t *testing.T) {
	svc := newTestTokenService(t)
	token, _, err := svc.SignAccessToken("ops@example.com", RoleAdmin)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	var gotRole string
	handler := Middleware{Service: svc}.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole, _ = Role(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotRole != RoleAdmin {
		t.Fatalf("expected admin role in context, got %q", gotRole)
	}
}

func TestRequireAdminRejectsMissingToken(t *testing.T) {
	svc := newTestTokenService(t)
	handler := Middleware{Service: svc}.RequireAdmin(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest("GET", "/admin", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAdminRejectsNonAdminRole(t *testing.T) {
	svc := newTestTokenService(t)
	token, _, err := svc.SignAccessToken("shopper@example.com", "customer")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	handler := Middleware{Service: svc}.RequireAdmin(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestParseAccessTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService(t)
	token, _, err := svc.SignAccessToken("ops@example.com", RoleAdmin)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := svc.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "ops@example.com" || claims.Role != RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	svc := newTestTokenService(t)
	if _, err := svc.ParseAccessToken("not-a-token"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}
