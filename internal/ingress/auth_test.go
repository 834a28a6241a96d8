package ingress

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return signed
}

func TestPrincipalFromRequest_ValidToken(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/agent/query", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "s3cr3t", "alice"))

	principalID, ok := principalFromRequest(req, AuthConfig{JWTSecret: "s3cr3t"})
	if !ok || principalID != "alice" {
		t.Fatalf("principalFromRequest = (%q, %v), want (alice, true)", principalID, ok)
	}
}

func TestPrincipalFromRequest_WrongSecretRejected(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/agent/query", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "s3cr3t", "alice"))

	_, ok := principalFromRequest(req, AuthConfig{JWTSecret: "other"})
	if ok {
		t.Fatal("expected a signature mismatch to be rejected")
	}
}

func TestPrincipalFromRequest_MissingTokenRequired(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/agent/query", nil)

	_, ok := principalFromRequest(req, AuthConfig{Required: true})
	if ok {
		t.Fatal("expected a missing token to be rejected when required")
	}
}

func TestPrincipalFromRequest_MissingTokenAnonymousFallback(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/agent/query", nil)
	req.RemoteAddr = "203.0.113.5:1234"

	principalID, ok := principalFromRequest(req, AuthConfig{})
	if !ok || principalID != "anon:203.0.113.5" {
		t.Fatalf("principalFromRequest = (%q, %v), want an anonymous fallback", principalID, ok)
	}
}

func TestPrincipalFromRequest_UnverifiedWhenNoSecretConfigured(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/agent/query", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "anything", "bob"))

	principalID, ok := principalFromRequest(req, AuthConfig{})
	if !ok || principalID != "bob" {
		t.Fatalf("principalFromRequest = (%q, %v), want (bob, true)", principalID, ok)
	}
}
