package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifyRoundTrip(t *testing.T) {
	v, err := NewVerifier("secret")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	token, err := v.Sign("alice", time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Username != "alice" {
		t.Fatalf("unexpected username %q", claims.Username)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	v, err := NewVerifier("secret")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	v.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := v.Sign("alice", time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	v.now = time.Now
	if _, err := v.Verify(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer, _ := NewVerifier("issuer-secret")
	verifier, _ := NewVerifier("other-secret")
	token, err := issuer.Sign("alice", time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Fatal("expected token signed with a different secret to be rejected")
	}
}

func TestVerifyRejectsMissingUsername(t *testing.T) {
	v, _ := NewVerifier("secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(signed); err == nil {
		t.Fatal("expected token without username claim to be rejected")
	}
}

func TestMiddleware(t *testing.T) {
	v, _ := NewVerifier("secret")
	var sawUsername string
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawUsername, _ = UsernameFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	token, err := v.Sign("alice", time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
	if sawUsername != "alice" {
		t.Fatalf("handler saw username %q", sawUsername)
	}
}
