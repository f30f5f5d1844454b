package auth

import (
	"testing"
	"time"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	token, expiresAt, err := svc.GenerateToken("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Error("token already expired")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %s, want user-1", claims.UserID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("Email = %s", claims.Email)
	}
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	issuer := NewTokenService("secret-a", time.Hour)
	verifier := NewTokenService("secret-b", time.Hour)

	token, _, err := issuer.GenerateToken("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := verifier.ValidateToken(token); err == nil {
		t.Fatal("expected validation failure with wrong secret")
	}
}

func TestTokenService_RejectsGarbage(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	if _, err := svc.ValidateToken("not.a.token"); err == nil {
		t.Fatal("expected validation failure")
	}
}

func TestTokenService_RejectsExpired(t *testing.T) {
	svc := NewTokenService("test-secret", -time.Hour)

	token, _, err := svc.GenerateToken("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("expected expired token to fail validation")
	}
}
