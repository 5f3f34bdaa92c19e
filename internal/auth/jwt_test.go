package auth

import (
	"testing"
	"time"
)

func TestSetJWTSecret_RejectsShortSecret(t *testing.T) {
	if err := SetJWTSecret(""); err == nil {
		t.Error("empty secret should be rejected")
	}
	if err := SetJWTSecret("short"); err == nil {
		t.Error("short secret should be rejected")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	if err := SetJWTSecret("test-jwt-secret-that-is-32-chars!"); err != nil {
		t.Fatalf("SetJWTSecret: %v", err)
	}

	token, err := GenerateToken(42, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Issuer != tokenIssuer {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, tokenIssuer)
	}
}

func TestValidateToken_RejectsExpired(t *testing.T) {
	if err := SetJWTSecret("test-jwt-secret-that-is-32-chars!"); err != nil {
		t.Fatalf("SetJWTSecret: %v", err)
	}

	token, err := GenerateToken(7, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ValidateToken(token); err == nil {
		t.Error("expired token should fail validation")
	}
}

func TestValidateToken_RejectsGarbage(t *testing.T) {
	if err := SetJWTSecret("test-jwt-secret-that-is-32-chars!"); err != nil {
		t.Fatalf("SetJWTSecret: %v", err)
	}
	if _, err := ValidateToken("not-a-token"); err == nil {
		t.Error("garbage token should fail validation")
	}
}
