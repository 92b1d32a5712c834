package auth

import (
	"testing"
	"time"
)

// TestTokenRoundTrip issues and validates a token
func TestTokenRoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	token, err := manager.GenerateToken(UserClaims{UserID: "analyst", Name: "Analyst"})
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("token validation failed: %v", err)
	}
	if claims.UserID != "analyst" {
		t.Errorf("user ID = %s, want analyst", claims.UserID)
	}
}

// TestTamperedTokenRejected rejects a token signed with another secret
func TestTamperedTokenRejected(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	other := NewJWTManager("other-secret", time.Hour)

	token, err := other.GenerateToken(UserClaims{UserID: "intruder"})
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}
	if _, err := manager.ValidateToken(token); err == nil {
		t.Error("expected validation failure for a foreign token")
	}
}

// TestExpiredTokenRejected reports expiry distinctly
func TestExpiredTokenRejected(t *testing.T) {
	manager := NewJWTManager("test-secret", -time.Minute)

	token, err := manager.GenerateToken(UserClaims{UserID: "analyst"})
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}
	if _, err := manager.ValidateToken(token); err != ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got: %v", err)
	}
}

// TestPasswordHashRoundTrip verifies bcrypt hashing
func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hashing failed: %v", err)
	}
	if !VerifyPassword(hash, "correct horse battery staple") {
		t.Error("expected the original password to verify")
	}
	if VerifyPassword(hash, "wrong password") {
		t.Error("expected a wrong password to fail")
	}
}
