package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	token, err := svc.IssueUserToken("user-42")
	if err != nil {
		t.Fatalf("IssueUserToken error: %v", err)
	}

	userID, err := svc.ResolveUser(token)
	if err != nil {
		t.Fatalf("ResolveUser error: %v", err)
	}
	if userID != "user-42" {
		t.Errorf("ResolveUser = %q, want %q", userID, "user-42")
	}
}

func TestResolveUserRejects(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	other := NewTokenService("other-secret", time.Hour)

	// Signed with the right secret but already past its expiry; the
	// constructor clamps non-positive TTLs, so the fixture is minted
	// from raw claims.
	expiredClaims := &Claims{
		UserID: "user-42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	expiredToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing expired fixture: %v", err)
	}
	foreignToken, _ := other.IssueUserToken("user-42")

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreignToken},
		{"expired", expiredToken},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ResolveUser(tt.token); err == nil {
				t.Error("ResolveUser accepted an invalid token")
			}
		})
	}
}
