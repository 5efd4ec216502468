// Package authtest mints unverified-but-well-formed access tokens for tests.
package authtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const signingSecret = "authtest-secret"

// Mint returns an HS256 token for userID issued at exp-lifetime and expiring at exp.
func Mint(t testing.TB, userID int64, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"token_type": "access",
		"user_id":    userID,
		"iat":        exp.Add(-time.Hour).Unix(),
		"exp":        exp.Unix(),
		"jti":        "test-jti",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingSecret))
	if err != nil {
		t.Fatalf("minting token: %v", err)
	}
	return signed
}

// MintWithoutExpiry returns a token whose payload carries no exp claim.
func MintWithoutExpiry(t testing.TB, userID int64) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": userID}).SignedString([]byte(signingSecret))
	if err != nil {
		t.Fatalf("minting token: %v", err)
	}
	return signed
}
