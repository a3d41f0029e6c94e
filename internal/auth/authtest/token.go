// Package authtest mints unsigned-for-trust access tokens for tests.
package authtest

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

const signingKey = "authtest-signing-key"

// Token signs claims with a throwaway HS256 key. The console never verifies signatures,
// so any key produces a token it will decode.
func Token(t testing.TB, claims map[string]any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims)).SignedString([]byte(signingKey))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// UserToken is Token with the usual email/userId pair.
func UserToken(t testing.TB, email, userID string) string {
	t.Helper()
	return Token(t, map[string]any{"sub": email, "userId": userID})
}
