package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every reason a token cannot become an identity.
var ErrInvalidToken = errors.New("invalid token")

var parser = jwt.NewParser(jwt.WithJSONNumber())

// Decode reads the payload of an access token without verifying its signature.
// Signature trust belongs to the issuing service and to every service that later accepts the token.
// userId and a subject email are required.
func Decode(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if raw == "" {
		return Claims{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	mc := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, mc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, ok := stringClaim(mc, claimUserID)
	if !ok {
		return Claims{}, fmt.Errorf("%w: userId missing", ErrInvalidToken)
	}

	email, _ := stringClaim(mc, claimEmail)
	if email == "" {
		email, _ = stringClaim(mc, claimSubject)
	}
	if email == "" {
		return Claims{}, fmt.Errorf("%w: subject email missing", ErrInvalidToken)
	}

	c := Claims{
		Email:  email,
		UserID: userID,
	}
	c.GlobalRole, _ = stringClaim(mc, claimGlobalRole)
	c.TenantID, _ = stringClaim(mc, claimTenantID)

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// stringClaim returns a non-empty string form of a claim. Numeric ids are accepted as opaque strings.
func stringClaim(mc jwt.MapClaims, name string) (string, bool) {
	switch v := mc[name].(type) {
	case string:
		v = strings.TrimSpace(v)
		return v, v != ""
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}
