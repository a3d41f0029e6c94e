package auth

import "time"

// Claim names consumed from the access token payload.
const (
	claimSubject    = "sub"
	claimEmail      = "email"
	claimUserID     = "userId"
	claimGlobalRole = "globalRole"
	claimTenantID   = "tenantId"
)

// Claims is the decoded, validated payload of an access token.
// A Claims value always carries a non-empty UserID and Email; Decode never returns a partial one.
type Claims struct {
	Email      string
	UserID     string
	GlobalRole string
	TenantID   string

	// ExpiresAt is zero when the token carries no exp claim. It is informational only.
	ExpiresAt time.Time
}

// Identity is the authenticated identity held by the running client.
type Identity struct {
	Email      string `json:"email"`
	UserID     string `json:"userId"`
	GlobalRole string `json:"globalRole,omitempty"`
	TenantID   string `json:"tenantId,omitempty"`
}

func (c Claims) Identity() Identity {
	return Identity{
		Email:      c.Email,
		UserID:     c.UserID,
		GlobalRole: c.GlobalRole,
		TenantID:   c.TenantID,
	}
}
