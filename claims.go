package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims is the payload carried by issued tokens
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	UserRole string `json:"role,omitempty"`
}

// Principal is the authenticated subject derived from a verified token.
// Subject is the email address, the login principal.
type Principal struct {
	Subject   string
	UserID    string
	Role      UserRole
	IssuedAt  time.Time
	ExpiresAt time.Time
	TokenID   string
}

// IsAdmin reports whether the principal carries the admin role
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

func (c *JWTClaims) principal() *Principal {
	p := &Principal{
		Subject: c.Subject,
		UserID:  c.UID,
		Role:    UserRole(c.UserRole),
		TokenID: c.ID,
	}
	if c.IssuedAt != nil {
		p.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}
