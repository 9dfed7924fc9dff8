package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is the read-only view of a validated token handed to route handlers.
type AuthClaims interface {
	Subject() string
	UserID() string
	Name() string
	Email() string
	Role() string
	Issuer() string
	Audience() []string
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	Expires() time.Time
	IssuedAt() time.Time
	NotBefore() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims.
// The nameid/unique_name names match the payload the browser client decodes.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID       string `json:"nameid,omitempty"`
	UserName  string `json:"unique_name,omitempty"`
	UserEmail string `json:"email,omitempty"`
	UserRole  string `json:"role,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

func (c *JWTClaims) Name() string {
	return c.UserName
}

func (c *JWTClaims) Email() string {
	return c.UserEmail
}

// Role returns the global role
func (c *JWTClaims) Role() string {
	return c.UserRole
}

func (c *JWTClaims) Issuer() string {
	return c.RegisteredClaims.Issuer
}

func (c *JWTClaims) Audience() []string {
	if len(c.RegisteredClaims.Audience) == 0 {
		return nil
	}
	return append([]string(nil), c.RegisteredClaims.Audience...)
}

// HasRole checks if the user has a specific role
func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole != "" && c.UserRole == role
}

// IsAtLeast checks if the user's role is at least the minimum required role
func (c *JWTClaims) IsAtLeast(minRole string) bool {
	return UserRole(c.UserRole).IsAtLeast(UserRole(minRole))
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func (c *JWTClaims) NotBefore() time.Time {
	if c.RegisteredClaims.NotBefore != nil {
		return c.RegisteredClaims.NotBefore.Time
	}
	return time.Time{}
}
