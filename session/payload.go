package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	auth "github.com/goliatone/go-booking-auth"
)

// UnknownUser is shown when a token carries neither name nor email.
const UnknownUser = "unknown user"

// Payload mirrors the claims the API puts in its tokens.
type Payload struct {
	jwt.RegisteredClaims
	UserID string `json:"nameid,omitempty"`
	Name   string `json:"unique_name,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
}

// DecodePayload reads the claims of token without checking its signature.
func DecodePayload(token string) (*Payload, error) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return nil, auth.ErrDecodeFailure
	}

	payload := &Payload{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, payload); err != nil {
		return nil, auth.WrapKind(auth.ErrDecodeFailure, err)
	}
	return payload, nil
}

// DisplayName is the name, else the email, else UnknownUser.
func (p *Payload) DisplayName() string {
	if p == nil {
		return UnknownUser
	}
	if p.Name != "" {
		return p.Name
	}
	if p.Email != "" {
		return p.Email
	}
	return UnknownUser
}

// Roles returns the role claim as a list.
func (p *Payload) Roles() []string {
	if p == nil || p.Role == "" {
		return []string{}
	}
	return []string{p.Role}
}

// Expired reports whether the token is past exp at now. Tokens without exp
// count as expired since the API never accepts them.
func (p *Payload) Expired(now time.Time) bool {
	if p == nil || p.ExpiresAt == nil {
		return true
	}
	return now.After(p.ExpiresAt.Time)
}

func (p *Payload) clone() *Payload {
	if p == nil {
		return nil
	}
	c := *p
	if len(p.Audience) > 0 {
		c.Audience = append(jwt.ClaimStrings(nil), p.Audience...)
	}
	return &c
}
