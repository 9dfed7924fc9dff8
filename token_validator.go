package auth

import (
	"crypto/hmac"
	"encoding/base64"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator validates tokens and extracts claims without tying callers
// to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrUnauthorized
	}
	return f(tokenString)
}

// ValidatorOptions configures an HMACValidator.
type ValidatorOptions struct {
	SigningKey       []byte
	Issuer           string
	Audience         []string
	ValidateIssuer   bool
	ValidateAudience bool
	Now              func() time.Time
}

// HMACValidator checks HS256 tokens against a shared secret. It keeps no state
// between calls.
type HMACValidator struct {
	signingKey       []byte
	issuer           string
	audience         []string
	validateIssuer   bool
	validateAudience bool
	now              func() time.Time
	logger           Logger
}

var _ TokenValidator = (*HMACValidator)(nil)

// NewHMACValidator returns a validator for tokens signed with opts.SigningKey.
func NewHMACValidator(opts ValidatorOptions, logger Logger) *HMACValidator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &HMACValidator{
		signingKey:       opts.SigningKey,
		issuer:           opts.Issuer,
		audience:         append([]string(nil), opts.Audience...),
		validateIssuer:   opts.ValidateIssuer,
		validateAudience: opts.ValidateAudience,
		now:              now,
		logger:           normalizeLogger(logger),
	}
}

// Validate runs, in order: segment count, signature, validity window and the
// optional issuer/audience checks.
func (v *HMACValidator) Validate(tokenString string) (AuthClaims, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, ErrTokenMalformed
	}

	expected, err := jwt.SigningMethodHS256.Sign(parts[0]+"."+parts[1], v.signingKey)
	if err != nil {
		v.logger.Error("unable to compute token signature", "error", err)
		return nil, wrapKind(ErrTokenInvalidSignature, err)
	}

	// Compare the encoded segment so that any byte change is detected,
	// including the unused trailing bits of the last base64 character.
	if !hmac.Equal([]byte(base64.RawURLEncoding.EncodeToString(expected)), []byte(parts[2])) {
		return nil, ErrTokenInvalidSignature
	}

	claims := &JWTClaims{}
	// The window is checked below so that both bounds are inclusive.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.signingKey, nil
	})
	if err != nil {
		return nil, mapJWTError(err)
	}

	if !token.Valid {
		return nil, ErrTokenMalformed
	}

	if err := v.checkWindow(claims); err != nil {
		return nil, err
	}

	if claims.Subject() == "" {
		return nil, wrapKind(ErrTokenMalformed, errors.New("token has no subject"))
	}

	if v.validateIssuer && claims.Issuer() != v.issuer {
		return nil, ErrTokenInvalidIssuer
	}

	if v.validateAudience && !audienceMatches(claims.Audience(), v.audience) {
		return nil, ErrTokenInvalidAudience
	}

	return claims, nil
}

// checkWindow accepts nbf <= now <= exp. A token without exp is rejected.
func (v *HMACValidator) checkWindow(claims *JWTClaims) error {
	now := v.now()

	if claims.ExpiresAt == nil {
		return wrapKind(ErrTokenMalformed, jwt.ErrTokenRequiredClaimMissing)
	}

	if claims.RegisteredClaims.NotBefore != nil && now.Before(claims.RegisteredClaims.NotBefore.Time) {
		return wrapKind(ErrTokenNotYetValid, jwt.ErrTokenNotValidYet)
	}

	if now.After(claims.ExpiresAt.Time) {
		return wrapKind(ErrTokenExpired, jwt.ErrTokenExpired)
	}

	return nil
}

func audienceMatches(got, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, aud := range got {
		if slices.Contains(want, aud) {
			return true
		}
	}
	return false
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return wrapKind(ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return wrapKind(ErrTokenNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return wrapKind(ErrTokenInvalidSignature, err)
	default:
		return wrapKind(ErrTokenMalformed, err)
	}
}
