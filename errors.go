package auth

import (
	stderrors "errors"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeTokenMalformed        = "TOKEN_MALFORMED"
	TextCodeTokenInvalidSignature = "TOKEN_INVALID_SIGNATURE"
	TextCodeTokenExpired          = "TOKEN_EXPIRED"
	TextCodeTokenNotYetValid      = "TOKEN_NOT_YET_VALID"
	TextCodeTokenInvalidIssuer    = "TOKEN_INVALID_ISSUER"
	TextCodeTokenInvalidAudience  = "TOKEN_INVALID_AUDIENCE"
	TextCodeUnauthorized          = "UNAUTHORIZED"
	TextCodeInvalidIdentity       = "INVALID_IDENTITY"
	TextCodeDecodeFailure         = "SESSION_DECODE_FAILURE"
	TextCodeStorageUnavailable    = "SESSION_STORAGE_UNAVAILABLE"
	TextCodeIdentityNotFound      = "IDENTITY_NOT_FOUND"
	TextCodeMismatchedPassword    = "MISMATCHED_PASSWORD"
	TextCodeDuplicateUser         = "DUPLICATE_USER"
)

// ErrTokenMalformed is returned when a token is not three base64url segments
// or its header/payload cannot be decoded.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrTokenInvalidSignature is returned when the recomputed signature differs.
var ErrTokenInvalidSignature = errors.New("token signature is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalidSignature).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when now is past the exp claim.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenNotYetValid is returned when now is before the nbf claim.
var ErrTokenNotYetValid = errors.New("token is not valid yet", errors.CategoryAuth).
	WithTextCode(TextCodeTokenNotYetValid).
	WithCode(errors.CodeUnauthorized)

var ErrTokenInvalidIssuer = errors.New("token has invalid issuer", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalidIssuer).
	WithCode(errors.CodeUnauthorized)

var ErrTokenInvalidAudience = errors.New("token has invalid audience", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalidAudience).
	WithCode(errors.CodeUnauthorized)

// ErrUnauthorized is the error for a missing or rejected credential on a protected route.
var ErrUnauthorized = errors.New("unauthorized", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidIdentity is returned when asked to mint a token for an identity without id.
var ErrInvalidIdentity = errors.New("identity must have a non empty id", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidIdentity).
	WithCode(errors.CodeBadRequest)

// ErrDecodeFailure is returned by the client session store when a token payload cannot be decoded.
var ErrDecodeFailure = errors.New("unable to decode token claims", errors.CategoryBadInput).
	WithTextCode(TextCodeDecodeFailure).
	WithCode(errors.CodeBadRequest)

// ErrStorageUnavailable is returned when the session persistence layer is absent or fails.
var ErrStorageUnavailable = errors.New("session storage unavailable", errors.CategoryInternal).
	WithTextCode(TextCodeStorageUnavailable).
	WithCode(errors.CodeInternal)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(errors.CodeNotFound)

// ErrMismatchedHashAndPassword is returned for unknown emails and wrong passwords alike.
var ErrMismatchedHashAndPassword = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeMismatchedPassword).
	WithCode(errors.CodeUnauthorized)

// ErrDuplicateUser is returned when registering a taken name or email.
var ErrDuplicateUser = errors.New("user already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateUser).
	WithCode(errors.CodeConflict)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// wrapKind clones base and records cause as its source.
func wrapKind(base *errors.Error, cause error) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	if cause != nil {
		clone.Source = cause
		clone.WithMetadata(map[string]any{"cause": cause.Error()})
	}
	return clone
}

// WrapKind exposes wrapKind to sibling packages that report the same kinds.
func WrapKind(base *errors.Error, cause error) error {
	return wrapKind(base, cause)
}

// ErrorKind returns the text code of the first rich error in err's chain.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var rich *errors.Error
	if stderrors.As(err, &rich) && rich != nil {
		return rich.TextCode
	}
	return ""
}

// HasKind reports whether err carries the given text code.
func HasKind(err error, textCode string) bool {
	return err != nil && ErrorKind(err) == textCode
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if HasKind(err, TextCodeTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if HasKind(err, TextCodeTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsSignatureError reports a signature mismatch.
func IsSignatureError(err error) bool {
	return HasKind(err, TextCodeTokenInvalidSignature)
}

// IsTokenError reports whether err is any of the token validation kinds.
func IsTokenError(err error) bool {
	switch ErrorKind(err) {
	case TextCodeTokenMalformed,
		TextCodeTokenInvalidSignature,
		TextCodeTokenExpired,
		TextCodeTokenNotYetValid,
		TextCodeTokenInvalidIssuer,
		TextCodeTokenInvalidAudience,
		TextCodeUnauthorized:
		return true
	}
	return false
}

// IsUnauthorizedError reports a missing or rejected credential.
func IsUnauthorizedError(err error) bool {
	return HasKind(err, TextCodeUnauthorized) || IsTokenError(err)
}
