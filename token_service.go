package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultTokenTTL is used when neither configuration nor environment provide an expiry.
const DefaultTokenTTL = 60 * time.Minute

// TokenService issues and validates the bearer tokens handed out at login.
type TokenService interface {
	TokenValidator
	Generate(identity Identity) (string, error)
	GenerateWithOptions(identity Identity, opts IssueOptions) (string, time.Time, error)
	SignClaims(claims *JWTClaims) (string, error)
}

// TokenOptions configures a TokenServiceImpl.
type TokenOptions struct {
	SigningKey []byte
	// TTL is the token lifetime. Zero uses DefaultTokenTTL.
	TTL time.Duration
	// ExpiryPadding is added on top of TTL. It exists for deployments that
	// relied on the historical two hour padding and should stay zero.
	ExpiryPadding    time.Duration
	Issuer           string
	Audience         []string
	ValidateIssuer   bool
	ValidateAudience bool
	// Now overrides the clock, used by tests.
	Now func() time.Time
}

// IssueOptions overrides per-token values.
type IssueOptions struct {
	// TTL overrides the default token expiration. Zero uses TokenService defaults.
	TTL time.Duration
	// IssuedAt overrides the issuance time. Zero uses the service clock.
	IssuedAt time.Time
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey    []byte
	ttl           time.Duration
	expiryPadding time.Duration
	issuer        string
	audience      jwt.ClaimStrings
	now           func() time.Time
	validator     *HMACValidator
	logger        Logger
}

var _ TokenService = (*TokenServiceImpl)(nil)

// NewTokenService creates a new TokenService instance
func NewTokenService(opts TokenOptions, logger Logger) *TokenServiceImpl {
	logger = normalizeLogger(logger)

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	if opts.ExpiryPadding > 0 {
		logger.Warn("token expiry padding is enabled, tokens outlive the configured TTL",
			"ttl", ttl.String(), "padding", opts.ExpiryPadding.String())
	}

	var aud jwt.ClaimStrings
	if len(opts.Audience) > 0 {
		aud = append(jwt.ClaimStrings(nil), opts.Audience...)
	}

	return &TokenServiceImpl{
		signingKey:    opts.SigningKey,
		ttl:           ttl,
		expiryPadding: opts.ExpiryPadding,
		issuer:        opts.Issuer,
		audience:      aud,
		now:           now,
		logger:        logger,
		validator: NewHMACValidator(ValidatorOptions{
			SigningKey:       opts.SigningKey,
			Issuer:           opts.Issuer,
			Audience:         opts.Audience,
			ValidateIssuer:   opts.ValidateIssuer,
			ValidateAudience: opts.ValidateAudience,
			Now:              now,
		}, logger),
	}
}

// TokenServiceFromConfig builds a TokenService from the resolved configuration.
func TokenServiceFromConfig(cfg Config, logger Logger) *TokenServiceImpl {
	return NewTokenService(TokenOptions{
		SigningKey:       []byte(cfg.GetSigningKey()),
		TTL:              cfg.GetTokenExpiration(),
		ExpiryPadding:    cfg.GetExpiryPadding(),
		Issuer:           cfg.GetIssuer(),
		Audience:         cfg.GetAudience(),
		ValidateIssuer:   cfg.GetValidateIssuer(),
		ValidateAudience: cfg.GetValidateAudience(),
	}, logger)
}

// Generate creates a signed token for an already authenticated identity.
func (ts *TokenServiceImpl) Generate(identity Identity) (string, error) {
	token, _, err := ts.GenerateWithOptions(identity, IssueOptions{})
	return token, err
}

// GenerateWithOptions mints a token and returns its expiration.
func (ts *TokenServiceImpl) GenerateWithOptions(identity Identity, opts IssueOptions) (string, time.Time, error) {
	if identity == nil || identity.ID() == "" {
		return "", time.Time{}, ErrInvalidIdentity
	}

	ttl := opts.TTL
	if ttl < 0 {
		return "", time.Time{}, errors.New("token TTL must be non-negative", errors.CategoryBadInput)
	}
	if ttl == 0 {
		ttl = ts.ttl
	}

	issuedAt := opts.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = ts.now()
	}
	// NumericDate is second precision, truncate so exp-iat stays exactly the TTL.
	issuedAt = issuedAt.Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl + ts.expiryPadding)

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = append(jwt.ClaimStrings(nil), ts.audience...)
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:       identity.ID(),
		UserName:  identity.Name(),
		UserEmail: identity.Email(),
		UserRole:  identity.Role(),
	}

	token, err := ts.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	if claims.Subject() == "" {
		return "", ErrInvalidIdentity
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		ts.logger.Error("failed to sign token", "error", err)
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	return ts.validator.Validate(tokenString)
}

// TTL reports the configured lifetime without padding.
func (ts *TokenServiceImpl) TTL() time.Duration {
	return ts.ttl
}
