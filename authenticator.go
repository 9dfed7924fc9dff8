package auth

import (
	"context"
	"time"
)

// Auther verifies credentials, issues tokens and turns tokens back into sessions.
type Auther struct {
	provider       IdentityProvider
	logger         Logger
	tokenService   TokenService
	tokenValidator TokenValidator
	activitySink   ActivitySink
	now            func() time.Time
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	logger := defLogger{}
	return &Auther{
		provider:     provider,
		logger:       logger,
		tokenService: TokenServiceFromConfig(opts, logger),
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

// NewAuthenticatorWithTokenService uses an already configured TokenService.
func NewAuthenticatorWithTokenService(provider IdentityProvider, tokens TokenService) *Auther {
	return &Auther{
		provider:     provider,
		logger:       defLogger{},
		tokenService: tokens,
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenValidator sets a custom validator used by SessionFromToken.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Validator returns the validator used for incoming tokens.
func (s *Auther) Validator() TokenValidator {
	if s.tokenValidator != nil {
		return s.tokenValidator
	}
	return s.tokenService
}

// Login verifies the credentials and returns a freshly minted token.
func (s *Auther) Login(ctx context.Context, email, password string) (string, error) {
	identity, err := s.provider.VerifyIdentity(ctx, email, password)
	if err != nil {
		s.logger.Warn("login verify identity failed", "error", err)
		s.emit(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"email": email,
			"error": ErrorKind(err),
		})
		return "", err
	}

	if identity == nil || identity.ID() == "" {
		s.logger.Error("login identity is nil or has no id")
		s.emit(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"email": email,
			"error": TextCodeIdentityNotFound,
		})
		return "", ErrIdentityNotFound
	}

	token, err := s.tokenService.Generate(identity)
	if err != nil {
		s.logger.Error("login token generation failed", "error", err)
		s.emit(ctx, ActivityEventLoginFailure, actorFromIdentity(identity), identity.ID(), map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return "", err
	}

	s.emit(ctx, ActivityEventLoginSuccess, actorFromIdentity(identity), identity.ID(), map[string]any{
		"email": email,
	})

	return token, nil
}

// IdentityFromSession loads the identity a session refers to.
func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	if session == nil {
		return nil, ErrUnauthorized
	}

	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.GetUserID())
	if err != nil {
		s.logger.Error("identity from session lookup failed", "user_id", session.GetUserID(), "error", err)
		return nil, err
	}

	return identity, nil
}

// SessionFromToken validates raw and converts its claims into a Session.
func (s *Auther) SessionFromToken(raw string) (Session, error) {
	claims, err := s.Validator().Validate(raw)
	if err != nil {
		s.RecordTokenRejected(context.Background(), err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("session from token failed to map claims", "error", err)
		return nil, err
	}

	return session, nil
}

// RecordRegistration emits the registration activity event.
func (s *Auther) RecordRegistration(ctx context.Context, user *User) {
	if user == nil {
		return
	}
	s.emit(ctx, ActivityEventRegister, ActorRef{ID: user.ID.String(), Type: "user"}, user.ID.String(), nil)
}

// RecordTokenRejected logs and emits a rejected token event. Only the error
// kind is recorded.
func (s *Auther) RecordTokenRejected(ctx context.Context, err error) {
	kind := ErrorKind(err)
	if kind == "" {
		kind = TextCodeUnauthorized
	}
	s.logger.Debug("token rejected", "kind", kind)
	s.emit(ctx, ActivityEventTokenRejected, ActorRef{Type: "unknown"}, "", map[string]any{
		"kind": kind,
	})
}

func (s *Auther) emit(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	recordActivity(ctx, s.activitySink, s.logger, s.now, ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	})
}

func actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   identity.ID(),
		Type: "user",
	}
}
