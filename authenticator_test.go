package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-booking-auth"
)

func newAuther(provider auth.IdentityProvider, sink auth.ActivitySink) *auth.Auther {
	ts := newService(&clock{now: time.Now()})
	return auth.NewAuthenticatorWithTokenService(provider, ts).
		WithLogger(silentLogger()).
		WithActivitySink(sink)
}

func silentLogger() *MockLogger {
	logger := &MockLogger{}
	logger.On("Debug", mock.Anything, mock.Anything).Maybe()
	logger.On("Info", mock.Anything, mock.Anything).Maybe()
	logger.On("Warn", mock.Anything, mock.Anything).Maybe()
	logger.On("Error", mock.Anything, mock.Anything).Maybe()
	return logger
}

func TestAuther_LoginSuccess(t *testing.T) {
	ctx := context.Background()
	provider := &MockIdentityProvider{}
	provider.On("VerifyIdentity", ctx, "a@b.com", "secret1").Return(alice, nil)

	sink := &captureSink{}
	a := newAuther(provider, sink)

	token, err := a.Login(ctx, "a@b.com", "secret1")
	require.NoError(t, err)
	provider.AssertExpectations(t)

	claims, err := a.TokenService().Validate(token)
	require.NoError(t, err)
	assert.Equal(t, alice.id, claims.UserID())

	require.Equal(t, []auth.ActivityEventType{auth.ActivityEventLoginSuccess}, sink.types())
	event := sink.last()
	assert.Equal(t, alice.id, event.UserID)
	assert.Equal(t, auth.ActorRef{ID: alice.id, Type: "user"}, event.Actor)
	assert.Equal(t, "a@b.com", event.Metadata["email"])
	assert.False(t, event.OccurredAt.IsZero())
}

func TestAuther_LoginFailure(t *testing.T) {
	ctx := context.Background()
	provider := &MockIdentityProvider{}
	provider.On("VerifyIdentity", ctx, "a@b.com", "wrong").Return(nil, auth.ErrMismatchedHashAndPassword)
	provider.On("VerifyIdentity", ctx, "ghost@b.com", "secret1").Return(nil, nil)

	sink := &captureSink{}
	a := newAuther(provider, sink)

	token, err := a.Login(ctx, "a@b.com", "wrong")
	assert.Empty(t, token)
	assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	assert.Equal(t, auth.TextCodeMismatchedPassword, sink.last().Metadata["error"])

	_, err = a.Login(ctx, "ghost@b.com", "secret1")
	assert.ErrorIs(t, err, auth.ErrIdentityNotFound)

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventLoginFailure,
		auth.ActivityEventLoginFailure,
	}, sink.types())
}

func TestAuther_SessionFromToken(t *testing.T) {
	sink := &captureSink{}
	a := newAuther(&MockIdentityProvider{}, sink)

	token, err := a.TokenService().Generate(alice)
	require.NoError(t, err)

	session, err := a.SessionFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, alice.id, session.GetUserID())
	assert.Equal(t, "alice", session.GetName())
	assert.Equal(t, "a@b.com", session.GetEmail())
	assert.Equal(t, "customer", session.GetRole())
	assert.Equal(t, "booking-api", session.GetIssuer())
	require.NotNil(t, session.GetExpiresAt())
	require.NotNil(t, session.GetIssuedAt())
	assert.Equal(t, time.Hour, session.GetExpiresAt().Sub(*session.GetIssuedAt()))
	assert.Empty(t, sink.types())

	forged := token[:len(token)-1] + "A"
	if token[len(token)-1] == 'A' {
		forged = token[:len(token)-1] + "B"
	}
	_, err = a.SessionFromToken(forged)
	require.Error(t, err)
	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventTokenRejected}, sink.types())
	assert.Equal(t, auth.TextCodeTokenInvalidSignature, sink.last().Metadata["kind"])
}

func TestAuther_CustomValidator(t *testing.T) {
	a := newAuther(&MockIdentityProvider{}, nil).
		WithTokenValidator(auth.TokenValidatorFunc(func(string) (auth.AuthClaims, error) {
			return &auth.JWTClaims{UID: "custom"}, nil
		}))

	session, err := a.SessionFromToken("anything")
	require.NoError(t, err)
	assert.Equal(t, "custom", session.GetUserID())
}

func TestAuther_IdentityFromSession(t *testing.T) {
	ctx := context.Background()
	provider := &MockIdentityProvider{}
	provider.On("FindIdentityByIdentifier", ctx, alice.id).Return(alice, nil)
	provider.On("FindIdentityByIdentifier", ctx, "gone").Return(nil, auth.ErrIdentityNotFound)

	a := newAuther(provider, nil)

	identity, err := a.IdentityFromSession(ctx, &auth.SessionObject{UserID: alice.id})
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", identity.Email())

	_, err = a.IdentityFromSession(ctx, &auth.SessionObject{UserID: "gone"})
	assert.ErrorIs(t, err, auth.ErrIdentityNotFound)

	_, err = a.IdentityFromSession(ctx, nil)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	provider.AssertExpectations(t)
}

func TestAuther_RecordRegistration(t *testing.T) {
	sink := &captureSink{}
	a := newAuther(&MockIdentityProvider{}, sink)

	a.RecordRegistration(context.Background(), nil)
	assert.Empty(t, sink.types())

	user := &auth.User{Name: "alice"}
	a.RecordRegistration(context.Background(), user)
	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventRegister}, sink.types())
}

func TestNewAuthenticatorFromConfig(t *testing.T) {
	a := auth.NewAuthenticator(&MockIdentityProvider{}, staticConfig{key: testKey, ttl: time.Minute, issuer: "booking-api"})
	assert.Same(t, a.TokenService(), a.Validator())
}
