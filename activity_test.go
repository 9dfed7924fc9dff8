package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	auth "github.com/goliatone/go-booking-auth"
)

func TestActivitySinks(t *testing.T) {
	first, second := &captureSink{}, &captureSink{}
	boom := errors.New("boom")

	sink := auth.ActivitySinks(
		first,
		nil,
		auth.ActivitySinkFunc(func(context.Context, auth.ActivityEvent) error { return boom }),
		second,
	)

	err := sink.Record(context.Background(), auth.ActivityEvent{EventType: auth.ActivityEventRegister})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventRegister}, first.types())
	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventRegister}, second.types(), "later sinks still run")

	var nilFunc auth.ActivitySinkFunc
	assert.NoError(t, nilFunc.Record(context.Background(), auth.ActivityEvent{}))
}

func TestLoggerActivitySink(t *testing.T) {
	logger := &MockLogger{}
	logger.On("Info", "activity", []any{
		"event", "auth.register",
		"actor_type", "user",
		"user_id", "u1",
		"email", "a@b.com",
	}).Once()

	sink := auth.LoggerActivitySink{Logger: logger}
	err := sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventRegister,
		Actor:     auth.ActorRef{ID: "u1", Type: "user"},
		UserID:    "u1",
		Metadata:  map[string]any{"email": "a@b.com"},
	})
	assert.NoError(t, err)
	logger.AssertExpectations(t)
}

func TestSinkErrorsAreLoggedNotReturned(t *testing.T) {
	ctx := context.Background()
	provider := &MockIdentityProvider{}
	provider.On("VerifyIdentity", ctx, "a@b.com", "secret1").Return(alice, nil)

	logger := &MockLogger{}
	logger.On("Warn", "activity sink record error", mock.Anything).Once()

	a := auth.NewAuthenticatorWithTokenService(provider, newService(&clock{now: time.Now()})).
		WithLogger(logger).
		WithActivitySink(auth.ActivitySinkFunc(func(context.Context, auth.ActivityEvent) error {
			return errors.New("sink down")
		}))

	token, err := a.Login(ctx, "a@b.com", "secret1")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
	logger.AssertExpectations(t)
}
