package activitymap_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	auth "github.com/goliatone/go-booking-auth"
	"github.com/goliatone/go-booking-auth/activitymap"
)

func TestNormalizeLoginDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventLoginSuccess,
		Actor:     auth.ActorRef{ID: "user-100", Type: "user"},
		UserID:    "user-100",
		Metadata: map[string]any{
			"email": "a@b.com",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "user-100", out.ActorID)
	assert.Equal(t, string(auth.ActivityEventLoginSuccess), out.Verb)
	assert.Equal(t, activitymap.ObjectTypeUser, out.ObjectType)
	assert.Equal(t, "user-100", out.ObjectID)
	assert.Equal(t, "booking", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))
	assert.Equal(t, "a@b.com", out.Metadata["email"])
	assert.Equal(t, "user", out.Metadata[activitymap.MetadataKeyActorType])
	assert.Len(t, event.Metadata, 1, "source metadata must not change")
}

func TestNormalizeBookingCreated(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventBookingCreated,
		Actor:     auth.ActorRef{ID: "user-7", Type: "user"},
		UserID:    "user-7",
		Metadata: map[string]any{
			activitymap.MetadataKeyBookingID: "bk-1",
			"total_price":                    240.0,
		},
	})

	assert.Equal(t, activitymap.ObjectTypeBooking, out.ObjectType)
	assert.Equal(t, "bk-1", out.ObjectID)
	assert.Equal(t, "user-7", out.ActorID)
	assert.False(t, out.OccurredAt.IsZero())
}

func TestNormalizeSystemFallback(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventTokenRejected,
		Metadata:  map[string]any{"kind": "TOKEN_EXPIRED"},
	})

	assert.Equal(t, activitymap.SystemActor, out.ActorID)
	assert.Equal(t, activitymap.ObjectTypeUser, out.ObjectType)
	assert.Empty(t, out.ObjectID)
	assert.Equal(t, "TOKEN_EXPIRED", out.Metadata["kind"])
	assert.NotContains(t, out.Metadata, activitymap.MetadataKeyActorType)
}

func TestNormalizeBookingWithoutID(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventBookingCreated,
		UserID:    "user-3",
	})

	assert.Equal(t, activitymap.ObjectTypeBooking, out.ObjectType)
	assert.Empty(t, out.ObjectID)
	assert.Equal(t, "user-3", out.ActorID)
	assert.Nil(t, out.Metadata)
}
