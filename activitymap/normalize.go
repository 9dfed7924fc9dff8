package activitymap

import (
	"fmt"
	"maps"
	"strings"
	"time"

	auth "github.com/goliatone/go-booking-auth"
)

const (
	// MetadataKeyActorType carries auth.ActorRef.Type when the event has one.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyBookingID is the metadata key booking events carry their id under.
	MetadataKeyBookingID = "booking_id"
)

const (
	ObjectTypeUser    = "user"
	ObjectTypeBooking = "booking"
)

const (
	// Channel tags every record pushed by this package.
	Channel = "booking"
	// SystemActor stands in for events raised before a user is known.
	SystemActor = "system"
)

// Normalized is the record shape pushed to downstream consumers.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Normalize flattens a booking activity event. booking.* verbs point at the
// booking id from metadata, everything else points at the user.
func Normalize(event auth.ActivityEvent) Normalized {
	out := Normalized{
		ActorID:    actorOf(event),
		Verb:       string(event.EventType),
		ObjectType: ObjectTypeUser,
		ObjectID:   strings.TrimSpace(event.UserID),
		Channel:    Channel,
		Metadata:   metadataOf(event),
		OccurredAt: event.OccurredAt,
	}

	if strings.HasPrefix(out.Verb, ObjectTypeBooking+".") {
		out.ObjectType = ObjectTypeBooking
		out.ObjectID = ""
		if id, ok := event.Metadata[MetadataKeyBookingID]; ok && id != nil {
			out.ObjectID = strings.TrimSpace(fmt.Sprint(id))
		}
	}

	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now().UTC()
	}
	return out
}

func actorOf(event auth.ActivityEvent) string {
	if id := strings.TrimSpace(event.Actor.ID); id != "" {
		return id
	}
	if id := strings.TrimSpace(event.UserID); id != "" {
		return id
	}
	return SystemActor
}

// metadataOf copies the event metadata so the caller's map is never mutated.
func metadataOf(event auth.ActivityEvent) map[string]any {
	actorType := strings.TrimSpace(event.Actor.Type)
	if len(event.Metadata) == 0 && actorType == "" {
		return nil
	}

	md := make(map[string]any, len(event.Metadata)+1)
	maps.Copy(md, event.Metadata)
	if _, set := md[MetadataKeyActorType]; !set && actorType != "" {
		md[MetadataKeyActorType] = actorType
	}
	return md
}
