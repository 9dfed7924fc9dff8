package activitymap

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"

	auth "github.com/goliatone/go-booking-auth"
)

const (
	// DefaultRedisKey is the list normalized events are pushed to.
	DefaultRedisKey = "booking:activity"
	// DefaultRedisMaxLen caps the list length.
	DefaultRedisMaxLen int64 = 10_000
)

// RedisSink appends normalized events to a capped redis list.
type RedisSink struct {
	client redis.UniversalClient
	key    string
	maxLen int64
}

var _ auth.ActivitySink = (*RedisSink)(nil)

// NewRedisSink returns a sink pushing to key, or DefaultRedisKey when empty.
func NewRedisSink(client redis.UniversalClient, key string) *RedisSink {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSink{
		client: client,
		key:    key,
		maxLen: DefaultRedisMaxLen,
	}
}

// WithMaxLen changes the list cap. Zero or less disables trimming.
func (s *RedisSink) WithMaxLen(n int64) *RedisSink {
	s.maxLen = n
	return s
}

// Key returns the list key.
func (s *RedisSink) Key() string {
	return s.key
}

// Record implements auth.ActivitySink.
func (s *RedisSink) Record(ctx context.Context, event auth.ActivityEvent) error {
	payload, err := json.Marshal(Normalize(event))
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode activity")
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key, payload)
	if s.maxLen > 0 {
		pipe.LTrim(ctx, s.key, -s.maxLen, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to push activity").
			WithMetadata(map[string]any{"key": s.key})
	}
	return nil
}
