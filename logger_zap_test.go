package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	auth "github.com/goliatone/go-booking-auth"
)

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := auth.NewZapLogger(zap.New(core)).Named("auth")

	logger.Debug("debug", "k", 1)
	logger.Info("info", "user_id", "u1")
	logger.Warn("warn")
	logger.Error("error", "error", "boom")

	entries := logs.All()
	assert.Len(t, entries, 4)
	assert.Equal(t, "auth", entries[1].LoggerName)
	assert.Equal(t, "u1", entries[1].ContextMap()["user_id"])
	assert.Equal(t, zap.ErrorLevel, entries[3].Level)

	assert.NotPanics(t, func() { auth.NewZapLogger(nil).Info("dropped") })
}
