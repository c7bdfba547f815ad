package identity_test

import (
	"context"
	"testing"

	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerWritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := identity.NewZapLogger(zap.New(core))

	logger.Info("user created", "user_id", "42", "email", "a@example.com")
	logger.Warn("sink failed", "error", "boom")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "user created", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "42", entries[0].ContextMap()["user_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestZapLoggerNilIsNop(t *testing.T) {
	logger := identity.NewZapLogger(nil)
	assert.NotPanics(t, func() { logger.Error("ignored", "k", "v") })
}

func TestNewZap(t *testing.T) {
	dev, err := identity.NewZap("", true)
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))

	prod, err := identity.NewZap("warn", false)
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, prod.Core().Enabled(zapcore.WarnLevel))
}

func TestActivityFlattening(t *testing.T) {
	sink := identity.NewLoggerActivitySink(nopLogger{}, "")
	assert.NoError(t, sink.Record(context.Background(), identity.ActivityEvent{EventType: identity.ActivityEventLoginSuccess}))

	flat := identity.FlattenActivity(identity.ActivityEvent{
		EventType:  identity.ActivityEventUserStatusChanged,
		Actor:      identity.ActorRef{ID: "admin-1", Type: "admin"},
		UserID:     "user-1",
		FromStatus: identity.UserStatusActive,
		ToStatus:   identity.UserStatusSuspended,
		Metadata:   map[string]any{"reason": "fraud"},
	})

	assert.Equal(t, "admin-1", flat.ActorID)
	assert.Equal(t, "user.status.changed", flat.Verb)
	assert.Equal(t, "user-1", flat.ObjectID)
	assert.Equal(t, "active", flat.Metadata["from_status"])
	assert.Equal(t, "suspended", flat.Metadata["to_status"])
	assert.Equal(t, "admin", flat.Metadata["actor_type"])
	assert.Equal(t, "fraud", flat.Metadata["reason"])

	system := identity.FlattenActivity(identity.ActivityEvent{EventType: identity.ActivityEventLoginFailure})
	assert.Equal(t, "system", system.ActorID)
	assert.Nil(t, system.Metadata)
}
