package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitializeFallsBackToInfo(t *testing.T) {
	require.NoError(t, Initialize("not-a-level"))
	assert.True(t, Log.Core().Enabled(zap.InfoLevel))
	assert.False(t, Log.Core().Enabled(zap.DebugLevel))
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	scoped := zap.New(core).With(zap.String("psid", "123"))

	ctx := WithLogger(context.Background(), scoped)
	FromContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "123", logs.All()[0].ContextMap()["psid"])

	assert.Same(t, Log, FromContext(context.Background()))
	//nolint:staticcheck
	assert.Same(t, Log, FromContext(nil))
}
