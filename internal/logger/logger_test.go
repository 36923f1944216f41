package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewIsUsableBeforeInit(t *testing.T) {
	l := New()
	require.NotNil(t, l.Log)
	l.Log.Info("no-op logger must not panic")
}

func TestInitSetsLevel(t *testing.T) {
	l := New()
	require.NoError(t, l.Init("debug"))
	assert.True(t, l.Log.Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, l.Init("error"))
	assert.False(t, l.Log.Core().Enabled(zapcore.InfoLevel))
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	l := New()
	require.NoError(t, l.Init("loud"))
	assert.True(t, l.Log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Log.Core().Enabled(zapcore.DebugLevel))
}
