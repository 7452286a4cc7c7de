package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestInitialize(t *testing.T) {
	require.NoError(t, Initialize(false, "debug"))
	assert.False(t, JSONOutput)
	assert.NotNil(t, Logger)

	require.NoError(t, Initialize(true, "info"))
	assert.True(t, JSONOutput)
	Logger.Infow("initialized", "json", true)
}
