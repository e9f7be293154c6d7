package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitLoggerLevelOverride(t *testing.T) {
	require.NoError(t, InitLogger("development", "warn"))

	core := GetLogger().Core()
	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.WarnLevel))
}

func TestInitLoggerDefaultLevels(t *testing.T) {
	require.NoError(t, InitLogger("development", ""))
	assert.True(t, GetLogger().Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, InitLogger("production", ""))
	assert.False(t, GetLogger().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, GetLogger().Core().Enabled(zapcore.InfoLevel))
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, InitLogger("development", "verbose"))
}
