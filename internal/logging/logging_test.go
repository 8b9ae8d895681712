package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
	}{
		{"trace", TraceLevel},
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := LevelFromString(tt.input)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}

	level, err := LevelFromString("loud")
	assert.Error(t, err)
	assert.Equal(t, zapcore.InfoLevel, level)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, NewDefaultConfig().Validate())
	assert.ErrorContains(t, Config{Level: "info", Format: "xml"}.Validate(), "format must be")
	assert.ErrorContains(t, Config{Level: "loud", Format: "json"}.Validate(), "invalid level")

	_, err := New(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(Config{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Debug("handle released", zap.Uint64("handle", 7))
	logger.Log(TraceLevel, "filtered")
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "handle released", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, float64(7), entry["handle"])
	assert.Contains(t, entry, "ts")
}

func TestTraceLevelEnabled(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(Config{Level: "trace", Format: "console"}, &buf)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(TraceLevel))

	logger, err = NewWithWriter(Config{Level: "debug", Format: "console"}, &buf)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(TraceLevel))
}
