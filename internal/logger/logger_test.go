package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Brownie44l1/waste-classifier/internal/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{"json info", config.LogConfig{Level: "info", Format: "json"}, zapcore.InfoLevel, zapcore.DebugLevel},
		{"console debug", config.LogConfig{Level: "debug", Format: "console"}, zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"invalid level falls back to info", config.LogConfig{Level: "loud", Format: "json"}, zapcore.InfoLevel, zapcore.DebugLevel},
		{"error only", config.LogConfig{Level: "error", Format: "json"}, zapcore.ErrorLevel, zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := NewLogger(&tt.cfg, "classifier-api")

			assert.NoError(t, err)
			assert.NotNil(t, log)
			assert.True(t, log.Core().Enabled(tt.enabled))
			assert.False(t, log.Core().Enabled(tt.muted))
		})
	}
}

func TestNewLogger_JSONCarriesService(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&config.LogConfig{Level: "info", Format: "json"}, "classifier-train", zapcore.AddSync(&buf))

	log.Info("Epoch finished")
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "classifier-train", entry["service"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Epoch finished", entry["message"])
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&config.LogConfig{Level: "info", Format: "console"}, "classifier-train", zapcore.AddSync(&buf))

	log.Info("Dataset loaded")
	require.NoError(t, log.Sync())

	assert.Contains(t, buf.String(), "INFO")
	assert.Contains(t, buf.String(), "Dataset loaded")
	assert.NotContains(t, buf.String(), "classifier-train")
}
