package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default configuration", func(t *testing.T) {
		cfg, err := Load()

		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "release", cfg.Server.Mode)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
		assert.NotEmpty(t, cfg.Server.TempDir)

		assert.Equal(t, "models/waste_classified_epoch_10_val_accuracy_0.94.onnx", cfg.Model.Path)
		assert.Equal(t, cfg.Model.Path+".json", cfg.Model.MetadataPath)
		assert.Equal(t, "", cfg.Model.LibraryPath)

		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "json", cfg.Log.Format)
	})

	t.Run("reads from environment variables", func(t *testing.T) {
		t.Setenv("CLASSIFIER_SERVER_PORT", "9090")
		t.Setenv("CLASSIFIER_MODEL_PATH", "/srv/model.onnx")
		t.Setenv("CLASSIFIER_MODEL_LIBRARY_PATH", "/usr/lib/libonnxruntime.so")
		t.Setenv("CLASSIFIER_LOG_LEVEL", "debug")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "/srv/model.onnx", cfg.Model.Path)
		assert.Equal(t, "/srv/model.onnx.json", cfg.Model.MetadataPath)
		assert.Equal(t, "/usr/lib/libonnxruntime.so", cfg.Model.LibraryPath)
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("explicit metadata path wins", func(t *testing.T) {
		t.Setenv("CLASSIFIER_MODEL_METADATA_PATH", "/srv/labels.json")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, "/srv/labels.json", cfg.Model.MetadataPath)
	})
}
