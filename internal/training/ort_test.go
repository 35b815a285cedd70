package training

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/waste-classifier/internal/dataset"
	"github.com/Brownie44l1/waste-classifier/internal/imaging"
	"github.com/Brownie44l1/waste-classifier/internal/model"
)

// These tests need a training-enabled onnxruntime shared library:
//
//	CLASSIFIER_MODEL_LIBRARY_PATH=/opt/onnxruntime/lib/libonnxruntime.so
//	CLASSIFIER_TRAINING_ARTIFACTS=./artifacts   (optional, enables the fit test)
func initTrainingRuntime(t *testing.T) {
	t.Helper()
	lib := os.Getenv("CLASSIFIER_MODEL_LIBRARY_PATH")
	if lib == "" {
		t.Skip("CLASSIFIER_MODEL_LIBRARY_PATH not set")
	}
	require.NoError(t, model.InitRuntime(lib))
}

func TestNewOrtSession_RuntimeNotInitialized(t *testing.T) {
	if ort.IsInitialized() {
		t.Skip("runtime already initialized by another test")
	}

	_, err := NewOrtSession(t.TempDir(), &Manifest{ImageSize: 4}, 2, 0)

	assert.Error(t, err)
}

func TestOrtRuntime_TrainingSupported(t *testing.T) {
	initTrainingRuntime(t)

	assert.True(t, ort.IsTrainingSupported(), "onnxruntime_go binding or shared library lacks the training API")
}

func TestOrtSession_Fit(t *testing.T) {
	initTrainingRuntime(t)
	artifacts := os.Getenv("CLASSIFIER_TRAINING_ARTIFACTS")
	if artifacts == "" {
		t.Skip("CLASSIFIER_TRAINING_ARTIFACTS not set")
	}

	manifest, err := LoadManifest(artifacts)
	require.NoError(t, err)

	classes := make([]string, manifest.NumClasses)
	for i := range classes {
		classes[i] = fmt.Sprintf("class_%02d", i)
	}
	ds, err := dataset.Scan(writeDataset(t, classes, 2))
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.ImageSize = manifest.ImageSize
	cfg.BatchSize = 2
	cfg.Epochs = 1
	cfg.ValidationSplit = 0.5
	cfg.OutputDir = t.TempDir()

	train, val, err := dataset.Split(ds.Samples, cfg.ValidationSplit, cfg.Seed)
	require.NoError(t, err)

	meta := model.NewMetadata(ds.Classes, manifest.ImageSize, manifest.Layout, manifest.InputName, manifest.OutputName)
	loader := dataset.Loader{Preprocessor: imaging.NewPreprocessor(meta)}

	session, err := NewOrtSession(artifacts, manifest, cfg.BatchSize, 1)
	require.NoError(t, err)
	defer session.Close()

	batch, err := loader.Load(train[:cfg.BatchSize])
	require.NoError(t, err)
	loss, err := session.TrainStep(batch)
	require.NoError(t, err)
	assert.Greater(t, loss, float32(0))

	var out bytes.Buffer
	evaluator := &OrtEvaluator{Metadata: meta, Loader: loader, IntraOpThreads: 1}
	result, err := NewTrainer(cfg, meta, train, val, loader, session, evaluator, Options{Out: &out}).Fit(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, result.FinalModel)
	assert.FileExists(t, result.BestCheckpoint)
	assert.Equal(t, len(val), result.Final.Samples)
	assert.Contains(t, out.String(), "Validation Accuracy:")
}
