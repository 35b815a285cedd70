package training

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Brownie44l1/waste-classifier/internal/config"
	"github.com/Brownie44l1/waste-classifier/internal/model"
)

// Config holds every knob of a training run. DefaultConfig reproduces the
// reference run; a YAML file only needs the keys it changes.
type Config struct {
	DatasetDir      string  `yaml:"dataset_dir"`
	ArtifactsDir    string  `yaml:"artifacts_dir"`
	OutputDir       string  `yaml:"output_dir"`
	ImageSize       int     `yaml:"image_size"`
	BatchSize       int     `yaml:"batch_size"`
	Epochs          int     `yaml:"epochs"`
	LearningRate    float64 `yaml:"learning_rate"`
	ValidationSplit float64 `yaml:"validation_split"`
	Seed            int64   `yaml:"seed"`
	TrainableLayers int     `yaml:"trainable_layers"`
	HiddenUnits     int     `yaml:"hidden_units"`

	// CheckpointPattern is formatted with the 1-based epoch and the
	// validation accuracy.
	CheckpointPattern string `yaml:"checkpoint_pattern"`
	FinalModel        string `yaml:"final_model"`

	LibraryPath    string `yaml:"library_path"`
	IntraOpThreads int    `yaml:"intra_op_threads"`

	History HistoryConfig    `yaml:"history"`
	Log     config.LogConfig `yaml:"log"`
}

// HistoryConfig selects where epoch records go. An empty DSN disables it.
type HistoryConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

func DefaultConfig() Config {
	return Config{
		DatasetDir:        "./garbage_classification",
		ArtifactsDir:      "./artifacts",
		OutputDir:         ".",
		ImageSize:         model.DefaultImageSize,
		BatchSize:         32,
		Epochs:            10,
		LearningRate:      1e-4,
		ValidationSplit:   0.2,
		Seed:              123,
		TrainableLayers:   20,
		HiddenUnits:       128,
		CheckpointPattern: "waste_classified_epoch_%02d_val_accuracy_%.2f.onnx",
		FinalModel:        "waste_classified_best.onnx",
		History: HistoryConfig{
			Driver: "sqlite3",
			DSN:    "training_history.db",
		},
		Log: config.LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig overlays the YAML file at path on DefaultConfig. An empty path
// returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read training config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse training config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.DatasetDir == "" {
		errs = append(errs, errors.New("dataset_dir is required"))
	}
	if c.ArtifactsDir == "" {
		errs = append(errs, errors.New("artifacts_dir is required"))
	}
	if c.ImageSize <= 0 {
		errs = append(errs, fmt.Errorf("image_size must be positive, got %d", c.ImageSize))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", c.BatchSize))
	}
	if c.Epochs <= 0 {
		errs = append(errs, fmt.Errorf("epochs must be positive, got %d", c.Epochs))
	}
	if c.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("learning_rate must be positive, got %v", c.LearningRate))
	}
	if c.ValidationSplit <= 0 || c.ValidationSplit >= 1 {
		errs = append(errs, fmt.Errorf("validation_split must be in (0, 1), got %v", c.ValidationSplit))
	}
	if c.TrainableLayers < 0 {
		errs = append(errs, fmt.Errorf("trainable_layers cannot be negative, got %d", c.TrainableLayers))
	}
	if c.CheckpointPattern == "" || c.FinalModel == "" {
		errs = append(errs, errors.New("checkpoint_pattern and final_model are required"))
	}
	return errors.Join(errs...)
}

// CheckpointPath is where the best-so-far model of an epoch is written.
func (c Config) CheckpointPath(epoch int, valAccuracy float64) string {
	return filepath.Join(c.OutputDir, fmt.Sprintf(c.CheckpointPattern, epoch, valAccuracy))
}

func (c Config) FinalModelPath() string {
	return filepath.Join(c.OutputDir, c.FinalModel)
}
