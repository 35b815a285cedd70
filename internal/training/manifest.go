package training

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
)

// Artifact file names inside Config.ArtifactsDir.
const (
	CheckpointFile     = "checkpoint"
	TrainingModelFile  = "training_model.onnx"
	EvalModelFile      = "eval_model.onnx"
	OptimizerModelFile = "optimizer_model.onnx"
	ManifestFile       = "manifest.json"
)

// Layer is one backbone or head layer and the parameters it owns.
type Layer struct {
	Name   string   `json:"name"`
	Params []string `json:"params"`
}

// Manifest describes the training artifacts: the backbone with its top
// removed, the pooling and dense head stacked on it, and which parameters
// the artifacts let the optimizer update.
type Manifest struct {
	Backbone     string  `json:"backbone"`
	InputName    string  `json:"input_name"`
	LabelName    string  `json:"label_name"`
	OutputName   string  `json:"output_name"`
	Layout       string  `json:"layout"`
	ImageSize    int     `json:"image_size"`
	NumClasses   int     `json:"num_classes"`
	HiddenUnits  int     `json:"hidden_units"`
	LearningRate float64 `json:"learning_rate"`
	Loss         string  `json:"loss"`

	BackboneLayers  []Layer  `json:"backbone_layers"`
	HeadLayers      []Layer  `json:"head_layers"`
	TrainableParams []string `json:"trainable_params"`
}

const SparseCategoricalCrossentropy = "sparse_categorical_crossentropy"

func LoadManifest(artifactsDir string) (*Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(artifactsDir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// FinetunePlan returns the parameters that should train: everything owned
// by the last n backbone layers plus the whole head. The result is sorted.
func FinetunePlan(backbone, head []Layer, n int) []string {
	if n > len(backbone) {
		n = len(backbone)
	}
	if n < 0 {
		n = 0
	}

	var params []string
	for _, layer := range backbone[len(backbone)-n:] {
		params = append(params, layer.Params...)
	}
	for _, layer := range head {
		params = append(params, layer.Params...)
	}
	sort.Strings(params)
	return params
}

// Check verifies the artifacts were generated for this run: same class
// count, head width, loss, learning rate and frozen layers. Optimizer state
// lives in the artifacts, so a mismatch here cannot be fixed at runtime.
func (m *Manifest) Check(cfg Config, numClasses int) error {
	var errs []error

	if m.NumClasses != numClasses {
		errs = append(errs, fmt.Errorf("artifacts built for %d classes, dataset has %d", m.NumClasses, numClasses))
	}
	if m.ImageSize != cfg.ImageSize {
		errs = append(errs, fmt.Errorf("artifacts expect %dpx images, config has %d", m.ImageSize, cfg.ImageSize))
	}
	if m.HiddenUnits != cfg.HiddenUnits {
		errs = append(errs, fmt.Errorf("artifacts have a %d-unit hidden layer, config has %d", m.HiddenUnits, cfg.HiddenUnits))
	}
	if m.Loss != SparseCategoricalCrossentropy {
		errs = append(errs, fmt.Errorf("artifacts use loss %q, want %q", m.Loss, SparseCategoricalCrossentropy))
	}
	if math.Abs(m.LearningRate-cfg.LearningRate) > 1e-12 {
		errs = append(errs, fmt.Errorf("artifacts use learning rate %g, config has %g", m.LearningRate, cfg.LearningRate))
	}
	if m.InputName == "" || m.LabelName == "" || m.OutputName == "" {
		errs = append(errs, errors.New("manifest must name the input, label and output tensors"))
	}

	want := FinetunePlan(m.BackboneLayers, m.HeadLayers, cfg.TrainableLayers)
	got := append([]string(nil), m.TrainableParams...)
	sort.Strings(got)
	if !slices.Equal(want, got) {
		errs = append(errs, fmt.Errorf("artifacts train %d parameters, fine-tuning the last %d backbone layers needs %d",
			len(got), cfg.TrainableLayers, len(want)))
	}

	return errors.Join(errs...)
}
