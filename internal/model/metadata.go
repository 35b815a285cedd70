package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var ErrMetadataNotFound = errors.New("metadata not found")

// DefaultMetadata describes a single-image NHWC softmax classifier over the
// given classes.
func DefaultMetadata(classes []string) Metadata {
	return NewMetadata(classes, DefaultImageSize, LayoutNHWC, "input", "output")
}

// NewMetadata builds metadata for a batch-of-one RGB classifier.
func NewMetadata(classes []string, imageSize int, layout, inputName, outputName string) Metadata {
	size := int64(imageSize)
	inputShape := []int64{1, size, size, 3}
	if layout == LayoutNCHW {
		inputShape = []int64{1, 3, size, size}
	}
	return Metadata{
		InputName:   inputName,
		OutputName:  outputName,
		InputShape:  inputShape,
		OutputShape: []int64{1, int64(len(classes))},
		Layout:      layout,
		Classes:     append([]string(nil), classes...),
		ImageSize:   imageSize,
	}
}

// LoadMetadata reads the metadata file written next to a model artifact.
// A missing file yields ErrMetadataNotFound so callers can fall back to
// DefaultMetadata.
func LoadMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Metadata{}, fmt.Errorf("%w: %s", ErrMetadataNotFound, path)
		}
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	metadata.fillDefaults()

	if err := metadata.Validate(); err != nil {
		return Metadata{}, err
	}
	return metadata, nil
}

// Save writes the metadata as indented JSON.
func (m Metadata) Save(path string) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

func (m *Metadata) fillDefaults() {
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if m.Layout == "" {
		m.Layout = LayoutNHWC
	}
	if m.ImageSize == 0 && len(m.InputShape) == 4 {
		if m.Layout == LayoutNCHW {
			m.ImageSize = int(m.InputShape[2])
		} else {
			m.ImageSize = int(m.InputShape[1])
		}
	}
}

// Validate checks that the shapes, layout and class list agree with each
// other. The class order itself cannot be verified, only its length.
func (m Metadata) Validate() error {
	if len(m.Classes) == 0 {
		return errors.New("metadata has no classes")
	}
	seen := make(map[string]struct{}, len(m.Classes))
	for _, c := range m.Classes {
		if c == "" {
			return errors.New("metadata contains an empty class name")
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("metadata contains duplicate class %q", c)
		}
		seen[c] = struct{}{}
	}

	if len(m.OutputShape) == 0 {
		return errors.New("metadata has no output shape")
	}
	if last := m.OutputShape[len(m.OutputShape)-1]; last != int64(len(m.Classes)) {
		return fmt.Errorf("output shape %v does not match %d classes", m.OutputShape, len(m.Classes))
	}

	if len(m.InputShape) != 4 {
		return fmt.Errorf("input shape %v must have 4 dimensions", m.InputShape)
	}
	size := int64(m.ImageSize)
	switch m.Layout {
	case LayoutNHWC:
		if m.InputShape[1] != size || m.InputShape[2] != size || m.InputShape[3] != 3 {
			return fmt.Errorf("input shape %v does not match %s %dx%dx3", m.InputShape, m.Layout, size, size)
		}
	case LayoutNCHW:
		if m.InputShape[1] != 3 || m.InputShape[2] != size || m.InputShape[3] != size {
			return fmt.Errorf("input shape %v does not match %s 3x%dx%d", m.InputShape, m.Layout, size, size)
		}
	default:
		return fmt.Errorf("unknown layout %q", m.Layout)
	}
	return nil
}

// InputSize is the number of float32 values in one input tensor.
func (m Metadata) InputSize() int {
	return shapeSize(m.InputShape)
}

func (m Metadata) OutputSize() int {
	return shapeSize(m.OutputShape)
}

func shapeSize(shape []int64) int {
	if len(shape) == 0 {
		return 0
	}
	size := 1
	for _, dim := range shape {
		size *= int(dim)
	}
	return size
}
