package training

import (
	"context"

	"github.com/Brownie44l1/waste-classifier/internal/dataset"
)

// Session is a live training session over fixed-size batches.
type Session interface {
	BatchSize() int
	// TrainStep runs forward, backward and one optimizer update on the
	// batch and returns its loss.
	TrainStep(batch *dataset.Batch) (float32, error)
	// ExportModel writes the current weights as a standalone inference
	// model.
	ExportModel(path string) error
	Close() error
}

// Evaluator scores an exported model on held-out samples.
type Evaluator interface {
	Evaluate(ctx context.Context, modelPath string, samples []dataset.Sample) (Metrics, error)
}

// Recorder receives one record per finished epoch.
type Recorder interface {
	RecordEpoch(ctx context.Context, epoch EpochResult) error
}
