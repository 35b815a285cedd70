package main

import (
	"context"
	"strings"

	"github.com/Brownie44l1/waste-classifier/internal/history"
	"github.com/Brownie44l1/waste-classifier/internal/training"
)

// historyRecorder stores the epochs of one run.
type historyRecorder struct {
	store *history.Store
	runID int64
}

func startRun(ctx context.Context, store *history.Store, cfg training.Config, classes []string) (*historyRecorder, error) {
	id, err := store.StartRun(ctx, history.Run{
		DatasetDir:   cfg.DatasetDir,
		Classes:      strings.Join(classes, ","),
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		LearningRate: cfg.LearningRate,
		Seed:         cfg.Seed,
	})
	if err != nil {
		return nil, err
	}
	return &historyRecorder{store: store, runID: id}, nil
}

func (r *historyRecorder) RecordEpoch(ctx context.Context, e training.EpochResult) error {
	return r.store.RecordEpoch(ctx, history.Epoch{
		RunID:       r.runID,
		Epoch:       e.Epoch,
		TrainLoss:   e.TrainLoss,
		ValLoss:     e.Validation.Loss,
		ValAccuracy: e.Validation.Accuracy,
		Checkpoint:  e.Checkpoint,
		DurationMS:  e.Duration.Milliseconds(),
	})
}

func (r *historyRecorder) finish(ctx context.Context, result *training.Result) error {
	return r.store.FinishRun(ctx, r.runID, result.FinalModel, result.Final.Loss, result.Final.Accuracy)
}
