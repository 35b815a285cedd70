package training

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Brownie44l1/waste-classifier/internal/dataset"
	"github.com/Brownie44l1/waste-classifier/internal/model"
)

// EpochResult summarizes one epoch. Checkpoint is empty when validation
// accuracy did not improve and nothing was saved.
type EpochResult struct {
	Epoch       int
	TrainLoss   float64
	Validation  Metrics
	Checkpoint  string
	Improved    bool
	Duration    time.Duration
	TrainedOn   int
	ValidatedOn int
}

// Result is what Fit leaves on disk and reports.
type Result struct {
	Epochs         []EpochResult
	BestCheckpoint string
	BestAccuracy   float64
	FinalModel     string
	Final          Metrics
}

// Trainer drives the fit loop. All computation happens inside Session and
// Evaluator; Trainer decides what to feed them and what to keep.
type Trainer struct {
	cfg        Config
	metadata   model.Metadata
	train      []dataset.Sample
	validation []dataset.Sample
	loader     dataset.Loader
	session    Session
	evaluator  Evaluator
	recorder   Recorder
	logger     *zap.Logger
	out        io.Writer
}

type Options struct {
	Recorder Recorder
	Logger   *zap.Logger
	// Out receives the human-readable summary; defaults to os.Stdout.
	Out io.Writer
}

func NewTrainer(cfg Config, metadata model.Metadata, train, validation []dataset.Sample,
	loader dataset.Loader, session Session, evaluator Evaluator, opts Options) *Trainer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Trainer{
		cfg:        cfg,
		metadata:   metadata,
		train:      train,
		validation: validation,
		loader:     loader,
		session:    session,
		evaluator:  evaluator,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
		out:        opts.Out,
	}
}

var ErrTooFewSamples = errors.New("training set is smaller than one batch")

// Fit trains for cfg.Epochs epochs. After every epoch the model is exported
// and scored on the validation set; it is kept under a checkpoint name only
// when its validation accuracy beats every earlier epoch. Once all epochs are
// done the final model is saved regardless and scored again.
func (t *Trainer) Fit(ctx context.Context) (*Result, error) {
	if len(t.validation) == 0 {
		return nil, errors.New("validation set is empty")
	}
	if err := os.MkdirAll(t.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &Result{BestAccuracy: math.Inf(-1)}
	rng := rand.New(rand.NewSource(t.cfg.Seed))

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		er, err := t.runEpoch(ctx, epoch, rng, result.BestAccuracy)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		if er.Improved {
			result.BestAccuracy = er.Validation.Accuracy
			result.BestCheckpoint = er.Checkpoint
		}
		result.Epochs = append(result.Epochs, *er)

		if t.recorder != nil {
			if err := t.recorder.RecordEpoch(ctx, *er); err != nil {
				t.logger.Warn("Failed to record epoch", zap.Int("epoch", epoch), zap.Error(err))
			}
		}
	}

	final := t.cfg.FinalModelPath()
	if err := t.save(final); err != nil {
		return nil, fmt.Errorf("failed to save final model: %w", err)
	}
	result.FinalModel = final
	fmt.Fprintf(t.out, "Final model saved to %s\n", final)

	metrics, err := t.evaluator.Evaluate(ctx, final, t.validation)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate final model: %w", err)
	}
	result.Final = metrics
	fmt.Fprintf(t.out, "Validation Loss: %.4f\n", metrics.Loss)
	fmt.Fprintf(t.out, "Validation Accuracy: %.4f\n", metrics.Accuracy)

	return result, nil
}

func (t *Trainer) runEpoch(ctx context.Context, epoch int, rng *rand.Rand, best float64) (*EpochResult, error) {
	start := time.Now()

	batches := dataset.Batches(t.train, t.session.BatchSize(), rng)
	if len(batches) == 0 {
		return nil, fmt.Errorf("%w: %d samples, batch size %d", ErrTooFewSamples, len(t.train), t.session.BatchSize())
	}

	var lossSum float64
	for i, samples := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := t.loader.Load(samples)
		if err != nil {
			return nil, fmt.Errorf("failed to load batch %d: %w", i+1, err)
		}
		loss, err := t.session.TrainStep(batch)
		if err != nil {
			return nil, fmt.Errorf("train step %d: %w", i+1, err)
		}
		lossSum += float64(loss)

		t.logger.Debug("Batch done",
			zap.Int("epoch", epoch),
			zap.Int("batch", i+1),
			zap.Int("batches", len(batches)),
			zap.Float32("loss", loss),
		)
	}

	candidate := filepath.Join(t.cfg.OutputDir, fmt.Sprintf(".epoch_%02d.onnx.tmp", epoch))
	if err := t.session.ExportModel(candidate); err != nil {
		return nil, fmt.Errorf("failed to export model: %w", err)
	}
	defer os.Remove(candidate)

	metrics, err := t.evaluator.Evaluate(ctx, candidate, t.validation)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate: %w", err)
	}

	er := &EpochResult{
		Epoch:       epoch,
		TrainLoss:   lossSum / float64(len(batches)),
		Validation:  metrics,
		TrainedOn:   len(batches) * t.session.BatchSize(),
		ValidatedOn: metrics.Samples,
	}

	if metrics.Accuracy > best {
		checkpoint := t.cfg.CheckpointPath(epoch, metrics.Accuracy)
		if err := os.Rename(candidate, checkpoint); err != nil {
			return nil, fmt.Errorf("failed to save checkpoint: %w", err)
		}
		if err := t.metadata.Save(checkpoint + ".json"); err != nil {
			return nil, err
		}
		er.Improved = true
		er.Checkpoint = checkpoint
		t.logger.Info("val_accuracy improved, saving model",
			zap.Int("epoch", epoch),
			zap.Float64("previous", best),
			zap.Float64("val_accuracy", metrics.Accuracy),
			zap.String("checkpoint", checkpoint),
		)
	} else {
		t.logger.Info("val_accuracy did not improve",
			zap.Int("epoch", epoch),
			zap.Float64("best", best),
			zap.Float64("val_accuracy", metrics.Accuracy),
		)
	}

	er.Duration = time.Since(start)
	t.logger.Info("Epoch finished",
		zap.Int("epoch", epoch),
		zap.Int("epochs", t.cfg.Epochs),
		zap.Float64("loss", er.TrainLoss),
		zap.Float64("val_loss", metrics.Loss),
		zap.Float64("val_accuracy", metrics.Accuracy),
		zap.Duration("duration", er.Duration),
	)
	return er, nil
}

// save exports the current model to path with its metadata beside it.
func (t *Trainer) save(path string) error {
	if err := t.session.ExportModel(path); err != nil {
		return err
	}
	return t.metadata.Save(path + ".json")
}
