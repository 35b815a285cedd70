package training

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/waste-classifier/internal/dataset"
	"github.com/Brownie44l1/waste-classifier/internal/model"
)

// OrtSession trains through the ONNX Runtime training API. Backward pass,
// Adam update and the frozen/trainable split are all baked into the
// artifacts; this type only moves batches in and the loss out.
type OrtSession struct {
	session    *ort.TrainingSession
	images     *ort.Tensor[float32]
	labels     *ort.Tensor[int64]
	loss       *ort.Scalar[float32]
	batchSize  int
	outputName string
}

// ErrTrainingUnsupported means the onnxruntime shared library in use has
// no training API; the stock release builds ship without it.
var ErrTrainingUnsupported = errors.New("onnxruntime training API unavailable, use a training-enabled onnxruntime build")

func NewOrtSession(artifactsDir string, manifest *Manifest, batchSize int, threads int) (*OrtSession, error) {
	if !ort.IsInitialized() {
		return nil, errors.New("onnxruntime environment is not initialized")
	}
	if !ort.IsTrainingSupported() {
		return nil, ErrTrainingUnsupported
	}

	size := int64(manifest.ImageSize)
	batch := int64(batchSize)
	imageShape := ort.NewShape(batch, size, size, 3)
	if manifest.Layout == model.LayoutNCHW {
		imageShape = ort.NewShape(batch, 3, size, size)
	}

	images, err := ort.NewEmptyTensor[float32](imageShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create image tensor: %w", err)
	}
	labels, err := ort.NewEmptyTensor[int64](ort.NewShape(batch))
	if err != nil {
		images.Destroy()
		return nil, fmt.Errorf("failed to create label tensor: %w", err)
	}
	loss, err := ort.NewEmptyScalar[float32]()
	if err != nil {
		images.Destroy()
		labels.Destroy()
		return nil, fmt.Errorf("failed to create loss scalar: %w", err)
	}

	var options *ort.SessionOptions
	if threads > 0 {
		options, err = ort.NewSessionOptions()
		if err == nil {
			defer options.Destroy()
			err = options.SetIntraOpNumThreads(threads)
		}
		if err != nil {
			images.Destroy()
			labels.Destroy()
			loss.Destroy()
			return nil, fmt.Errorf("failed to configure session: %w", err)
		}
	}

	session, err := ort.NewTrainingSession(
		filepath.Join(artifactsDir, CheckpointFile),
		filepath.Join(artifactsDir, TrainingModelFile),
		filepath.Join(artifactsDir, EvalModelFile),
		filepath.Join(artifactsDir, OptimizerModelFile),
		[]ort.Value{images, labels}, []ort.Value{loss},
		options)
	if err != nil {
		images.Destroy()
		labels.Destroy()
		loss.Destroy()
		return nil, fmt.Errorf("failed to create training session: %w", err)
	}

	return &OrtSession{
		session:    session,
		images:     images,
		labels:     labels,
		loss:       loss,
		batchSize:  batchSize,
		outputName: manifest.OutputName,
	}, nil
}

func (s *OrtSession) BatchSize() int {
	return s.batchSize
}

func (s *OrtSession) TrainStep(batch *dataset.Batch) (float32, error) {
	images := s.images.GetData()
	labels := s.labels.GetData()
	if len(batch.Images) != len(images) || len(batch.Labels) != len(labels) {
		return 0, fmt.Errorf("batch holds %d values and %d labels, session expects %d and %d",
			len(batch.Images), len(batch.Labels), len(images), len(labels))
	}
	copy(images, batch.Images)
	copy(labels, batch.Labels)

	if err := s.session.TrainStep(); err != nil {
		return 0, fmt.Errorf("train step failed: %w", err)
	}
	if err := s.session.OptimizerStep(); err != nil {
		return 0, fmt.Errorf("optimizer step failed: %w", err)
	}
	if err := s.session.LazyResetGrad(); err != nil {
		return 0, fmt.Errorf("failed to reset gradients: %w", err)
	}

	return s.loss.GetData(), nil
}

func (s *OrtSession) ExportModel(path string) error {
	if err := s.session.ExportModel(path, []string{s.outputName}); err != nil {
		return fmt.Errorf("failed to export model: %w", err)
	}
	return nil
}

func (s *OrtSession) Close() error {
	var errs []error
	if s.session != nil {
		errs = append(errs, s.session.Destroy())
	}
	if s.images != nil {
		errs = append(errs, s.images.Destroy())
	}
	if s.labels != nil {
		errs = append(errs, s.labels.Destroy())
	}
	if s.loss != nil {
		errs = append(errs, s.loss.Destroy())
	}
	return errors.Join(errs...)
}

// OrtEvaluator loads an exported model into a model.Server, the same
// runtime path the inference service uses, and scores it one image at a
// time.
type OrtEvaluator struct {
	Metadata       model.Metadata
	Loader         dataset.Loader
	IntraOpThreads int
}

func (e *OrtEvaluator) Evaluate(ctx context.Context, modelPath string, samples []dataset.Sample) (Metrics, error) {
	server, err := model.NewServer(modelPath, e.Metadata, model.ServerOptions{IntraOpThreads: e.IntraOpThreads})
	if err != nil {
		return Metrics{}, err
	}
	defer server.Close()

	return score(ctx, server, e.Loader, samples)
}

type predictor interface {
	Predict(input []float32) ([]float32, error)
}

func score(ctx context.Context, p predictor, loader dataset.Loader, samples []dataset.Sample) (Metrics, error) {
	input := make([]float32, loader.Preprocessor.TensorSize())
	var tally Tally
	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			return Metrics{}, err
		}
		if err := loader.LoadInto(input, s); err != nil {
			return Metrics{}, err
		}
		probabilities, err := p.Predict(input)
		if err != nil {
			return Metrics{}, fmt.Errorf("%s: %w", s.Path, err)
		}
		if err := tally.Add(probabilities, s.Label); err != nil {
			return Metrics{}, fmt.Errorf("%s: %w", s.Path, err)
		}
	}
	return tally.Metrics(), nil
}
