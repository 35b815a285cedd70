package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/Brownie44l1/waste-classifier/internal/imaging"
	"github.com/Brownie44l1/waste-classifier/internal/model"
)

var (
	ErrNoFile    = errors.New("no file uploaded")
	ErrNotImage  = errors.New("uploaded file is not an image")
	ErrInputSize = errors.New("input has the wrong number of values")
)

// Predictor runs one forward pass and returns the squeezed output vector.
// *model.Server satisfies it.
type Predictor interface {
	Predict(input []float32) ([]float32, error)
}

// Service is the request-scoped classification context: the loaded model,
// its metadata and the preprocessing that matches it.
type Service struct {
	predictor    Predictor
	metadata     model.Metadata
	preprocessor imaging.Preprocessor
	tempDir      string
	logger       *zap.Logger
}

func NewService(predictor Predictor, metadata model.Metadata, tempDir string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		predictor:    predictor,
		metadata:     metadata,
		preprocessor: imaging.NewPreprocessor(metadata),
		tempDir:      tempDir,
		logger:       logger,
	}
}

func (s *Service) Metadata() model.Metadata {
	return s.metadata
}

// IsImageContentType reports whether a declared upload type names an image.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

// ClassifyUpload spools the upload to a temp file, decodes and preprocesses
// it and returns one prediction per class, highest confidence first. The
// temp file is removed before returning.
func (s *Service) ClassifyUpload(ctx context.Context, upload io.Reader) ([]model.Prediction, error) {
	path, cleanup, err := imaging.SpoolTemp(upload, s.tempDir)
	defer cleanup()
	if err != nil {
		return nil, err
	}

	img, format, err := imaging.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Decoded upload",
		zap.String("format", format),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
	)

	input, err := s.preprocessor.Tensor(img)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess image: %w", err)
	}

	return s.ClassifyTensor(ctx, input)
}

// ClassifyTensor runs an already preprocessed input through the model.
func (s *Service) ClassifyTensor(ctx context.Context, input []float32) ([]model.Prediction, error) {
	if expected := s.metadata.InputSize(); len(input) != expected {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInputSize, expected, len(input))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores, err := s.predictor.Predict(input)
	if err != nil {
		return nil, err
	}

	return model.Rank(scores, s.metadata.Classes)
}
