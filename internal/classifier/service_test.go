package classifier

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/waste-classifier/internal/model"
)

// MockPredictor is a mock implementation of Predictor
type MockPredictor struct {
	mock.Mock
}

func (m *MockPredictor) Predict(input []float32) ([]float32, error) {
	args := m.Called(input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func cardboardScores() []float32 {
	scores := make([]float32, len(model.DefaultClasses))
	for i := range scores {
		scores[i] = 0.02
	}
	scores[3] = 0.78
	return scores
}

func pngUpload(t *testing.T, size int) *bytes.Reader {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{R: 160, G: 120, B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return bytes.NewReader(buf.Bytes())
}

func emptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files left behind")
}

func TestService_ClassifyUpload(t *testing.T) {
	meta := model.DefaultMetadata(model.DefaultClasses)

	t.Run("returns every class sorted by confidence", func(t *testing.T) {
		tmp := t.TempDir()
		predictor := new(MockPredictor)
		predictor.On("Predict", mock.MatchedBy(func(in []float32) bool {
			return len(in) == meta.InputSize()
		})).Return(cardboardScores(), nil)
		svc := NewService(predictor, meta, tmp, nil)

		predictions, err := svc.ClassifyUpload(context.Background(), pngUpload(t, 224))

		require.NoError(t, err)
		require.Len(t, predictions, 12)
		assert.Equal(t, "cardboard", predictions[0].Label)
		for i := 1; i < len(predictions); i++ {
			assert.GreaterOrEqual(t, predictions[i-1].Confidence, predictions[i].Confidence)
		}
		for _, p := range predictions {
			assert.GreaterOrEqual(t, p.Confidence, float32(0))
			assert.LessOrEqual(t, p.Confidence, float32(1))
		}
		predictor.AssertExpectations(t)
		emptyDir(t, tmp)
	})

	t.Run("scales pixels into unit range", func(t *testing.T) {
		predictor := new(MockPredictor)
		var seen []float32
		predictor.On("Predict", mock.Anything).Run(func(args mock.Arguments) {
			seen = args.Get(0).([]float32)
		}).Return(cardboardScores(), nil)
		svc := NewService(predictor, meta, t.TempDir(), nil)

		_, err := svc.ClassifyUpload(context.Background(), pngUpload(t, 50))

		require.NoError(t, err)
		require.Len(t, seen, 224*224*3)
		assert.InDelta(t, 160.0/255.0, seen[0], 0.01)
		assert.InDelta(t, 120.0/255.0, seen[1], 0.01)
		assert.InDelta(t, 80.0/255.0, seen[2], 0.01)
	})

	t.Run("corrupt image fails and cleans up", func(t *testing.T) {
		tmp := t.TempDir()
		predictor := new(MockPredictor)
		svc := NewService(predictor, meta, tmp, nil)

		_, err := svc.ClassifyUpload(context.Background(), strings.NewReader("not a png"))

		require.Error(t, err)
		assert.NotEmpty(t, err.Error())
		predictor.AssertNotCalled(t, "Predict", mock.Anything)
		emptyDir(t, tmp)
	})

	t.Run("predictor failure is returned", func(t *testing.T) {
		tmp := t.TempDir()
		predictor := new(MockPredictor)
		predictor.On("Predict", mock.Anything).Return(nil, errors.New("inference failed: boom"))
		svc := NewService(predictor, meta, tmp, nil)

		_, err := svc.ClassifyUpload(context.Background(), pngUpload(t, 32))

		assert.EqualError(t, err, "inference failed: boom")
		emptyDir(t, tmp)
	})

	t.Run("output shape mismatch", func(t *testing.T) {
		predictor := new(MockPredictor)
		predictor.On("Predict", mock.Anything).Return([]float32{0.5, 0.5}, nil)
		svc := NewService(predictor, meta, t.TempDir(), nil)

		_, err := svc.ClassifyUpload(context.Background(), pngUpload(t, 32))

		assert.Error(t, err)
	})

	t.Run("missing temp dir", func(t *testing.T) {
		svc := NewService(new(MockPredictor), meta, "/nonexistent/dir/for/uploads", nil)

		_, err := svc.ClassifyUpload(context.Background(), pngUpload(t, 8))

		assert.Error(t, err)
	})
}

func TestService_ClassifyTensor(t *testing.T) {
	meta := model.DefaultMetadata(model.DefaultClasses)

	t.Run("wrong input size", func(t *testing.T) {
		svc := NewService(new(MockPredictor), meta, t.TempDir(), nil)

		_, err := svc.ClassifyTensor(context.Background(), make([]float32, 10))

		assert.True(t, errors.Is(err, ErrInputSize))
	})

	t.Run("cancelled context skips inference", func(t *testing.T) {
		predictor := new(MockPredictor)
		svc := NewService(predictor, meta, t.TempDir(), nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := svc.ClassifyTensor(ctx, make([]float32, meta.InputSize()))

		assert.ErrorIs(t, err, context.Canceled)
		predictor.AssertNotCalled(t, "Predict", mock.Anything)
	})
}

func TestIsImageContentType(t *testing.T) {
	assert.True(t, IsImageContentType("image/png"))
	assert.True(t, IsImageContentType("image/jpeg"))
	assert.False(t, IsImageContentType("text/plain"))
	assert.False(t, IsImageContentType(""))
	assert.False(t, IsImageContentType("application/image"))
}
