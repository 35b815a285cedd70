package dataset

import (
	"fmt"

	"github.com/Brownie44l1/waste-classifier/internal/imaging"
)

// Loader decodes and preprocesses samples into contiguous batch buffers.
type Loader struct {
	Preprocessor imaging.Preprocessor
}

// Batch is a loaded batch: Images holds len(Labels) preprocessed images
// back to back.
type Batch struct {
	Images []float32
	Labels []int64
}

func (l Loader) Load(samples []Sample) (*Batch, error) {
	stride := l.Preprocessor.TensorSize()
	batch := &Batch{
		Images: make([]float32, stride*len(samples)),
		Labels: make([]int64, len(samples)),
	}

	for i, s := range samples {
		if err := l.LoadInto(batch.Images[i*stride:(i+1)*stride], s); err != nil {
			return nil, err
		}
		batch.Labels[i] = int64(s.Label)
	}
	return batch, nil
}

// LoadInto preprocesses one sample into dst.
func (l Loader) LoadInto(dst []float32, s Sample) error {
	img, _, err := imaging.DecodeFile(s.Path)
	if err != nil {
		return fmt.Errorf("%s: %w", s.Path, err)
	}
	if err := l.Preprocessor.Into(dst, img); err != nil {
		return fmt.Errorf("%s: %w", s.Path, err)
	}
	return nil
}
