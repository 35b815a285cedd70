package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/nfnt/resize"

	"github.com/Brownie44l1/waste-classifier/internal/model"
)

// Preprocessor turns a decoded image into the float tensor the model was
// trained on: RGB, Size x Size, bilinear resize, every channel divided by 255.
type Preprocessor struct {
	Size   int
	Layout string
}

func NewPreprocessor(meta model.Metadata) Preprocessor {
	return Preprocessor{Size: meta.ImageSize, Layout: meta.Layout}
}

// TensorSize is the number of values Tensor writes for one image.
func (p Preprocessor) TensorSize() int {
	return 3 * p.Size * p.Size
}

func (p Preprocessor) Tensor(img image.Image) ([]float32, error) {
	dst := make([]float32, p.TensorSize())
	if err := p.Into(dst, img); err != nil {
		return nil, err
	}
	return dst, nil
}

// Into writes the preprocessed image into dst, which must hold exactly
// TensorSize values. Training uses it to fill one slot of a batch.
func (p Preprocessor) Into(dst []float32, img image.Image) error {
	if p.Size <= 0 {
		return fmt.Errorf("invalid target size %d", p.Size)
	}
	if len(dst) != p.TensorSize() {
		return fmt.Errorf("destination holds %d values, need %d", len(dst), p.TensorSize())
	}
	if img.Bounds().Empty() {
		return fmt.Errorf("image has no pixels")
	}

	size := uint(p.Size)
	resized := resize.Resize(size, size, opaque(img), resize.Bilinear)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width != p.Size || height != p.Size {
		return fmt.Errorf("resized to %dx%d, expected %dx%d", width, height, p.Size, p.Size)
	}
	plane := width * height

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBAModel.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			r := float32(c.R) / 255.0
			g := float32(c.G) / 255.0
			b := float32(c.B) / 255.0

			pixelIndex := y*width + x
			switch p.Layout {
			case model.LayoutNCHW:
				dst[pixelIndex] = r
				dst[plane+pixelIndex] = g
				dst[2*plane+pixelIndex] = b
			case model.LayoutNHWC, "":
				dst[3*pixelIndex] = r
				dst[3*pixelIndex+1] = g
				dst[3*pixelIndex+2] = b
			default:
				return fmt.Errorf("unknown layout %q", p.Layout)
			}
		}
	}
	return nil
}

// opaque drops alpha the way an RGB conversion does: colour channels are
// kept as stored, not blended against a background.
func opaque(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			c.A = 0xff
			out.SetNRGBA(x-bounds.Min.X, y-bounds.Min.Y, c)
		}
	}
	return out
}
