package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/waste-classifier/internal/model"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreprocessor_Tensor(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}

	t.Run("NHWC interleaves channels", func(t *testing.T) {
		p := Preprocessor{Size: 8, Layout: model.LayoutNHWC}

		data, err := p.Tensor(solid(20, 10, red))

		require.NoError(t, err)
		require.Len(t, data, 3*8*8)
		assert.InDelta(t, 1.0, data[0], 0.01)
		assert.InDelta(t, 0.0, data[1], 0.01)
		assert.InDelta(t, 0.0, data[2], 0.01)
		assert.InDelta(t, 1.0, data[3], 0.01)
	})

	t.Run("NCHW writes planes", func(t *testing.T) {
		p := Preprocessor{Size: 8, Layout: model.LayoutNCHW}

		data, err := p.Tensor(solid(5, 5, red))

		require.NoError(t, err)
		assert.InDelta(t, 1.0, data[0], 0.01)
		assert.InDelta(t, 1.0, data[63], 0.01)
		assert.InDelta(t, 0.0, data[64], 0.01)
		assert.InDelta(t, 0.0, data[128], 0.01)
	})

	t.Run("values stay in unit range", func(t *testing.T) {
		p := Preprocessor{Size: 16, Layout: model.LayoutNHWC}
		img := image.NewRGBA(image.Rect(0, 0, 32, 32))
		for y := 0; y < 32; y++ {
			for x := 0; x < 32; x++ {
				img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 200, A: 255})
			}
		}

		data, err := p.Tensor(img)

		require.NoError(t, err)
		for _, v := range data {
			assert.GreaterOrEqual(t, v, float32(0))
			assert.LessOrEqual(t, v, float32(1))
		}
	})

	t.Run("drops alpha without blending", func(t *testing.T) {
		p := Preprocessor{Size: 4, Layout: model.LayoutNHWC}
		img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				img.SetNRGBA(x, y, color.NRGBA{G: 255, A: 128})
			}
		}

		data, err := p.Tensor(img)

		require.NoError(t, err)
		assert.InDelta(t, 1.0, data[1], 0.01)
	})

	t.Run("wrong destination size", func(t *testing.T) {
		p := Preprocessor{Size: 4, Layout: model.LayoutNHWC}

		err := p.Into(make([]float32, 10), solid(4, 4, red))

		assert.Error(t, err)
	})

	t.Run("unknown layout", func(t *testing.T) {
		p := Preprocessor{Size: 4, Layout: "HWC"}

		_, err := p.Tensor(solid(4, 4, red))

		assert.Error(t, err)
	})
}

func TestNewPreprocessor(t *testing.T) {
	p := NewPreprocessor(model.DefaultMetadata(model.DefaultClasses))

	assert.Equal(t, 224, p.Size)
	assert.Equal(t, model.LayoutNHWC, p.Layout)
	assert.Equal(t, 224*224*3, p.TensorSize())
}

func TestDecode(t *testing.T) {
	t.Run("png", func(t *testing.T) {
		img, format, err := Decode(bytes.NewReader(encodePNG(t, solid(3, 2, color.White))))

		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Equal(t, 3, img.Bounds().Dx())
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := Decode(strings.NewReader("definitely not an image"))

		assert.Error(t, err)
	})
}

func TestSpoolTemp(t *testing.T) {
	dir := t.TempDir()
	payload := encodePNG(t, solid(2, 2, color.Black))

	path, cleanup, err := SpoolTemp(bytes.NewReader(payload), dir)
	require.NoError(t, err)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, written)

	img, _, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())

	cleanup()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
