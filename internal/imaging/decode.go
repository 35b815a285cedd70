package imaging

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Decode reads an image in any registered format (JPEG, PNG, GIF, BMP, WebP).
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

func DecodeFile(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// SpoolTemp copies r into a new temp file under dir and returns its path with
// a cleanup func that closes and removes it. Callers defer cleanup right
// away, whatever happens afterwards.
func SpoolTemp(r io.Reader, dir string) (string, func(), error) {
	f, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to create temp file: %w", err)
	}

	cleanup := func() {
		f.Close()
		os.Remove(f.Name())
	}

	if _, err := io.Copy(f, r); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("failed to flush temp file: %w", err)
	}

	return f.Name(), cleanup, nil
}
