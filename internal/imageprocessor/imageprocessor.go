// Package imageprocessor turns an image reference into the fixed-size pixel
// buffer the classification model consumes.
package imageprocessor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// InputSize is the square edge length the model expects.
const InputSize = 224

// MaxPixels bounds the declared width×height of an image accepted for decoding.
const MaxPixels = 50_000_000

var (
	// ErrEmptyImage is returned when a source yields no bytes.
	ErrEmptyImage = errors.New("image is empty")
	// ErrImageTooLarge is returned when the image header declares more than
	// MaxPixels pixels.
	ErrImageTooLarge = errors.New("image dimensions too large")
)

// Source is an opaque reference to raster image data.
type Source interface {
	Open() (io.ReadCloser, error)
	String() string
}

type fileSource string

// FileSource references an image on the local filesystem.
func FileSource(path string) Source { return fileSource(path) }

func (f fileSource) Open() (io.ReadCloser, error) { return os.Open(string(f)) }
func (f fileSource) String() string               { return string(f) }

type bytesSource struct {
	name string
	data []byte
}

// BytesSource references an image already held in memory, such as an upload.
func BytesSource(name string, data []byte) Source {
	return &bytesSource{name: name, data: data}
}

func (b *bytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (b *bytesSource) String() string { return b.name }

// Decode reads and decodes the image behind src. The header is checked
// against MaxPixels before any pixel data is decoded.
func Decode(src Source) (image.Image, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s (%s): %w", src, Sniff(data), err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("decode %s: %dx%d: %w", src, cfg.Width, cfg.Height, ErrImageTooLarge)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s (%s): %w", src, Sniff(data), err)
	}
	if b := img.Bounds(); b.Empty() {
		return nil, fmt.Errorf("decode %s (%s): %w", src, format, ErrEmptyImage)
	}
	return img, nil
}

// Resize scales img to w×h with nearest-neighbor sampling. Aspect ratio is not
// preserved.
func Resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Preprocess decodes src and resizes it to the model input shape.
func Preprocess(src Source) (*image.RGBA, error) {
	img, err := Decode(src)
	if err != nil {
		return nil, err
	}
	return Resize(img, InputSize, InputSize), nil
}

// Sniff reports the MIME type detected from the leading bytes of data.
func Sniff(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsImage reports whether data looks like a raster image.
func IsImage(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("image/png") || m.Is("image/jpeg") || m.Is("image/gif") ||
			m.Is("image/bmp") || m.Is("image/tiff") || m.Is("image/webp") {
			return true
		}
	}
	return false
}
