// Package media provides the CPU side of frame sourcing: tightly packed
// RGBA pixel buffers, still image decoding with format auto-detection,
// and a minimal raw video container. Source node handlers decode into a
// Buffer and hand its pixels to the upload stager.
package media

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Buffer errors.
var (
	// ErrInvalidSize is returned when buffer dimensions are not positive.
	ErrInvalidSize = errors.New("media: invalid buffer size")
)

// bytesPerPixel is the size of one RGBA8 pixel.
const bytesPerPixel = 4

// Buffer is a CPU-side pixel buffer in tightly packed, non-premultiplied
// RGBA8 layout (stride = width * 4).
type Buffer struct {
	Width  int
	Height int
	Pix    []byte
}

// NewBuffer allocates a zeroed buffer of the given dimensions.
func NewBuffer(width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*bytesPerPixel),
	}, nil
}

// SizeBytes returns the expected length of Pix.
func (b *Buffer) SizeBytes() int {
	return b.Width * b.Height * bytesPerPixel
}

// FromImage converts any image.Image into an RGBA8 Buffer.
func FromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	// NRGBA with a tight stride shares its Pix slice with the Buffer.
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	return &Buffer{Width: w, Height: h, Pix: dst.Pix}
}

// ToImage wraps the buffer as a standard library image without copying.
// Mutating the returned image mutates the buffer.
func (b *Buffer) ToImage() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.Width * bytesPerPixel,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	pix := make([]byte, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{Width: b.Width, Height: b.Height, Pix: pix}
}
