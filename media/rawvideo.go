package media

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Raw video container errors.
var (
	// ErrBadMagic is returned when a file is not a raw video container.
	ErrBadMagic = errors.New("media: not a raw video file")

	// ErrFrameOutOfRange is returned for frame indices past the end of
	// the stream.
	ErrFrameOutOfRange = errors.New("media: frame out of range")

	// ErrTruncated is returned when frame data is shorter than the
	// header promises.
	ErrTruncated = errors.New("media: truncated video frame")
)

// rawMagic identifies the raw video container format.
var rawMagic = [4]byte{'F', 'G', 'R', 'V'}

// rawHeaderSize is magic + width + height + fps + frame count.
const rawHeaderSize = 4 + 4*4

// RawVideo reads frames from an uncompressed RGBA8 video container.
// The format is a fixed header (magic, width, height, frames per
// second, frame count, all little-endian uint32) followed by the frames
// back to back, each width*height*4 bytes.
type RawVideo struct {
	r          io.ReaderAt
	closer     io.Closer
	width      int
	height     int
	fps        uint32
	frameCount uint32
}

// OpenRawVideo opens a raw video file.
func OpenRawVideo(path string) (*RawVideo, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("media: open video: %w", err)
	}
	v, err := NewRawVideo(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	v.closer = f
	return v, nil
}

// NewRawVideo reads the container header from r and prepares frame
// access. The reader must remain valid for the life of the RawVideo.
func NewRawVideo(r io.ReaderAt) (*RawVideo, error) {
	var hdr [rawHeaderSize]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, fmt.Errorf("media: read video header: %w", err)
	}
	if [4]byte(hdr[:4]) != rawMagic {
		return nil, ErrBadMagic
	}

	width := binary.LittleEndian.Uint32(hdr[4:])
	height := binary.LittleEndian.Uint32(hdr[8:])
	fps := binary.LittleEndian.Uint32(hdr[12:])
	count := binary.LittleEndian.Uint32(hdr[16:])
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if fps == 0 {
		fps = 30
	}

	return &RawVideo{
		r:          r,
		width:      int(width),
		height:     int(height),
		fps:        fps,
		frameCount: count,
	}, nil
}

// Width returns the frame width in pixels.
func (v *RawVideo) Width() int { return v.width }

// Height returns the frame height in pixels.
func (v *RawVideo) Height() int { return v.height }

// FPS returns the nominal frame rate.
func (v *RawVideo) FPS() uint32 { return v.fps }

// FrameCount returns the number of frames in the container.
func (v *RawVideo) FrameCount() int { return int(v.frameCount) }

// Duration returns the stream length in seconds.
func (v *RawVideo) Duration() float64 {
	return float64(v.frameCount) / float64(v.fps)
}

// Frame reads frame i into a fresh buffer.
func (v *RawVideo) Frame(i int) (*Buffer, error) {
	if i < 0 || i >= int(v.frameCount) {
		return nil, fmt.Errorf("%w: frame %d of %d", ErrFrameOutOfRange, i, v.frameCount)
	}

	buf, err := NewBuffer(v.width, v.height)
	if err != nil {
		return nil, err
	}
	off := int64(rawHeaderSize) + int64(i)*int64(buf.SizeBytes())
	n, err := v.r.ReadAt(buf.Pix, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("media: read frame %d: %w", i, err)
	}
	if n < buf.SizeBytes() {
		return nil, fmt.Errorf("%w: frame %d has %d of %d bytes", ErrTruncated, i, n, buf.SizeBytes())
	}
	return buf, nil
}

// FrameIndexAt maps a time in seconds to a frame index. Times past the
// end are out of range; callers decide whether that ends playback.
func (v *RawVideo) FrameIndexAt(seconds float64) (int, error) {
	if seconds < 0 {
		return 0, fmt.Errorf("%w: negative time %f", ErrFrameOutOfRange, seconds)
	}
	i := int(seconds * float64(v.fps))
	if i >= int(v.frameCount) {
		return 0, fmt.Errorf("%w: time %.3fs maps to frame %d of %d", ErrFrameOutOfRange, seconds, i, v.frameCount)
	}
	return i, nil
}

// FrameAt reads the frame covering the given time in seconds.
func (v *RawVideo) FrameAt(seconds float64) (*Buffer, error) {
	i, err := v.FrameIndexAt(seconds)
	if err != nil {
		return nil, err
	}
	return v.Frame(i)
}

// Close releases the underlying file, if the video owns one.
func (v *RawVideo) Close() error {
	if v.closer == nil {
		return nil
	}
	return v.closer.Close()
}

// RawVideoWriter writes a raw video container frame by frame. The frame
// count is fixed up in Close, so the destination must support seeking.
type RawVideoWriter struct {
	w      io.WriteSeeker
	width  int
	height int
	fps    uint32
	frames uint32
}

// NewRawVideoWriter writes the container header and returns a writer
// for appending frames.
func NewRawVideoWriter(w io.WriteSeeker, width, height int, fps uint32) (*RawVideoWriter, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if fps == 0 {
		fps = 30
	}
	vw := &RawVideoWriter{w: w, width: width, height: height, fps: fps}
	if err := vw.writeHeader(); err != nil {
		return nil, err
	}
	return vw, nil
}

func (vw *RawVideoWriter) writeHeader() error {
	var hdr [rawHeaderSize]byte
	copy(hdr[:4], rawMagic[:])
	binary.LittleEndian.PutUint32(hdr[4:], uint32(vw.width))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(vw.height))
	binary.LittleEndian.PutUint32(hdr[12:], vw.fps)
	binary.LittleEndian.PutUint32(hdr[16:], vw.frames)
	if _, err := vw.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("media: write video header: %w", err)
	}
	return nil
}

// WriteFrame appends one frame. The buffer dimensions must match the
// container.
func (vw *RawVideoWriter) WriteFrame(b *Buffer) error {
	if b.Width != vw.width || b.Height != vw.height {
		return fmt.Errorf("%w: frame %dx%d in %dx%d video",
			ErrInvalidSize, b.Width, b.Height, vw.width, vw.height)
	}
	if _, err := vw.w.Write(b.Pix); err != nil {
		return fmt.Errorf("media: write frame: %w", err)
	}
	vw.frames++
	return nil
}

// Close rewrites the header with the final frame count.
func (vw *RawVideoWriter) Close() error {
	if _, err := vw.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("media: seek header: %w", err)
	}
	return vw.writeHeader()
}
