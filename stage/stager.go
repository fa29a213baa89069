// Package stage moves CPU pixel data onto the GPU. A Stager owns a pool
// of upload textures keyed by dimensions and format, records writes via
// the queue, and exposes a synchronization point that guarantees every
// staged upload is visible to subsequent GPU work.
package stage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Stager errors.
var (
	// ErrSizeMismatch is returned when pixel data does not match the
	// declared dimensions.
	ErrSizeMismatch = errors.New("stage: data size mismatch")

	// ErrClosed is returned when staging through a closed Stager.
	ErrClosed = errors.New("stage: stager closed")

	// ErrSyncTimeout is returned when the GPU does not signal the
	// upload fence in time.
	ErrSyncTimeout = errors.New("stage: sync timed out")
)

// UploadError wraps a failure to move pixel data onto the GPU.
type UploadError struct {
	Width  int
	Height int
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("stage: upload %dx%d: %v", e.Width, e.Height, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// bytesPerPixel covers the 32-bit formats the stager accepts.
const bytesPerPixel = 4

// defaults for Config zero values.
const (
	defaultFenceTimeout    = 5 * time.Second
	defaultMaxPooledPerKey = 8
)

// Texture is an upload target produced by Stage. The caller owns it
// until Release or Destroy.
type Texture struct {
	Tex    hal.Texture
	View   hal.TextureView
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
}

type poolKey struct {
	width  uint32
	height uint32
	format gputypes.TextureFormat
}

// Config controls Stager behavior. Zero values select defaults.
type Config struct {
	// FenceTimeout bounds how long Sync waits for the GPU.
	FenceTimeout time.Duration

	// MaxPooledPerKey caps how many released textures are retained per
	// (width, height, format); excess textures are destroyed.
	MaxPooledPerKey int

	// Logger receives debug diagnostics. Nil disables logging.
	Logger *slog.Logger
}

// Stager batches CPU to GPU texture uploads.
type Stager struct {
	device hal.Device
	queue  hal.Queue
	cfg    Config
	log    *slog.Logger

	mu      sync.Mutex
	pool    map[poolKey][]*Texture
	dirty   bool
	pending int
	closed  bool
}

// New creates a Stager for the given device and queue.
func New(device hal.Device, queue hal.Queue, cfg Config) *Stager {
	if cfg.FenceTimeout <= 0 {
		cfg.FenceTimeout = defaultFenceTimeout
	}
	if cfg.MaxPooledPerKey <= 0 {
		cfg.MaxPooledPerKey = defaultMaxPooledPerKey
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Stager{
		device: device,
		queue:  queue,
		cfg:    cfg,
		log:    log,
		pool:   map[poolKey][]*Texture{},
	}
}

// SetLogger replaces the stager's logger. Pass nil to disable logging.
func (s *Stager) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	s.mu.Lock()
	s.log = l
	s.mu.Unlock()
}

// Stage uploads tightly packed pixel data into a pooled or freshly
// created texture. The returned texture is usable for sampling only
// after Sync.
func (s *Stager) Stage(data []byte, width, height int, format gputypes.TextureFormat) (*Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, &UploadError{Width: width, Height: height,
			Err: fmt.Errorf("%w: non-positive dimensions", ErrSizeMismatch)}
	}
	expected := width * height * bytesPerPixel
	if len(data) != expected {
		return nil, &UploadError{Width: width, Height: height,
			Err: fmt.Errorf("%w: expected %d bytes, got %d", ErrSizeMismatch, expected, len(data))}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, &UploadError{Width: width, Height: height, Err: ErrClosed}
	}
	tex := s.acquireLocked(poolKey{uint32(width), uint32(height), format})
	s.mu.Unlock()

	if tex == nil {
		var err error
		tex, err = s.createTexture(uint32(width), uint32(height), format)
		if err != nil {
			return nil, &UploadError{Width: width, Height: height, Err: err}
		}
	}

	s.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  tex.Tex,
			MipLevel: 0,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  tex.Width * bytesPerPixel,
			RowsPerImage: tex.Height,
		},
		&hal.Extent3D{Width: tex.Width, Height: tex.Height, DepthOrArrayLayers: 1},
	)

	s.mu.Lock()
	s.dirty = true
	s.pending++
	pending := s.pending
	s.mu.Unlock()

	s.log.Debug("staged texture upload",
		"width", width, "height", height, "pending", pending)
	return tex, nil
}

// acquireLocked pops a pooled texture, or nil when the pool is empty.
func (s *Stager) acquireLocked(key poolKey) *Texture {
	list := s.pool[key]
	if len(list) == 0 {
		return nil
	}
	tex := list[len(list)-1]
	s.pool[key] = list[:len(list)-1]
	return tex
}

func (s *Stager) createTexture(width, height uint32, format gputypes.TextureFormat) (*Texture, error) {
	tex, err := s.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "upload_stager",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage: gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopyDst |
			gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture: %w", err)
	}

	view, err := s.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "upload_stager_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		s.device.DestroyTexture(tex)
		return nil, fmt.Errorf("create texture view: %w", err)
	}

	return &Texture{Tex: tex, View: view, Width: width, Height: height, Format: format}, nil
}

// Sync establishes the upload completion point: every Stage call made
// before Sync is visible to GPU work submitted afterwards. It submits a
// fenced empty command buffer and blocks until the fence signals. Sync
// is a no-op when nothing was staged since the last call.
func (s *Stager) Sync() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	pending := s.pending
	s.mu.Unlock()

	encoder, err := s.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "upload_stager_sync",
	})
	if err != nil {
		return fmt.Errorf("stage: create encoder: %w", err)
	}
	if err := encoder.BeginEncoding("upload_stager_sync"); err != nil {
		return fmt.Errorf("stage: begin encoding: %w", err)
	}
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("stage: end encoding: %w", err)
	}
	defer s.device.FreeCommandBuffer(cmdBuf)

	fence, err := s.device.CreateFence()
	if err != nil {
		return fmt.Errorf("stage: create fence: %w", err)
	}
	defer s.device.DestroyFence(fence)

	if err := s.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("stage: submit: %w", err)
	}
	ok, err := s.device.Wait(fence, 1, s.cfg.FenceTimeout)
	if err != nil {
		return fmt.Errorf("stage: wait for uploads: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w after %v", ErrSyncTimeout, s.cfg.FenceTimeout)
	}

	s.mu.Lock()
	s.dirty = false
	s.pending = 0
	s.mu.Unlock()

	s.log.Debug("upload sync complete", "uploads", pending)
	return nil
}

// Release returns a texture to the pool for reuse. Textures beyond the
// per-key retention cap are destroyed.
func (s *Stager) Release(t *Texture) {
	if t == nil {
		return
	}
	key := poolKey{t.Width, t.Height, t.Format}

	s.mu.Lock()
	if !s.closed && len(s.pool[key]) < s.cfg.MaxPooledPerKey {
		s.pool[key] = append(s.pool[key], t)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.destroy(t)
}

// Pending returns the number of uploads staged since the last Sync.
func (s *Stager) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// PooledTextures returns the total number of textures held for reuse.
func (s *Stager) PooledTextures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, list := range s.pool {
		n += len(list)
	}
	return n
}

// Close destroys all pooled textures. Textures handed out by Stage are
// unaffected; their owners destroy them.
func (s *Stager) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pool := s.pool
	s.pool = nil
	s.mu.Unlock()

	for _, list := range pool {
		for _, t := range list {
			s.destroy(t)
		}
	}
}

func (s *Stager) destroy(t *Texture) {
	if t.View != nil {
		s.device.DestroyTextureView(t.View)
	}
	if t.Tex != nil {
		s.device.DestroyTexture(t.Tex)
	}
}
