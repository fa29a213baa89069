package present

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/framegraph"
)

// Presenter errors.
var (
	// ErrClosed is returned when operating on a closed presenter.
	ErrClosed = errors.New("present: presenter is closed")

	// ErrNoFrame is returned when presenting before any frame was
	// captured.
	ErrNoFrame = errors.New("present: no frame captured")

	// ErrSizeMismatch is returned when pixel data does not match the
	// declared dimensions.
	ErrSizeMismatch = errors.New("present: pixel data size mismatch")

	// ErrInvalidRenderer is returned when the draw context exposes no
	// gpucontext.TextureCreator.
	ErrInvalidRenderer = errors.New("present: dc must provide a gpucontext.TextureCreator")
)

// textureDestroyer matches the Destroy method of window textures.
type textureDestroyer interface {
	Destroy()
}

// pendingTexture defers texture creation until a draw context with a
// TextureCreator is available.
type pendingTexture struct {
	width  int
	height int
	data   []byte
}

// Presenter mirrors the latest rendered frame into a window texture.
//
// Presenter is NOT safe for concurrent use.
type Presenter struct {
	width   int
	height  int
	pix     []byte
	texture any
	// oldTexture holds a texture awaiting deferred destruction after a
	// resize; in-flight GPU work may still reference it.
	oldTexture any
	dirty      bool
	closed     bool
}

// New creates an empty presenter. The first Capture or Update sizes it.
func New() *Presenter {
	return &Presenter{}
}

// Capture reads back a rendered frame and stores its pixels for the
// next Present.
func (p *Presenter) Capture(e *framegraph.Executor, f *framegraph.Frame) error {
	if p.closed {
		return ErrClosed
	}
	pix, err := e.ReadFrame(f)
	if err != nil {
		return fmt.Errorf("present: read frame: %w", err)
	}
	return p.Update(pix, int(f.Width()), int(f.Height()))
}

// Update stores tightly packed RGBA pixels for the next Present.
func (p *Presenter) Update(pix []byte, width, height int) error {
	if p.closed {
		return ErrClosed
	}
	if width <= 0 || height <= 0 || len(pix) != width*height*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d", ErrSizeMismatch, len(pix), width, height)
	}

	if width != p.width || height != p.height {
		// The current texture has the wrong dimensions. Keep it alive
		// until the next Present has synced the GPU, then destroy it.
		if p.texture != nil {
			p.destroyOld()
			p.oldTexture = p.texture
			p.texture = nil
		}
		p.width = width
		p.height = height
	}

	p.pix = pix
	p.dirty = true
	return nil
}

// Size returns the dimensions of the captured frame.
func (p *Presenter) Size() (width, height int) {
	return p.width, p.height
}

// Present draws the captured frame at the window origin.
func (p *Presenter) Present(dc gpucontext.TextureDrawer) error {
	return p.PresentAt(dc, 0, 0)
}

// PresentAt draws the captured frame at the given window position. The
// window texture is created lazily on first use and updated in place
// when only the pixels changed.
func (p *Presenter) PresentAt(dc gpucontext.TextureDrawer, x, y float32) error {
	if p.closed {
		return ErrClosed
	}
	if p.pix == nil {
		return ErrNoFrame
	}

	if p.dirty {
		if p.texture == nil {
			p.texture = &pendingTexture{width: p.width, height: p.height, data: p.pix}
		} else if updater, ok := p.texture.(gpucontext.TextureUpdater); ok {
			if err := updater.UpdateData(p.pix); err != nil {
				return fmt.Errorf("present: texture update: %w", err)
			}
		}
		p.dirty = false
	}

	if pending, ok := p.texture.(*pendingTexture); ok {
		creator := dc.TextureCreator()
		if creator == nil {
			return ErrInvalidRenderer
		}
		// NewTextureFromRGBA waits for the GPU internally; after it
		// returns the old texture is no longer referenced.
		tex, err := creator.NewTextureFromRGBA(pending.width, pending.height, pending.data)
		if err != nil {
			return fmt.Errorf("present: create texture: %w", err)
		}
		p.texture = tex
		p.destroyOld()
	}

	gpuTex, ok := p.texture.(gpucontext.Texture)
	if !ok {
		return ErrInvalidRenderer
	}
	return dc.DrawTexture(gpuTex, x, y)
}

// Close destroys the window textures. Close is idempotent.
func (p *Presenter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.destroyOld()
	if d, ok := p.texture.(textureDestroyer); ok {
		d.Destroy()
	}
	p.texture = nil
	p.pix = nil
	return nil
}

func (p *Presenter) destroyOld() {
	if p.oldTexture == nil {
		return
	}
	if d, ok := p.oldTexture.(textureDestroyer); ok {
		d.Destroy()
	}
	p.oldTexture = nil
}
