package framegraph

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/stage"
)

// frameVersions mints globally unique frame version tags. A version
// changes whenever a node actually re-renders, which is what downstream
// fingerprints key on; cache hits reuse the frame and its version, so
// unchanged subtrees stay hits all the way down.
var frameVersions atomic.Uint64

func nextFrameVersion() uint64 { return frameVersions.Add(1) }

// Frame is a GPU texture produced by one node execution. Frames are
// owned by the executor's output cache; callers may sample and read
// them but must not destroy them.
type Frame struct {
	width   uint32
	height  uint32
	format  gputypes.TextureFormat
	version uint64

	// Rendered frames own their texture; staged frames borrow one
	// from the upload stager's pool and return it on destroy.
	tex    hal.Texture
	view   hal.TextureView
	staged *stage.Texture
}

// Width returns the frame width in pixels.
func (f *Frame) Width() uint32 { return f.width }

// Height returns the frame height in pixels.
func (f *Frame) Height() uint32 { return f.height }

// Format returns the texture format.
func (f *Frame) Format() gputypes.TextureFormat { return f.format }

// Version returns the frame's version tag. Versions are globally
// unique per render; a cached frame keeps its version.
func (f *Frame) Version() uint64 { return f.version }

// View returns the sampleable texture view.
func (f *Frame) View() hal.TextureView {
	if f.staged != nil {
		return f.staged.View
	}
	return f.view
}

// Texture returns the underlying texture.
func (f *Frame) Texture() hal.Texture {
	if f.staged != nil {
		return f.staged.Tex
	}
	return f.tex
}

// newStagedFrame wraps an upload texture produced by the stager.
func newStagedFrame(t *stage.Texture) *Frame {
	return &Frame{
		width:  t.Width,
		height: t.Height,
		format: t.Format,
		staged: t,
	}
}

// newRenderTarget creates a frame backed by a fresh render target
// texture that can also be sampled and read back.
func newRenderTarget(device hal.Device, width, height uint32, format gputypes.TextureFormat) (*Frame, error) {
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "framegraph_target",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage: gputypes.TextureUsageRenderAttachment |
			gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("framegraph: create target texture: %w", err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "framegraph_target_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		device.DestroyTexture(tex)
		return nil, fmt.Errorf("framegraph: create target view: %w", err)
	}
	return &Frame{width: width, height: height, format: format, tex: tex, view: view}, nil
}

// destroy releases the frame's GPU resources: staged textures go back
// to the stager pool, rendered targets are destroyed.
func (f *Frame) destroy(device hal.Device, stager *stage.Stager) {
	if f.staged != nil {
		stager.Release(f.staged)
		f.staged = nil
		return
	}
	if f.view != nil {
		device.DestroyTextureView(f.view)
		f.view = nil
	}
	if f.tex != nil {
		device.DestroyTexture(f.tex)
		f.tex = nil
	}
}
