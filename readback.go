package framegraph

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// copyPitchAlignment is the BytesPerRow alignment required by
// texture-to-buffer copies (WebGPU and DX12 mandate 256).
const copyPitchAlignment = 256

// ReadFrame copies a frame's pixels back to the CPU and returns them as
// tightly packed bytes (width * 4 per row). It submits its own command
// buffer and blocks until the copy completes.
func (e *Executor) ReadFrame(f *Frame) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	return readTexture(e.gpu, f, e.opts.FenceTimeout)
}

func readTexture(gpu *GPUContext, f *Frame, timeout time.Duration) ([]byte, error) {
	w, h := f.Width(), f.Height()
	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	device := gpu.Device

	stagingBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "framegraph_readback",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("framegraph: create readback buffer: %w", err)
	}
	defer device.DestroyBuffer(stagingBuf)

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "framegraph_readback_encoder",
	})
	if err != nil {
		return nil, fmt.Errorf("framegraph: create encoder: %w", err)
	}
	if err := encoder.BeginEncoding("framegraph_readback"); err != nil {
		return nil, fmt.Errorf("framegraph: begin encoding: %w", err)
	}

	// Rendered frames sit in RenderAttachment layout, staged source
	// frames in TextureBinding; the copy needs CopySrc. Transition there
	// and back so the frame stays sampleable and re-readable afterwards.
	srcUsage := gputypes.TextureUsageRenderAttachment
	if f.staged != nil {
		srcUsage = gputypes.TextureUsageTextureBinding
	}
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: f.Texture(),
		Usage: hal.TextureUsageTransition{
			OldUsage: srcUsage,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(f.Texture(), stagingBuf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: f.Texture(), MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: f.Texture(),
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: srcUsage,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("framegraph: end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	fence, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("framegraph: create fence: %w", err)
	}
	defer device.DestroyFence(fence)

	if err := gpu.Queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("framegraph: submit readback: %w", err)
	}
	ok, err := device.Wait(fence, 1, timeout)
	if err != nil || !ok {
		return nil, fmt.Errorf("framegraph: wait for readback: ok=%v err=%w", ok, err)
	}

	raw := make([]byte, stagingSize)
	if err := gpu.Queue.ReadBuffer(stagingBuf, 0, raw); err != nil {
		return nil, fmt.Errorf("framegraph: read staging buffer: %w", err)
	}

	if alignedBytesPerRow == bytesPerRow {
		return raw[:uint64(bytesPerRow)*uint64(h)], nil
	}
	tight := make([]byte, uint64(bytesPerRow)*uint64(h))
	for row := uint32(0); row < h; row++ {
		src := uint64(row) * uint64(alignedBytesPerRow)
		dst := uint64(row) * uint64(bytesPerRow)
		copy(tight[dst:dst+uint64(bytesPerRow)], raw[src:src+uint64(bytesPerRow)])
	}
	return tight, nil
}
