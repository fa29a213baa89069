package framegraph

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/pipeline"
)

// ErrNoOutputSize is returned when a generator shader node (no frame
// inputs) has no dimensions param to size its output.
var ErrNoOutputSize = errors.New("framegraph: cannot determine output size, set a dimensions param")

// uniformAlign is the minimum uniform block granularity: one vec4.
const uniformAlign = 16

// shaderHandler executes every shader-backed node type. It is
// stateless and shared by all shader nodes; per-key compilation state
// lives in the pipeline cache.
type shaderHandler struct{}

func (shaderHandler) Execute(ctx context.Context, inv *Invocation) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	def := inv.Def
	gpu := inv.GPU

	want := def.FrameInputs()
	got := 0
	for _, f := range inv.Inputs {
		if f != nil {
			got++
		}
	}
	if len(inv.Inputs) != want || got != want {
		return nil, &BindingError{Node: inv.Node.ID, Type: def.Type, Want: want, Got: got}
	}

	width, height, err := outputSize(inv)
	if err != nil {
		return nil, err
	}

	p, err := gpu.Pipelines.GetOrCreate(&pipeline.Descriptor{
		Label:        def.Type,
		Source:       def.Shader,
		Format:       gpu.TargetFormat,
		Blend:        def.Blend,
		TextureCount: want,
	})
	if err != nil {
		return nil, err
	}

	target, err := newRenderTarget(gpu.Device, width, height, gpu.TargetFormat)
	if err != nil {
		return nil, err
	}

	if err := renderPass(inv, p, target); err != nil {
		target.destroy(gpu.Device, gpu.Stager)
		return nil, err
	}
	return target, nil
}

// outputSize picks the output dimensions: the primary input frame for
// effects, the dimensions param for generators.
func outputSize(inv *Invocation) (uint32, uint32, error) {
	for _, f := range inv.Inputs {
		if f != nil {
			return f.Width(), f.Height(), nil
		}
	}
	if p, ok := inv.Node.Params["dimensions"]; ok && p.Kind == ParamDimensions {
		if p.Dims[0] > 0 && p.Dims[1] > 0 {
			return p.Dims[0], p.Dims[1], nil
		}
	}
	return 0, 0, ErrNoOutputSize
}

// packUniform serializes the node's scalar parameters into the uniform
// block, in declared order, as 32-bit floats. WGSL uniform layout
// aligns vec4 members to 16 bytes and vec2 members to 8, so those
// parameters are padded to their boundary; the block itself is padded
// to a vec4 boundary. Nodes with no declared params still get one
// zeroed vec4 so every shader can bind the same params uniform.
func packUniform(def *Definition, node *Node) []byte {
	var floats []float32
	pad := func(boundary int) {
		for len(floats)%boundary != 0 {
			floats = append(floats, 0)
		}
	}
	for _, spec := range def.Params {
		p, ok := node.Params[spec.Name]
		if !ok {
			p = Param{Kind: spec.Kind}
		}
		switch spec.Kind {
		case ParamBool:
			if p.Bool {
				floats = append(floats, 1)
			} else {
				floats = append(floats, 0)
			}
		case ParamInt:
			floats = append(floats, float32(p.Int))
		case ParamFloat:
			floats = append(floats, float32(p.Float))
		case ParamVec4:
			pad(4)
			for _, v := range p.Vec4 {
				floats = append(floats, float32(v))
			}
		case ParamDimensions:
			pad(2)
			floats = append(floats, float32(p.Dims[0]), float32(p.Dims[1]))
		case ParamText, ParamFile:
			// Not representable in a uniform block; sources consume
			// these on the CPU side.
		}
	}

	size := (len(floats)*4 + uniformAlign - 1) / uniformAlign * uniformAlign
	if size == 0 {
		size = uniformAlign
	}
	buf := make([]byte, size)
	for i, v := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// renderPass records and submits the node's draw: bind params uniform,
// input textures and sampler, draw one fullscreen triangle into the
// target.
func renderPass(inv *Invocation, p *pipeline.Pipeline, target *Frame) error {
	gpu := inv.GPU
	device := gpu.Device

	uniformData := packUniform(inv.Def, inv.Node)
	uniformBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: inv.Def.Type + "_params",
		Size:  uint64(len(uniformData)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("framegraph: create uniform buffer: %w", err)
	}
	defer device.DestroyBuffer(uniformBuf)
	gpu.Queue.WriteBuffer(uniformBuf, 0, uniformData)

	entries := make([]gputypes.BindGroupEntry, 0, len(inv.Inputs)+2)
	entries = append(entries, gputypes.BindGroupEntry{
		Binding: 0,
		Resource: gputypes.BufferBinding{
			Buffer: uniformBuf.NativeHandle(), Offset: 0, Size: uint64(len(uniformData)),
		},
	})
	for i, f := range inv.Inputs {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding: uint32(i + 1),
			Resource: gputypes.TextureViewBinding{
				TextureView: f.View().NativeHandle(),
			},
		})
	}
	entries = append(entries, gputypes.BindGroupEntry{
		Binding: uint32(len(inv.Inputs) + 1),
		Resource: gputypes.SamplerBinding{
			Sampler: p.Sampler.NativeHandle(),
		},
	})

	bindGroup, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   inv.Def.Type + "_bind",
		Layout:  p.BindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("framegraph: create bind group: %w", err)
	}
	defer device.DestroyBindGroup(bindGroup)

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: inv.Def.Type + "_encoder",
	})
	if err != nil {
		return fmt.Errorf("framegraph: create encoder: %w", err)
	}
	if err := encoder.BeginEncoding(inv.Def.Type); err != nil {
		return fmt.Errorf("framegraph: begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: inv.Def.Type + "_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target.View(),
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	})
	rp.SetPipeline(p.Handle)
	rp.SetBindGroup(0, bindGroup, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("framegraph: end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	fence, err := device.CreateFence()
	if err != nil {
		return fmt.Errorf("framegraph: create fence: %w", err)
	}
	defer device.DestroyFence(fence)

	if err := gpu.Queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("framegraph: submit: %w", err)
	}
	ok, err := device.Wait(fence, 1, inv.fenceTimeout)
	if err != nil || !ok {
		return fmt.Errorf("framegraph: wait for render: ok=%v err=%w", ok, err)
	}
	return nil
}
