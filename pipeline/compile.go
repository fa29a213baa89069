package pipeline

import (
	"fmt"
	"hash/fnv"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// ShaderID returns the FNV-1a identity of a WGSL source. Two nodes with
// byte-identical shader source share a pipeline.
func ShaderID(source string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(source))
	return h.Sum64()
}

// ShaderError reports a shader that failed to compile. The failure is
// cached per pipeline key until the cache is cleared.
type ShaderError struct {
	ShaderID   uint64
	Label      string
	Diagnostic string
	Err        error
}

func (e *ShaderError) Error() string {
	if e.Diagnostic != "" {
		return fmt.Sprintf("pipeline: shader %q (%016x): %s", e.Label, e.ShaderID, e.Diagnostic)
	}
	return fmt.Sprintf("pipeline: shader %q (%016x): %v", e.Label, e.ShaderID, e.Err)
}

func (e *ShaderError) Unwrap() error { return e.Err }

// BlendMode selects the color blend state of a pipeline.
type BlendMode uint8

// Blend modes.
const (
	// BlendNone writes source color, replacing the destination.
	BlendNone BlendMode = iota

	// BlendPremultiplied blends with premultiplied source alpha.
	BlendPremultiplied
)

// String returns the blend mode name.
func (m BlendMode) String() string {
	switch m {
	case BlendNone:
		return "none"
	case BlendPremultiplied:
		return "premultiplied"
	default:
		return fmt.Sprintf("BlendMode(%d)", m)
	}
}

// Descriptor describes a pipeline to build. The key is derived from the
// shader source, the target format and the blend mode; TextureCount and
// Label ride along from the node definition.
type Descriptor struct {
	Label        string
	Source       string
	Format       gputypes.TextureFormat
	Blend        BlendMode
	TextureCount int
}

// Key identifies a compiled pipeline.
func (d *Descriptor) Key() Key {
	return Key{ShaderID: ShaderID(d.Source), Format: d.Format, Blend: d.Blend}
}

// Pipeline is a compiled, ready-to-bind render pipeline and the GPU
// objects it owns.
type Pipeline struct {
	Key          Key
	Handle       hal.RenderPipeline
	BindLayout   hal.BindGroupLayout
	Sampler      hal.Sampler
	TextureCount int

	shader     hal.ShaderModule
	pipeLayout hal.PipelineLayout
}

// Destroy releases the pipeline's GPU resources in reverse creation
// order.
func (p *Pipeline) Destroy(device hal.Device) {
	if p.Handle != nil {
		device.DestroyRenderPipeline(p.Handle)
		p.Handle = nil
	}
	if p.Sampler != nil {
		device.DestroySampler(p.Sampler)
		p.Sampler = nil
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.BindLayout != nil {
		device.DestroyBindGroupLayout(p.BindLayout)
		p.BindLayout = nil
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// build validates the shader through naga and creates the render
// pipeline: a fullscreen triangle vertex stage with no vertex buffers,
// and a fragment stage binding one uniform buffer, TextureCount input
// textures and one sampler.
func build(device hal.Device, desc *Descriptor) (*Pipeline, error) {
	key := desc.Key()

	// naga surfaces the compiler diagnostic; HAL backends give far less
	// useful errors for bad WGSL.
	if _, err := naga.Compile(desc.Source); err != nil {
		return nil, &ShaderError{
			ShaderID:   key.ShaderID,
			Label:      desc.Label,
			Diagnostic: err.Error(),
			Err:        err,
		}
	}

	p := &Pipeline{Key: key, TextureCount: desc.TextureCount}

	shader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label + "_shader",
		Source: hal.ShaderSource{WGSL: desc.Source},
	})
	if err != nil {
		return nil, &ShaderError{ShaderID: key.ShaderID, Label: desc.Label,
			Err: fmt.Errorf("create shader module: %w", err)}
	}
	p.shader = shader

	// Binding 0: params uniform. Bindings 1..N: input textures.
	// Binding N+1: shared sampler.
	entries := make([]gputypes.BindGroupLayoutEntry, 0, desc.TextureCount+2)
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	})
	for i := range desc.TextureCount {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i + 1),
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding:    uint32(desc.TextureCount + 1),
		Visibility: gputypes.ShaderStageFragment,
		Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
	})

	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		p.Destroy(device)
		return nil, &ShaderError{ShaderID: key.ShaderID, Label: desc.Label,
			Err: fmt.Errorf("create bind group layout: %w", err)}
	}
	p.BindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		p.Destroy(device)
		return nil, &ShaderError{ShaderID: key.ShaderID, Label: desc.Label,
			Err: fmt.Errorf("create pipeline layout: %w", err)}
	}
	p.pipeLayout = pipeLayout

	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label + "_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		p.Destroy(device)
		return nil, &ShaderError{ShaderID: key.ShaderID, Label: desc.Label,
			Err: fmt.Errorf("create sampler: %w", err)}
	}
	p.Sampler = sampler

	target := gputypes.ColorTargetState{
		Format:    desc.Format,
		WriteMask: gputypes.ColorWriteMaskAll,
	}
	if desc.Blend == BlendPremultiplied {
		premul := gputypes.BlendStatePremultiplied()
		target.Blend = &premul
	}

	handle, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label + "_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets:    []gputypes.ColorTargetState{target},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		p.Destroy(device)
		return nil, &ShaderError{ShaderID: key.ShaderID, Label: desc.Label,
			Err: fmt.Errorf("create render pipeline: %w", err)}
	}
	p.Handle = handle

	return p, nil
}
