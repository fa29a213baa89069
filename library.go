package framegraph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gogpu/framegraph/pipeline"
)

// Library errors.
var (
	// ErrDuplicateType is returned when registering a type twice.
	ErrDuplicateType = errors.New("framegraph: duplicate node type")

	// ErrInvalidDefinition is returned for definitions with no type
	// tag, or with neither a shader nor a handler factory.
	ErrInvalidDefinition = errors.New("framegraph: invalid definition")
)

// PortKind distinguishes frame ports (textures flowing between nodes)
// from scalar ports (inline values).
type PortKind uint8

// Port kinds.
const (
	PortFrame PortKind = iota
	PortScalar
)

// PortSpec declares one input or output port of a node type.
type PortSpec struct {
	Name string
	Kind PortKind
}

// ParamSpec declares a parameter of a node type. Declaration order is
// the order scalar parameters are packed into the shader uniform block.
type ParamSpec struct {
	Name string
	Kind ParamKind
}

// Definition describes a node type: its ports, parameters, and how it
// executes. Exactly one of Shader and NewHandler must be set; shader
// definitions run through the shared shader handler, handler factories
// produce one handler instance per node so per-node state (decoded
// images, video cursors) survives across runs.
type Definition struct {
	Type    string
	Inputs  []PortSpec
	Outputs []PortSpec
	Params  []ParamSpec

	// Shader is WGSL source for effect nodes.
	Shader string

	// Blend selects the pipeline blend state for shader nodes.
	Blend pipeline.BlendMode

	// TimeVarying marks nodes whose output depends on the logical
	// time (video sources, animated generators). Their fingerprints
	// include the run's time code.
	TimeVarying bool

	// NewHandler builds a handler instance for one node.
	NewHandler func() Handler
}

// FrameInputs returns the number of declared frame input ports.
func (d *Definition) FrameInputs() int {
	n := 0
	for _, p := range d.Inputs {
		if p.Kind == PortFrame {
			n++
		}
	}
	return n
}

// Library maps node type tags to definitions.
type Library struct {
	defs map[string]*Definition
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{defs: map[string]*Definition{}}
}

// Register adds a definition. The type tag must be unique.
func (l *Library) Register(def *Definition) error {
	if def.Type == "" {
		return fmt.Errorf("%w: empty type tag", ErrInvalidDefinition)
	}
	if (def.Shader == "") == (def.NewHandler == nil) {
		return fmt.Errorf("%w: %q needs exactly one of shader source and handler factory",
			ErrInvalidDefinition, def.Type)
	}
	if _, ok := l.defs[def.Type]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateType, def.Type)
	}
	l.defs[def.Type] = def
	return nil
}

// Lookup returns the definition for a type tag.
func (l *Library) Lookup(typeTag string) (*Definition, bool) {
	def, ok := l.defs[typeTag]
	return def, ok
}

// Types returns all registered type tags, sorted.
func (l *Library) Types() []string {
	types := make([]string, 0, len(l.defs))
	for t := range l.defs {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// StockLibrary returns a library with the built-in node types: the
// image and video sources plus the blit, invert, grayscale and
// brightness effects.
func StockLibrary() *Library {
	l := NewLibrary()
	for _, def := range []*Definition{
		{
			Type:    "image-source",
			Outputs: []PortSpec{{Name: "frame", Kind: PortFrame}},
			Params: []ParamSpec{
				{Name: "source", Kind: ParamFile},
				{Name: "data", Kind: ParamText},
			},
			NewHandler: newImageHandler,
		},
		{
			Type:    "video-source",
			Outputs: []PortSpec{{Name: "frame", Kind: PortFrame}},
			Params: []ParamSpec{
				{Name: "source", Kind: ParamFile},
			},
			TimeVarying: true,
			NewHandler:  newVideoHandler,
		},
		{
			Type:    "blit",
			Inputs:  []PortSpec{{Name: "in", Kind: PortFrame}},
			Outputs: []PortSpec{{Name: "out", Kind: PortFrame}},
			Shader:  blitShaderSource,
		},
		{
			Type:    "invert",
			Inputs:  []PortSpec{{Name: "in", Kind: PortFrame}},
			Outputs: []PortSpec{{Name: "out", Kind: PortFrame}},
			Shader:  invertShaderSource,
		},
		{
			Type:    "grayscale",
			Inputs:  []PortSpec{{Name: "in", Kind: PortFrame}},
			Outputs: []PortSpec{{Name: "out", Kind: PortFrame}},
			Shader:  grayscaleShaderSource,
		},
		{
			Type:    "brightness",
			Inputs:  []PortSpec{{Name: "in", Kind: PortFrame}},
			Outputs: []PortSpec{{Name: "out", Kind: PortFrame}},
			Params: []ParamSpec{
				{Name: "brightness", Kind: ParamFloat},
			},
			Shader: brightnessShaderSource,
		},
	} {
		if err := l.Register(def); err != nil {
			// Stock definitions are static; a failure here is a bug.
			panic(err)
		}
	}
	return l
}
