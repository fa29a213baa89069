package framegraph

import (
	"encoding/binary"
	"math"
	"testing"
)

func uniformFloat(t *testing.T, buf []byte, offset int) float32 {
	t.Helper()
	if offset+4 > len(buf) {
		t.Fatalf("offset %d past uniform block of %d bytes", offset, len(buf))
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[offset:]))
}

func TestPackUniformEmpty(t *testing.T) {
	def := &Definition{Type: "plain"}
	buf := packUniform(def, &Node{Type: "plain"})
	if len(buf) != 16 {
		t.Fatalf("empty block is %d bytes, want one vec4 (16)", len(buf))
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestPackUniformSingleFloat(t *testing.T) {
	def := &Definition{
		Type:   "gain",
		Params: []ParamSpec{{Name: "gain", Kind: ParamFloat}},
	}
	node := &Node{Type: "gain", Params: map[string]Param{
		"gain": FloatParam(0.5),
	}}
	buf := packUniform(def, node)
	if len(buf) != 16 {
		t.Fatalf("block is %d bytes, want 16", len(buf))
	}
	if got := uniformFloat(t, buf, 0); got != 0.5 {
		t.Errorf("gain = %v, want 0.5", got)
	}
}

func TestPackUniformMixedAlignment(t *testing.T) {
	// A float before a vec4 forces padding: the vec4 must start on a
	// 16-byte boundary and the vec2 on an 8-byte boundary, matching
	// WGSL uniform layout.
	def := &Definition{
		Type: "mixed",
		Params: []ParamSpec{
			{Name: "gain", Kind: ParamFloat},
			{Name: "tint", Kind: ParamVec4},
			{Name: "steps", Kind: ParamInt},
			{Name: "size", Kind: ParamDimensions},
		},
	}
	node := &Node{Type: "mixed", Params: map[string]Param{
		"gain":  FloatParam(0.5),
		"tint":  Vec4Param(1, 2, 3, 4),
		"steps": IntParam(7),
		"size":  DimensionsParam(64, 32),
	}}

	buf := packUniform(def, node)
	if len(buf) != 48 {
		t.Fatalf("block is %d bytes, want 48", len(buf))
	}

	checks := []struct {
		name   string
		offset int
		want   float32
	}{
		{"gain", 0, 0.5},
		{"tint.x", 16, 1},
		{"tint.y", 20, 2},
		{"tint.z", 24, 3},
		{"tint.w", 28, 4},
		{"steps", 32, 7},
		{"size.w", 40, 64},
		{"size.h", 44, 32},
	}
	for _, c := range checks {
		if got := uniformFloat(t, buf, c.offset); got != c.want {
			t.Errorf("%s at offset %d = %v, want %v", c.name, c.offset, got, c.want)
		}
	}
	for _, pad := range []int{4, 8, 12, 36} {
		if got := uniformFloat(t, buf, pad); got != 0 {
			t.Errorf("padding at offset %d = %v, want 0", pad, got)
		}
	}
}

func TestPackUniformAlignedVec4NoExtraPadding(t *testing.T) {
	// A vec4 already on a 16-byte boundary packs without padding.
	def := &Definition{
		Type:   "tinted",
		Params: []ParamSpec{{Name: "tint", Kind: ParamVec4}},
	}
	node := &Node{Type: "tinted", Params: map[string]Param{
		"tint": Vec4Param(1, 2, 3, 4),
	}}
	buf := packUniform(def, node)
	if len(buf) != 16 {
		t.Fatalf("block is %d bytes, want 16", len(buf))
	}
	for i, want := range []float32{1, 2, 3, 4} {
		if got := uniformFloat(t, buf, i*4); got != want {
			t.Errorf("tint[%d] = %v, want %v", i, got, want)
		}
	}
}
