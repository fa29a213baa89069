package framegraph

import (
	"errors"
	"testing"
)

func TestLibraryRegister(t *testing.T) {
	l := NewLibrary()
	def := &Definition{
		Type:   "custom",
		Shader: "@fragment fn fs_main() {}",
	}
	if err := l.Register(def); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, ok := l.Lookup("custom")
	if !ok || got != def {
		t.Fatalf("Lookup = %v, %v", got, ok)
	}

	if err := l.Register(def); !errors.Is(err, ErrDuplicateType) {
		t.Fatalf("duplicate Register: err = %v, want ErrDuplicateType", err)
	}
}

func TestLibraryRegisterInvalid(t *testing.T) {
	l := NewLibrary()
	cases := []struct {
		name string
		def  *Definition
	}{
		{"empty type", &Definition{Shader: "x"}},
		{"neither shader nor handler", &Definition{Type: "t"}},
		{"both shader and handler", &Definition{
			Type: "t", Shader: "x", NewHandler: func() Handler { return nil },
		}},
	}
	for _, tc := range cases {
		if err := l.Register(tc.def); !errors.Is(err, ErrInvalidDefinition) {
			t.Errorf("%s: err = %v, want ErrInvalidDefinition", tc.name, err)
		}
	}
}

func TestLibraryTypes(t *testing.T) {
	l := StockLibrary()
	types := l.Types()
	want := []string{"blit", "brightness", "grayscale", "image-source", "invert", "video-source"}
	if len(types) != len(want) {
		t.Fatalf("Types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("Types = %v, want %v", types, want)
		}
	}
}

func TestStockLibraryShapes(t *testing.T) {
	l := StockLibrary()

	video, _ := l.Lookup("video-source")
	if !video.TimeVarying {
		t.Error("video-source not time varying")
	}
	if video.FrameInputs() != 0 {
		t.Errorf("video-source FrameInputs = %d, want 0", video.FrameInputs())
	}

	inv, _ := l.Lookup("invert")
	if inv.TimeVarying {
		t.Error("invert marked time varying")
	}
	if inv.FrameInputs() != 1 {
		t.Errorf("invert FrameInputs = %d, want 1", inv.FrameInputs())
	}
	if inv.Shader == "" {
		t.Error("invert has no shader source")
	}
}
