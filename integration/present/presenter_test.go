package present

import (
	"errors"
	"testing"
)

func rgba(w, h int) []byte { return make([]byte, w*h*4) }

func TestUpdateValidatesSize(t *testing.T) {
	p := New()
	defer p.Close()

	if err := p.Update(rgba(4, 4), 4, 4); err != nil {
		t.Fatalf("Update: %v", err)
	}
	w, h := p.Size()
	if w != 4 || h != 4 {
		t.Errorf("Size = %dx%d, want 4x4", w, h)
	}

	cases := []struct {
		name string
		pix  []byte
		w, h int
	}{
		{"short data", rgba(2, 2), 4, 4},
		{"zero width", rgba(4, 4), 0, 4},
		{"negative height", rgba(4, 4), 4, -1},
	}
	for _, tc := range cases {
		if err := p.Update(tc.pix, tc.w, tc.h); !errors.Is(err, ErrSizeMismatch) {
			t.Errorf("%s: err = %v, want ErrSizeMismatch", tc.name, err)
		}
	}
}

func TestPresentWithoutFrame(t *testing.T) {
	p := New()
	defer p.Close()

	if err := p.Present(nil); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("Present before capture: err = %v, want ErrNoFrame", err)
	}
}

func TestResizeDefersTextureDestruction(t *testing.T) {
	p := New()
	defer p.Close()

	if err := p.Update(rgba(4, 4), 4, 4); err != nil {
		t.Fatal(err)
	}
	// Fake an existing window texture.
	tex := &trackedTexture{}
	p.texture = tex
	p.dirty = false

	if err := p.Update(rgba(8, 8), 8, 8); err != nil {
		t.Fatal(err)
	}
	if tex.destroyed {
		t.Error("texture destroyed immediately on resize")
	}
	if p.oldTexture != tex {
		t.Error("old texture not parked for deferred destruction")
	}
	if p.texture != nil {
		t.Error("stale texture still current after resize")
	}
}

func TestCloseDestroysTextures(t *testing.T) {
	p := New()
	if err := p.Update(rgba(4, 4), 4, 4); err != nil {
		t.Fatal(err)
	}
	cur := &trackedTexture{}
	old := &trackedTexture{}
	p.texture = cur
	p.oldTexture = old

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !cur.destroyed || !old.destroyed {
		t.Error("Close left textures alive")
	}

	// Idempotent; operations after Close fail.
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := p.Update(rgba(4, 4), 4, 4); !errors.Is(err, ErrClosed) {
		t.Errorf("Update after Close: err = %v, want ErrClosed", err)
	}
	if err := p.Present(nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Present after Close: err = %v, want ErrClosed", err)
	}
}

type trackedTexture struct {
	destroyed bool
}

func (t *trackedTexture) Destroy() { t.destroyed = true }
