package stage

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func newTestStager(t *testing.T) (*Stager, func()) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	s := New(device, queue, Config{})
	return s, func() {
		s.Close()
		cleanup()
	}
}

func TestStage(t *testing.T) {
	s, cleanup := newTestStager(t)
	defer cleanup()

	data := make([]byte, 4*3*4)
	tex, err := s.Stage(data, 4, 3, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if tex.Width != 4 || tex.Height != 3 {
		t.Errorf("expected 4x3 texture, got %dx%d", tex.Width, tex.Height)
	}
	if tex.Tex == nil || tex.View == nil {
		t.Error("expected texture and view to be created")
	}
	if s.Pending() != 1 {
		t.Errorf("expected 1 pending upload, got %d", s.Pending())
	}
}

func TestStageSizeMismatch(t *testing.T) {
	s, cleanup := newTestStager(t)
	defer cleanup()

	tests := []struct {
		name string
		data []byte
		w, h int
	}{
		{"short data", make([]byte, 10), 4, 4},
		{"long data", make([]byte, 100), 4, 4},
		{"zero width", make([]byte, 16), 0, 4},
		{"negative height", make([]byte, 16), 4, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Stage(tt.data, tt.w, tt.h, gputypes.TextureFormatRGBA8Unorm)
			if !errors.Is(err, ErrSizeMismatch) {
				t.Errorf("expected ErrSizeMismatch, got %v", err)
			}
			var ue *UploadError
			if !errors.As(err, &ue) {
				t.Errorf("expected UploadError, got %T", err)
			}
		})
	}
}

func TestSync(t *testing.T) {
	s, cleanup := newTestStager(t)
	defer cleanup()

	// Clean stager: Sync is a no-op.
	if err := s.Sync(); err != nil {
		t.Fatalf("Sync on clean stager failed: %v", err)
	}

	data := make([]byte, 2*2*4)
	if _, err := s.Stage(data, 2, 2, gputypes.TextureFormatRGBA8Unorm); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if _, err := s.Stage(data, 2, 2, gputypes.TextureFormatRGBA8Unorm); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if s.Pending() != 2 {
		t.Fatalf("expected 2 pending uploads, got %d", s.Pending())
	}

	if err := s.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if s.Pending() != 0 {
		t.Errorf("expected 0 pending after Sync, got %d", s.Pending())
	}
}

func TestReleaseReusesTexture(t *testing.T) {
	s, cleanup := newTestStager(t)
	defer cleanup()

	data := make([]byte, 8*8*4)
	tex, err := s.Stage(data, 8, 8, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	s.Release(tex)
	if s.PooledTextures() != 1 {
		t.Fatalf("expected 1 pooled texture, got %d", s.PooledTextures())
	}

	// Same dimensions and format: the pooled texture comes back.
	tex2, err := s.Stage(data, 8, 8, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		t.Fatalf("second Stage failed: %v", err)
	}
	if tex2 != tex {
		t.Error("expected pooled texture to be reused")
	}
	if s.PooledTextures() != 0 {
		t.Errorf("expected empty pool after reuse, got %d", s.PooledTextures())
	}

	// Different dimensions: pool miss, fresh texture.
	other, err := s.Stage(make([]byte, 4*4*4), 4, 4, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if other == tex2 {
		t.Error("expected a fresh texture for different dimensions")
	}
}

func TestReleasePoolCap(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	s := New(device, queue, Config{MaxPooledPerKey: 2})
	defer s.Close()

	data := make([]byte, 2*2*4)
	var texs []*Texture
	for range 4 {
		tex, err := s.Stage(data, 2, 2, gputypes.TextureFormatRGBA8Unorm)
		if err != nil {
			t.Fatalf("Stage failed: %v", err)
		}
		texs = append(texs, tex)
	}
	for _, tex := range texs {
		s.Release(tex)
	}
	if s.PooledTextures() != 2 {
		t.Errorf("expected pool capped at 2, got %d", s.PooledTextures())
	}
}

func TestClose(t *testing.T) {
	s, cleanup := newTestStager(t)
	defer cleanup()

	data := make([]byte, 2*2*4)
	tex, err := s.Stage(data, 2, 2, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	s.Release(tex)

	s.Close()
	if s.PooledTextures() != 0 {
		t.Errorf("expected empty pool after Close, got %d", s.PooledTextures())
	}
	if _, err := s.Stage(data, 2, 2, gputypes.TextureFormatRGBA8Unorm); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := s.Sync(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Sync, got %v", err)
	}
	// Close is idempotent.
	s.Close()
}
