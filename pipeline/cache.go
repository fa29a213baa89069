// Package pipeline compiles and caches render pipelines for shader
// nodes. Pipelines are keyed by shader identity, target format and
// blend mode; concurrent requests for the same key collapse into a
// single compilation, and failed compiles are remembered until the
// cache is cleared so a broken shader is reported once per edit instead
// of recompiled every frame.
package pipeline

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/sync/singleflight"
)

// Key identifies a compiled pipeline: the same shader source rendered
// to a different target format or with different blending is a
// different pipeline.
type Key struct {
	ShaderID uint64
	Format   gputypes.TextureFormat
	Blend    BlendMode
}

// String formats the key for log output.
func (k Key) String() string {
	return fmt.Sprintf("%016x/%d/%s", k.ShaderID, k.Format, k.Blend)
}

// Cache builds pipelines on demand and owns every pipeline it built.
type Cache struct {
	device hal.Device
	log    *slog.Logger

	mu      sync.Mutex
	entries map[Key]*Pipeline
	failed  map[Key]*ShaderError

	group    singleflight.Group
	compiles atomic.Uint64
}

// NewCache creates an empty pipeline cache for the device.
func NewCache(device hal.Device, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		device:  device,
		log:     logger,
		entries: map[Key]*Pipeline{},
		failed:  map[Key]*ShaderError{},
	}
}

// SetLogger replaces the cache's logger. Pass nil to disable logging.
func (c *Cache) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	c.mu.Lock()
	c.log = l
	c.mu.Unlock()
}

// GetOrCreate returns the pipeline for the descriptor's key, compiling
// it on first use. Concurrent callers with the same key share one
// compilation. A key whose shader previously failed keeps returning the
// original ShaderError until Clear.
func (c *Cache) GetOrCreate(desc *Descriptor) (*Pipeline, error) {
	key := desc.Key()

	c.mu.Lock()
	if p, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return p, nil
	}
	if serr, ok := c.failed[key]; ok {
		c.mu.Unlock()
		return nil, serr
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// Another caller may have completed between the map check and
		// Do acquiring the key.
		c.mu.Lock()
		if p, ok := c.entries[key]; ok {
			c.mu.Unlock()
			return p, nil
		}
		if serr, ok := c.failed[key]; ok {
			c.mu.Unlock()
			return nil, serr
		}
		c.mu.Unlock()

		c.compiles.Add(1)
		p, err := build(c.device, desc)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			var serr *ShaderError
			if se, ok := err.(*ShaderError); ok {
				serr = se
			} else {
				serr = &ShaderError{ShaderID: key.ShaderID, Label: desc.Label, Err: err}
			}
			c.failed[key] = serr
			c.log.Warn("pipeline compile failed",
				"key", key.String(), "label", desc.Label, "err", err)
			return nil, serr
		}
		c.entries[key] = p
		c.log.Debug("pipeline compiled",
			"key", key.String(), "label", desc.Label, "textures", desc.TextureCount)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Pipeline), nil
}

// Clear destroys every cached pipeline and forgets failed compiles.
func (c *Cache) Clear() {
	c.mu.Lock()
	entries := c.entries
	c.entries = map[Key]*Pipeline{}
	c.failed = map[Key]*ShaderError{}
	c.mu.Unlock()

	for _, p := range entries {
		p.Destroy(c.device)
	}
}

// Len returns the number of cached pipelines.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// FailedLen returns the number of keys with a cached compile failure.
func (c *Cache) FailedLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.failed)
}

// CompileCount returns the number of compilations attempted since the
// cache was created. Cache hits and remembered failures do not count.
func (c *Cache) CompileCount() uint64 {
	return c.compiles.Load()
}
