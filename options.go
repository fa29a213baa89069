package framegraph

import (
	"time"

	"github.com/gogpu/gputypes"
)

// Options configures an Executor. The zero value of any field selects
// its default.
type Options struct {
	// OutputCacheCapacity is the per-shard capacity of the output
	// cache (16 shards). Default: 64.
	OutputCacheCapacity int

	// TargetFormat is the texture format of rendered frames.
	// Default: RGBA8Unorm.
	TargetFormat gputypes.TextureFormat

	// HoldLastVideoFrame substitutes a video node's last successfully
	// fetched frame when a fetch fails with a temporary error
	// (not ready, exhausted), instead of failing the run. A warning
	// is logged for each substitution.
	HoldLastVideoFrame bool

	// OpenVideo opens video streams for video source nodes.
	// Default: the built-in raw video container reader.
	OpenVideo VideoOpener

	// FenceTimeout bounds GPU waits for uploads, renders and
	// readbacks. Default: 5s.
	FenceTimeout time.Duration
}

// DefaultOptions returns the default executor configuration.
func DefaultOptions() *Options {
	return &Options{
		OutputCacheCapacity: 64,
		TargetFormat:        gputypes.TextureFormatRGBA8Unorm,
		OpenVideo:           OpenRawVideoStream,
		FenceTimeout:        5 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o *Options) withDefaults() Options {
	def := DefaultOptions()
	out := *o
	if out.OutputCacheCapacity <= 0 {
		out.OutputCacheCapacity = def.OutputCacheCapacity
	}
	if out.TargetFormat == 0 {
		out.TargetFormat = def.TargetFormat
	}
	if out.OpenVideo == nil {
		out.OpenVideo = def.OpenVideo
	}
	if out.FenceTimeout <= 0 {
		out.FenceTimeout = def.FenceTimeout
	}
	return out
}
