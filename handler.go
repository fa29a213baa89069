package framegraph

import (
	"context"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/stage"
)

// Handler executes one node. Built-in handlers are created per node via
// Definition.NewHandler and live for the life of the executor, so they
// can keep per-node state (decoded images, video cursors) across runs.
// Handlers implementing io.Closer are closed with the executor.
type Handler interface {
	Execute(ctx context.Context, inv *Invocation) (*Frame, error)
}

// GPUContext bundles the shared GPU state a handler needs.
type GPUContext struct {
	Device       hal.Device
	Queue        hal.Queue
	Stager       *stage.Stager
	Pipelines    *pipeline.Cache
	TargetFormat gputypes.TextureFormat
}

// Invocation carries everything one node execution depends on.
type Invocation struct {
	// Node is the graph node being executed.
	Node *Node

	// Def is the node's library definition.
	Def *Definition

	// Time is the run's position on the logical timeline.
	Time TimeCode

	// Inputs holds the resolved upstream frames in declared frame
	// port order. An unconnected port is nil.
	Inputs []*Frame

	// GPU is the executor's shared GPU state.
	GPU *GPUContext

	// OpenVideo opens video streams for video source nodes.
	OpenVideo VideoOpener

	// fenceTimeout bounds GPU waits issued by built-in handlers.
	fenceTimeout time.Duration
}
