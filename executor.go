package framegraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/cache"
	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/stage"
)

// outputKey addresses one cached node output: the node plus the
// fingerprint of everything that influenced it.
type outputKey struct {
	Node NodeID
	FP   Fingerprint
}

func outputKeyHash(k outputKey) uint64 {
	return uint64(k.FP) ^ uint64(k.Node)<<32
}

// RunStats counts what one execution run did.
type RunStats struct {
	// HandlerInvocations is the number of nodes that actually
	// executed (cache misses).
	HandlerInvocations int

	// CacheHits is the number of nodes served from the output cache.
	CacheHits int

	// HeldFrames is the number of video nodes that substituted their
	// last good frame for a temporary fetch failure.
	HeldFrames int
}

// Result is the outcome of one execution run. The returned frames are
// owned by the executor's output cache; they stay valid at least until
// the next Execute, ClearOutputCache or Close call.
type Result struct {
	// Output is the frame of the first output node.
	Output *Frame

	// Outputs maps every output node to its frame.
	Outputs map[NodeID]*Frame

	// Stats summarizes cache behavior for the run.
	Stats RunStats
}

// Executor renders node graphs. It owns the upload stager, the
// pipeline cache and the output cache, and serializes runs: Execute
// may be called from multiple goroutines but runs execute one at a
// time against the single device queue.
type Executor struct {
	gpu  *GPUContext
	lib  *Library
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	closed   bool
	order    *ExecutionOrder
	handlers map[NodeID]Handler
	outputs  *cache.Sharded[outputKey, *Frame]

	// pinned marks cache entries referenced by the current or most
	// recent run; the output cache never evicts them, so in-flight
	// inputs and the frames returned to the caller stay alive.
	pinned map[outputKey]bool

	// lastGood tracks the newest committed output key per video node
	// for the HoldLastVideoFrame policy.
	lastGood map[NodeID]outputKey
}

// New creates an executor for the given device and queue. A nil opts
// selects DefaultOptions.
func New(device hal.Device, queue hal.Queue, lib *Library, opts *Options) (*Executor, error) {
	if lib == nil {
		return nil, errors.New("framegraph: nil library")
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	resolved := opts.withDefaults()
	log := Logger()

	e := &Executor{
		lib:      lib,
		opts:     resolved,
		log:      log,
		handlers: map[NodeID]Handler{},
		pinned:   map[outputKey]bool{},
		lastGood: map[NodeID]outputKey{},
	}
	e.gpu = &GPUContext{
		Device: device,
		Queue:  queue,
		Stager: stage.New(device, queue, stage.Config{
			FenceTimeout: resolved.FenceTimeout,
			Logger:       log,
		}),
		Pipelines:    pipeline.NewCache(device, log),
		TargetFormat: resolved.TargetFormat,
	}
	e.outputs = cache.NewSharded(
		resolved.OutputCacheCapacity,
		outputKeyHash,
		cache.WithEvictionGuard[outputKey, *Frame](e.isPinned),
		cache.WithEvictCallback[outputKey, *Frame](e.releaseFrame),
	)

	log.Info("framegraph executor created",
		"cache_capacity", resolved.OutputCacheCapacity,
		"target_format", resolved.TargetFormat)
	return e, nil
}

// SetLogger replaces the executor's logger and those of its caches.
// Pass nil to disable logging.
func (e *Executor) SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	e.mu.Lock()
	e.log = l
	e.mu.Unlock()
	e.gpu.Stager.SetLogger(l)
	e.gpu.Pipelines.SetLogger(l)
}

// isPinned reports whether a cache entry belongs to the current run or
// is a held video frame. Called by the output cache under its shard
// lock.
func (e *Executor) isPinned(k outputKey) bool {
	if e.pinned[k] {
		return true
	}
	return e.lastGood[k.Node] == k
}

// releaseFrame destroys an evicted frame's GPU resources. Called by
// the output cache for evictions and Clear.
func (e *Executor) releaseFrame(k outputKey, f *Frame) {
	e.log.Debug("output frame evicted", "node", k.Node, "version", f.Version())
	f.destroy(e.gpu.Device, e.gpu.Stager)
}

// Execute renders the graph at time zero.
func (e *Executor) Execute(ctx context.Context, g *Graph) (*Result, error) {
	return e.ExecuteAt(ctx, g, 0)
}

// ExecuteAt renders the graph at the given time code. Nodes execute in
// topological order; nodes whose fingerprint matches a cached output
// are served from cache without invoking their handler. On failure the
// run aborts with an ExecError, but outputs committed earlier in the
// run remain cached.
func (e *Executor) ExecuteAt(ctx context.Context, g *Graph, t TimeCode) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}

	order, err := e.resolveOrder(g)
	if err != nil {
		return nil, err
	}
	outputs := g.OutputNodes()
	if len(outputs) == 0 {
		return nil, ErrNoOutputNodes
	}

	// A new run re-pins from scratch; frames pinned by the previous
	// run become evictable.
	e.pinned = map[outputKey]bool{}

	res := &Result{Outputs: map[NodeID]*Frame{}}
	frames := make(map[NodeID]*Frame, len(order))

	for _, id := range order {
		if err := context.Cause(ctx); err != nil {
			return nil, fmt.Errorf("framegraph: run canceled: %w", err)
		}

		node, _ := g.Node(id)
		def, ok := e.lib.Lookup(node.Type)
		if !ok {
			return nil, &ExecError{Node: id, Type: node.Type,
				Err: fmt.Errorf("%w: %q", ErrUnknownNodeType, node.Type)}
		}

		inputs, versions, err := e.resolveInputs(g, node, def, frames)
		if err != nil {
			return nil, err
		}

		fp := computeFingerprint(def, node, versions, t)
		key := outputKey{Node: id, FP: fp}

		if f, ok := e.outputs.Get(key); ok {
			e.pinned[key] = true
			frames[id] = f
			res.Stats.CacheHits++
			e.log.Debug("output cache hit", "node", id, "type", node.Type)
			continue
		}

		f, err := e.dispatch(ctx, node, def, inputs, t)
		if err != nil {
			if held, ok := e.holdVideoFrame(node, def, err); ok {
				frames[id] = held
				res.Stats.HeldFrames++
				continue
			}
			var ee *ExecError
			if errors.As(err, &ee) {
				return nil, err
			}
			return nil, &ExecError{Node: id, Type: node.Type, Err: err}
		}

		f.version = nextFrameVersion()
		e.pinned[key] = true
		e.outputs.Set(key, f)
		frames[id] = f
		if def.TimeVarying && def.NewHandler != nil {
			e.lastGood[id] = key
		}
		res.Stats.HandlerInvocations++
	}

	for _, id := range outputs {
		res.Outputs[id] = frames[id]
	}
	res.Output = res.Outputs[outputs[0]]

	e.log.Debug("run complete",
		"nodes", len(order),
		"invocations", res.Stats.HandlerInvocations,
		"hits", res.Stats.CacheHits)
	return res, nil
}

// resolveOrder returns the cached execution order when the same graph
// is executed with an unchanged structure, recomputing it otherwise.
// A cyclic graph fails here, before any GPU work.
func (e *Executor) resolveOrder(g *Graph) ([]NodeID, error) {
	if e.order != nil && e.order.graph == g && e.order.Revision == g.Revision() {
		return e.order.Nodes, nil
	}
	nodes, err := computeOrder(g)
	if err != nil {
		e.order = nil
		return nil, err
	}
	e.order = &ExecutionOrder{Nodes: nodes, Revision: g.Revision(), graph: g}
	return nodes, nil
}

// resolveInputs gathers the upstream frames feeding a node's frame
// input ports, in declared order, together with their version tags
// (0 for unconnected ports).
func (e *Executor) resolveInputs(g *Graph, node *Node, def *Definition, frames map[NodeID]*Frame) ([]*Frame, []uint64, error) {
	inputs := make([]*Frame, 0, def.FrameInputs())
	versions := make([]uint64, 0, def.FrameInputs())
	port := 0
	for _, spec := range def.Inputs {
		if spec.Kind != PortFrame {
			port++
			continue
		}
		if c, ok := g.InputTo(node.ID, port); ok {
			f := frames[c.FromNode]
			if f == nil {
				// Topological order guarantees upstream ran; a nil
				// frame means the connection references a node
				// missing from the graph.
				return nil, nil, &ExecError{Node: node.ID, Type: node.Type,
					Err: fmt.Errorf("%w: input %d references node %d", ErrUnknownNode, port, c.FromNode)}
			}
			inputs = append(inputs, f)
			versions = append(versions, f.Version())
		} else {
			inputs = append(inputs, nil)
			versions = append(versions, 0)
		}
		port++
	}
	return inputs, versions, nil
}

// dispatch runs a node's handler. The stager is synced first whenever
// the node consumes upstream frames, so any staged uploads those frames
// depend on are complete before sampling.
func (e *Executor) dispatch(ctx context.Context, node *Node, def *Definition, inputs []*Frame, t TimeCode) (*Frame, error) {
	consumes := false
	for _, f := range inputs {
		if f != nil {
			consumes = true
			break
		}
	}
	if consumes {
		if err := e.gpu.Stager.Sync(); err != nil {
			return nil, err
		}
	}

	h := e.handlers[node.ID]
	if h == nil {
		if def.NewHandler != nil {
			h = def.NewHandler()
		} else {
			h = shaderHandler{}
		}
		e.handlers[node.ID] = h
	}

	return h.Execute(ctx, &Invocation{
		Node:         node,
		Def:          def,
		Time:         t,
		Inputs:       inputs,
		GPU:          e.gpu,
		OpenVideo:    e.opts.OpenVideo,
		fenceTimeout: e.opts.FenceTimeout,
	})
}

// holdVideoFrame applies the HoldLastVideoFrame policy: when a video
// node fails with a temporary error and a previous frame is cached,
// reuse that frame and keep the run alive.
func (e *Executor) holdVideoFrame(node *Node, def *Definition, err error) (*Frame, bool) {
	if !e.opts.HoldLastVideoFrame || !def.TimeVarying {
		return nil, false
	}
	var verr *VideoError
	if !errors.As(err, &verr) || !verr.Temporary() {
		return nil, false
	}
	key, ok := e.lastGood[node.ID]
	if !ok {
		return nil, false
	}
	f, ok := e.outputs.Get(key)
	if !ok {
		return nil, false
	}
	e.pinned[key] = true
	e.log.Warn("holding last video frame",
		"node", node.ID, "source", node.Params["source"].Text, "err", err)
	return f, true
}

// ClearOutputCache drops every cached node output and destroys the
// frames, including held video frames. Frames returned by a previous
// Execute become invalid.
func (e *Executor) ClearOutputCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.pinned = map[outputKey]bool{}
	e.lastGood = map[NodeID]outputKey{}
	e.outputs.Clear()
	e.log.Info("output cache cleared")
}

// ClearPipelineCache destroys every compiled pipeline and forgets
// cached shader compile failures, forcing recompilation on next use.
func (e *Executor) ClearPipelineCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.gpu.Pipelines.Clear()
	e.log.Info("pipeline cache cleared")
}

// InvalidateExecutionOrder drops the cached topological order. The
// next run recomputes it even if the graph revision is unchanged.
func (e *Executor) InvalidateExecutionOrder() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.order = nil
}

// CacheStats returns the output cache's statistics.
func (e *Executor) CacheStats() cache.Stats {
	return e.outputs.Stats()
}

// Close releases everything the executor owns: cached frames, compiled
// pipelines, pooled upload textures and per-node handlers. The device
// and queue are the caller's and stay open.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	handlers := e.handlers
	e.handlers = nil
	e.pinned = map[outputKey]bool{}
	e.lastGood = map[NodeID]outputKey{}
	e.mu.Unlock()

	e.outputs.Clear()
	e.gpu.Pipelines.Clear()
	e.gpu.Stager.Close()
	for id, h := range handlers {
		if c, ok := h.(io.Closer); ok {
			if err := c.Close(); err != nil {
				e.log.Warn("handler close failed", "node", id, "err", err)
			}
		}
	}
	e.log.Info("framegraph executor closed")
}
