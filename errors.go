package framegraph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/stage"
)

// Package errors.
var (
	// ErrUnknownNodeType is returned when a node references a type the
	// library does not define.
	ErrUnknownNodeType = errors.New("framegraph: unknown node type")

	// ErrUnknownNode is returned when an operation names a node the
	// graph does not contain.
	ErrUnknownNode = errors.New("framegraph: unknown node")

	// ErrClosed is returned when executing through a closed Executor.
	ErrClosed = errors.New("framegraph: executor closed")

	// ErrNoOutputNodes is returned when a graph has no terminal nodes.
	ErrNoOutputNodes = errors.New("framegraph: graph has no output nodes")
)

// Errors surfaced from sub-packages, re-exported so callers can use
// errors.As against this package alone.
type (
	// UploadError reports a failed CPU to GPU texture upload.
	UploadError = stage.UploadError

	// ShaderError reports a shader compile failure with the compiler
	// diagnostic. It is cached per pipeline key until the pipeline
	// cache is cleared.
	ShaderError = pipeline.ShaderError
)

// CycleError reports that the graph is not executable because a subset
// of its nodes form one or more dependency cycles. No GPU work happens
// for a cyclic graph.
type CycleError struct {
	// Nodes lists every node on a cycle, ascending.
	Nodes []NodeID
}

func (e *CycleError) Error() string {
	ids := make([]string, len(e.Nodes))
	for i, id := range e.Nodes {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return "framegraph: graph contains a cycle through nodes [" + strings.Join(ids, " ") + "]"
}

// ExecError wraps a handler failure with the node it occurred on.
type ExecError struct {
	Node NodeID
	Type string
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("framegraph: node %d (%s): %v", e.Node, e.Type, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// VideoCode classifies a video fetch failure.
type VideoCode uint8

// Video failure codes.
const (
	// VideoNotReady means the frame is not decoded yet; retrying at a
	// later run may succeed.
	VideoNotReady VideoCode = iota

	// VideoExhausted means the requested time is past the end of the
	// stream.
	VideoExhausted

	// VideoCorrupt means the stream data is damaged.
	VideoCorrupt
)

// String returns the code name.
func (c VideoCode) String() string {
	switch c {
	case VideoNotReady:
		return "not ready"
	case VideoExhausted:
		return "exhausted"
	case VideoCorrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("VideoCode(%d)", c)
	}
}

// VideoError reports a failed video frame fetch.
type VideoError struct {
	Source string
	Code   VideoCode
	Err    error
}

func (e *VideoError) Error() string {
	return fmt.Sprintf("framegraph: video %q: %s: %v", e.Source, e.Code, e.Err)
}

func (e *VideoError) Unwrap() error { return e.Err }

// Temporary reports whether the same fetch could succeed on a later
// run. Corrupt streams are permanent failures.
func (e *VideoError) Temporary() bool {
	return e.Code == VideoNotReady || e.Code == VideoExhausted
}

// BindingError reports a mismatch between a node's declared frame
// inputs and the inputs actually wired in the graph.
type BindingError struct {
	Node NodeID
	Type string
	Want int
	Got  int
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("framegraph: node %d (%s): %d frame inputs bound, definition declares %d",
		e.Node, e.Type, e.Got, e.Want)
}

// sortNodeIDs sorts a slice of node IDs ascending, in place.
func sortNodeIDs(ids []NodeID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
