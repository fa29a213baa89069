package framegraph

import (
	"fmt"
	"sort"
)

// NodeID identifies a node within a Graph. IDs are assigned by AddNode
// and never reused for the life of the graph.
type NodeID uint32

// ParamKind discriminates the Param union.
type ParamKind uint8

// Parameter kinds.
const (
	ParamBool ParamKind = iota
	ParamInt
	ParamFloat
	ParamVec4
	ParamText
	ParamFile
	ParamDimensions
)

// String returns the kind name.
func (k ParamKind) String() string {
	switch k {
	case ParamBool:
		return "bool"
	case ParamInt:
		return "int"
	case ParamFloat:
		return "float"
	case ParamVec4:
		return "vec4"
	case ParamText:
		return "text"
	case ParamFile:
		return "file"
	case ParamDimensions:
		return "dimensions"
	default:
		return fmt.Sprintf("ParamKind(%d)", k)
	}
}

// Param is a closed tagged union of node parameter values. Only the
// field matching Kind is meaningful; use the constructor functions.
type Param struct {
	Kind  ParamKind
	Bool  bool
	Int   int64
	Float float64
	Vec4  [4]float64
	Text  string // ParamText and ParamFile
	Dims  [2]uint32
}

// BoolParam returns a boolean parameter.
func BoolParam(v bool) Param { return Param{Kind: ParamBool, Bool: v} }

// IntParam returns an integer parameter.
func IntParam(v int64) Param { return Param{Kind: ParamInt, Int: v} }

// FloatParam returns a floating point parameter.
func FloatParam(v float64) Param { return Param{Kind: ParamFloat, Float: v} }

// Vec4Param returns a four-component parameter (colors, rects).
func Vec4Param(x, y, z, w float64) Param {
	return Param{Kind: ParamVec4, Vec4: [4]float64{x, y, z, w}}
}

// TextParam returns a text parameter.
func TextParam(v string) Param { return Param{Kind: ParamText, Text: v} }

// FileParam returns a file path parameter.
func FileParam(path string) Param { return Param{Kind: ParamFile, Text: path} }

// DimensionsParam returns a width/height parameter.
func DimensionsParam(w, h uint32) Param {
	return Param{Kind: ParamDimensions, Dims: [2]uint32{w, h}}
}

// Node is a single operation instance in a graph.
type Node struct {
	ID     NodeID
	Type   string
	Params map[string]Param
}

// Connection wires one node's output port to another node's input port.
type Connection struct {
	FromNode   NodeID
	FromOutput int
	ToNode     NodeID
	ToInput    int
}

// Graph is a mutable node graph. It is a pure data structure with no
// GPU state; the Executor interprets it against a Library.
//
// Graph is not safe for concurrent mutation.
type Graph struct {
	nodes    map[NodeID]*Node
	conns    []Connection
	nextID   NodeID
	revision uint64
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: map[NodeID]*Node{}, nextID: 1}
}

// Revision returns the structural revision counter. It is bumped by
// node and connection changes but not by parameter edits, and is used
// to invalidate cached execution orders.
func (g *Graph) Revision() uint64 { return g.revision }

// AddNode inserts a node of the given type and returns its ID.
func (g *Graph) AddNode(typeTag string) NodeID {
	id := g.nextID
	g.nextID++
	g.nodes[id] = &Node{ID: id, Type: typeTag, Params: map[string]Param{}}
	g.revision++
	return id
}

// RemoveNode deletes a node and every connection touching it. Returns
// false if the node does not exist.
func (g *Graph) RemoveNode(id NodeID) bool {
	if _, ok := g.nodes[id]; !ok {
		return false
	}
	delete(g.nodes, id)
	kept := g.conns[:0]
	for _, c := range g.conns {
		if c.FromNode != id && c.ToNode != id {
			kept = append(kept, c)
		}
	}
	g.conns = kept
	g.revision++
	return true
}

// Connect wires from's output port to to's input port. An existing
// connection into the same input is replaced. Self-connections are
// rejected; other cycles are detected at execution time.
func (g *Graph) Connect(from NodeID, fromOutput int, to NodeID, toInput int) error {
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, from)
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, to)
	}
	if from == to {
		return &CycleError{Nodes: []NodeID{from}}
	}

	g.Disconnect(to, toInput)
	g.conns = append(g.conns, Connection{
		FromNode: from, FromOutput: fromOutput,
		ToNode: to, ToInput: toInput,
	})
	g.revision++
	return nil
}

// Disconnect removes the connection into the given input port, if any.
func (g *Graph) Disconnect(to NodeID, toInput int) bool {
	for i, c := range g.conns {
		if c.ToNode == to && c.ToInput == toInput {
			g.conns = append(g.conns[:i], g.conns[i+1:]...)
			g.revision++
			return true
		}
	}
	return false
}

// SetParam sets a parameter on a node. Parameter edits do not bump the
// structural revision; they invalidate cached outputs through the node
// fingerprint instead. Returns false if the node does not exist.
func (g *Graph) SetParam(id NodeID, name string, p Param) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	n.Params[name] = p
	return true
}

// Node returns a node by ID.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// Nodes returns all nodes ordered by ascending ID.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Connections returns a copy of all connections.
func (g *Graph) Connections() []Connection {
	out := make([]Connection, len(g.conns))
	copy(out, g.conns)
	return out
}

// InputTo returns the connection feeding the given input port.
func (g *Graph) InputTo(to NodeID, toInput int) (Connection, bool) {
	for _, c := range g.conns {
		if c.ToNode == to && c.ToInput == toInput {
			return c, true
		}
	}
	return Connection{}, false
}

// OutputNodes returns the graph's terminal nodes: nodes with no
// outgoing connections, ascending by ID. These are the nodes whose
// frames an execution run returns.
func (g *Graph) OutputNodes() []NodeID {
	hasOut := map[NodeID]bool{}
	for _, c := range g.conns {
		hasOut[c.FromNode] = true
	}
	var out []NodeID
	for id := range g.nodes {
		if !hasOut[id] {
			out = append(out, id)
		}
	}
	sortNodeIDs(out)
	return out
}
