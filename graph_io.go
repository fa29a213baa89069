package framegraph

import (
	"encoding/json"
	"fmt"
	"os"
)

// graphJSON is the wire form of a Graph.
type graphJSON struct {
	Nodes       []nodeJSON       `json:"nodes"`
	Connections []connectionJSON `json:"connections,omitempty"`
}

type nodeJSON struct {
	ID     NodeID               `json:"id"`
	Type   string               `json:"type"`
	Params map[string]paramJSON `json:"params,omitempty"`
}

type connectionJSON struct {
	From       NodeID `json:"from"`
	FromOutput int    `json:"from_output,omitempty"`
	To         NodeID `json:"to"`
	ToInput    int    `json:"to_input,omitempty"`
}

// paramJSON flattens the Param union. Kind is the discriminator; only
// the matching value field is emitted.
type paramJSON struct {
	Kind  string    `json:"kind"`
	Bool  bool      `json:"bool,omitempty"`
	Int   int64     `json:"int,omitempty"`
	Float float64   `json:"float,omitempty"`
	Vec4  []float64 `json:"vec4,omitempty"`
	Text  string    `json:"text,omitempty"`
	Dims  [2]uint32 `json:"dims,omitempty"`
}

func paramToJSON(p Param) paramJSON {
	out := paramJSON{Kind: p.Kind.String()}
	switch p.Kind {
	case ParamBool:
		out.Bool = p.Bool
	case ParamInt:
		out.Int = p.Int
	case ParamFloat:
		out.Float = p.Float
	case ParamVec4:
		out.Vec4 = p.Vec4[:]
	case ParamText, ParamFile:
		out.Text = p.Text
	case ParamDimensions:
		out.Dims = p.Dims
	}
	return out
}

func paramFromJSON(j paramJSON) (Param, error) {
	switch j.Kind {
	case "bool":
		return BoolParam(j.Bool), nil
	case "int":
		return IntParam(j.Int), nil
	case "float":
		return FloatParam(j.Float), nil
	case "vec4":
		if len(j.Vec4) != 4 {
			return Param{}, fmt.Errorf("framegraph: vec4 param needs 4 components, got %d", len(j.Vec4))
		}
		return Vec4Param(j.Vec4[0], j.Vec4[1], j.Vec4[2], j.Vec4[3]), nil
	case "text":
		return TextParam(j.Text), nil
	case "file":
		return FileParam(j.Text), nil
	case "dimensions":
		return DimensionsParam(j.Dims[0], j.Dims[1]), nil
	default:
		return Param{}, fmt.Errorf("framegraph: unknown param kind %q", j.Kind)
	}
}

// MarshalJSON encodes the graph with nodes in ascending ID order, so
// the output is stable across marshals of the same graph.
func (g *Graph) MarshalJSON() ([]byte, error) {
	out := graphJSON{Nodes: make([]nodeJSON, 0, len(g.nodes))}
	for _, n := range g.Nodes() {
		nj := nodeJSON{ID: n.ID, Type: n.Type}
		if len(n.Params) > 0 {
			nj.Params = make(map[string]paramJSON, len(n.Params))
			for name, p := range n.Params {
				nj.Params[name] = paramToJSON(p)
			}
		}
		out.Nodes = append(out.Nodes, nj)
	}
	for _, c := range g.conns {
		out.Connections = append(out.Connections, connectionJSON{
			From: c.FromNode, FromOutput: c.FromOutput,
			To: c.ToNode, ToInput: c.ToInput,
		})
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes into the graph, replacing its contents. Node
// IDs are preserved; the next assigned ID continues past the highest
// decoded ID.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var in graphJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("framegraph: decode graph: %w", err)
	}

	nodes := make(map[NodeID]*Node, len(in.Nodes))
	nextID := NodeID(1)
	for _, nj := range in.Nodes {
		if nj.ID == 0 {
			return fmt.Errorf("framegraph: node with zero ID")
		}
		if _, ok := nodes[nj.ID]; ok {
			return fmt.Errorf("framegraph: duplicate node ID %d", nj.ID)
		}
		n := &Node{ID: nj.ID, Type: nj.Type, Params: map[string]Param{}}
		for name, pj := range nj.Params {
			p, err := paramFromJSON(pj)
			if err != nil {
				return fmt.Errorf("framegraph: node %d param %q: %w", nj.ID, name, err)
			}
			n.Params[name] = p
		}
		nodes[nj.ID] = n
		if nj.ID >= nextID {
			nextID = nj.ID + 1
		}
	}

	conns := make([]Connection, 0, len(in.Connections))
	for _, cj := range in.Connections {
		if _, ok := nodes[cj.From]; !ok {
			return fmt.Errorf("framegraph: connection from unknown node %d", cj.From)
		}
		if _, ok := nodes[cj.To]; !ok {
			return fmt.Errorf("framegraph: connection to unknown node %d", cj.To)
		}
		conns = append(conns, Connection{
			FromNode: cj.From, FromOutput: cj.FromOutput,
			ToNode: cj.To, ToInput: cj.ToInput,
		})
	}

	g.nodes = nodes
	g.conns = conns
	g.nextID = nextID
	g.revision++
	return nil
}

// LoadGraph reads a graph from a JSON file.
func LoadGraph(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("framegraph: read graph file: %w", err)
	}
	g := NewGraph()
	if err := g.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return g, nil
}

// SaveGraph writes a graph to a JSON file.
func SaveGraph(g *Graph, path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("framegraph: write graph file: %w", err)
	}
	return nil
}
