package framegraph

import (
	"errors"
	"testing"
)

func TestGraphAddRemove(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("image-source")
	b := g.AddNode("invert")
	if a == b {
		t.Fatalf("AddNode returned duplicate ID %d", a)
	}
	if g.NodeCount() != 2 {
		t.Fatalf("NodeCount = %d, want 2", g.NodeCount())
	}

	if !g.RemoveNode(a) {
		t.Fatal("RemoveNode(a) = false")
	}
	if g.RemoveNode(a) {
		t.Fatal("RemoveNode(a) second call = true")
	}
	if g.NodeCount() != 1 {
		t.Fatalf("NodeCount after remove = %d, want 1", g.NodeCount())
	}

	// IDs are never reused.
	c := g.AddNode("blit")
	if c == a {
		t.Fatalf("AddNode reused removed ID %d", a)
	}
}

func TestGraphConnect(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("image-source")
	b := g.AddNode("invert")

	if err := g.Connect(a, 0, b, 0); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c, ok := g.InputTo(b, 0)
	if !ok || c.FromNode != a {
		t.Fatalf("InputTo(b, 0) = %+v, %v", c, ok)
	}

	if err := g.Connect(a, 0, NodeID(99), 0); !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("Connect to unknown node: err = %v, want ErrUnknownNode", err)
	}

	var cyc *CycleError
	if err := g.Connect(a, 0, a, 0); !errors.As(err, &cyc) {
		t.Fatalf("self connect: err = %v, want CycleError", err)
	}
}

func TestGraphConnectReplacesInput(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("image-source")
	b := g.AddNode("image-source")
	c := g.AddNode("invert")

	if err := g.Connect(a, 0, c, 0); err != nil {
		t.Fatalf("Connect a: %v", err)
	}
	if err := g.Connect(b, 0, c, 0); err != nil {
		t.Fatalf("Connect b: %v", err)
	}
	if len(g.Connections()) != 1 {
		t.Fatalf("connections = %d, want 1 (replacement)", len(g.Connections()))
	}
	conn, _ := g.InputTo(c, 0)
	if conn.FromNode != b {
		t.Fatalf("InputTo after replace = node %d, want %d", conn.FromNode, b)
	}
}

func TestGraphRemoveNodeDropsConnections(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("image-source")
	b := g.AddNode("invert")
	c := g.AddNode("blit")
	if err := g.Connect(a, 0, b, 0); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect(b, 0, c, 0); err != nil {
		t.Fatal(err)
	}

	g.RemoveNode(b)
	if n := len(g.Connections()); n != 0 {
		t.Fatalf("connections after removing middle node = %d, want 0", n)
	}
}

func TestGraphRevision(t *testing.T) {
	g := NewGraph()
	r0 := g.Revision()
	a := g.AddNode("image-source")
	b := g.AddNode("invert")
	if g.Revision() == r0 {
		t.Fatal("AddNode did not bump revision")
	}

	r1 := g.Revision()
	if err := g.Connect(a, 0, b, 0); err != nil {
		t.Fatal(err)
	}
	if g.Revision() == r1 {
		t.Fatal("Connect did not bump revision")
	}

	// Param edits invalidate through fingerprints, not structure.
	r2 := g.Revision()
	g.SetParam(a, "source", FileParam("x.png"))
	if g.Revision() != r2 {
		t.Fatal("SetParam bumped revision")
	}
}

func TestGraphOutputNodes(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("image-source")
	b := g.AddNode("invert")
	c := g.AddNode("grayscale")
	if err := g.Connect(a, 0, b, 0); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect(a, 0, c, 0); err != nil {
		t.Fatal(err)
	}

	out := g.OutputNodes()
	if len(out) != 2 || out[0] != b || out[1] != c {
		t.Fatalf("OutputNodes = %v, want [%d %d]", out, b, c)
	}
}

func TestGraphNodesSorted(t *testing.T) {
	g := NewGraph()
	for i := 0; i < 10; i++ {
		g.AddNode("blit")
	}
	nodes := g.Nodes()
	for i := 1; i < len(nodes); i++ {
		if nodes[i-1].ID >= nodes[i].ID {
			t.Fatalf("Nodes not ascending at %d: %d >= %d", i, nodes[i-1].ID, nodes[i].ID)
		}
	}
}
