package framegraph

import "container/heap"

// ExecutionOrder is a cached topological ordering of a graph, valid
// while the same graph's structural revision is unchanged. Revisions
// from different Graph instances are unrelated, so the order remembers
// which graph produced it.
type ExecutionOrder struct {
	Nodes    []NodeID
	Revision uint64

	graph *Graph
}

// nodeIDHeap is a min-heap of node IDs, used to make the topological
// sort deterministic: among nodes whose dependencies are all satisfied,
// the lowest ID executes first.
type nodeIDHeap []NodeID

func (h nodeIDHeap) Len() int           { return len(h) }
func (h nodeIDHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h nodeIDHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeIDHeap) Push(x any)        { *h = append(*h, x.(NodeID)) }
func (h *nodeIDHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// computeOrder topologically sorts the graph. Duplicate edges between
// the same node pair count once. If any nodes remain unordered they
// form one or more cycles and a CycleError naming them is returned.
func computeOrder(g *Graph) ([]NodeID, error) {
	indegree := make(map[NodeID]int, len(g.nodes))
	succs := make(map[NodeID]map[NodeID]bool)
	for id := range g.nodes {
		indegree[id] = 0
	}
	for _, c := range g.conns {
		if succs[c.FromNode] == nil {
			succs[c.FromNode] = map[NodeID]bool{}
		}
		if !succs[c.FromNode][c.ToNode] {
			succs[c.FromNode][c.ToNode] = true
			indegree[c.ToNode]++
		}
	}

	ready := &nodeIDHeap{}
	for id, deg := range indegree {
		if deg == 0 {
			*ready = append(*ready, id)
		}
	}
	heap.Init(ready)

	order := make([]NodeID, 0, len(g.nodes))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(NodeID)
		order = append(order, id)
		for to := range succs[id] {
			indegree[to]--
			if indegree[to] == 0 {
				heap.Push(ready, to)
			}
		}
	}

	if len(order) != len(g.nodes) {
		var cyclic []NodeID
		for id, deg := range indegree {
			if deg > 0 {
				cyclic = append(cyclic, id)
			}
		}
		sortNodeIDs(cyclic)
		return nil, &CycleError{Nodes: cyclic}
	}
	return order, nil
}
