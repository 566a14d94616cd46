// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"container/heap"
	"strings"
)

// indexHeap is a min-heap of positions in Graph.allNodes(), so the topological order is deterministic.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopologicalSort returns all nodes of the graph, including the hidden input and output nodes,
// in a topological order. Among the nodes ready to be visited, the earliest inserted goes first.
//
// It returns a *StructuralError with one cycle witness if the graph is not acyclic.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	all := g.allNodes()
	position := make(map[*Node]int, len(all))
	for ii, node := range all {
		position[node] = ii
	}
	inDegree := make([]int, len(all))
	outgoing := make([][]int, len(all))
	for _, e := range g.edges {
		head, tail := position[e.Head.Node], position[e.Tail.Node]
		inDegree[tail]++
		outgoing[head] = append(outgoing[head], tail)
	}

	ready := &indexHeap{}
	for ii, degree := range inDegree {
		if degree == 0 {
			heap.Push(ready, ii)
		}
	}
	order := make([]*Node, 0, len(all))
	for ready.Len() > 0 {
		ii := heap.Pop(ready).(int)
		order = append(order, all[ii])
		for _, jj := range outgoing[ii] {
			inDegree[jj]--
			if inDegree[jj] == 0 {
				heap.Push(ready, jj)
			}
		}
	}
	if len(order) == len(all) {
		return order, nil
	}
	cycle := g.findCycle(all, outgoing)
	names := make([]string, 0, len(cycle))
	for _, ii := range cycle {
		names = append(names, all[ii].Name)
	}
	var at *Node
	if len(cycle) > 0 {
		at = all[cycle[0]]
	}
	return nil, NewStructuralError(g, at, "graph is not acyclic, cycle: %s", strings.Join(names, " -> "))
}

// findCycle returns one cycle (first node repeated at the end) found by a DFS in insertion order.
func (g *Graph) findCycle(all []*Node, outgoing [][]int) []int {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(all))
	parent := make([]int, len(all))
	for ii := range parent {
		parent[ii] = -1
	}
	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range outgoing[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				// Back edge u -> v: walk parents back from u to v.
				path := []int{u}
				for cur := parent[u]; u != v && cur != -1 && cur != v; cur = parent[cur] {
					path = append(path, cur)
				}
				if u != v {
					path = append(path, v)
				}
				for ii := len(path) - 1; ii >= 0; ii-- {
					cycle = append(cycle, path[ii])
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}
	for ii := range all {
		if color[ii] == white && dfs(ii) {
			break
		}
	}
	return cycle
}

// Validate checks the graph structure:
//
//   - the graph is acyclic;
//   - every node but the input node has at least one bound input slot (see Node.TakesInputs);
//   - input slots of every node are bound without gaps (slot i bound implies slots 0..i-1 bound);
//   - every graph output is bound;
//   - choice nodes have at least one candidate.
//
// Cell references are checked by Model.Validate.
func (g *Graph) Validate() error {
	if _, err := g.TopologicalSort(); err != nil {
		return err
	}
	for _, node := range g.allNodes() {
		if node == g.inputNode {
			continue
		}
		incoming := g.IncomingEdges(node)
		if node != g.outputNode && len(incoming) == 0 && node.TakesInputs() {
			return NewStructuralError(g, node, "node has no bound input edge")
		}
		for slot, e := range incoming {
			if e.Tail.Slot != slot {
				return NewStructuralError(g, node, "input slot %d has no bound edge (next bound slot is %d)", slot, e.Tail.Slot)
			}
		}
		if node == g.outputNode && len(incoming) != g.NumOutputs() {
			return NewStructuralError(g, node, "graph output %d (%q) has no bound edge",
				len(incoming), g.OutputNames[len(incoming)])
		}
		if node.IsChoice() && len(node.candidates) == 0 {
			return NewStructuralError(g, node, "choice node has no candidates")
		}
	}
	return nil
}

// Validate checks every graph of the model (see Graph.Validate) and the cell references: the root graph
// must exist, every cell node (or cell candidate) must reference an existing graph other than the root,
// each cell graph is owned by exactly one cell node, and cells cannot (directly or indirectly) contain themselves.
func (m *Model) Validate() error {
	root := m.Root()
	if root == nil {
		return &StructuralError{NodeInfo: NodeInfo{Graph: RootGraphName}, Reason: "model has no root graph"}
	}
	owners := make(map[*Graph]*Node)
	checkCell := func(node *Node) error {
		if !node.IsCell() {
			return nil
		}
		cell := node.Cell()
		if cell == nil {
			return NewStructuralError(node.graph, node, "cell graph %q not found", node.Operation.CellName)
		}
		if cell == root {
			return NewStructuralError(node.graph, node, "cell cannot reference the root graph %q", RootGraphName)
		}
		if owner, found := owners[cell]; found {
			return NewStructuralError(node.graph, node, "cell graph %q is already owned by node %s", cell.name, owner)
		}
		owners[cell] = node
		return nil
	}
	for _, g := range m.graphs {
		if err := g.Validate(); err != nil {
			return err
		}
		for _, node := range g.nodes {
			if err := checkCell(node); err != nil {
				return err
			}
			for _, candidate := range node.candidates {
				if err := checkCell(candidate); err != nil {
					return err
				}
			}
		}
	}

	// Cells containing themselves: follow owners up to the root.
	for cell := range owners {
		seen := map[*Graph]bool{cell: true}
		for g := owners[cell].graph; g != root; {
			if seen[g] {
				return NewStructuralError(g, owners[cell], "cell graph %q is recursively nested in itself", cell.name)
			}
			seen[g] = true
			owner, found := owners[g]
			if !found {
				// Orphan graph: not reachable from the root, it is never propagated.
				break
			}
			g = owner.graph
		}
	}
	return nil
}
