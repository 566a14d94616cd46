// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"slices"

	"github.com/gomlx/exceptions"
)

// Graph is a DAG of nodes: the body of the top level model or of a nested cell.
type Graph struct {
	name  string
	model *Model

	// nodes in insertion order, not including the hidden input and output nodes.
	nodes       []*Node
	nodesByName map[string]*Node
	edges       []*Edge

	inputNode, outputNode *Node

	// InputNames and OutputNames name the graph inputs (output slots of the input node) and the graph
	// outputs (input slots of the output node).
	InputNames, OutputNames []string
}

// Edge connects an output slot of the Head node to an input slot of the Tail node.
type Edge struct {
	Head, Tail EdgeEnd
}

// EdgeEnd is one end of an edge: a node and one of its slots.
type EdgeEnd struct {
	Node *Node
	Slot int
}

// Name of the graph.
func (g *Graph) Name() string { return g.name }

// Model owning the graph.
func (g *Graph) Model() *Model { return g.model }

// InputNode returns the hidden node whose output slots are the graph inputs.
func (g *Graph) InputNode() *Node { return g.inputNode }

// OutputNode returns the hidden node whose input slots are the graph outputs.
func (g *Graph) OutputNode() *Node { return g.outputNode }

// NumInputs of the graph.
func (g *Graph) NumInputs() int { return len(g.InputNames) }

// NumOutputs of the graph.
func (g *Graph) NumOutputs() int { return len(g.OutputNames) }

// Input returns the edge end of the graph input in the given slot.
func (g *Graph) Input(slot int) EdgeEnd { return g.inputNode.Out(slot) }

// Output returns the edge end of the graph output in the given slot.
func (g *Graph) Output(slot int) EdgeEnd { return g.outputNode.In(slot) }

// Nodes returns the non-hidden nodes of the graph in insertion order. Choice candidates are not included.
func (g *Graph) Nodes() []*Node {
	return append([]*Node(nil), g.nodes...)
}

// allNodes returns the input node, the nodes in insertion order and the output node.
func (g *Graph) allNodes() []*Node {
	all := make([]*Node, 0, len(g.nodes)+2)
	all = append(all, g.inputNode)
	all = append(all, g.nodes...)
	all = append(all, g.outputNode)
	return all
}

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []*Edge {
	return append([]*Edge(nil), g.edges...)
}

// NodeByName returns the node with the given name, or nil.
// The hidden nodes are named InputsNodeName and OutputsNodeName.
func (g *Graph) NodeByName(name string) *Node {
	return g.nodesByName[name]
}

func (g *Graph) newNode(name string, op Operation) *Node {
	if name == "" {
		exceptions.Panicf("graph %q: node name cannot be empty", g.name)
	}
	if _, found := g.nodesByName[name]; found {
		exceptions.Panicf("graph %q: node %q already exists", g.name, name)
	}
	if op.Parameters == nil {
		op.Parameters = make(Parameters)
	}
	node := &Node{
		id:        g.model.newNodeId(),
		graph:     g,
		Name:      name,
		Operation: op,
	}
	g.nodesByName[name] = node
	return node
}

// AddNode adds a new node with the given operation.
// It panics if the name is already used or the operation type is reserved for hidden or choice nodes.
func (g *Graph) AddNode(name string, op Operation) *Node {
	switch op.Type {
	case TypeInputs, TypeOutputs:
		exceptions.Panicf("graph %q: cannot add node %q with reserved type %q", g.name, name, op.Type)
	case TypeChoice:
		exceptions.Panicf("graph %q: use AddChoiceNode to add choice node %q", g.name, name)
	case "":
		exceptions.Panicf("graph %q: node %q has no operation type", g.name, name)
	}
	node := g.newNode(name, op)
	node.index = len(g.nodes) + 1
	g.nodes = append(g.nodes, node)
	return node
}

// CellOperation returns the operation of a node (or candidate) wrapping the cell graph.
func CellOperation(cell *Graph) Operation {
	return Operation{Type: TypeCell, CellName: cell.name}
}

// AddCellNode adds a node whose computation is the given cell graph.
func (g *Graph) AddCellNode(name string, cell *Graph) *Node {
	if cell.model != g.model {
		exceptions.Panicf("graph %q: cell %q belongs to a different model", g.name, cell.name)
	}
	return g.AddNode(name, CellOperation(cell))
}

// CandidateSpec describes one candidate of a choice node.
type CandidateSpec struct {
	// Name (label) of the candidate, unique within the choice.
	Name      string
	Operation Operation
}

// AddChoiceNode adds a node representing a choice among the given candidates.
// Candidates are leaf operations or cells (see CellOperation). They are not connected by edges:
// all of them take the inputs of the choice node.
func (g *Graph) AddChoiceNode(name string, params Parameters, candidates ...CandidateSpec) *Node {
	if len(candidates) == 0 {
		exceptions.Panicf("graph %q: choice node %q requires at least one candidate", g.name, name)
	}
	choice := g.newNode(name, Operation{Type: TypeChoice, Parameters: params})
	choice.index = len(g.nodes) + 1
	seen := make(map[string]bool, len(candidates))
	for _, spec := range candidates {
		if spec.Name == "" || seen[spec.Name] {
			exceptions.Panicf("graph %q: choice %q has an empty or repeated candidate name %q", g.name, name, spec.Name)
		}
		switch spec.Operation.Type {
		case "", TypeInputs, TypeOutputs, TypeChoice:
			exceptions.Panicf("graph %q: choice %q candidate %q has invalid type %q",
				g.name, name, spec.Name, spec.Operation.Type)
		}
		seen[spec.Name] = true
		op := spec.Operation
		// Candidates may be annotated concurrently, they can't share a parameters map.
		op.Parameters = op.Parameters.Clone()
		if op.Parameters == nil {
			op.Parameters = make(Parameters)
		}
		choice.candidates = append(choice.candidates, &Node{
			id:        g.model.newNodeId(),
			graph:     g,
			index:     choice.index,
			Name:      spec.Name,
			Operation: op,
			choice:    choice,
		})
	}
	g.nodes = append(g.nodes, choice)
	return choice
}

// AddEdge connects head (an output slot) to tail (an input slot).
//
// It panics if the nodes don't belong to this graph, if they are choice candidates, if the head is the
// output node or the tail the input node, or if the tail input slot is already bound.
func (g *Graph) AddEdge(head, tail EdgeEnd) *Edge {
	for _, end := range []EdgeEnd{head, tail} {
		if end.Node == nil || end.Node.graph != g || end.Node.choice != nil {
			exceptions.Panicf("graph %q: edge end %v is not a node of the graph", g.name, end.Node)
		}
		if end.Slot < 0 {
			exceptions.Panicf("graph %q: invalid slot %d for node %s", g.name, end.Slot, end.Node)
		}
	}
	if head.Node == g.outputNode {
		exceptions.Panicf("graph %q: the output node cannot be the head of an edge", g.name)
	}
	if tail.Node == g.inputNode {
		exceptions.Panicf("graph %q: the input node cannot be the tail of an edge", g.name)
	}
	if head.Node == g.inputNode && head.Slot >= g.NumInputs() {
		exceptions.Panicf("graph %q: input slot %d out of range, graph has %d inputs", g.name, head.Slot, g.NumInputs())
	}
	if tail.Node == g.outputNode && tail.Slot >= g.NumOutputs() {
		exceptions.Panicf("graph %q: output slot %d out of range, graph has %d outputs", g.name, tail.Slot, g.NumOutputs())
	}
	for _, e := range g.edges {
		if e.Tail == tail {
			exceptions.Panicf("graph %q: input slot %d of %s is already bound", g.name, tail.Slot, tail.Node)
		}
	}
	edge := &Edge{Head: head, Tail: tail}
	g.edges = append(g.edges, edge)
	return edge
}

// Chain is a shortcut to connect a single output to a single input through a sequence of nodes:
// from -> nodes[0] -> nodes[1] -> ..., using slot 0 for all intermediary nodes.
// It returns the last node's output end.
func (g *Graph) Chain(from EdgeEnd, nodes ...*Node) EdgeEnd {
	for _, node := range nodes {
		g.AddEdge(from, node.In(0))
		from = node.Out(0)
	}
	return from
}

// IncomingEdges of the node, sorted by the tail input slot.
func (g *Graph) IncomingEdges(node *Node) []*Edge {
	var edges []*Edge
	for _, e := range g.edges {
		if e.Tail.Node == node {
			edges = append(edges, e)
		}
	}
	slices.SortStableFunc(edges, func(a, b *Edge) int { return a.Tail.Slot - b.Tail.Slot })
	return edges
}

// OutgoingEdges of the node, in insertion order.
func (g *Graph) OutgoingEdges(node *Node) []*Edge {
	var edges []*Edge
	for _, e := range g.edges {
		if e.Head.Node == node {
			edges = append(edges, e)
		}
	}
	return edges
}

// Predecessors returns the distinct nodes feeding the node, in input slot order.
func (g *Graph) Predecessors(node *Node) []*Node {
	var nodes []*Node
	for _, e := range g.IncomingEdges(node) {
		if !slices.Contains(nodes, e.Head.Node) {
			nodes = append(nodes, e.Head.Node)
		}
	}
	return nodes
}

// Successors returns the distinct nodes fed by the node, in edge insertion order.
func (g *Graph) Successors(node *Node) []*Node {
	var nodes []*Node
	for _, e := range g.OutgoingEdges(node) {
		if !slices.Contains(nodes, e.Tail.Node) {
			nodes = append(nodes, e.Tail.Node)
		}
	}
	return nodes
}

// EntryNodes returns the nodes fed directly by the graph inputs.
func (g *Graph) EntryNodes() []*Node {
	return g.Successors(g.inputNode)
}

// ExitNodes returns the nodes feeding directly the graph outputs.
func (g *Graph) ExitNodes() []*Node {
	return g.Predecessors(g.outputNode)
}

// ClearShapes removes the shape annotations of all nodes (and choice candidates) of the graph.
// It doesn't descend into cell graphs.
func (g *Graph) ClearShapes() {
	for _, node := range g.allNodes() {
		node.ClearShapes()
	}
}
