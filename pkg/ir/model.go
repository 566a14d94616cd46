// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ir defines the intermediate representation (IR) of a neural network model used by the
// architecture search: a Model holds named Graphs, a Graph holds Nodes connected by Edges.
//
// The main elements in the package are:
//
//   - Model: the top level container, with a root Graph named RootGraphName and any number of
//     nested graphs ("cells").
//   - Graph: a DAG of Nodes, with two hidden boundary nodes: the input node (type TypeInputs), whose
//     outputs are the graph inputs, and the output node (type TypeOutputs), whose inputs are the graph outputs.
//   - Node: one operation (Operation.Type is the operator type id, e.g.
//     "__torch__.torch.nn.modules.conv.Conv2d"), a nested module (type TypeCell, which references a cell Graph
//     by name), or a search space decision point (type TypeChoice), holding an ordered list of candidates.
//   - Operation.Parameters: the node's parameters, including the "input_shape" and "output_shape" annotations
//     added by shape propagation (see package propagate).
//
// Building methods (Model.NewGraph, Graph.AddNode, Graph.AddEdge, ...) panic (with exceptions.Panicf) on misuse,
// the same way graph building does elsewhere in this repository. Use exceptions.TryCatch to convert to errors.
// Structural queries (Model.Validate, Graph.TopologicalSort) return *StructuralError instead.
package ir

import (
	"github.com/gomlx/exceptions"
	"github.com/google/uuid"
)

// RootGraphName is the name of the graph representing the top level module.
const RootGraphName = "_model"

// Model is the IR of a whole model: a root graph plus the graphs of every nested cell.
type Model struct {
	// ID of the model, assigned at creation.
	ID uuid.UUID

	// graphs in creation order.
	graphs       []*Graph
	graphsByName map[string]*Graph

	nextNodeId NodeId
}

// NewModel creates an empty Model. Create the root graph with NewGraph(RootGraphName, ...).
func NewModel() *Model {
	return &Model{
		ID:           uuid.New(),
		graphsByName: make(map[string]*Graph),
		nextNodeId:   1,
	}
}

// NewGraph creates a new graph in the model, with the given input and output names.
// The number of inputs and outputs defines the slots of the hidden input and output nodes.
//
// It panics if a graph with the same name already exists.
func (m *Model) NewGraph(name string, inputNames, outputNames []string) *Graph {
	if name == "" {
		exceptions.Panicf("Model.NewGraph(): graph name cannot be empty")
	}
	if _, found := m.graphsByName[name]; found {
		exceptions.Panicf("Model.NewGraph(%q): graph already exists", name)
	}
	g := &Graph{
		name:        name,
		model:       m,
		nodesByName: make(map[string]*Node),
		InputNames:  append([]string(nil), inputNames...),
		OutputNames: append([]string(nil), outputNames...),
	}
	g.inputNode = g.newNode(InputsNodeName, Operation{Type: TypeInputs})
	g.outputNode = g.newNode(OutputsNodeName, Operation{Type: TypeOutputs})
	m.graphs = append(m.graphs, g)
	m.graphsByName[name] = g
	return g
}

// Root returns the graph representing the top level module, or nil if it was not created yet.
func (m *Model) Root() *Graph {
	return m.graphsByName[RootGraphName]
}

// Graph returns the graph with the given name, or nil if not found.
func (m *Model) Graph(name string) *Graph {
	return m.graphsByName[name]
}

// Graphs returns all graphs in creation order.
func (m *Model) Graphs() []*Graph {
	return append([]*Graph(nil), m.graphs...)
}

func (m *Model) newNodeId() NodeId {
	id := m.nextNodeId
	m.nextNodeId++
	return id
}

// Walk visits every non-hidden node reachable from the root graph in a deterministic pre-order:
// nodes of a graph in insertion order; after a cell node, the nodes of its cell graph;
// after a choice node, its candidates in declaration order (recursing into candidate cells).
//
// If fn returns false the walk stops.
func (m *Model) Walk(fn func(node *Node) bool) {
	root := m.Root()
	if root == nil {
		return
	}
	visiting := make(map[*Graph]bool)
	root.walk(fn, visiting)
}

func (g *Graph) walk(fn func(node *Node) bool, visiting map[*Graph]bool) bool {
	if visiting[g] {
		// Malformed (recursive) cell references: Validate reports those.
		return true
	}
	visiting[g] = true
	defer delete(visiting, g)
	for _, node := range g.nodes {
		if !node.walk(fn, visiting) {
			return false
		}
	}
	return true
}

func (n *Node) walk(fn func(node *Node) bool, visiting map[*Graph]bool) bool {
	if !fn(n) {
		return false
	}
	switch {
	case n.IsCell():
		if cell := n.Cell(); cell != nil {
			return cell.walk(fn, visiting)
		}
	case n.IsChoice():
		for _, candidate := range n.candidates {
			if !candidate.walk(fn, visiting) {
				return false
			}
		}
	}
	return true
}

// GetNodesByType returns every node reachable from the root graph (including nodes in nested cells
// and choice candidates) whose type is typeId, in the order of Walk.
//
// It returns an empty slice if nothing matches.
func (m *Model) GetNodesByType(typeId string) []*Node {
	nodes := make([]*Node, 0)
	m.Walk(func(node *Node) bool {
		if node.Type() == typeId {
			nodes = append(nodes, node)
		}
		return true
	})
	return nodes
}

// GetNodeByName returns the first node (in Walk order) with the given name, or nil.
func (m *Model) GetNodeByName(name string) (found *Node) {
	m.Walk(func(node *Node) bool {
		if node.Name == name {
			found = node
			return false
		}
		return true
	})
	return
}

// GetNodeById returns the node with the given id, or nil.
func (m *Model) GetNodeById(id NodeId) (found *Node) {
	for _, g := range m.graphs {
		for _, node := range g.allNodes() {
			if node.id == id {
				return node
			}
			for _, candidate := range node.candidates {
				if candidate.id == id {
					return candidate
				}
			}
		}
	}
	return nil
}

// ClearShapes removes the shape annotations of every node in every graph of the model.
func (m *Model) ClearShapes() {
	for _, g := range m.graphs {
		g.ClearShapes()
	}
}
