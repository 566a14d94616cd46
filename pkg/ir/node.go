// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"

	"github.com/JiahangXu/nni/pkg/core/shapes"
)

// Reserved operation types.
const (
	// TypeCell is the type of a node representing a nested module, whose computation is the
	// graph named by Operation.CellName.
	TypeCell = "_cell"

	// TypeChoice is the type of a node representing mutually exclusive candidates (a "LayerChoice").
	TypeChoice = "_choice"

	// TypeInputs is the type of the hidden node whose outputs are the graph inputs.
	TypeInputs = "_inputs"

	// TypeOutputs is the type of the hidden node whose inputs are the graph outputs.
	TypeOutputs = "_outputs"
)

// Names of the hidden boundary nodes of every graph.
const (
	InputsNodeName  = "_inputs"
	OutputsNodeName = "_outputs"
)

// Keys of the shape annotations in Operation.Parameters.
const (
	InputShapeKey  = "input_shape"
	OutputShapeKey = "output_shape"
)

// NodeId is unique within a Model, and stable for the lifetime of the node.
type NodeId int

// InvalidNodeId is the id of a node not yet added to a model.
const InvalidNodeId = NodeId(0)

// Operation of a node: its type and parameters.
type Operation struct {
	// Type identifies the operation, e.g. "__torch__.torch.nn.modules.conv.Conv2d", or one of the reserved types.
	Type string

	// CellName is the name of the cell graph, only used by TypeCell nodes.
	CellName string

	// Parameters of the operation, including the shape annotations.
	Parameters Parameters
}

// Parameters maps parameter name to value.
type Parameters map[string]any

// Get returns the parameter value and whether it was found. It works on a nil Parameters.
func (p Parameters) Get(key string) (value any, found bool) {
	value, found = p[key]
	return
}

// GetOr returns the parameter value, or defaultValue if not set.
func (p Parameters) GetOr(key string, defaultValue any) any {
	if value, found := p[key]; found {
		return value
	}
	return defaultValue
}

// Clone returns a shallow copy of the parameters.
func (p Parameters) Clone() Parameters {
	if p == nil {
		return nil
	}
	p2 := make(Parameters, len(p))
	for k, v := range p {
		p2[k] = v
	}
	return p2
}

// Node in a Graph.
type Node struct {
	id    NodeId
	graph *Graph

	// index of the node in its graph, used for deterministic ordering.
	index int

	// Name is unique among the nodes of a graph.
	Name string

	Operation Operation

	// candidates of a TypeChoice node, and the choice node owning a candidate.
	candidates []*Node
	choice     *Node
}

// Id returns the model unique id of the node.
func (n *Node) Id() NodeId { return n.id }

// Graph the node belongs to. For choice candidates, it is the graph of the choice node.
func (n *Node) Graph() *Graph { return n.graph }

// Type of the node's operation.
func (n *Node) Type() string { return n.Operation.Type }

// IsCell returns whether the node is a nested module.
func (n *Node) IsCell() bool { return n.Operation.Type == TypeCell }

// IsChoice returns whether the node is a choice among candidates.
func (n *Node) IsChoice() bool { return n.Operation.Type == TypeChoice }

// IsHidden returns whether it is one of the graph's boundary nodes.
func (n *Node) IsHidden() bool {
	return n.Operation.Type == TypeInputs || n.Operation.Type == TypeOutputs
}

// IsCandidate returns whether the node is a candidate of a choice node.
func (n *Node) IsCandidate() bool { return n.choice != nil }

// Choice returns the choice node owning this candidate, or nil.
func (n *Node) Choice() *Node { return n.choice }

// Candidates of a choice node, in declaration order. It returns nil for other nodes.
func (n *Node) Candidates() []*Node {
	return append([]*Node(nil), n.candidates...)
}

// Cell returns the graph of a cell node, or nil if the node is not a cell or the graph doesn't exist.
func (n *Node) Cell() *Graph {
	if !n.IsCell() || n.graph == nil {
		return nil
	}
	return n.graph.model.Graph(n.Operation.CellName)
}

// TakesInputs returns whether the node needs at least one bound input slot. Only the graph input node,
// the output node of a graph without outputs and cells wrapping a graph without inputs don't.
func (n *Node) TakesInputs() bool {
	switch n.Operation.Type {
	case TypeInputs:
		return false
	case TypeOutputs:
		return n.graph == nil || n.graph.NumOutputs() > 0
	case TypeCell:
		if cell := n.Cell(); cell != nil {
			return cell.NumInputs() > 0
		}
	}
	return true
}

// Path of the node, prefixed by its graph name, and by the choice name for candidates.
func (n *Node) Path() string {
	if n.choice != nil {
		return n.choice.Path() + "/" + n.Name
	}
	if n.graph == nil {
		return n.Name
	}
	return n.graph.name + "/" + n.Name
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	return fmt.Sprintf("%s(#%d, %s)", n.Path(), n.id, n.Operation.Type)
}

// Out returns the edge end for the given output slot of the node.
func (n *Node) Out(slot int) EdgeEnd { return EdgeEnd{Node: n, Slot: slot} }

// In returns the edge end for the given input slot of the node.
func (n *Node) In(slot int) EdgeEnd { return EdgeEnd{Node: n, Slot: slot} }

func (n *Node) shapesParam(key string) shapes.List {
	value, found := n.Operation.Parameters[key]
	if !found {
		return nil
	}
	list, _ := value.(shapes.List)
	return list
}

// InputShapes returns the "input_shape" annotation, or nil if not annotated.
func (n *Node) InputShapes() shapes.List { return n.shapesParam(InputShapeKey) }

// OutputShapes returns the "output_shape" annotation, or nil if not annotated.
func (n *Node) OutputShapes() shapes.List { return n.shapesParam(OutputShapeKey) }

// SetInputShapes sets the "input_shape" annotation, overwriting any previous value.
func (n *Node) SetInputShapes(list shapes.List) {
	if n.Operation.Parameters == nil {
		n.Operation.Parameters = make(Parameters)
	}
	n.Operation.Parameters[InputShapeKey] = list
}

// SetOutputShapes sets the "output_shape" annotation, overwriting any previous value.
func (n *Node) SetOutputShapes(list shapes.List) {
	if n.Operation.Parameters == nil {
		n.Operation.Parameters = make(Parameters)
	}
	n.Operation.Parameters[OutputShapeKey] = list
}

// ClearShapes removes the shape annotations of the node and, for choice nodes, of its candidates.
// It doesn't descend into cell graphs.
func (n *Node) ClearShapes() {
	delete(n.Operation.Parameters, InputShapeKey)
	delete(n.Operation.Parameters, OutputShapeKey)
	for _, candidate := range n.candidates {
		candidate.ClearShapes()
	}
}
