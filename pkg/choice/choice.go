// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package choice expands choice nodes (a search-space decision point, e.g. a LayerChoice) into their
// candidates, each one an independent sub-graph rooted at the choice node's inputs.
package choice

import (
	"github.com/JiahangXu/nni/pkg/ir"
)

// DefaultKey is the choice node parameter selecting the default candidate, by index or label.
const DefaultKey = "default"

// Candidate is one of the mutually exclusive alternatives of a choice node.
type Candidate struct {
	// Index of the candidate in declaration order.
	Index int

	// Label is the candidate name, unique within the choice.
	Label string

	// Node holding the candidate operation, and where its shapes are annotated.
	Node *ir.Node

	// Cell is the graph of a cell candidate, nil for leaf operations.
	Cell *ir.Graph
}

// IsCell returns whether the candidate is a nested sub-graph.
func (c Candidate) IsCell() bool { return c.Cell != nil }

// ExpandCandidates returns the candidates of the choice node, in declaration order.
//
// It returns an *ir.StructuralError if node is not a choice, has no candidates, has an invalid default (see
// DefaultIndex), or if a cell candidate references a graph that doesn't exist.
func ExpandCandidates(node *ir.Node) ([]Candidate, error) {
	if node == nil {
		return nil, ir.NewStructuralError(nil, nil, "ExpandCandidates() called with a nil node")
	}
	if !node.IsChoice() {
		return nil, ir.NewStructuralError(node.Graph(), node, "node is not a choice (type %q)", node.Type())
	}
	nodes := node.Candidates()
	if len(nodes) == 0 {
		return nil, ir.NewStructuralError(node.Graph(), node, "choice has no candidates")
	}
	if _, err := DefaultIndex(node); err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(nodes))
	for ii, candidateNode := range nodes {
		candidate := Candidate{Index: ii, Label: candidateNode.Name, Node: candidateNode}
		if candidateNode.IsCell() {
			candidate.Cell = candidateNode.Cell()
			if candidate.Cell == nil {
				return nil, ir.NewStructuralError(node.Graph(), candidateNode, "candidate references missing cell %q",
					candidateNode.Operation.CellName)
			}
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

// DefaultIndex returns the index of the candidate whose outputs feed the nodes downstream of the choice.
//
// It is given by the DefaultKey parameter of the choice node, either as an index or as a candidate label.
// If missing, the first candidate is used, as does the traced model. A value that doesn't select one of the
// candidates is reported as an *ir.StructuralError.
func DefaultIndex(node *ir.Node) (int, error) {
	value, found := node.Operation.Parameters.Get(DefaultKey)
	if !found || value == nil {
		return 0, nil
	}
	candidates := node.Candidates()
	switch v := value.(type) {
	case string:
		for ii, candidate := range candidates {
			if candidate.Name == v {
				return ii, nil
			}
		}
	case int:
		if v >= 0 && v < len(candidates) {
			return v, nil
		}
	case float64:
		if idx := int(v); float64(idx) == v && idx >= 0 && idx < len(candidates) {
			return idx, nil
		}
	}
	return 0, ir.NewStructuralError(node.Graph(), node, "%q parameter %v doesn't select any of the %d candidates",
		DefaultKey, value, len(candidates))
}
