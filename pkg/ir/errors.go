// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"strings"
)

// NodeInfo identifies the node an error refers to.
type NodeInfo struct {
	Graph    string
	NodeId   NodeId
	NodeName string
	NodeType string
}

// InfoOf returns the identification of the node, it works with a nil node.
func InfoOf(node *Node) NodeInfo {
	if node == nil {
		return NodeInfo{}
	}
	info := NodeInfo{NodeId: node.id, NodeName: node.Name, NodeType: node.Operation.Type}
	if node.graph != nil {
		info.Graph = node.graph.name
	}
	if node.choice != nil {
		info.NodeName = node.choice.Name + "/" + node.Name
	}
	return info
}

func (info NodeInfo) String() string {
	if info.NodeId == InvalidNodeId && info.NodeName == "" {
		return fmt.Sprintf("graph %q", info.Graph)
	}
	return fmt.Sprintf("node %q (#%d, type %q) in graph %q", info.NodeName, info.NodeId, info.NodeType, info.Graph)
}

// StructuralError reports a malformed IR: a cycle, a dangling reference or an input slot without a bound edge.
type StructuralError struct {
	NodeInfo
	Reason string
}

// Error implements error.
func (e *StructuralError) Error() string {
	return fmt.Sprintf("structural error at %s: %s", e.NodeInfo, e.Reason)
}

// NewStructuralError creates a StructuralError for the node (which can be nil for graph level errors).
func NewStructuralError(g *Graph, node *Node, format string, args ...any) *StructuralError {
	info := InfoOf(node)
	if node == nil && g != nil {
		info.Graph = g.name
	}
	return &StructuralError{NodeInfo: info, Reason: fmt.Sprintf(format, args...)}
}

// ShapeInferenceError reports that the shape of a node could not be inferred: its operation type is not registered,
// the shape rule rejected its inputs, or a predecessor shape was never resolved.
type ShapeInferenceError struct {
	NodeInfo
	Reason string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements error.
func (e *ShapeInferenceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("shape inference failed for %s: %s: %v", e.NodeInfo, e.Reason, e.Cause)
	}
	return fmt.Sprintf("shape inference failed for %s: %s", e.NodeInfo, e.Reason)
}

// Unwrap returns the cause.
func (e *ShapeInferenceError) Unwrap() error { return e.Cause }

// NewShapeInferenceError creates a ShapeInferenceError for the node. cause can be nil.
func NewShapeInferenceError(node *Node, cause error, format string, args ...any) *ShapeInferenceError {
	return &ShapeInferenceError{NodeInfo: InfoOf(node), Reason: fmt.Sprintf(format, args...), Cause: cause}
}

// CandidateFailure is the error of one candidate of a choice node.
type CandidateFailure struct {
	Index int
	Label string
	Err   error
}

// ChoiceError reports candidates of a choice node that failed propagation. Sibling candidates not listed
// were resolved successfully.
type ChoiceError struct {
	NodeInfo
	Failures []CandidateFailure
}

// Error implements error.
func (e *ChoiceError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("candidate #%d %q: %v", f.Index, f.Label, f.Err))
	}
	return fmt.Sprintf("%d candidate(s) of choice %s failed: %s", len(e.Failures), e.NodeInfo, strings.Join(parts, "; "))
}

// Unwrap returns the errors of each failed candidate.
func (e *ChoiceError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
