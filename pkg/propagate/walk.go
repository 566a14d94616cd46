// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package propagate

import (
	"slices"
	"strings"

	"github.com/JiahangXu/nni/pkg/choice"
	"github.com/JiahangXu/nni/pkg/core/shapes"
	"github.com/JiahangXu/nni/pkg/ir"
	"github.com/JiahangXu/nni/pkg/ops"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// graph propagates the inputs through g, and returns the shapes of its outputs.
// It stops at the first node that fails, and returns its error.
//
// within lists the graphs being walked that lead to g, outermost first: a cell re-entering any of them is
// reported as a structural error.
func (ps *pass) graph(g *ir.Graph, inputs shapes.List, within []*ir.Graph) (shapes.List, error) {
	if len(inputs) != g.NumInputs() {
		return nil, ir.NewShapeInferenceError(g.InputNode(), nil, "graph %q takes %d inputs, got %d shapes",
			g.Name(), g.NumInputs(), len(inputs))
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	within = append(slices.Clip(within), g)

	// resolved holds the output shapes of the nodes visited so far. Choice nodes resolve to their default
	// candidate's outputs, and are missing if it failed.
	resolved := make(map[*ir.Node]shapes.List, len(order))
	for _, node := range order {
		if node == g.InputNode() {
			node.SetOutputShapes(inputs.Clone())
			resolved[node] = inputs
			continue
		}
		nodeInputs, err := ps.gatherInputs(g, node, resolved)
		if err != nil {
			return nil, err
		}
		if node == g.OutputNode() {
			node.SetInputShapes(nodeInputs)
			if klog.V(2).Enabled() {
				var exits []string
				for _, exit := range g.ExitNodes() {
					exits = append(exits, exit.Name)
				}
				klog.Infof("Graph %q outputs %s, from %s", g.Name(), nodeInputs, strings.Join(exits, ", "))
			}
			return nodeInputs.Clone(), nil
		}

		if node.IsChoice() {
			outputs, ok, err := ps.choiceNode(node, nodeInputs, within)
			if err != nil {
				return nil, err
			}
			if ok {
				resolved[node] = outputs
			}
			continue
		}
		outputs, err := ps.node(node, nodeInputs, within)
		if err != nil {
			return nil, err
		}
		resolved[node] = outputs
	}
	// TopologicalSort always includes the output node.
	return nil, ir.NewStructuralError(g, nil, "graph has no output node")
}

// gatherInputs returns the shapes of the node inputs, in input slot order.
func (ps *pass) gatherInputs(g *ir.Graph, node *ir.Node, resolved map[*ir.Node]shapes.List) (shapes.List, error) {
	edges := g.IncomingEdges(node)
	if len(edges) == 0 && node != g.OutputNode() && node.TakesInputs() {
		return nil, ir.NewStructuralError(g, node, "node has no bound input edge")
	}
	numInputs := 0
	for _, edge := range edges {
		numInputs = max(numInputs, edge.Tail.Slot+1)
	}
	if node == g.OutputNode() && numInputs < g.NumOutputs() {
		return nil, ir.NewStructuralError(g, node, "graph output #%d is not bound to any node", numInputs)
	}
	inputs := make(shapes.List, numInputs)
	bound := make([]bool, numInputs)
	for _, edge := range edges {
		head := edge.Head
		headOutputs, found := resolved[head.Node]
		if !found {
			return nil, ir.NewShapeInferenceError(node, errUnresolved, "shape of input #%d (from %q) was never resolved",
				edge.Tail.Slot, head.Node.Name)
		}
		if head.Slot >= len(headOutputs) {
			return nil, ir.NewShapeInferenceError(node, nil, "input #%d reads output #%d of %q, which has only %d outputs",
				edge.Tail.Slot, head.Slot, head.Node.Name, len(headOutputs))
		}
		inputs[edge.Tail.Slot] = headOutputs[head.Slot].Clone()
		bound[edge.Tail.Slot] = true
	}
	for slot, isBound := range bound {
		if !isBound {
			return nil, ir.NewStructuralError(g, node, "input slot #%d has no bound edge", slot)
		}
	}
	return inputs, nil
}

// node computes and annotates the shapes of a leaf operation or a cell.
// On failure the node is left without annotations.
func (ps *pass) node(node *ir.Node, inputs shapes.List, within []*ir.Graph) (outputs shapes.List, err error) {
	if node.IsCell() {
		cell := node.Cell()
		if cell == nil {
			return nil, ir.NewStructuralError(node.Graph(), node, "cell %q not found", node.Operation.CellName)
		}
		if slices.Contains(within, cell) {
			return nil, ir.NewStructuralError(node.Graph(), node, "cell graph %q is recursively nested in itself", cell.Name())
		}
		outputs, err = ps.graph(cell, inputs, within)
		if err != nil {
			return nil, errors.WithMessagef(err, "in cell %q", cell.Name())
		}
	} else {
		outputs, err = ps.registry.Infer(node.Type(), inputs, node.Operation.Parameters)
		if err != nil {
			reason := "shape rule rejected the input shapes " + inputs.String()
			if errors.Is(err, ops.ErrUnregistered) {
				reason = "unregistered operation type"
			}
			return nil, ir.NewShapeInferenceError(node, err, "%s", reason)
		}
	}
	node.SetInputShapes(inputs)
	node.SetOutputShapes(outputs)
	klog.V(2).Infof("%s: %s -> %s", node.Path(), inputs, outputs)
	return outputs, nil
}

// choiceNode propagates the inputs through every candidate of the choice node, each independently and possibly in
// parallel. The choice node is only annotated with its input shapes.
//
// It returns the outputs of the default candidate, and ok=false if it failed. Failing candidates are
// reported as an *ir.ChoiceError at the end of the pass; err is only returned for structural defects.
func (ps *pass) choiceNode(node *ir.Node, inputs shapes.List, within []*ir.Graph) (outputs shapes.List, ok bool, err error) {
	candidates, err := choice.ExpandCandidates(node)
	if err != nil {
		return nil, false, err
	}
	defaultIdx, err := choice.DefaultIndex(node)
	if err != nil {
		return nil, false, err
	}
	node.SetInputShapes(inputs)

	type result struct {
		outputs shapes.List
		err     error
	}
	results := make([]result, len(candidates))
	ps.pool.ForEach(len(candidates), func(ii int) {
		results[ii].outputs, results[ii].err = ps.node(candidates[ii].Node, inputs.Clone(), within)
	})

	var failures []ir.CandidateFailure
	for ii, r := range results {
		if r.err != nil {
			klog.V(1).Infof("%s: candidate %q failed: %v", node.Path(), candidates[ii].Label, r.err)
			failures = append(failures, ir.CandidateFailure{Index: ii, Label: candidates[ii].Label, Err: r.err})
			continue
		}
		if ii != defaultIdx && results[defaultIdx].err == nil && !r.outputs.Equal(results[defaultIdx].outputs) {
			klog.Warningf("%s: candidate %q outputs %s, while the default candidate %q outputs %s: downstream nodes use the default",
				node.Path(), candidates[ii].Label, r.outputs, candidates[defaultIdx].Label, results[defaultIdx].outputs)
		}
	}
	if len(failures) > 0 {
		ps.addChoiceError(&ir.ChoiceError{NodeInfo: ir.InfoOf(node), Failures: failures})
	}
	if results[defaultIdx].err != nil {
		return nil, false, nil
	}
	return results[defaultIdx].outputs, true, nil
}
