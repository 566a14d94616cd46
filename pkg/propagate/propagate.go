// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package propagate implements shape propagation over a model IR: it walks the graphs in topological order,
// recursing into cells and into every candidate of choice nodes, and annotates each node with its
// "input_shape" and "output_shape" (one shape per input/output slot).
//
// Example:
//
//	err := propagate.New(ops.Default()).Propagate(model, shapes.Make(1, 3, 224, 224))
//	convs := model.GetNodesByType(ops.Conv2d)
//	fmt.Println(convs[0].OutputShapes())  // [[1 1 222 222]]
package propagate

import (
	stderrors "errors"
	"runtime"
	"slices"
	"sync"

	"github.com/JiahangXu/nni/internal/workerspool"
	"github.com/JiahangXu/nni/pkg/core/shapes"
	"github.com/JiahangXu/nni/pkg/ir"
	"github.com/JiahangXu/nni/pkg/ops"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Propagator holds the configuration of shape propagation. It holds no state across calls, and can be used
// concurrently on different models.
type Propagator struct {
	registry    *ops.Registry
	parallelism int
	validate    bool
}

// New returns a Propagator that uses the given registry for leaf operations. If registry is nil, ops.Default()
// is used.
//
// By default candidates of choice nodes are propagated in parallel (runtime.NumCPU() workers), and the model
// is validated before propagation.
func New(registry *ops.Registry) *Propagator {
	if registry == nil {
		registry = ops.Default()
	}
	return &Propagator{
		registry:    registry,
		parallelism: runtime.NumCPU(),
		validate:    true,
	}
}

// WithParallelism sets the number of workers used to propagate the candidates of choice nodes:
// 0 propagates them sequentially and -1 means unlimited.
// It returns the Propagator itself, so calls can be chained.
func (p *Propagator) WithParallelism(n int) *Propagator {
	p.parallelism = n
	return p
}

// WithValidation sets whether Model.Validate is called before propagation. Without it, structural defects
// are still reported by the walk, but possibly after other nodes were annotated.
// It returns the Propagator itself, so calls can be chained.
func (p *Propagator) WithValidation(validate bool) *Propagator {
	p.validate = validate
	return p
}

// Registry used for leaf operations.
func (p *Propagator) Registry() *ops.Registry { return p.registry }

// Shapes propagates the given input shapes through the model with the default registry and configuration.
func Shapes(model *ir.Model, inputs ...shapes.Shape) error {
	return New(nil).Propagate(model, inputs...)
}

// Propagate annotates every node of the model (nested cells and choice candidates included) with its
// input and output shapes, given the shapes of the inputs of the root graph.
//
// Previous annotations are removed first, so re-running it gives the same result. On failure the failing node
// and its downstream nodes are left without annotations, and the error is an *ir.StructuralError or an
// *ir.ShapeInferenceError (matched with errors.As).
//
// Failures of choice candidates don't stop the propagation: they are collected in one *ir.ChoiceError per
// choice node and returned after the pass, while the other candidates keep their annotations.
func (p *Propagator) Propagate(model *ir.Model, inputs ...shapes.Shape) error {
	model.ClearShapes()
	if p.validate {
		if err := model.Validate(); err != nil {
			return err
		}
	}
	root := model.Root()
	if root == nil {
		return ir.NewStructuralError(nil, nil, "model has no root graph %q", ir.RootGraphName)
	}
	klog.V(1).Infof("Propagating input shapes %s through model %s", shapes.List(inputs), model.ID)
	pass := p.newPass()
	outputs, err := pass.graph(root, inputs, nil)
	if err == nil {
		klog.V(1).Infof("Model %s output shapes: %s", model.ID, outputs)
	}
	return pass.result(err)
}

// PropagateGraph is like Propagate, but for a single graph of a model (and the cells it references), without
// validation of the whole model. It returns the shapes of the graph outputs.
func (p *Propagator) PropagateGraph(g *ir.Graph, inputs shapes.List) (shapes.List, error) {
	clearGraph(g, make(map[*ir.Graph]bool))
	if p.validate {
		if err := g.Validate(); err != nil {
			return nil, err
		}
	}
	pass := p.newPass()
	outputs, err := pass.graph(g, inputs, nil)
	if err = pass.result(err); err != nil {
		return nil, err
	}
	return outputs, nil
}

// clearGraph removes the annotations of the graph, and of the cells it references.
func clearGraph(g *ir.Graph, visited map[*ir.Graph]bool) {
	if g == nil || visited[g] {
		return
	}
	visited[g] = true
	g.ClearShapes()
	for _, node := range g.Nodes() {
		clearGraph(node.Cell(), visited)
		for _, candidate := range node.Candidates() {
			clearGraph(candidate.Cell(), visited)
		}
	}
}

// pass holds the state of one propagation.
type pass struct {
	*Propagator
	pool *workerspool.Pool

	mu           sync.Mutex
	choiceErrors []*ir.ChoiceError
}

func (p *Propagator) newPass() *pass {
	return &pass{Propagator: p, pool: workerspool.New(p.parallelism)}
}

func (ps *pass) addChoiceError(err *ir.ChoiceError) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.choiceErrors = append(ps.choiceErrors, err)
}

// result combines the error that aborted the pass (if any) with the choice errors, ordered by node id.
func (ps *pass) result(err error) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if len(ps.choiceErrors) == 0 {
		return err
	}
	slices.SortFunc(ps.choiceErrors, func(a, b *ir.ChoiceError) int {
		return int(a.NodeId) - int(b.NodeId)
	})
	errs := make([]error, 0, len(ps.choiceErrors)+1)
	if err != nil {
		errs = append(errs, err)
	}
	for _, choiceErr := range ps.choiceErrors {
		errs = append(errs, choiceErr)
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return stderrors.Join(errs...)
}

// errUnresolved is the cause of errors of nodes fed by a choice whose default candidate failed.
var errUnresolved = errors.New("unresolved predecessor")
