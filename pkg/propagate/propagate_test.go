// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package propagate

import (
	"testing"

	"github.com/JiahangXu/nni/pkg/core/shapes"
	"github.com/JiahangXu/nni/pkg/ir"
	"github.com/JiahangXu/nni/pkg/ops"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MS is a shortcut to shapes.Make.
var MS = shapes.Make

func conv(in, out, kernel, padding int) ir.Operation {
	return ir.Operation{Type: ops.Conv2d, Parameters: ir.Parameters{
		"in_channels": in, "out_channels": out, "kernel_size": kernel, "padding": padding}}
}

var (
	relu    = ir.Operation{Type: ops.ReLU}
	maxPool = ir.Operation{Type: ops.MaxPool2d, Parameters: ir.Parameters{"kernel_size": 2}}
)

func newRoot() (*ir.Model, *ir.Graph) {
	m := ir.NewModel()
	return m, m.NewGraph(ir.RootGraphName, []string{"x"}, []string{"y"})
}

// buildConvNet: conv(3->1, k=3) -> relu -> max_pool(2).
func buildConvNet() *ir.Model {
	m, root := newRoot()
	root.AddEdge(root.Chain(root.Input(0),
		root.AddNode("conv", conv(3, 1, 3, 0)),
		root.AddNode("relu", relu),
		root.AddNode("pool", maxPool)), root.Output(0))
	return m
}

// buildNestedCell: cell(conv(3->1, k=3) -> relu) -> max_pool(2).
func buildNestedCell() *ir.Model {
	m, root := newRoot()
	cell := m.NewGraph("_model__block", []string{"x"}, []string{"y"})
	cell.AddEdge(cell.Chain(cell.Input(0),
		cell.AddNode("conv", conv(3, 1, 3, 0)),
		cell.AddNode("relu", relu)), cell.Output(0))
	root.AddEdge(root.Chain(root.Input(0),
		root.AddCellNode("block", cell),
		root.AddNode("pool", maxPool)), root.Output(0))
	return m
}

// buildLayerChoice: choice(conv(3->1, k=3), conv(3->1, k=5, padding=1)) -> max_pool(2).
func buildLayerChoice(params ir.Parameters, extra ...ir.CandidateSpec) *ir.Model {
	m, root := newRoot()
	candidates := append([]ir.CandidateSpec{
		{Name: "0", Operation: conv(3, 1, 3, 0)},
		{Name: "1", Operation: conv(3, 1, 5, 1)},
	}, extra...)
	root.AddEdge(root.Chain(root.Input(0),
		root.AddChoiceNode("layer_choice", params, candidates...),
		root.AddNode("pool", maxPool)), root.Output(0))
	return m
}

// buildMultiInput: relu(x) -> add(relu, x).
func buildMultiInput() *ir.Model {
	m, root := newRoot()
	r := root.AddNode("relu", relu)
	add := root.AddNode("add", ir.Operation{Type: ops.AtenAdd})
	root.AddEdge(root.Input(0), r.In(0))
	root.AddEdge(r.Out(0), add.In(0))
	root.AddEdge(root.Input(0), add.In(1))
	root.AddEdge(add.Out(0), root.Output(0))
	return m
}

func dimsOf(list shapes.List) [][]int { return list.ToDims() }

func TestConvNet(t *testing.T) {
	m := buildConvNet()
	require.NoError(t, New(nil).Propagate(m, MS(1, 3, 224, 224)))

	convNode := m.GetNodeByName("conv")
	assert.Equal(t, [][]int{{1, 3, 224, 224}}, dimsOf(convNode.InputShapes()))
	assert.Equal(t, [][]int{{1, 1, 222, 222}}, dimsOf(convNode.OutputShapes()))
	reluNode := m.GetNodesByType(ops.ReLU)[0]
	assert.True(t, reluNode.InputShapes().Equal(reluNode.OutputShapes()))
	poolNode := m.GetNodeByName("pool")
	assert.Equal(t, [][]int{{1, 1, 111, 111}}, dimsOf(poolNode.OutputShapes()))

	// Annotations are stored in the operation parameters.
	value, found := convNode.Operation.Parameters.Get(ir.OutputShapeKey)
	require.True(t, found)
	assert.Equal(t, [][]int{{1, 1, 222, 222}}, value.(shapes.List).ToDims())
	assert.Equal(t, [][]int{{1, 1, 111, 111}}, dimsOf(m.Root().OutputNode().InputShapes()))
}

func TestNestedCell(t *testing.T) {
	m := buildNestedCell()
	require.NoError(t, Shapes(m, MS(1, 3, 224, 224)))

	cells := m.GetNodesByType(ir.TypeCell)
	require.Len(t, cells, 1)
	assert.Equal(t, [][]int{{1, 3, 224, 224}}, dimsOf(cells[0].InputShapes()))
	assert.Equal(t, [][]int{{1, 1, 222, 222}}, dimsOf(cells[0].OutputShapes()))

	inner := m.GetNodesByType(ops.Conv2d)
	require.Len(t, inner, 1)
	assert.Equal(t, "_model__block/conv", inner[0].Path())
	assert.Equal(t, [][]int{{1, 1, 222, 222}}, dimsOf(inner[0].OutputShapes()))
	assert.Equal(t, [][]int{{1, 1, 111, 111}}, dimsOf(m.GetNodeByName("pool").OutputShapes()))
}

func TestLayerChoice(t *testing.T) {
	m := buildLayerChoice(nil)
	require.NoError(t, New(nil).Propagate(m, MS(1, 3, 224, 224)))

	candidates := m.GetNodesByType(ops.Conv2d)
	require.Len(t, candidates, 2)
	for _, candidate := range candidates {
		require.True(t, candidate.IsCandidate())
		assert.Equal(t, [][]int{{1, 3, 224, 224}}, dimsOf(candidate.InputShapes()))
		assert.Equal(t, [][]int{{1, 1, 222, 222}}, dimsOf(candidate.OutputShapes()))
	}
	// Per candidate, not shared.
	assert.NotSame(t, &candidates[0].OutputShapes()[0], &candidates[1].OutputShapes()[0])

	choiceNode := m.GetNodesByType(ir.TypeChoice)[0]
	assert.Equal(t, [][]int{{1, 3, 224, 224}}, dimsOf(choiceNode.InputShapes()))
	assert.Nil(t, choiceNode.OutputShapes())
	assert.Equal(t, [][]int{{1, 1, 111, 111}}, dimsOf(m.GetNodeByName("pool").OutputShapes()))
}

func TestDisagreeingCandidates(t *testing.T) {
	// Candidate "wide" outputs 8 channels: downstream nodes follow the default one.
	wide := ir.CandidateSpec{Name: "wide", Operation: conv(3, 8, 3, 0)}
	m := buildLayerChoice(nil, wide)
	require.NoError(t, New(nil).Propagate(m, MS(1, 3, 224, 224)))
	assert.Equal(t, [][]int{{1, 8, 222, 222}}, dimsOf(m.GetNodeByName("wide").OutputShapes()))
	assert.Equal(t, [][]int{{1, 1, 111, 111}}, dimsOf(m.GetNodeByName("pool").OutputShapes()))

	m = buildLayerChoice(ir.Parameters{"default": "wide"}, wide)
	require.NoError(t, New(nil).Propagate(m, MS(1, 3, 224, 224)))
	assert.Equal(t, [][]int{{1, 8, 111, 111}}, dimsOf(m.GetNodeByName("pool").OutputShapes()))
}

func TestIdempotent(t *testing.T) {
	for _, m := range []*ir.Model{buildConvNet(), buildNestedCell(), buildLayerChoice(nil)} {
		p := New(nil)
		require.NoError(t, p.Propagate(m, MS(1, 3, 224, 224)))
		first := must.M1(ir.Marshal(m))
		require.NoError(t, p.Propagate(m, MS(1, 3, 224, 224)))
		second := must.M1(ir.Marshal(m))
		assert.Equal(t, string(first), string(second))
	}

	// Re-running with other inputs overwrites the annotations.
	m := buildConvNet()
	require.NoError(t, New(nil).Propagate(m, MS(1, 3, 224, 224)))
	require.NoError(t, New(nil).Propagate(m, MS(2, 3, 32, 32)))
	assert.Equal(t, [][]int{{2, 1, 15, 15}}, dimsOf(m.GetNodeByName("pool").OutputShapes()))
}

func TestUnknownDims(t *testing.T) {
	m := buildConvNet()
	require.NoError(t, New(nil).Propagate(m, MS(shapes.UnknownDim, 3, 224, 224)))
	assert.Equal(t, [][]int{{shapes.UnknownDim, 1, 111, 111}}, dimsOf(m.GetNodeByName("pool").OutputShapes()))
}

func TestUnregisteredOp(t *testing.T) {
	m, root := newRoot()
	root.AddEdge(root.Chain(root.Input(0),
		root.AddNode("conv", conv(3, 1, 3, 0)),
		root.AddNode("mystery", ir.Operation{Type: "custom::Mystery"}),
		root.AddNode("relu", relu)), root.Output(0))

	err := New(nil).Propagate(m, MS(1, 3, 224, 224))
	require.Error(t, err)
	var shapeErr *ir.ShapeInferenceError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, "mystery", shapeErr.NodeName)
	assert.Equal(t, "custom::Mystery", shapeErr.NodeType)
	assert.Equal(t, m.GetNodeByName("mystery").Id(), shapeErr.NodeId)
	assert.True(t, errors.Is(err, ops.ErrUnregistered))
	assert.Contains(t, err.Error(), "custom::Mystery")

	assert.NotNil(t, m.GetNodeByName("conv").OutputShapes())
	assert.Nil(t, m.GetNodeByName("mystery").OutputShapes())
	assert.Nil(t, m.GetNodeByName("mystery").InputShapes())
	assert.Nil(t, m.GetNodeByName("relu").OutputShapes())
}

func TestFailureClearsStaleAnnotations(t *testing.T) {
	m := buildConvNet()
	require.NoError(t, New(nil).Propagate(m, MS(1, 3, 224, 224)))
	require.NotNil(t, m.GetNodeByName("pool").OutputShapes())

	// 4 channels don't match in_channels=3.
	err := New(nil).Propagate(m, MS(1, 4, 224, 224))
	var shapeErr *ir.ShapeInferenceError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, "conv", shapeErr.NodeName)
	for _, name := range []string{"conv", "relu", "pool"} {
		assert.Nilf(t, m.GetNodeByName(name).OutputShapes(), "node %q", name)
	}

	// Wrong number of inputs.
	err = New(nil).Propagate(m)
	require.True(t, errors.As(err, &shapeErr))
	err = New(nil).Propagate(m, MS(1, 3, 224, 224), MS(1, 3, 224, 224))
	require.True(t, errors.As(err, &shapeErr))

	// Structural failures found by validation also drop the previous annotations.
	m = buildMultiInput()
	require.NoError(t, New(nil).Propagate(m, MS(1, 3, 8, 8)))
	require.NotNil(t, m.GetNodeByName("relu").OutputShapes())
	root := m.Root()
	add := root.AddNode("add2", ir.Operation{Type: ops.AtenAdd})
	root.AddEdge(m.GetNodeByName("relu").Out(0), add.In(1))
	var structErr *ir.StructuralError
	require.True(t, errors.As(New(nil).Propagate(m, MS(1, 3, 16, 16)), &structErr))
	assert.Equal(t, "add2", structErr.NodeName)
	for _, node := range append(root.Nodes(), root.InputNode(), root.OutputNode()) {
		assert.Nilf(t, node.InputShapes(), "node %q", node.Name)
		assert.Nilf(t, node.OutputShapes(), "node %q", node.Name)
	}

	// Same for a single graph.
	m = buildNestedCell()
	cell := m.Graph("_model__block")
	_ = must.M1(New(nil).PropagateGraph(cell, shapes.List{MS(1, 3, 10, 10)}))
	cell.AddNode("dangling", relu)
	_, err = New(nil).PropagateGraph(cell, shapes.List{MS(1, 3, 10, 10)})
	require.True(t, errors.As(err, &structErr))
	assert.Equal(t, "dangling", structErr.NodeName)
	assert.Nil(t, cell.NodeByName("conv").OutputShapes())

	// Failure inside a cell names the inner node.
	m = buildNestedCell()
	err = New(nil).Propagate(m, MS(1, 4, 224, 224))
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, "_model__block", shapeErr.Graph)
	assert.Equal(t, "conv", shapeErr.NodeName)
	assert.Nil(t, m.GetNodesByType(ir.TypeCell)[0].OutputShapes())
}

func TestCandidateIsolation(t *testing.T) {
	// Candidate "bad" expects 4 input channels.
	bad := ir.CandidateSpec{Name: "bad", Operation: conv(4, 1, 3, 0)}
	m := buildLayerChoice(nil, bad)
	err := New(nil).Propagate(m, MS(1, 3, 224, 224))
	require.Error(t, err)

	var choiceErr *ir.ChoiceError
	require.True(t, errors.As(err, &choiceErr))
	assert.Equal(t, "layer_choice", choiceErr.NodeName)
	require.Len(t, choiceErr.Failures, 1)
	assert.Equal(t, 2, choiceErr.Failures[0].Index)
	assert.Equal(t, "bad", choiceErr.Failures[0].Label)
	var shapeErr *ir.ShapeInferenceError
	require.True(t, errors.As(choiceErr.Failures[0].Err, &shapeErr))
	assert.Equal(t, "layer_choice/bad", shapeErr.NodeName)

	// Siblings and downstream nodes are resolved.
	assert.Equal(t, [][]int{{1, 1, 222, 222}}, dimsOf(m.GetNodeByName("0").OutputShapes()))
	assert.Equal(t, [][]int{{1, 1, 222, 222}}, dimsOf(m.GetNodeByName("1").OutputShapes()))
	assert.Nil(t, m.GetNodeByName("bad").OutputShapes())
	assert.Equal(t, [][]int{{1, 1, 111, 111}}, dimsOf(m.GetNodeByName("pool").OutputShapes()))
}

func TestFailedDefaultCandidate(t *testing.T) {
	bad := ir.CandidateSpec{Name: "bad", Operation: conv(4, 1, 3, 0)}
	m := buildLayerChoice(ir.Parameters{"default": 2}, bad)
	err := New(nil).WithParallelism(0).Propagate(m, MS(1, 3, 224, 224))
	require.Error(t, err)

	var choiceErr *ir.ChoiceError
	require.True(t, errors.As(err, &choiceErr))
	var shapeErr *ir.ShapeInferenceError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, "pool", shapeErr.NodeName)
	assert.True(t, errors.Is(err, errUnresolved))

	assert.NotNil(t, m.GetNodeByName("0").OutputShapes())
	assert.Nil(t, m.GetNodeByName("pool").OutputShapes())
}

func TestCellCandidates(t *testing.T) {
	m, root := newRoot()
	block := m.NewGraph("_model__choice__block", []string{"x"}, []string{"y"})
	block.AddEdge(block.Chain(block.Input(0),
		block.AddNode("conv", conv(3, 4, 3, 1)),
		block.AddNode("bn", ir.Operation{Type: ops.BatchNorm2d, Parameters: ir.Parameters{"num_features": 4}}),
		block.AddNode("relu", relu)), block.Output(0))
	node := root.AddChoiceNode("choice", nil,
		ir.CandidateSpec{Name: "block", Operation: ir.CellOperation(block)},
		ir.CandidateSpec{Name: "identity", Operation: ir.Operation{Type: ops.Identity}})
	root.AddEdge(root.Chain(root.Input(0), node), root.Output(0))

	require.NoError(t, New(nil).Propagate(m, MS(1, 3, 16, 16)))
	candidates := node.Candidates()
	assert.Equal(t, [][]int{{1, 4, 16, 16}}, dimsOf(candidates[0].OutputShapes()))
	assert.Equal(t, [][]int{{1, 3, 16, 16}}, dimsOf(candidates[1].OutputShapes()))
	assert.Equal(t, [][]int{{1, 4, 16, 16}}, dimsOf(block.NodeByName("bn").OutputShapes()))
	assert.Equal(t, [][]int{{1, 4, 16, 16}}, dimsOf(m.Root().OutputNode().InputShapes()))
}

func TestMultiOutput(t *testing.T) {
	m := ir.NewModel()
	root := m.NewGraph(ir.RootGraphName, []string{"x"}, []string{"y"})
	chunk := root.AddNode("chunk", ir.Operation{Type: ops.AtenChunk, Parameters: ir.Parameters{"chunks": 2, "dim": 1}})
	left := root.AddNode("left", conv(2, 3, 1, 0))
	right := root.AddNode("right", conv(2, 3, 3, 1))
	add := root.AddNode("add", ir.Operation{Type: ops.AtenAdd})
	root.AddEdge(root.Input(0), chunk.In(0))
	root.AddEdge(chunk.Out(0), left.In(0))
	root.AddEdge(chunk.Out(1), right.In(0))
	root.AddEdge(left.Out(0), add.In(0))
	root.AddEdge(right.Out(0), add.In(1))
	root.AddEdge(add.Out(0), root.Output(0))

	require.NoError(t, New(nil).Propagate(m, MS(1, 4, 8, 8)))
	assert.Equal(t, [][]int{{1, 2, 8, 8}, {1, 2, 8, 8}}, dimsOf(chunk.OutputShapes()))
	assert.Equal(t, [][]int{{1, 3, 8, 8}, {1, 3, 8, 8}}, dimsOf(add.InputShapes()))
	assert.Equal(t, [][]int{{1, 3, 8, 8}}, dimsOf(add.OutputShapes()))

	// Reading a slot the operation doesn't produce.
	m = ir.NewModel()
	root = m.NewGraph(ir.RootGraphName, []string{"x"}, []string{"y"})
	chunk = root.AddNode("chunk", ir.Operation{Type: ops.AtenChunk, Parameters: ir.Parameters{"chunks": 2, "dim": 1}})
	root.AddEdge(root.Input(0), chunk.In(0))
	root.AddEdge(chunk.Out(2), root.Output(0))
	var shapeErr *ir.ShapeInferenceError
	require.True(t, errors.As(New(nil).Propagate(m, MS(1, 4, 8, 8)), &shapeErr))
}

func TestStructuralErrors(t *testing.T) {
	m, root := newRoot()
	a := root.AddNode("a", relu)
	b := root.AddNode("b", relu)
	root.AddEdge(a.Out(0), b.In(0))
	root.AddEdge(b.Out(0), a.In(0))
	root.AddEdge(b.Out(0), root.Output(0))

	for _, validate := range []bool{true, false} {
		err := New(nil).WithValidation(validate).Propagate(m, MS(1))
		var structErr *ir.StructuralError
		require.Truef(t, errors.As(err, &structErr), "validate=%v: got %v", validate, err)
		assert.Contains(t, structErr.Reason, "cycle")
	}

	// Unbound input slot 0 (only slot 1 is bound).
	m, root = newRoot()
	add := root.AddNode("add", ir.Operation{Type: ops.AtenAdd})
	root.AddEdge(root.Input(0), add.In(1))
	root.AddEdge(add.Out(0), root.Output(0))
	for _, validate := range []bool{true, false} {
		err := New(nil).WithValidation(validate).Propagate(m, MS(1))
		var structErr *ir.StructuralError
		require.Truef(t, errors.As(err, &structErr), "validate=%v: got %v", validate, err)
		assert.Equal(t, "add", structErr.NodeName)
	}

	// Node without any bound input.
	m, root = newRoot()
	root.AddEdge(root.Chain(root.Input(0), root.AddNode("relu", relu)), root.Output(0))
	root.AddNode("dangling", conv(3, 1, 3, 0))
	for _, validate := range []bool{true, false} {
		err := New(nil).WithValidation(validate).Propagate(m, MS(1, 3, 8, 8))
		var structErr *ir.StructuralError
		require.Truef(t, errors.As(err, &structErr), "validate=%v: got %v", validate, err)
		assert.Equal(t, "dangling", structErr.NodeName)
	}

	// Cell containing itself.
	m, root = newRoot()
	loop := m.NewGraph("_model__loop", []string{"x"}, []string{"y"})
	loop.AddEdge(loop.Chain(loop.Input(0), loop.AddCellNode("self", loop)), loop.Output(0))
	root.AddEdge(root.Chain(root.Input(0), root.AddCellNode("loop", loop)), root.Output(0))
	for _, validate := range []bool{true, false} {
		err := New(nil).WithValidation(validate).Propagate(m, MS(1))
		var structErr *ir.StructuralError
		require.Truef(t, errors.As(err, &structErr), "validate=%v: got %v", validate, err)
		assert.Equal(t, "self", structErr.NodeName)
	}

	// Default that doesn't select any candidate.
	m = buildLayerChoice(ir.Parameters{"default": 7})
	for _, validate := range []bool{true, false} {
		err := New(nil).WithValidation(validate).Propagate(m, MS(1, 3, 224, 224))
		var structErr *ir.StructuralError
		require.Truef(t, errors.As(err, &structErr), "validate=%v: got %v", validate, err)
		assert.Equal(t, "layer_choice", structErr.NodeName)
		assert.Nil(t, m.GetNodeByName("0").OutputShapes())
	}

	// No root graph.
	m = ir.NewModel()
	m.NewGraph("_model__orphan", []string{"x"}, []string{"y"})
	var structErr *ir.StructuralError
	require.True(t, errors.As(New(nil).WithValidation(false).Propagate(m, MS(1)), &structErr))
}

// annotations returns the shapes of every node, by path.
func annotations(m *ir.Model) map[string][2][][]int {
	result := make(map[string][2][][]int)
	m.Walk(func(node *ir.Node) bool {
		result[node.Path()] = [2][][]int{node.InputShapes().ToDims(), node.OutputShapes().ToDims()}
		return true
	})
	return result
}

func TestParallelism(t *testing.T) {
	build := func() *ir.Model {
		m, root := newRoot()
		from := root.Input(0)
		for ii := range 3 {
			var specs []ir.CandidateSpec
			for jj, kernel := range []int{1, 3, 5} {
				cell := m.NewGraph("_model__choice"+string(rune('0'+ii))+"__"+string(rune('0'+jj)), []string{"x"}, []string{"y"})
				cell.AddEdge(cell.Chain(cell.Input(0),
					cell.AddNode("conv", conv(3, 3, kernel, kernel/2)),
					cell.AddNode("relu", relu)), cell.Output(0))
				specs = append(specs, ir.CandidateSpec{Name: string(rune('a' + jj)), Operation: ir.CellOperation(cell)})
			}
			specs = append(specs, ir.CandidateSpec{Name: "pool", Operation: ir.Operation{Type: ops.AvgPool2d,
				Parameters: ir.Parameters{"kernel_size": 3, "stride": 1, "padding": 1}}})
			from = root.Chain(from, root.AddChoiceNode("choice"+string(rune('0'+ii)), nil, specs...))
		}
		root.AddEdge(from, root.Output(0))
		return m
	}

	sequential, parallel, unlimited := build(), build(), build()
	require.NoError(t, New(nil).WithParallelism(0).Propagate(sequential, MS(2, 3, 32, 32)))
	require.NoError(t, New(nil).WithParallelism(2).Propagate(parallel, MS(2, 3, 32, 32)))
	require.NoError(t, New(nil).WithParallelism(-1).Propagate(unlimited, MS(2, 3, 32, 32)))
	want := annotations(sequential)
	assert.Equal(t, want, annotations(parallel))
	assert.Equal(t, want, annotations(unlimited))
	assert.Equal(t, [][]int{{2, 3, 32, 32}}, want["_model__choice2__1/relu"][1])
}

func TestPropagateGraph(t *testing.T) {
	m := buildNestedCell()
	cell := m.Graph("_model__block")
	outputs, err := New(nil).PropagateGraph(cell, shapes.List{MS(1, 3, 10, 10)})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 1, 8, 8}}, outputs.ToDims())
	assert.Nil(t, m.GetNodeByName("pool").OutputShapes())

	_, err = New(nil).PropagateGraph(cell, shapes.List{MS(1, 2, 10, 10)})
	require.Error(t, err)
	assert.Nil(t, cell.NodeByName("conv").OutputShapes())
}

func TestCustomRegistry(t *testing.T) {
	registry := ops.NewRegistry()
	ops.RegisterStandard(registry)
	registry.MustRegister(ops.OpDef{Type: "custom::Mystery", Family: ops.FamilyElementwise, MinInputs: 1, MaxInputs: 1,
		Rule: func(inputs shapes.List, _ ir.Parameters) (shapes.List, error) {
			return shapes.List{inputs[0].Clone()}, nil
		}})

	m, root := newRoot()
	root.AddEdge(root.Chain(root.Input(0),
		root.AddNode("conv", conv(3, 1, 3, 0)),
		root.AddNode("mystery", ir.Operation{Type: "custom::Mystery"})), root.Output(0))
	p := New(registry)
	assert.Same(t, registry, p.Registry())
	require.NoError(t, p.Propagate(m, MS(1, 3, 224, 224)))
	assert.Equal(t, [][]int{{1, 1, 222, 222}}, dimsOf(m.GetNodeByName("mystery").OutputShapes()))
}
