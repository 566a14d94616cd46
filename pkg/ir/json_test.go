// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"path/filepath"
	"testing"

	"github.com/JiahangXu/nni/pkg/core/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTrip(t *testing.T) {
	m := buildNested(t)
	conv := m.GetNodesByType(conv2d)[0]
	conv.SetInputShapes(shapes.FromDims([]int{1, 3, 224, 224}))
	conv.SetOutputShapes(shapes.FromDims([]int{1, 1, 222, 222}))

	data := must.M1(Marshal(m))
	m2 := must.M1(Unmarshal(data))
	require.NoError(t, m2.Validate())
	assert.Equal(t, m.ID, m2.ID)

	conv2 := m2.GetNodesByType(conv2d)[0]
	assert.Equal(t, conv.Id(), conv2.Id())
	assert.Equal(t, conv.Path(), conv2.Path())
	assert.Equal(t, [][]int{{1, 3, 224, 224}}, conv2.InputShapes().ToDims())
	assert.Equal(t, [][]int{{1, 1, 222, 222}}, conv2.OutputShapes().ToDims())
	// JSON numbers are decoded as float64.
	assert.Equal(t, float64(1), conv2.Operation.Parameters.GetOr("out_channels", nil))

	choice := m2.GetNodesByType(TypeChoice)[0]
	require.Len(t, choice.Candidates(), 2)
	assert.Equal(t, "1", choice.Candidates()[1].Name)

	// Same structure when re-encoded.
	assert.JSONEq(t, string(data), string(must.M1(Marshal(m2))))

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, Save(m2, path))
	m3 := must.M1(Load(path))
	assert.Len(t, m3.GetNodesByType(conv2d), 3)
}

func TestUnmarshal(t *testing.T) {
	data := []byte(`{
  "graphs": [
    {
      "name": "_model",
      "inputs": ["x"],
      "outputs": ["y"],
      "nodes": [
        {"id": 10, "name": "conv", "operation": {"type": "__torch__.torch.nn.modules.conv.Conv2d",
          "parameters": {"in_channels": 3, "out_channels": 1, "kernel_size": 3}}},
        {"name": "relu", "operation": {"type": "__torch__.torch.nn.modules.activation.ReLU"}}
      ],
      "edges": [
        {"head": ["_inputs", 0], "tail": ["conv", null]},
        {"head": ["conv", null], "tail": ["relu", 0]},
        {"head": ["relu", 0], "tail": ["_outputs", 0]}
      ]
    }
  ]
}`)
	m := must.M1(Unmarshal(data))
	require.NoError(t, m.Validate())
	conv, r := m.GetNodeByName("conv"), m.GetNodeByName("relu")
	assert.Equal(t, NodeId(10), conv.Id())
	assert.NotEqual(t, NodeId(10), r.Id())
	assert.Equal(t, []*Node{conv}, m.Root().Predecessors(r))

	// Errors.
	for _, bad := range []string{
		`{"graphs": [`,
		`{"model_id": "not-a-uuid", "graphs": []}`,
		`{"graphs": [{"name": "_model", "nodes": [{"name": "a", "operation": {"type": "x"}}, {"name": "a", "operation": {"type": "x"}}]}]}`,
		`{"graphs": [{"name": "_model", "edges": [{"head": ["_inputs", 0], "tail": ["missing", 0]}]}]}`,
		`{"graphs": [{"name": "_model", "edges": [{"head": ["_inputs"], "tail": ["_outputs", 0]}]}]}`,
		`{"graphs": [{"name": "_model", "nodes": [{"id": 3, "name": "a", "operation": {"type": "x"}}, {"id": 3, "name": "b", "operation": {"type": "x"}}]}]}`,
		`{"graphs": [{"name": "_model", "nodes": [{"name": "a", "operation": {"type": "x", "parameters": {"output_shape": [[1, -5]]}}}]}]}`,
		`{"graphs": [{"name": "_model", "nodes": [{"name": "a", "operation": {"type": "x"}, "candidates": [{"name": "c", "operation": {"type": "y"}}]}]}]}`,
	} {
		_, err := Unmarshal([]byte(bad))
		require.Errorf(t, err, "JSON %s should have failed", bad)
	}
}
