// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"encoding/json"
	"os"

	"github.com/JiahangXu/nni/pkg/core/shapes"
	"github.com/gomlx/exceptions"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// JSON layout of a model. Nodes and edges are lists, so insertion order is preserved.
type (
	jsonModel struct {
		ModelId string      `json:"model_id,omitempty"`
		Graphs  []jsonGraph `json:"graphs"`
	}

	jsonGraph struct {
		Name    string     `json:"name"`
		Inputs  []string   `json:"inputs"`
		Outputs []string   `json:"outputs"`
		Nodes   []jsonNode `json:"nodes"`
		Edges   []jsonEdge `json:"edges"`
	}

	jsonNode struct {
		Id         NodeId        `json:"id,omitempty"`
		Name       string        `json:"name"`
		Operation  jsonOperation `json:"operation"`
		Candidates []jsonNode    `json:"candidates,omitempty"`
	}

	jsonOperation struct {
		Type       string         `json:"type"`
		CellName   string         `json:"cell_name,omitempty"`
		Parameters map[string]any `json:"parameters,omitempty"`
	}

	jsonEdge struct {
		Head jsonEdgeEnd `json:"head"`
		Tail jsonEdgeEnd `json:"tail"`
	}

	// jsonEdgeEnd is encoded as `["node_name", slot]`; a null slot means 0.
	jsonEdgeEnd struct {
		Node string
		Slot int
	}
)

func (e jsonEdgeEnd) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Node, e.Slot})
}

func (e *jsonEdgeEnd) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return errors.Wrapf(err, "edge end must be a [node, slot] pair, got %s", data)
	}
	if len(pair) != 2 {
		return errors.Errorf("edge end must be a [node, slot] pair, got %s", data)
	}
	if err := json.Unmarshal(pair[0], &e.Node); err != nil {
		return errors.Wrapf(err, "invalid node name in edge end %s", data)
	}
	var slot *int
	if err := json.Unmarshal(pair[1], &slot); err != nil {
		return errors.Wrapf(err, "invalid slot in edge end %s", data)
	}
	e.Slot = 0
	if slot != nil {
		e.Slot = *slot
	}
	return nil
}

// Marshal encodes the model, including the shape annotations, as JSON.
func Marshal(m *Model) ([]byte, error) {
	jm := jsonModel{ModelId: m.ID.String()}
	for _, g := range m.graphs {
		jg := jsonGraph{
			Name:    g.name,
			Inputs:  nonNil(g.InputNames),
			Outputs: nonNil(g.OutputNames),
			Nodes:   make([]jsonNode, 0, len(g.nodes)),
			Edges:   make([]jsonEdge, 0, len(g.edges)),
		}
		for _, node := range g.nodes {
			jn := toJSONNode(node)
			for _, candidate := range node.candidates {
				jn.Candidates = append(jn.Candidates, toJSONNode(candidate))
			}
			jg.Nodes = append(jg.Nodes, jn)
		}
		for _, e := range g.edges {
			jg.Edges = append(jg.Edges, jsonEdge{
				Head: jsonEdgeEnd{Node: e.Head.Node.Name, Slot: e.Head.Slot},
				Tail: jsonEdgeEnd{Node: e.Tail.Node.Name, Slot: e.Tail.Slot},
			})
		}
		jm.Graphs = append(jm.Graphs, jg)
	}
	data, err := json.MarshalIndent(jm, "", "  ")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode model %s", m.ID)
	}
	return data, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toJSONNode(node *Node) jsonNode {
	var params map[string]any
	if len(node.Operation.Parameters) > 0 {
		params = node.Operation.Parameters
	}
	return jsonNode{
		Id:   node.id,
		Name: node.Name,
		Operation: jsonOperation{
			Type:       node.Operation.Type,
			CellName:   node.Operation.CellName,
			Parameters: params,
		},
	}
}

// Unmarshal decodes a model encoded by Marshal (or produced by an external tracer in the same layout).
//
// Node ids given in the JSON are preserved; nodes without ids get new ones. The shape annotations are decoded
// back to shapes.List. The returned model is not validated, see Model.Validate.
func Unmarshal(data []byte) (*Model, error) {
	var jm jsonModel
	if err := json.Unmarshal(data, &jm); err != nil {
		return nil, errors.Wrap(err, "failed to decode model")
	}
	m := NewModel()
	if jm.ModelId != "" {
		id, err := uuid.Parse(jm.ModelId)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid model_id %q", jm.ModelId)
		}
		m.ID = id
	}
	err := exceptions.TryCatch[error](func() { m.buildFromJSON(&jm) })
	if err != nil {
		return nil, errors.WithMessage(err, "failed to build model from JSON")
	}
	return m, nil
}

func (m *Model) buildFromJSON(jm *jsonModel) {
	fixedIds := make(map[NodeId]*Node)
	setId := func(node *Node, id NodeId) {
		if id == InvalidNodeId {
			return
		}
		if other, found := fixedIds[id]; found {
			exceptions.Panicf("node id %d used by both %s and %s", id, other.Path(), node.Path())
		}
		fixedIds[id] = node
		node.id = id
	}
	for _, jg := range jm.Graphs {
		g := m.NewGraph(jg.Name, jg.Inputs, jg.Outputs)
		for _, jn := range jg.Nodes {
			op := fromJSONOperation(jn.Operation)
			var node *Node
			if op.Type == TypeChoice {
				specs := make([]CandidateSpec, 0, len(jn.Candidates))
				for _, jc := range jn.Candidates {
					specs = append(specs, CandidateSpec{Name: jc.Name, Operation: fromJSONOperation(jc.Operation)})
				}
				node = g.AddChoiceNode(jn.Name, op.Parameters, specs...)
				for ii, candidate := range node.candidates {
					setId(candidate, jn.Candidates[ii].Id)
				}
			} else {
				if len(jn.Candidates) > 0 {
					exceptions.Panicf("graph %q: node %q of type %q cannot have candidates", jg.Name, jn.Name, op.Type)
				}
				node = g.AddNode(jn.Name, op)
			}
			setId(node, jn.Id)
		}
		for _, je := range jg.Edges {
			head, tail := g.NodeByName(je.Head.Node), g.NodeByName(je.Tail.Node)
			if head == nil || tail == nil {
				exceptions.Panicf("graph %q: edge %s -> %s references unknown node", jg.Name, je.Head.Node, je.Tail.Node)
			}
			g.AddEdge(head.Out(je.Head.Slot), tail.In(je.Tail.Slot))
		}
	}

	// Renumber nodes without a fixed id, avoiding collisions with the fixed ones.
	m.nextNodeId = 1
	for id := range fixedIds {
		if id >= m.nextNodeId {
			m.nextNodeId = id + 1
		}
	}
	for _, g := range m.graphs {
		for _, node := range g.allNodes() {
			if fixedIds[node.id] != node {
				node.id = m.newNodeId()
			}
			for _, candidate := range node.candidates {
				if fixedIds[candidate.id] != candidate {
					candidate.id = m.newNodeId()
				}
			}
		}
	}
}

func fromJSONOperation(jo jsonOperation) Operation {
	op := Operation{Type: jo.Type, CellName: jo.CellName, Parameters: make(Parameters, len(jo.Parameters))}
	for key, value := range jo.Parameters {
		if key == InputShapeKey || key == OutputShapeKey {
			op.Parameters[key] = decodeShapes(key, value)
			continue
		}
		op.Parameters[key] = value
	}
	return op
}

// decodeShapes converts the generic JSON value of a shape annotation back to shapes.List.
func decodeShapes(key string, value any) shapes.List {
	data, err := json.Marshal(value)
	if err != nil {
		exceptions.Panicf("invalid %q annotation %v: %v", key, value, err)
	}
	var list shapes.List
	if err := json.Unmarshal(data, &list); err != nil {
		exceptions.Panicf("invalid %q annotation %v: %+v", key, value, err)
	}
	return list
}

// Load reads a JSON encoded model from the file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read model from %q", path)
	}
	m, err := Unmarshal(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load model from %q", path)
	}
	return m, nil
}

// Save writes the JSON encoded model to the file.
func Save(m *Model, path string) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	if err = os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to save model to %q", path)
	}
	return nil
}
