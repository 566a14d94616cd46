// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"strings"

	"github.com/JiahangXu/nni/pkg/core/shapes"
	"github.com/JiahangXu/nni/pkg/ir"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

// nodeRow is one line of the nodes report.
type nodeRow struct {
	Graph, Node, Type string
	InputShape        string
	OutputShape       string
	Elements          string
	Unresolved        bool

	IsChoice, IsCandidate bool
}

func (r nodeRow) cells() []string {
	return []string{r.Graph, r.Node, r.Type, r.InputShape, r.OutputShape, r.Elements}
}

// shortType returns the class name of fully qualified operation types.
func shortType(typeId string) string {
	if idx := strings.LastIndex(typeId, "."); idx >= 0 && !strings.Contains(typeId, "::") {
		return typeId[idx+1:]
	}
	return typeId
}

func shapesCell(list shapes.List) string {
	if list == nil {
		return "-"
	}
	return list.String()
}

// elementsCell returns the number of elements of all outputs, "?" if any axis is unknown.
func elementsCell(list shapes.List) string {
	if list == nil {
		return "-"
	}
	var total int64
	for _, shape := range list {
		size := shape.Size()
		if size < 0 {
			return "?"
		}
		total += int64(size)
	}
	return humanize.Comma(total)
}

// collectRows lists the nodes of the model in walk order, hidden boundary nodes of each graph included
// if withHidden.
func collectRows(model *ir.Model, withHidden bool) []nodeRow {
	var rows []nodeRow
	addRow := func(node *ir.Node) {
		row := nodeRow{
			Node:        node.Name,
			Type:        shortType(node.Type()),
			InputShape:  shapesCell(node.InputShapes()),
			OutputShape: shapesCell(node.OutputShapes()),
			Elements:    elementsCell(node.OutputShapes()),
		}
		if node.Graph() != nil {
			row.Graph = node.Graph().Name()
		}
		if node.IsCandidate() {
			row.Node = node.Choice().Name + "/" + node.Name
			row.IsCandidate = true
		}
		switch {
		case node.IsChoice():
			row.OutputShape = "(per candidate)"
			row.IsChoice = true
			row.Unresolved = node.InputShapes() == nil
		case node.Type() == ir.TypeInputs:
			row.Unresolved = node.OutputShapes() == nil
		case node.Type() == ir.TypeOutputs:
			row.Unresolved = node.InputShapes() == nil
		default:
			row.Unresolved = node.OutputShapes() == nil
		}
		rows = append(rows, row)
	}

	if !withHidden {
		model.Walk(func(node *ir.Node) bool {
			addRow(node)
			return true
		})
		return rows
	}
	// With hidden nodes, graphs are listed one after the other.
	for _, g := range model.Graphs() {
		addRow(g.InputNode())
		for _, node := range g.Nodes() {
			addRow(node)
			for _, candidate := range node.Candidates() {
				addRow(candidate)
			}
		}
		addRow(g.OutputNode())
	}
	return rows
}

func nodesTable(model *ir.Model, withHidden bool) *lgtable.Table {
	table := newTable([]string{"Graph", "Node", "Type", "Input shape", "Output shape", "# elements"},
		lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Right)
	for _, row := range collectRows(model, withHidden) {
		table.Row(row.kind(), row.cells()...)
	}
	return table.Table
}

func summaryTable(path string, model *ir.Model, inputs []shapes.Shape, err error) *lgtable.Table {
	table := newTable(nil, lipgloss.Right, lipgloss.Left)
	var numNodes, numCells, numChoices, numCandidates, numUnresolved int
	model.Walk(func(node *ir.Node) bool {
		numNodes++
		switch {
		case node.IsCell():
			numCells++
		case node.IsChoice():
			numChoices++
		}
		if node.IsCandidate() {
			numCandidates++
		}
		return true
	})
	for _, row := range collectRows(model, false) {
		if row.Unresolved {
			numUnresolved++
		}
	}
	table.Status(false, "model", path)
	table.Status(false, "model id", model.ID.String())
	table.Status(false, "inputs", shapes.List(inputs).String())
	if root := model.Root(); root != nil {
		outputs := root.OutputNode().InputShapes()
		table.Status(outputs == nil, "outputs", shapesCell(outputs))
	}
	table.Status(false, "# graphs", humanize.Comma(int64(len(model.Graphs()))))
	table.Status(false, "# nodes", humanize.Comma(int64(numNodes)))
	table.Status(false, "# cells", humanize.Comma(int64(numCells)))
	table.Status(false, "# choices", humanize.Comma(int64(numChoices)))
	table.Status(false, "# candidates", humanize.Comma(int64(numCandidates)))
	table.Status(numUnresolved > 0, "# unresolved", humanize.Comma(int64(numUnresolved)))
	status := "ok"
	if err != nil {
		status = "failed"
	}
	table.Status(err != nil, "status", status)
	return table.Table
}
