// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

// rowKind selects the style of a report row.
type rowKind int

const (
	rowPlain rowKind = iota
	rowChoice
	rowCandidate
	rowUnresolved
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)

	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	choiceRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"}).
			Bold(true).
			PaddingLeft(1).PaddingRight(1)
	candidateRowStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"}).
				Italic(true).
				PaddingLeft(1).PaddingRight(1)
	unresolvedRowStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).
				Bold(true).
				PaddingLeft(1).PaddingRight(1)
)

// kind of the row: unresolved nodes are highlighted first, then choices and their candidates.
func (r nodeRow) kind() rowKind {
	switch {
	case r.Unresolved:
		return rowUnresolved
	case r.IsChoice:
		return rowChoice
	case r.IsCandidate:
		return rowCandidate
	}
	return rowPlain
}

// reportTable is a table whose rows are styled by their rowKind.
type reportTable struct {
	Table *lgtable.Table
	Kinds []rowKind
}

// Row appends a row with the given style.
func (t *reportTable) Row(kind rowKind, row ...string) {
	t.Kinds = append(t.Kinds, kind)
	t.Table.Row(row...)
}

// Status appends a plain row, or an unresolved one if failed.
func (t *reportTable) Status(failed bool, row ...string) {
	kind := rowPlain
	if failed {
		kind = rowUnresolved
	}
	t.Row(kind, row...)
}

func (t *reportTable) rowStyle(row int) lipgloss.Style {
	if row < len(t.Kinds) {
		switch t.Kinds[row] {
		case rowUnresolved:
			return unresolvedRowStyle
		case rowChoice:
			return choiceRowStyle
		case rowCandidate:
			return candidateRowStyle
		}
	}
	if row%2 == 0 {
		return oddRowStyle
	}
	return evenRowStyle
}

func newTable(headers []string, alignments ...lipgloss.Position) *reportTable {
	t := &reportTable{}
	t.Table = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row < 0 {
				return headerRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			} else if len(alignments) > 0 {
				alignment = alignments[len(alignments)-1]
			}
			return t.rowStyle(row).Align(alignment)
		})
	if len(headers) > 0 {
		t.Table.Headers(headers...)
	}
	return t
}
