// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"strings"
)

// List of shapes, one per input or output slot of a node.
type List []Shape

// FromDims converts a list of dimensions (one per slot) to a List.
// It panics (with exceptions.Panicf) on invalid dimensions.
func FromDims(dims ...[]int) List {
	list := make(List, len(dims))
	for ii, d := range dims {
		list[ii] = Make(d...)
	}
	return list
}

// ToDims converts the list to plain dimensions, convenient to compare with literals.
func (l List) ToDims() [][]int {
	if l == nil {
		return nil
	}
	dims := make([][]int, len(l))
	for ii, s := range l {
		dims[ii] = s.Dimensions
		if dims[ii] == nil {
			dims[ii] = []int{}
		}
	}
	return dims
}

// Equal returns whether both lists have the same length and equal shapes in each slot.
func (l List) Equal(l2 List) bool {
	if len(l) != len(l2) {
		return false
	}
	for ii := range l {
		if !l[ii].Equal(l2[ii]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the list.
func (l List) Clone() List {
	if l == nil {
		return nil
	}
	l2 := make(List, len(l))
	for ii, s := range l {
		l2[ii] = s.Clone()
	}
	return l2
}

// IsKnown returns whether every shape in the list is fully known.
func (l List) IsKnown() bool {
	for _, s := range l {
		if !s.IsKnown() {
			return false
		}
	}
	return true
}

// String pretty-prints the list, e.g. `[[1 3 224 224]]`.
func (l List) String() string {
	parts := make([]string, 0, len(l))
	for _, s := range l {
		parts = append(parts, s.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
