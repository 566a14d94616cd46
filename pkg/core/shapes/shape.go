// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, the dimensions of a tensor flowing along an edge of a model IR graph.
//
// A Shape has no dtype: shape propagation over a model IR only cares about the dimensions. An axis
// may be symbolic (not known at propagation time), in which case its dimension is UnknownDim.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of a tensor.
//   - Axis: the index of a dimension. Sometimes used interchangeably with Dimension, but here we
//     try to refer to a dimension index as "axis" (plural axes), and its size as its dimension.
//   - Dimension: the size of a tensor along one of its axes.
//
// Example: a batch of one RGB 224x224 image in NCHW layout has shape `[1 3 224 224]`, created with
// `shapes.Make(1, 3, 224, 224)`.
//
// A node in the IR may take several inputs and produce several outputs, so annotations are stored as
// a List of shapes, one per slot.
package shapes

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// UnknownDim marks an axis whose dimension is symbolic or not known at propagation time.
const UnknownDim = -1

// Shape holds the dimensions of a tensor.
//
// Use Make to create a new shape.
type Shape struct {
	Dimensions []int
}

// Make returns a Shape with the given dimensions. Dimensions must be >= 0, or UnknownDim.
func Make(dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions)}
	for axis, dim := range dimensions {
		if dim < UnknownDim {
			exceptions.Panicf("shapes.Make(%v): invalid dimension %d for axis %d", dimensions, dim, axis)
		}
	}
	return s
}

// MakeUnknown returns a shape of the given rank with all axes unknown.
func MakeUnknown(rank int) Shape {
	if rank < 0 {
		exceptions.Panicf("shapes.MakeUnknown(%d): rank must be >= 0", rank)
	}
	s := Shape{Dimensions: make([]int, rank)}
	for axis := range s.Dimensions {
		s.Dimensions[axis] = UnknownDim
	}
	return s
}

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape has no axes.
func (s Shape) IsScalar() bool { return s.Rank() == 0 }

// IsKnown returns true if all dimensions are known.
func (s Shape) IsKnown() bool {
	return !slices.Contains(s.Dimensions, UnknownDim)
}

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// Size returns the number of elements of a tensor of this shape, the product of all dimensions.
// It returns UnknownDim if any of the dimensions is unknown.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		if d == UnknownDim {
			return UnknownDim
		}
		size *= d
	}
	return
}

// Equal compares the dimensions of two shapes. Unknown axes only match unknown axes.
func (s Shape) Equal(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{Dimensions: slices.Clone(s.Dimensions)}
}

// String implements stringer, pretty-prints the shape. Unknown axes are printed as "?".
func (s Shape) String() string {
	parts := make([]string, 0, s.Rank())
	for _, dim := range s.Dimensions {
		if dim == UnknownDim {
			parts = append(parts, "?")
		} else {
			parts = append(parts, fmt.Sprintf("%d", dim))
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Check returns an error if the shape doesn't match the given dimensions.
// UnknownDim in dimensions means the axis is not checked.
func (s Shape) Check(dimensions ...int) error {
	if s.Rank() != len(dimensions) {
		return errors.Errorf("shape %s has incompatible rank %d (wanted %d)", s, s.Rank(), len(dimensions))
	}
	for axis, wantDim := range dimensions {
		if wantDim != UnknownDim && s.Dimensions[axis] != wantDim {
			return errors.Errorf("shape %s axis %d has dimension %d, wanted %d (shape wanted=%v)",
				s, axis, s.Dimensions[axis], wantDim, dimensions)
		}
	}
	return nil
}

// MarshalJSON encodes the shape as a list of integers, e.g. `[1,3,224,224]`.
func (s Shape) MarshalJSON() ([]byte, error) {
	dims := s.Dimensions
	if dims == nil {
		dims = []int{}
	}
	return json.Marshal(dims)
}

// UnmarshalJSON decodes a list of integers.
func (s *Shape) UnmarshalJSON(data []byte) error {
	var dims []int
	if err := json.Unmarshal(data, &dims); err != nil {
		return errors.Wrapf(err, "failed to decode shape from %q", string(data))
	}
	for axis, dim := range dims {
		if dim < UnknownDim {
			return errors.Errorf("invalid dimension %d for axis %d in shape %v", dim, axis, dims)
		}
	}
	s.Dimensions = dims
	return nil
}
