// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"slices"

	"github.com/JiahangXu/nni/pkg/core/shapes"
	"github.com/JiahangXu/nni/pkg/ir"
	"github.com/pkg/errors"
)

// elementwiseRule is the rule for activations and other ops that don't change the shape of their input.
func elementwiseRule(inputs shapes.List, _ ir.Parameters) (shapes.List, error) {
	return shapes.List{inputs[0].Clone()}, nil
}

// batchNormRule checks the rank and num_features of the input, and returns the input shape.
func batchNormRule(opName string, ranks ...int) Rule {
	return func(inputs shapes.List, params ir.Parameters) (shapes.List, error) {
		operand := inputs[0]
		if !slices.Contains(ranks, operand.Rank()) {
			return nil, errors.Errorf("%s: expected input of rank %v, got shape %s", opName, ranks, operand)
		}
		numFeatures, err := intParam(params, "num_features", shapes.UnknownDim)
		if err != nil {
			return nil, err
		}
		if numFeatures != shapes.UnknownDim && operand.Dim(1) != shapes.UnknownDim && operand.Dim(1) != numFeatures {
			return nil, errors.Errorf("%s: num_features=%d doesn't match input shape %s", opName, numFeatures, operand)
		}
		return shapes.List{operand.Clone()}, nil
	}
}

// layerNormRule checks that the trailing axes match normalized_shape, and returns the input shape.
func layerNormRule(inputs shapes.List, params ir.Parameters) (shapes.List, error) {
	operand := inputs[0]
	normalized, err := toIntList("normalized_shape", params.GetOr("normalized_shape", []int{}))
	if err != nil {
		if n, ok := anyToInt(params["normalized_shape"]); ok {
			normalized, err = []int{n}, nil
		} else {
			return nil, err
		}
	}
	if len(normalized) > operand.Rank() {
		return nil, errors.Errorf("LayerNorm: normalized_shape %v has more axes than input %s", normalized, operand)
	}
	offset := operand.Rank() - len(normalized)
	for ii, dim := range normalized {
		got := operand.Dimensions[offset+ii]
		if got != shapes.UnknownDim && got != dim {
			return nil, errors.Errorf("LayerNorm: normalized_shape %v doesn't match trailing axes of input %s", normalized, operand)
		}
	}
	return shapes.List{operand.Clone()}, nil
}

// linearRule replaces the last axis by out_features.
func linearRule(inputs shapes.List, params ir.Parameters) (shapes.List, error) {
	operand := inputs[0]
	if operand.Rank() < 1 {
		return nil, errors.Errorf("Linear: input must have at least rank 1, got shape %s", operand)
	}
	outFeatures, err := intParam(params, "out_features", 0)
	if err != nil {
		return nil, err
	}
	if outFeatures < 1 {
		return nil, errors.Errorf("Linear: out_features=%d must be >= 1", outFeatures)
	}
	lastDim := operand.Dim(-1)
	inFeatures, err := intParam(params, "in_features", lastDim)
	if err != nil {
		return nil, err
	}
	if lastDim != shapes.UnknownDim && inFeatures != lastDim {
		return nil, errors.Errorf("Linear: in_features=%d doesn't match the last axis of input %s", inFeatures, operand)
	}
	output := operand.Clone()
	output.Dimensions[output.Rank()-1] = outFeatures
	return shapes.List{output}, nil
}

// normalizeAxis converts a negative axis to a positive one, and checks bounds.
func normalizeAxis(opName string, axis, rank int) (int, error) {
	adjusted := axis
	if adjusted < 0 {
		adjusted += rank
	}
	if adjusted < 0 || adjusted >= rank {
		return 0, errors.Errorf("%s: axis %d out of range for rank %d", opName, axis, rank)
	}
	return adjusted, nil
}

// flattenRule merges axes start_dim..end_dim (inclusive) into one.
func flattenRule(opName string, defaultStart int) Rule {
	return func(inputs shapes.List, params ir.Parameters) (shapes.List, error) {
		operand := inputs[0]
		if operand.IsScalar() {
			return shapes.List{shapes.Make(1)}, nil
		}
		start, err := intParam(params, "start_dim", defaultStart)
		if err != nil {
			return nil, err
		}
		end, err := intParam(params, "end_dim", -1)
		if err != nil {
			return nil, err
		}
		if start, err = normalizeAxis(opName, start, operand.Rank()); err != nil {
			return nil, err
		}
		if end, err = normalizeAxis(opName, end, operand.Rank()); err != nil {
			return nil, err
		}
		if start > end {
			return nil, errors.Errorf("%s: start_dim %d cannot come after end_dim %d for input %s", opName, start, end, operand)
		}
		merged := shapes.Make(operand.Dimensions[start : end+1]...).Size()
		dims := make([]int, 0, operand.Rank()-(end-start))
		dims = append(dims, operand.Dimensions[:start]...)
		dims = append(dims, merged)
		dims = append(dims, operand.Dimensions[end+1:]...)
		return shapes.List{shapes.Make(dims...)}, nil
	}
}

// broadcastRule implements the standard broadcasting of binary elementwise operations: shapes are aligned on
// their last axes, and each pair of dimensions must be equal or one of them 1.
func broadcastRule(opName string) Rule {
	return func(inputs shapes.List, _ ir.Parameters) (shapes.List, error) {
		lhs, rhs := inputs[0], inputs[1]
		rank := max(lhs.Rank(), rhs.Rank())
		dims := make([]int, rank)
		for ii := range rank {
			l, r := 1, 1
			if axis := lhs.Rank() - rank + ii; axis >= 0 {
				l = lhs.Dimensions[axis]
			}
			if axis := rhs.Rank() - rank + ii; axis >= 0 {
				r = rhs.Dimensions[axis]
			}
			switch {
			case l == r:
				dims[ii] = l
			case l == 1:
				dims[ii] = r
			case r == 1:
				dims[ii] = l
			case l == shapes.UnknownDim:
				dims[ii] = r
			case r == shapes.UnknownDim:
				dims[ii] = l
			default:
				return nil, errors.Errorf("%s: shapes %s and %s cannot be broadcast together (axis %d)", opName, lhs, rhs, ii)
			}
		}
		return shapes.List{shapes.Make(dims...)}, nil
	}
}

// catRule concatenates all inputs along axis "dim": other axes must match.
func catRule(inputs shapes.List, params ir.Parameters) (shapes.List, error) {
	first := inputs[0]
	axis, err := intParam(params, "dim", 0)
	if err != nil {
		return nil, err
	}
	if axis, err = normalizeAxis("aten::cat", axis, first.Rank()); err != nil {
		return nil, err
	}
	output := first.Clone()
	for ii, input := range inputs[1:] {
		if input.Rank() != first.Rank() {
			return nil, errors.Errorf("aten::cat: input #%d has shape %s, incompatible rank with %s", ii+1, input, first)
		}
		for jj, dim := range input.Dimensions {
			if jj == axis {
				if dim == shapes.UnknownDim || output.Dimensions[axis] == shapes.UnknownDim {
					output.Dimensions[axis] = shapes.UnknownDim
				} else {
					output.Dimensions[axis] += dim
				}
				continue
			}
			if dim != output.Dimensions[jj] && dim != shapes.UnknownDim && output.Dimensions[jj] != shapes.UnknownDim {
				return nil, errors.Errorf("aten::cat: input #%d has shape %s, incompatible with %s on axis %d", ii+1, input, first, jj)
			}
			if output.Dimensions[jj] == shapes.UnknownDim {
				output.Dimensions[jj] = dim
			}
		}
	}
	return shapes.List{output}, nil
}

// splitSizes returns the output shapes of splitting operand along axis in pieces of the given sizes.
func splitSizes(operand shapes.Shape, axis int, sizes []int) shapes.List {
	outputs := make(shapes.List, 0, len(sizes))
	for _, size := range sizes {
		piece := operand.Clone()
		piece.Dimensions[axis] = size
		outputs = append(outputs, piece)
	}
	return outputs
}

// chunkRule splits the input in "chunks" pieces along "dim", one output slot per piece. As in PyTorch,
// pieces have size ceil(dim/chunks), the last one possibly smaller, and there may be fewer than "chunks" pieces.
func chunkRule(inputs shapes.List, params ir.Parameters) (shapes.List, error) {
	operand := inputs[0]
	chunks, err := intParam(params, "chunks", 0)
	if err != nil {
		return nil, err
	}
	if chunks < 1 {
		return nil, errors.Errorf("aten::chunk: chunks=%d must be >= 1", chunks)
	}
	axis, err := intParam(params, "dim", 0)
	if err != nil {
		return nil, err
	}
	if axis, err = normalizeAxis("aten::chunk", axis, operand.Rank()); err != nil {
		return nil, err
	}
	dim := operand.Dimensions[axis]
	if dim == shapes.UnknownDim {
		return splitSizes(operand, axis, repeat(shapes.UnknownDim, chunks)), nil
	}
	if dim == 0 {
		return splitSizes(operand, axis, repeat(0, chunks)), nil
	}
	pieceSize := (dim + chunks - 1) / chunks
	return splitSizes(operand, axis, piecesOf(dim, pieceSize)), nil
}

func piecesOf(dim, pieceSize int) []int {
	var sizes []int
	for remaining := dim; remaining > 0; remaining -= pieceSize {
		sizes = append(sizes, min(remaining, pieceSize))
	}
	return sizes
}

// splitRule splits the input along "dim" in pieces of split_size_or_sections: an integer (size of each piece,
// the last one possibly smaller) or a list of sizes that must add up to the dimension.
func splitRule(inputs shapes.List, params ir.Parameters) (shapes.List, error) {
	operand := inputs[0]
	axis, err := intParam(params, "dim", 0)
	if err != nil {
		return nil, err
	}
	if axis, err = normalizeAxis("aten::split", axis, operand.Rank()); err != nil {
		return nil, err
	}
	dim := operand.Dimensions[axis]
	sectionsParam := params["split_size_or_sections"]
	if size, ok := anyToInt(sectionsParam); ok {
		if size < 1 {
			return nil, errors.Errorf("aten::split: split size %d must be >= 1", size)
		}
		if dim == shapes.UnknownDim {
			return nil, errors.Errorf("aten::split: cannot split unknown axis %d of %s by size, the number of outputs is undefined",
				axis, operand)
		}
		return splitSizes(operand, axis, piecesOf(dim, size)), nil
	}
	sections, err := toIntList("split_size_or_sections", sectionsParam)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, s := range sections {
		if s < 0 {
			return nil, errors.Errorf("aten::split: invalid section size %d in %v", s, sections)
		}
		total += s
	}
	if dim != shapes.UnknownDim && total != dim {
		return nil, errors.Errorf("aten::split: sections %v add up to %d, but axis %d of %s has dimension %d",
			sections, total, axis, operand, dim)
	}
	return splitSizes(operand, axis, sections), nil
}
