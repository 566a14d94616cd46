// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"github.com/JiahangXu/nni/pkg/core/shapes"
	"github.com/JiahangXu/nni/pkg/ir"
	"github.com/pkg/errors"
)

// Convolution and pooling operands have layout [batch, channels, spatial...], the batch axis being optional
// (unbatched inputs are accepted as in PyTorch).

// channelsAxis returns the channels axis of an operand with spatialRank spatial axes, or an error if
// its rank is not spatialRank+1 or spatialRank+2.
func channelsAxis(opName string, operand shapes.Shape, spatialRank int) (int, error) {
	rank := operand.Rank()
	if rank != spatialRank+1 && rank != spatialRank+2 {
		return 0, errors.Errorf("%s: input must be rank %d (unbatched) or %d (batched), got shape %s",
			opName, spatialRank+1, spatialRank+2, operand)
	}
	return rank - spatialRank - 1, nil
}

// windowOutputDim returns the output dimension of a sliding window along one axis:
//
//	floor((in + 2*pad - dilation*(kernel-1) - 1) / stride) + 1
//
// Or the ceiling instead of floor with ceilMode, in which case the last window must start inside the input or
// the left padding.
func windowOutputDim(inputDim, kernel, stride, padding, dilation int, ceilMode bool) (int, error) {
	if inputDim == shapes.UnknownDim {
		return shapes.UnknownDim, nil
	}
	effectiveKernel := dilation*(kernel-1) + 1
	padded := inputDim + 2*padding
	if effectiveKernel > padded {
		return 0, errors.Errorf("effective kernel size %d (kernel=%d, dilation=%d) is larger than padded input %d (input=%d, padding=%d)",
			effectiveKernel, kernel, dilation, padded, inputDim, padding)
	}
	numerator := padded - effectiveKernel
	if !ceilMode {
		return numerator/stride + 1, nil
	}
	outputDim := (numerator+stride-1)/stride + 1
	if (outputDim-1)*stride >= inputDim+padding {
		outputDim--
	}
	return outputDim, nil
}

// windowParams are the per-spatial-axis parameters of a convolution or pooling.
type windowParams struct {
	kernel, stride, padding, dilation []int
	samePadding                       bool
}

func checkPositive(opName, key string, values []int) error {
	for axis, v := range values {
		if v < 1 {
			return errors.Errorf("%s: %s[%d]=%d must be >= 1", opName, key, axis, v)
		}
	}
	return nil
}

// readWindowParams reads kernel_size, stride, padding and dilation. If strideDefaultsToKernel, a missing stride
// is the kernel size (pooling), otherwise it is 1 (convolution).
func readWindowParams(opName string, params ir.Parameters, spatialRank int, strideDefaultsToKernel bool) (
	w windowParams, err error) {
	if w.kernel, err = intsParam(params, "kernel_size", spatialRank, 1); err != nil {
		return
	}
	if err = checkPositive(opName, "kernel_size", w.kernel); err != nil {
		return
	}
	if strideDefaultsToKernel {
		if value, found := params["stride"]; !found || value == nil {
			w.stride = append([]int(nil), w.kernel...)
		}
	}
	if w.stride == nil {
		if w.stride, err = intsParam(params, "stride", spatialRank, 1); err != nil {
			return
		}
	}
	if err = checkPositive(opName, "stride", w.stride); err != nil {
		return
	}
	if w.dilation, err = intsParam(params, "dilation", spatialRank, 1); err != nil {
		return
	}
	if err = checkPositive(opName, "dilation", w.dilation); err != nil {
		return
	}

	if padding, isString := params["padding"].(string); isString {
		switch padding {
		case "valid":
			w.padding = repeat(0, spatialRank)
		case "same":
			w.samePadding = true
			w.padding = repeat(0, spatialRank)
		default:
			err = errors.Errorf("%s: padding %q not supported, use \"valid\", \"same\" or integers", opName, padding)
		}
		return
	}
	if w.padding, err = intsParam(params, "padding", spatialRank, 0); err != nil {
		return
	}
	for axis, p := range w.padding {
		if p < 0 {
			err = errors.Errorf("%s: padding[%d]=%d must be non-negative", opName, axis, p)
			return
		}
	}
	return
}

// convRule returns the shape rule of a convolution with spatialRank spatial axes.
//
// The channels dimension becomes out_channels, the batch dimension is passed through, and each spatial
// dimension follows windowOutputDim.
func convRule(opName string, spatialRank int) Rule {
	return func(inputs shapes.List, params ir.Parameters) (shapes.List, error) {
		operand := inputs[0]
		chAxis, err := channelsAxis(opName, operand, spatialRank)
		if err != nil {
			return nil, err
		}
		outChannels, err := intParam(params, "out_channels", 0)
		if err != nil {
			return nil, err
		}
		if outChannels < 1 {
			return nil, errors.Errorf("%s: out_channels=%d must be >= 1", opName, outChannels)
		}
		groups, err := intParam(params, "groups", 1)
		if err != nil {
			return nil, err
		}
		if groups < 1 || outChannels%groups != 0 {
			return nil, errors.Errorf("%s: out_channels=%d must be divisible by groups=%d", opName, outChannels, groups)
		}
		inputChannels := operand.Dimensions[chAxis]
		inChannels, err := intParam(params, "in_channels", inputChannels)
		if err != nil {
			return nil, err
		}
		if inputChannels != shapes.UnknownDim && inChannels != inputChannels {
			return nil, errors.Errorf("%s: expected input with %d channels (in_channels), got shape %s",
				opName, inChannels, operand)
		}
		if inChannels != shapes.UnknownDim && inChannels%groups != 0 {
			return nil, errors.Errorf("%s: in_channels=%d must be divisible by groups=%d", opName, inChannels, groups)
		}
		w, err := readWindowParams(opName, params, spatialRank, false)
		if err != nil {
			return nil, err
		}

		output := operand.Clone()
		output.Dimensions[chAxis] = outChannels
		for ii := range spatialRank {
			axis := chAxis + 1 + ii
			if w.samePadding {
				if w.stride[ii] != 1 {
					return nil, errors.Errorf("%s: padding=\"same\" requires stride 1, got stride %v", opName, w.stride)
				}
				continue
			}
			output.Dimensions[axis], err = windowOutputDim(operand.Dimensions[axis], w.kernel[ii], w.stride[ii],
				w.padding[ii], w.dilation[ii], false)
			if err != nil {
				return nil, errors.WithMessagef(err, "%s: spatial axis %d of input %s", opName, axis, operand)
			}
		}
		return shapes.List{output}, nil
	}
}

// poolRule returns the shape rule of max or average pooling with spatialRank spatial axes: same spatial formula
// as convolution, channels passed through. Stride defaults to the kernel size.
func poolRule(opName string, spatialRank int) Rule {
	return func(inputs shapes.List, params ir.Parameters) (shapes.List, error) {
		operand := inputs[0]
		chAxis, err := channelsAxis(opName, operand, spatialRank)
		if err != nil {
			return nil, err
		}
		w, err := readWindowParams(opName, params, spatialRank, true)
		if err != nil {
			return nil, err
		}
		if w.samePadding {
			return nil, errors.Errorf("%s: string padding is not supported for pooling", opName)
		}
		ceilMode, err := boolParam(params, "ceil_mode", false)
		if err != nil {
			return nil, err
		}
		output := operand.Clone()
		for ii := range spatialRank {
			if 2*w.padding[ii] > w.kernel[ii] {
				return nil, errors.Errorf("%s: padding=%d should be at most half of kernel_size=%d",
					opName, w.padding[ii], w.kernel[ii])
			}
			axis := chAxis + 1 + ii
			output.Dimensions[axis], err = windowOutputDim(operand.Dimensions[axis], w.kernel[ii], w.stride[ii],
				w.padding[ii], w.dilation[ii], ceilMode)
			if err != nil {
				return nil, errors.WithMessagef(err, "%s: spatial axis %d of input %s", opName, axis, operand)
			}
		}
		return shapes.List{output}, nil
	}
}

// adaptivePoolRule returns the shape rule of adaptive pooling: the spatial dimensions become output_size,
// where a None entry keeps the input dimension.
func adaptivePoolRule(opName string, spatialRank int) Rule {
	return func(inputs shapes.List, params ir.Parameters) (shapes.List, error) {
		operand := inputs[0]
		chAxis, err := channelsAxis(opName, operand, spatialRank)
		if err != nil {
			return nil, err
		}
		outputSize, err := optionalIntsParam(params, "output_size", spatialRank)
		if err != nil {
			return nil, err
		}
		output := operand.Clone()
		for ii, size := range outputSize {
			if size == 0 {
				return nil, errors.Errorf("%s: output_size must be positive, got %v", opName, outputSize)
			}
			if size > 0 {
				output.Dimensions[chAxis+1+ii] = size
			}
		}
		return shapes.List{output}, nil
	}
}
