// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"math"

	"github.com/JiahangXu/nni/pkg/ir"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Parameters come either from a tracer adapter (Go ints, slices of ints) or from JSON (float64, []any),
// so the accessors below accept any numeric representation of an integer.

func toInt[T constraints.Integer | constraints.Float](v T) (int, bool) {
	f := float64(v)
	if math.Trunc(f) != f || math.IsInf(f, 0) {
		return 0, false
	}
	return int(v), true
}

func anyToInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int8:
		return toInt(v)
	case int16:
		return toInt(v)
	case int32:
		return toInt(v)
	case int64:
		return toInt(v)
	case uint:
		return toInt(v)
	case uint8:
		return toInt(v)
	case uint16:
		return toInt(v)
	case uint32:
		return toInt(v)
	case uint64:
		return toInt(v)
	case float32:
		return toInt(v)
	case float64:
		return toInt(v)
	}
	return 0, false
}

// intParam returns the integer parameter, or defaultValue if it is missing or nil.
func intParam(params ir.Parameters, key string, defaultValue int) (int, error) {
	value, found := params[key]
	if !found || value == nil {
		return defaultValue, nil
	}
	if v, ok := anyToInt(value); ok {
		return v, nil
	}
	return 0, errors.Errorf("parameter %q must be an integer, got %v (%T)", key, value, value)
}

// intsParam returns a parameter that holds one integer per spatial axis: it can be given as a single integer
// (repeated for every axis) or as a list with n values (a list of one value is also repeated).
// If missing or nil, defaultValue is used for every axis.
func intsParam(params ir.Parameters, key string, n int, defaultValue int) ([]int, error) {
	value, found := params[key]
	if !found || value == nil {
		return repeat(defaultValue, n), nil
	}
	if v, ok := anyToInt(value); ok {
		return repeat(v, n), nil
	}
	values, err := toIntList(key, value)
	if err != nil {
		return nil, err
	}
	if len(values) == 1 {
		return repeat(values[0], n), nil
	}
	if len(values) != n {
		return nil, errors.Errorf("parameter %q must have 1 or %d values, got %v", key, n, value)
	}
	return values, nil
}

// optionalIntsParam is like intsParam, but elements of the list can be nil (None), returned as -1.
// It returns nil if the parameter is missing.
func optionalIntsParam(params ir.Parameters, key string, n int) ([]int, error) {
	value, found := params[key]
	if !found || value == nil {
		return nil, nil
	}
	if v, ok := anyToInt(value); ok {
		return repeat(v, n), nil
	}
	list, ok := asList(value)
	if !ok {
		return nil, errors.Errorf("parameter %q must be an integer or a list, got %v (%T)", key, value, value)
	}
	if len(list) == 1 {
		list = repeat(list[0], n)
	}
	if len(list) != n {
		return nil, errors.Errorf("parameter %q must have 1 or %d values, got %v", key, n, value)
	}
	values := make([]int, n)
	for ii, elem := range list {
		if elem == nil {
			values[ii] = -1
			continue
		}
		v, ok := anyToInt(elem)
		if !ok || v < 0 {
			return nil, errors.Errorf("parameter %q element %d must be a non-negative integer or None, got %v", key, ii, elem)
		}
		values[ii] = v
	}
	return values, nil
}

func toIntList(key string, value any) ([]int, error) {
	if ints, ok := value.([]int); ok {
		return append([]int(nil), ints...), nil
	}
	list, ok := asList(value)
	if !ok {
		return nil, errors.Errorf("parameter %q must be an integer or a list of integers, got %v (%T)", key, value, value)
	}
	values := make([]int, len(list))
	for ii, elem := range list {
		v, ok := anyToInt(elem)
		if !ok {
			return nil, errors.Errorf("parameter %q element %d must be an integer, got %v (%T)", key, ii, elem, elem)
		}
		values[ii] = v
	}
	return values, nil
}

func asList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []int:
		list := make([]any, len(v))
		for ii, e := range v {
			list[ii] = e
		}
		return list, true
	case []int64:
		list := make([]any, len(v))
		for ii, e := range v {
			list[ii] = e
		}
		return list, true
	case []float64:
		list := make([]any, len(v))
		for ii, e := range v {
			list[ii] = e
		}
		return list, true
	}
	return nil, false
}

func boolParam(params ir.Parameters, key string, defaultValue bool) (bool, error) {
	value, found := params[key]
	if !found || value == nil {
		return defaultValue, nil
	}
	if b, ok := value.(bool); ok {
		return b, nil
	}
	return false, errors.Errorf("parameter %q must be a boolean, got %v (%T)", key, value, value)
}

func repeat[T any](value T, n int) []T {
	values := make([]T, n)
	for ii := range values {
		values[ii] = value
	}
	return values
}
