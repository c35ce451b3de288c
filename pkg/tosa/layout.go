package tosa

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// PhysicalShape reorders a logical shape into memory layout order:
// physical[i] = shape[dimOrder[i]]. dimOrder must be a permutation of the
// shape's axes. Rank 0 yields an empty shape.
func PhysicalShape(shape []int, dimOrder []int) []int {
	return lo.Map(dimOrder, func(axis int, _ int) int {
		return shape[axis]
	})
}

// IsPermutation reports whether order holds each of 0..rank-1 exactly once.
func IsPermutation(order []int, rank int) bool {
	if len(order) != rank {
		return false
	}
	seen := make([]bool, rank)
	for _, axis := range order {
		if axis < 0 || axis >= rank || seen[axis] {
			return false
		}
		seen[axis] = true
	}
	return true
}

// IsContiguous reports whether order is the identity permutation.
func IsContiguous(order []int) bool {
	for i, axis := range order {
		if axis != i {
			return false
		}
	}
	return true
}

// Permute transposes row-major values of the given logical shape into the
// physical order, so the result is row-major over PhysicalShape(shape, dimOrder).
func Permute(values []float64, shape []int, dimOrder []int) ([]float64, error) {
	if !IsPermutation(dimOrder, len(shape)) {
		return nil, errors.Errorf("dim order %v is not a permutation of rank %d", dimOrder, len(shape))
	}
	n := lo.Reduce(shape, func(acc int, d int, _ int) int { return acc * d }, 1)
	if len(values) != n {
		return nil, errors.Errorf("got %d values for shape %v", len(values), shape)
	}
	if IsContiguous(dimOrder) {
		return values, nil
	}

	rank := len(shape)
	strides := make([]int, rank)
	stride := 1
	for i := rank - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	physical := PhysicalShape(shape, dimOrder)

	out := make([]float64, n)
	idx := make([]int, rank)
	for k := range out {
		src := 0
		for i, v := range idx {
			src += v * strides[dimOrder[i]]
		}
		out[k] = values[src]
		for i := rank - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < physical[i] {
				break
			}
			idx[i] = 0
		}
	}
	return out, nil
}
