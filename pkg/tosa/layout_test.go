package tosa

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhysicalShape(t *testing.T) {
	tests := []struct {
		name     string
		shape    []int
		dimOrder []int
		want     []int
	}{
		{name: "rank 0", shape: []int{}, dimOrder: []int{}, want: []int{}},
		{name: "rank 1", shape: []int{5}, dimOrder: []int{0}, want: []int{5}},
		{name: "contiguous", shape: []int{2, 3, 4}, dimOrder: []int{0, 1, 2}, want: []int{2, 3, 4}},
		{name: "channels last", shape: []int{1, 3, 8, 8}, dimOrder: []int{0, 2, 3, 1}, want: []int{1, 8, 8, 3}},
		{name: "swap", shape: []int{2, 3, 4}, dimOrder: []int{0, 2, 1}, want: []int{2, 4, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PhysicalShape(tt.shape, tt.dimOrder))
		})
	}
}

// Every output element is the input dimension the order points at.
func TestPhysicalShapeReindexes(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		rank := r.IntN(6)
		shape := make([]int, rank)
		for i := range shape {
			shape[i] = 1 + r.IntN(7)
		}
		order := r.Perm(rank)

		got := PhysicalShape(shape, order)
		require.Len(t, got, rank)
		for i := range got {
			require.Equal(t, shape[order[i]], got[i], "shape %v order %v", shape, order)
		}
	}
}

func TestIsPermutation(t *testing.T) {
	assert.True(t, IsPermutation([]int{}, 0))
	assert.True(t, IsPermutation([]int{2, 0, 1}, 3))
	assert.False(t, IsPermutation([]int{0, 0, 1}, 3))
	assert.False(t, IsPermutation([]int{0, 1}, 3))
	assert.False(t, IsPermutation([]int{0, 1, 3}, 3))
	assert.False(t, IsPermutation([]int{-1, 0}, 2))
}

func TestPermute(t *testing.T) {
	// 2x3 transposed into 3x2.
	values := []float64{1, 2, 3, 4, 5, 6}
	got, err := Permute(values, []int{2, 3}, []int{1, 0})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, got)

	// NCHW (1,2,2,2) to NHWC.
	values = []float64{0, 1, 2, 3, 4, 5, 6, 7}
	got, err = Permute(values, []int{1, 2, 2, 2}, []int{0, 2, 3, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 4, 1, 5, 2, 6, 3, 7}, got)

	got, err = Permute([]float64{42}, []int{}, []int{})
	require.NoError(t, err)
	assert.Equal(t, []float64{42}, got)
}

func TestPermuteErrors(t *testing.T) {
	_, err := Permute([]float64{1, 2}, []int{2}, []int{1})
	assert.Error(t, err)

	_, err = Permute([]float64{1, 2, 3}, []int{2, 2}, []int{1, 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 3 values")
}

// Permuting by an order and then by its inverse restores the input.
func TestPermuteInverse(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for range 50 {
		rank := 1 + r.IntN(4)
		shape := make([]int, rank)
		n := 1
		for i := range shape {
			shape[i] = 1 + r.IntN(4)
			n *= shape[i]
		}
		values := make([]float64, n)
		for i := range values {
			values[i] = float64(i)
		}
		order := r.Perm(rank)
		inverse := make([]int, rank)
		for i, axis := range order {
			inverse[axis] = i
		}

		physical, err := Permute(values, shape, order)
		require.NoError(t, err)
		back, err := Permute(physical, PhysicalShape(shape, order), inverse)
		require.NoError(t, err)
		require.Equal(t, values, back, "shape %v order %v", shape, order)
	}
}
