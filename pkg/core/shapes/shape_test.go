// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"slices"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	shape := Make(dtypes.Float32, 4, 3, 2)
	assert.True(t, shape.Ok())
	assert.Equal(t, 3, shape.Rank())
	assert.Equal(t, 24, shape.Size())
	assert.Equal(t, uintptr(96), shape.Memory())
	assert.Equal(t, 2, shape.Dim(-1))
	assert.Equal(t, 4, shape.Dim(0))
	require.Panics(t, func() { _ = shape.Dim(3) })
	require.Panics(t, func() { _ = shape.Dim(-4) })
	require.Panics(t, func() { _ = Make(dtypes.Float32, 2, 0) })

	assert.False(t, Invalid().Ok())
	assert.True(t, Shape{DType: dtypes.Int64}.IsScalar())
	assert.Equal(t, "(Float32)[4 3 2]", shape.String())

	clone := shape.Clone()
	clone.Dimensions[0] = 5
	assert.Equal(t, 4, shape.Dimensions[0])
	assert.False(t, shape.Equal(clone))
	assert.True(t, shape.Equal(Make(dtypes.Float32, 4, 3, 2)))
	assert.False(t, shape.Equal(Make(dtypes.Float64, 4, 3, 2)))
}

func TestPermuteAndStrides(t *testing.T) {
	nchw := Make(dtypes.Float16, 8, 16, 3, 3)
	nhwc := nchw.Permute([]int{0, 2, 3, 1})
	assert.Equal(t, []int{8, 3, 3, 16}, nhwc.Dimensions)
	assert.Equal(t, dtypes.Float16, nhwc.DType)
	assert.Equal(t, []int{144, 9, 3, 1}, nchw.Strides())
	require.Panics(t, func() { _ = nchw.Permute([]int{0, 1, 1, 2}) })
	require.Panics(t, func() { _ = nchw.Permute([]int{0, 1}) })
}

func TestIter(t *testing.T) {
	shape := Make(dtypes.Float32, 3, 1, 2)
	var collect [][]int
	var counter int
	for flatIdx, indices := range shape.Iter() {
		require.Equal(t, counter, flatIdx)
		collect = append(collect, slices.Clone(indices))
		counter++
	}
	assert.Equal(t, [][]int{{0, 0, 0}, {0, 0, 1}, {1, 0, 0}, {1, 0, 1}, {2, 0, 0}, {2, 0, 1}}, collect)

	// Scalar yields once.
	counter = 0
	for _, indices := range Make(dtypes.Int32).Iter() {
		assert.Empty(t, indices)
		counter++
	}
	assert.Equal(t, 1, counter)

	// Early break.
	counter = 0
	for range shape.Iter() {
		counter++
		if counter == 2 {
			break
		}
	}
	assert.Equal(t, 2, counter)
}
