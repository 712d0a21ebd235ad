// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/irpass/internal/workerspool"
	"github.com/gomlx/irpass/pkg/core/layout"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Device is the memory space where a tensor produced by a conversion is placed.
type Device int

const (
	// CPU is the host memory, where local tensors live.
	CPU Device = iota

	// GPU memory. Not available to local tensors.
	GPU
)

// String implements fmt.Stringer.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case GPU:
		return "GPU"
	default:
		return "UnknownDevice"
	}
}

// parallelThreshold is the minimum number of elements handled by each goroutine when permuting a tensor.
const parallelThreshold = 64 * 1024

// permutePool is shared by all layout conversions.
var permutePool = workerspool.New()

// TransDataLayout returns a new tensor with the contents of src converted from the `from` layout to the
// `to` layout: the axes are permuted (see layout.Permutation) and the new tensor is tagged with `to`.
// src is not modified.
//
// Only rank-4 tensors and the NCHW <-> NHWC transitions are supported. The layout tag of src must be
// `from`, or layout.Undefined. The result is placed on the given device; only CPU is available.
func TransDataLayout(from, to layout.Layout, device Device, src *Tensor) (*Tensor, error) {
	if src == nil {
		return nil, errors.New("TransDataLayout: nil source tensor")
	}
	if device != CPU {
		return nil, errors.Errorf("TransDataLayout: device %s is not available for local tensors", device)
	}
	perm, err := layout.Permutation(from, to)
	if err != nil {
		return nil, errors.WithMessage(err, "TransDataLayout")
	}
	if src.layout != from && src.layout != layout.Undefined {
		return nil, errors.Errorf("TransDataLayout(%s -> %s): source tensor %s is tagged as %s",
			from, to, src.shape, src.layout)
	}
	if src.Rank() != len(perm) {
		return nil, errors.Errorf("TransDataLayout(%s -> %s): requires a rank-%d tensor, got %s",
			from, to, len(perm), src.shape)
	}

	permuteFn, found := permuteFns[src.DType()]
	if !found {
		return nil, errors.Errorf("TransDataLayout: dtype %s not supported", src.DType())
	}
	dst := FromShape(src.shape.Permute(perm))
	dst.layout = to
	srcStrides := src.shape.Strides()
	stridesInDstOrder := make([]int, len(perm))
	for axis, srcAxis := range perm {
		stridesInDstOrder[axis] = srcStrides[srcAxis]
	}
	src.ConstFlatData(func(srcFlat any) {
		dst.MutableFlatData(func(dstFlat any) {
			permuteFn(srcFlat, dstFlat, dst.shape.Dimensions, stridesInDstOrder)
		})
	})
	return dst, nil
}

type permuteFn func(src, dst any, dstDims, srcStrides []int)

var permuteFns = map[dtypes.DType]permuteFn{
	dtypes.Bool:       permute4D[bool],
	dtypes.Int8:       permute4D[int8],
	dtypes.Int16:      permute4D[int16],
	dtypes.Int32:      permute4D[int32],
	dtypes.Int64:      permute4D[int64],
	dtypes.Uint8:      permute4D[uint8],
	dtypes.Uint16:     permute4D[uint16],
	dtypes.Uint32:     permute4D[uint32],
	dtypes.Uint64:     permute4D[uint64],
	dtypes.Float16:    permute4D[float16.Float16],
	dtypes.BFloat16:   permute4D[bfloat16.BFloat16],
	dtypes.Float32:    permute4D[float32],
	dtypes.Float64:    permute4D[float64],
	dtypes.Complex64:  permute4D[complex64],
	dtypes.Complex128: permute4D[complex128],
}

// permute4D writes dst in order, reading each element from src at the position given by srcStrides,
// which holds, for each destination axis, the stride of the corresponding source axis.
// The outermost destination axis is split among the workers of permutePool.
func permute4D[T any](srcAny, dstAny any, dstDims, srcStrides []int) {
	src, dst := srcAny.([]T), dstAny.([]T)
	d1, d2, d3 := dstDims[1], dstDims[2], dstDims[3]
	s0, s1, s2, s3 := srcStrides[0], srcStrides[1], srcStrides[2], srcStrides[3]
	rowSize := d1 * d2 * d3
	minChunk := max(1, parallelThreshold/max(1, rowSize))
	permutePool.ParallelFor(dstDims[0], minChunk, func(start, end int) {
		pos := start * rowSize
		for i0 := start; i0 < end; i0++ {
			for i1 := 0; i1 < d1; i1++ {
				base := i0*s0 + i1*s1
				for i2 := 0; i2 < d2; i2++ {
					idx := base + i2*s2
					for i3 := 0; i3 < d3; i3++ {
						dst[pos] = src[idx]
						idx += s3
						pos++
					}
				}
			}
		}
	})
}
