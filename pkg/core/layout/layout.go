// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package layout defines the physical memory layout tags for image-like tensors, and the
// axis permutations used to move a tensor between them.
//
// Only the 4D layouts NCHW ("channels first", channel on axis 1) and NHWC ("channels last",
// channel on axis 3) can be converted. The other tags exist so that descriptors can name them.
package layout

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Layout of the axes of a tensor in memory.
//
// The numeric values are stable: they are stored as integer attributes (e.g. "src_layout") in
// operator descriptors.
type Layout int

const (
	// Undefined (or "any") layout: the tensor has no particular layout associated.
	Undefined Layout = iota

	// NHWC is the [batch, height, width, channels] layout, also known as "channels last".
	NHWC

	// NCHW is the [batch, channels, height, width] layout, also known as "channels first".
	NCHW

	// NCDHW is the 5D version of NCHW, with an extra depth axis.
	NCDHW

	// NDHWC is the 5D version of NHWC, with an extra depth axis.
	NDHWC
)

var layoutNames = []string{"UNDEFINED", "NHWC", "NCHW", "NCDHW", "NDHWC"}

// String returns the name of the layout, as used in the "data_format" attribute.
func (l Layout) String() string {
	if l < 0 || int(l) >= len(layoutNames) {
		return "UNKNOWN"
	}
	return layoutNames[l]
}

// Parse converts a "data_format" string to a Layout.
// It is case-insensitive, and "ANY" and "AnyLayout" are accepted as aliases to Undefined.
func Parse(name string) (Layout, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	switch upper {
	case "", "ANY", "ANYLAYOUT":
		return Undefined, nil
	}
	idx := slices.Index(layoutNames, upper)
	if idx < 0 {
		return Undefined, errors.Errorf("unknown data layout %q", name)
	}
	return Layout(idx), nil
}

// Rank returns the rank of tensors using this layout, or 0 for Undefined.
func (l Layout) Rank() int {
	switch l {
	case NHWC, NCHW:
		return 4
	case NCDHW, NDHWC:
		return 5
	default:
		return 0
	}
}

// ChannelsAxis returns the axis holding the channels, or -1 for Undefined.
func (l Layout) ChannelsAxis() int {
	switch l {
	case NCHW, NCDHW:
		return 1
	case NHWC:
		return 3
	case NDHWC:
		return 4
	default:
		return -1
	}
}

// IsSupportedTransition returns whether a tensor can be converted from one layout to the other.
// Only NCHW -> NHWC and NHWC -> NCHW are supported.
func IsSupportedTransition(from, to Layout) bool {
	return (from == NCHW && to == NHWC) || (from == NHWC && to == NCHW)
}

// Permutation returns the axes permutation that converts a tensor in the from layout to the to layout:
// output axis i is taken from input axis perm[i].
func Permutation(from, to Layout) ([]int, error) {
	switch {
	case from == NCHW && to == NHWC:
		return []int{0, 2, 3, 1}, nil
	case from == NHWC && to == NCHW:
		return []int{0, 3, 1, 2}, nil
	}
	return nil, errors.Errorf("layout transition %s -> %s not supported", from, to)
}

// PermuteDims returns the dimensions of a tensor converted from the from layout to the to layout.
// The input dims are not modified.
func PermuteDims(dims []int, from, to Layout) ([]int, error) {
	perm, err := Permutation(from, to)
	if err != nil {
		return nil, err
	}
	if len(dims) != len(perm) {
		return nil, errors.Errorf("layout transition %s -> %s requires rank %d, got dimensions %v",
			from, to, len(perm), dims)
	}
	out := make([]int, len(dims))
	for axis, srcAxis := range perm {
		out[axis] = dims[srcAxis]
	}
	return out, nil
}
