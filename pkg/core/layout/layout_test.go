// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	l, err := Parse("NCHW")
	require.NoError(t, err)
	assert.Equal(t, NCHW, l)

	l, err = Parse("nhwc")
	require.NoError(t, err)
	assert.Equal(t, NHWC, l)

	l, err = Parse("AnyLayout")
	require.NoError(t, err)
	assert.Equal(t, Undefined, l)

	_, err = Parse("HWCN")
	require.Error(t, err)

	assert.Equal(t, "NDHWC", NDHWC.String())
	assert.Equal(t, "UNKNOWN", Layout(17).String())
}

func TestAttributeValues(t *testing.T) {
	// Stored as integer attributes: values must not change.
	assert.Equal(t, 0, int(Undefined))
	assert.Equal(t, 1, int(NHWC))
	assert.Equal(t, 2, int(NCHW))
}

func TestPermuteDims(t *testing.T) {
	nchw := []int{2, 16, 5, 7}
	nhwc, err := PermuteDims(nchw, NCHW, NHWC)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5, 7, 16}, nhwc)
	assert.Equal(t, []int{2, 16, 5, 7}, nchw, "input dimensions must not change")

	back, err := PermuteDims(nhwc, NHWC, NCHW)
	require.NoError(t, err)
	assert.Equal(t, nchw, back)

	assert.Equal(t, nhwc[NHWC.ChannelsAxis()], nchw[NCHW.ChannelsAxis()])

	_, err = PermuteDims([]int{1, 2, 3}, NCHW, NHWC)
	require.Error(t, err)
	_, err = PermuteDims(nchw, NCHW, NCDHW)
	require.Error(t, err)
	_, err = PermuteDims(nchw, NCHW, NCHW)
	require.Error(t, err)
}

func TestIsSupportedTransition(t *testing.T) {
	assert.True(t, IsSupportedTransition(NCHW, NHWC))
	assert.True(t, IsSupportedTransition(NHWC, NCHW))
	assert.False(t, IsSupportedTransition(NHWC, NHWC))
	assert.False(t, IsSupportedTransition(NCDHW, NDHWC))
	assert.False(t, IsSupportedTransition(Undefined, NHWC))
	assert.Equal(t, 4, NCHW.Rank())
	assert.Equal(t, 5, NDHWC.Rank())
}
