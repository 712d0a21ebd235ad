// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package numpy

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/irpass/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestNpyHeader(t *testing.T) {
	dtype, dims, fortran, err := parseNpyHeader("{'descr': '<f4', 'fortran_order': False, 'shape': (16, 8, 3, 3), }")
	require.NoError(t, err)
	assert.Equal(t, "<f4", dtype)
	assert.Equal(t, []int{16, 8, 3, 3}, dims)
	assert.False(t, fortran)

	_, dims, _, err = parseNpyHeader("{'descr': '<i8', 'fortran_order': True, 'shape': (10,), }")
	require.NoError(t, err)
	assert.Equal(t, []int{10}, dims)

	_, _, _, err = parseNpyHeader("{'descr': '<i8', 'shape': (10,), }")
	require.Error(t, err)

	got, err := npyDTypeToDType("|b1")
	require.NoError(t, err)
	assert.Equal(t, dtypes.Bool, got)
	_, err = npyDTypeToDType("<U8")
	require.Error(t, err)
}

func TestNpyRoundTrip(t *testing.T) {
	halfs := make([]float16.Float16, 2*3*4*5)
	for ii := range halfs {
		halfs[ii] = float16.Fromfloat32(float32(ii) / 4)
	}
	want := tensors.FromFlatDataAndDimensions(halfs, 2, 3, 4, 5)

	var buf bytes.Buffer
	require.NoError(t, ToNpyWriter(want, &buf))
	assert.Equal(t, 0, (buf.Len()-want.Size()*2)%16, "header must be 16-byte aligned")
	got, err := FromNpyReader(&buf)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	_, err = FromNpyReader(bytes.NewReader([]byte("not a numpy file")))
	require.Error(t, err)
}

func TestNpzFile(t *testing.T) {
	weights := map[string]*tensors.Tensor{
		"conv_w": tensors.FromFlatDataAndDimensions(make([]float32, 16*8*3*3), 16, 8, 3, 3),
		"conv_b": tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, 16),
	}
	filePath := filepath.Join(t.TempDir(), "weights.npz")
	require.NoError(t, ToNpzFile(weights, filePath))

	loaded := must.M1(FromNpzFile(filePath))
	require.Len(t, loaded, 2)
	for name, want := range weights {
		assert.True(t, want.Equal(loaded[name]), "tensor %q", name)
	}
}
