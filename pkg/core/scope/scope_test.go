// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package scope

import (
	"testing"

	"github.com/gomlx/irpass/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope(t *testing.T) {
	root := New()
	w1 := tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2)
	root.SetTensor("conv1_w", w1)
	root.Var("empty")

	block := root.NewScope("block1")
	layer := block.NewScope("layer2")
	assert.Same(t, block, root.NewScope("block1"))
	layer.SetTensor("conv2_w", tensors.FromFlatDataAndDimensions([]float32{3}, 1))

	assert.Equal(t, "/", root.Path())
	assert.Equal(t, "/block1/layer2", layer.Path())
	assert.Same(t, block, layer.Parent())

	require.NotNil(t, layer.FindVar("conv1_w"))
	assert.Same(t, w1, layer.FindVar("conv1_w").Tensor())
	assert.Nil(t, layer.FindLocalVar("conv1_w"))
	assert.Nil(t, root.FindVar("conv2_w"))
	assert.NotNil(t, layer.FindLocalVar("conv2_w"))

	assert.Equal(t, []string{"conv1_w", "empty"}, root.LocalVarNames())
	assert.Len(t, root.LocalTensors(), 1)

	var visited []string
	root.Enumerate(func(scopePath string, v *Variable) {
		visited = append(visited, scopePath+":"+v.Name())
	})
	assert.Equal(t, []string{"/:conv1_w", "/:empty", "/block1/layer2:conv2_w"}, visited)

	root.EraseVars("empty", "missing")
	assert.Nil(t, root.FindLocalVar("empty"))
	require.Panics(t, func() { root.NewScope("") })
}
