// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpDesc(t *testing.T) {
	block := NewBlockDesc()
	op := block.AppendOp("conv2d")
	op.SetInput("Input", "x")
	op.SetInput("Filter", "w")
	op.SetOutput("Output", "y")
	op.SetAttr("data_format", "NCHW")
	op.SetAttr("groups", 1)

	assert.Same(t, block, op.Block())
	assert.Equal(t, []string{"Filter", "Input"}, op.InputNames())
	assert.Equal(t, []string{"w", "x"}, op.InputArgumentNames())
	assert.Equal(t, []string{"y"}, op.OutputArgumentNames())
	assert.Nil(t, op.Input("Bias"))

	op.RenameInput("x", "x_nhwc")
	assert.Equal(t, []string{"x_nhwc"}, op.Input("Input"))

	assert.Equal(t, "NCHW", GetAttrIfExists[string](op, "data_format"))
	assert.Equal(t, "", GetAttrIfExists[string](op, "missing"))
	assert.True(t, AttrOr(op, "use_cudnn", true))
	assert.Equal(t, 1, AttrOr(op, "groups", 7))
	require.Panics(t, func() { _ = GetAttrIfExists[bool](op, "groups") })

	op.RemoveAttr("groups")
	assert.False(t, op.HasAttr("groups"))
	assert.Equal(t, []string{"data_format"}, op.AttrNames())
	require.Panics(t, func() { op.SetAttr("bad", struct{}{}) })
}

func TestOpDescFlush(t *testing.T) {
	op := NewOpDesc(nil, "relu")
	op.SetAttr("alpha", float32(0))
	require.True(t, op.IsDirty())
	assert.False(t, op.Committed().HasAttr("alpha"))

	op.Flush()
	require.False(t, op.IsDirty())
	assert.True(t, op.Committed().HasAttr("alpha"))

	op.SetAttr("alpha", float32(1))
	assert.True(t, op.IsDirty())
	assert.Equal(t, float32(0), GetAttrIfExists[float32](op.Committed(), "alpha"))
	assert.Equal(t, float32(1), GetAttrIfExists[float32](op, "alpha"))

	// Edits that change nothing keep the operator clean.
	op.Flush()
	op.RenameInput("not_there", "other")
	assert.False(t, op.IsDirty())
	op.RemoveAttr("not_there")
	assert.False(t, op.IsDirty())

	c := op.Clone()
	c.SetType("gelu")
	assert.Equal(t, "relu", op.Type())
}

func TestBlockDesc(t *testing.T) {
	block := NewBlockDesc()
	assert.Equal(t, 0, block.ID())
	w := block.Var("w")
	assert.Same(t, w, block.Var("w"))
	block.Var("a")
	assert.Equal(t, []string{"w", "a"}, block.VarNames())
	assert.Nil(t, block.FindVar("b"))
	assert.False(t, block.HasVar("b"))

	w.SetShape([]int{8, 3, 3, 3})
	w.SetPersistable(true)
	c := w.Clone()
	c.SetShape([]int{1})
	assert.Equal(t, []int{8, 3, 3, 3}, w.Shape())
	assert.True(t, c.Persistable())
	require.Panics(t, func() { NewVarDesc("") })
}
