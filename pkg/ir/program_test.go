// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const convProgram = `{
  "vars": [
    {"name": "x", "shape": [1, 8, 4, 4]},
    {"name": "w", "dtype": "float16", "shape": [8, 8, 3, 3], "persistable": true},
    {"name": "y", "dtype": "Float32", "shape": [1, 8, 4, 4]}
  ],
  "ops": [
    {
      "type": "fused_conv2d_add_act",
      "inputs": {"Input": ["x"], "Filter": ["w"]},
      "outputs": {"Output": ["y"]},
      "attrs": {
        "data_format": {"type": "string", "value": "NCHW"},
        "strides": {"type": "ints", "value": [1, 1]}
      }
    }
  ]
}`

func TestReadProgram(t *testing.T) {
	block, err := ReadProgram(strings.NewReader(convProgram))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "w", "y"}, block.VarNames())
	w := block.FindVar("w")
	assert.Equal(t, dtypes.Float16, w.DType())
	assert.True(t, w.Persistable())
	assert.Equal(t, dtypes.Float32, block.FindVar("x").DType())

	ops := block.Ops()
	require.Len(t, ops, 1)
	op := ops[0]
	assert.False(t, op.IsDirty())
	assert.Equal(t, []string{"w"}, op.Input("Filter"))
	assert.Equal(t, "NCHW", GetAttrIfExists[string](op, "data_format"))
	assert.Equal(t, []int{1, 1}, GetAttrIfExists[[]int](op, "strides"))
}

func TestReadProgramErrors(t *testing.T) {
	for name, program := range map[string]string{
		"undeclared":   `{"vars": [], "ops": [{"type": "relu", "inputs": {"X": ["a"]}}]}`,
		"duplicate":    `{"vars": [{"name": "a"}, {"name": "a"}], "ops": []}`,
		"unnamed":      `{"vars": [{"name": ""}]}`,
		"dtype":        `{"vars": [{"name": "a", "dtype": "quaternion"}]}`,
		"no type":      `{"ops": [{}]}`,
		"unknown key":  `{"vars": [], "blocks": []}`,
		"bad attr":     `{"ops": [{"type": "relu", "attrs": {"a": {"type": "map", "value": {}}}}]}`,
		"not a object": `[]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadProgram(strings.NewReader(program))
			require.Error(t, err)
		})
	}
}

func TestWriteProgram(t *testing.T) {
	block := must.M1(ReadProgram(strings.NewReader(convProgram)))
	var buf bytes.Buffer
	require.NoError(t, WriteProgram(&buf, block))
	assert.Contains(t, buf.String(), `"dtype": "Float16"`)

	reread := must.M1(ReadProgram(bytes.NewReader(buf.Bytes())))
	assert.Equal(t, block.VarNames(), reread.VarNames())
	assert.Equal(t, []int{8, 8, 3, 3}, reread.FindVar("w").Shape())

	// Pending edits are not serialized: they must be flushed first.
	block.Ops()[0].SetAttr("data_format", "NHWC")
	require.Error(t, WriteProgram(&buf, block))
	block.Ops()[0].Flush()
	buf.Reset()
	require.NoError(t, WriteProgram(&buf, block))
	assert.Contains(t, buf.String(), `"NHWC"`)
}

func TestProgramFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "program.json")
	block := must.M1(ReadProgram(strings.NewReader(convProgram)))
	require.NoError(t, SaveProgramFile(path, block))
	loaded, err := LoadProgramFile(path)
	require.NoError(t, err)
	assert.Equal(t, block.VarNames(), loaded.VarNames())

	_, err = LoadProgramFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
