// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/gomlx/irpass/pkg/core/tensors"
	"github.com/gomlx/irpass/pkg/core/tensors/numpy"
	"github.com/gomlx/irpass/pkg/ir"
	"github.com/gomlx/irpass/pkg/passes"
	"github.com/gomlx/irpass/pkg/passes/layouttransfer"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onesTensor(dims ...int) *tensors.Tensor {
	size := 1
	for _, d := range dims {
		size *= d
	}
	data := make([]float32, size)
	for ii := range data {
		data[ii] = 1
	}
	return tensors.FromFlatDataAndDimensions(data, dims...)
}

// writeTestProgram saves a program of two fused convolutions followed by a relu, and its weights.
func writeTestProgram(t *testing.T, dir string) (programPath, weightsPath string) {
	block := ir.NewBlockDesc()
	block.Var("x").SetShape([]int{1, 8, 4, 4})
	for name, dims := range map[string][]int{"w1": {8, 8, 3, 3}, "w2": {16, 8, 1, 1}} {
		w := block.Var(name)
		w.SetShape(dims)
		w.SetPersistable(true)
	}
	block.Var("y1").SetShape([]int{1, 8, 4, 4})
	block.Var("y2").SetShape([]int{1, 16, 4, 4})
	block.Var("out").SetShape([]int{1, 16, 4, 4})
	for _, conv := range [][3]string{{"x", "w1", "y1"}, {"y1", "w2", "y2"}} {
		op := block.AppendOp(layouttransfer.TargetOpType)
		op.SetInput("Input", conv[0])
		op.SetInput(layouttransfer.SlotFilter, conv[1])
		op.SetOutput("Output", conv[2])
		op.SetAttr(layouttransfer.AttrDataFormat, "NCHW")
		op.Flush()
	}
	relu := block.AppendOp("relu")
	relu.SetInput("X", "y2")
	relu.SetOutput("Out", "out")
	relu.Flush()

	programPath = filepath.Join(dir, "program.json")
	require.NoError(t, ir.SaveProgramFile(programPath, block))
	weightsPath = filepath.Join(dir, "weights.npz")
	require.NoError(t, numpy.ToNpzFile(map[string]*tensors.Tensor{
		"w1": onesTensor(8, 8, 3, 3),
		"w2": onesTensor(16, 8, 1, 1),
	}, weightsPath))
	return
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	programPath, weightsPath := writeTestProgram(t, dir)
	opts := options{
		program:    programPath,
		weights:    weightsPath,
		passNames:  []string{layouttransfer.PassName},
		config:     passes.DefaultConfig(),
		outProgram: filepath.Join(dir, "out.json"),
		outWeights: filepath.Join(dir, "out.npz"),
		plain:      true,
	}
	var buf bytes.Buffer
	require.NoError(t, run(opts, &buf))
	output := buf.String()
	assert.Contains(t, output, "Layout transfer")
	assert.Contains(t, output, layouttransfer.StatName)
	assert.Contains(t, output, "3 -> 5")

	// The input is converted to NHWC, and the convolutions output back to NCHW for the relu.
	out := must.M1(ir.LoadProgramFile(opts.outProgram))
	var types []string
	for _, op := range out.Ops() {
		types = append(types, op.Type())
	}
	assert.Equal(t, []string{
		layouttransfer.ConversionOpType, layouttransfer.TargetOpType, layouttransfer.TargetOpType,
		layouttransfer.ConversionOpType, "relu",
	}, types)
	assert.Equal(t, []int{1, 4, 4, 16}, out.FindVar("y2").Shape())

	weights := must.M1(numpy.FromNpzFile(opts.outWeights))
	require.Len(t, weights, 2)
	assert.Equal(t, []int{8, 3, 3, 8}, weights["w1"].Shape().Dimensions)
	assert.Equal(t, []int{16, 1, 1, 8}, weights["w2"].Shape().Dimensions)
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	programPath, _ := writeTestProgram(t, dir)
	var buf bytes.Buffer

	err := run(options{program: filepath.Join(dir, "missing.json"), passNames: []string{layouttransfer.PassName}, plain: true}, &buf)
	require.Error(t, err)

	// Without weights the filters are missing: the pass fails.
	err = run(options{program: programPath, passNames: []string{layouttransfer.PassName}, plain: true}, &buf)
	require.ErrorContains(t, err, "w1")

	err = run(options{program: programPath, weights: filepath.Join(dir, "missing.npz"),
		passNames: []string{layouttransfer.PassName}, plain: true}, &buf)
	require.ErrorContains(t, err, "-weights")

	err = run(options{program: programPath, outProgram: filepath.Join(dir, "missing", "out.json"),
		passNames: []string{layouttransfer.PassName}, plain: true}, &buf)
	require.ErrorContains(t, err, "-out_program")
}

func TestParsePassNames(t *testing.T) {
	names, err := parsePassNames(" transfer_layout_pass , ")
	require.NoError(t, err)
	assert.Equal(t, []string{layouttransfer.PassName}, names)

	_, err = parsePassNames("")
	require.Error(t, err)
	_, err = parsePassNames("transfer_layout_pass,nope")
	require.ErrorContains(t, err, "nope")
}

func TestListPasses(t *testing.T) {
	var buf bytes.Buffer
	listPasses(&buf, true)
	assert.Contains(t, buf.String(), layouttransfer.PassName)
	assert.Contains(t, buf.String(), layouttransfer.ConfigUseCutlass)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.50s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "2.00ms", formatDuration(2*time.Millisecond))
	assert.Equal(t, "0.00s", formatDuration(0))
}
