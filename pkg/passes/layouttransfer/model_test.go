// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layouttransfer

import (
	"testing"

	"github.com/gomlx/irpass/pkg/core/scope"
	"github.com/gomlx/irpass/pkg/core/tensors"
	"github.com/gomlx/irpass/pkg/ir"
	"github.com/stretchr/testify/require"
)

// testModel builds programs of fused convolutions along with their parameters.
type testModel struct {
	block  *ir.BlockDesc
	params *scope.Scope
}

func newTestModel() *testModel {
	return &testModel{block: ir.NewBlockDesc(), params: scope.New()}
}

// activation declares a non-persistable variable.
func (m *testModel) activation(name string, dims ...int) {
	m.block.Var(name).SetShape(dims)
}

// weight declares a persistable variable and stores an iota tensor for it in the parameters.
func (m *testModel) weight(name string, dims ...int) {
	v := m.block.Var(name)
	v.SetShape(dims)
	v.SetPersistable(true)
	m.params.SetTensor(name, iotaTensor(dims...))
}

func iotaTensor(dims ...int) *tensors.Tensor {
	size := 1
	for _, d := range dims {
		size *= d
	}
	data := make([]float32, size)
	for ii := range data {
		data[ii] = float32(ii)
	}
	return tensors.FromFlatDataAndDimensions(data, dims...)
}

// conv appends a NCHW fused convolution. attrs are set after the default ones.
func (m *testModel) conv(input, filter, output string, attrs map[string]any) *ir.OpDesc {
	op := m.block.AppendOp(TargetOpType)
	op.SetInput("Input", input)
	op.SetInput(SlotFilter, filter)
	op.SetOutput("Output", output)
	op.SetAttr(AttrDataFormat, "NCHW")
	op.SetAttr("activation", "relu")
	for name, value := range attrs {
		op.SetAttr(name, value)
	}
	op.Flush()
	return op
}

// unary appends an operator with one input "X" and one output "Out".
func (m *testModel) unary(opType, input, output string) *ir.OpDesc {
	op := m.block.AppendOp(opType)
	op.SetInput("X", input)
	op.SetOutput("Out", output)
	op.Flush()
	return op
}

func (m *testModel) graph() *ir.Graph {
	g := ir.NewGraph(m.block)
	g.SetParamScope(m.params)
	return g
}

// opNodes returns the operation nodes of the given type, in id order.
func opNodes(g *ir.Graph, opType string) []*ir.Node {
	var nodes []*ir.Node
	for _, n := range g.Nodes() {
		if n.IsOp() && n.Name() == opType {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// varNode returns the only variable node with the given name.
func varNode(t *testing.T, g *ir.Graph, name string) *ir.Node {
	nodes := g.VarNodes(name)
	require.Lenf(t, nodes, 1, "variable %q", name)
	return nodes[0]
}

// opWriting returns the operation node writing the variable.
func opWriting(t *testing.T, g *ir.Graph, name string) *ir.Node {
	inputs := varNode(t, g, name).Inputs()
	require.Lenf(t, inputs, 1, "variable %q writers", name)
	return g.Node(inputs[0])
}

func dataFormat(n *ir.Node) string {
	return ir.GetAttrIfExists[string](n.Op(), AttrDataFormat)
}

func countStat(t *testing.T, g *ir.Graph) int {
	v, found := g.Stat(StatName)
	require.True(t, found)
	return v
}
