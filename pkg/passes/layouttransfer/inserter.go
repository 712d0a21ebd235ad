// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layouttransfer

import (
	"strings"

	"github.com/gomlx/irpass/pkg/core/layout"
	"github.com/gomlx/irpass/pkg/ir"
	"k8s.io/klog/v2"
)

// conversionKey identifies a converted value: a variable converted to a layout.
type conversionKey struct {
	producer ir.NodeID
	to       layout.Layout
}

// inserter splices ConversionOpType operators between variables and the operators consuming them.
// A variable is converted at most once per destination layout; later consumers reuse the
// converted variable.
type inserter struct {
	g     *ir.Graph
	block *ir.BlockDesc
	cache map[conversionKey]ir.NodeID

	// numConversions is the number of conversion operators created.
	numConversions int
}

func newInserter(g *ir.Graph, block *ir.BlockDesc) *inserter {
	return &inserter{g: g, block: block, cache: make(map[conversionKey]ir.NodeID)}
}

// conversionVarName returns the name of the converted variable, e.g. "x_nchw_to_nhwc".
func conversionVarName(name string, from, to layout.Layout) string {
	return name + "_" + strings.ToLower(from.String()) + "_to_" + strings.ToLower(to.String())
}

// insert makes consumer read producer converted from one layout to the other.
//
// It is a no-op returning false if the transition is not supported.
func (ins *inserter) insert(producer, consumer ir.NodeID, from, to layout.Layout) bool {
	if !layout.IsSupportedTransition(from, to) {
		return false
	}
	key := conversionKey{producer: producer, to: to}
	converted, found := ins.cache[key]
	if !found {
		converted = ins.createConversion(producer, from, to)
		ins.cache[key] = converted
	}
	producerName := ins.g.Node(producer).Var().Name()
	convertedNode := ins.g.Node(converted)
	conversionOp := convertedNode.Inputs()[0]

	ins.g.Node(consumer).Op().RenameInput(producerName, convertedNode.Name())
	ins.g.Link(producer, conversionOp)
	ins.g.Link(conversionOp, converted)
	ins.g.Link(converted, consumer)
	ins.g.Unlink(producer, consumer)
	klog.V(2).Infof("%s: operator #%d reads %q converted to %s", PassName, consumer, producerName, to)
	return true
}

// createConversion creates the conversion operator and its output variable, returning the id of
// the output variable node.
func (ins *inserter) createConversion(producer ir.NodeID, from, to layout.Layout) ir.NodeID {
	src := ins.g.Node(producer).Var()
	outName := conversionVarName(src.Name(), from, to)

	op := ir.NewOpDesc(ins.block, ConversionOpType)
	op.SetInput("X", src.Name())
	op.SetOutput("Out", outName)
	op.SetAttr(AttrSrcLayout, int(from))
	op.SetAttr(AttrDstLayout, int(to))
	op.Flush()
	opNode := ins.g.CreateOpNode(op)

	out := ins.block.Var(outName)
	out.SetPersistable(false)
	out.SetDType(src.DType())
	out.SetShape(permutedShape(src, from, to))
	outNode := ins.g.CreateVarNode(out)
	ins.g.Link(opNode.ID(), outNode.ID())
	ins.numConversions++
	return outNode.ID()
}
