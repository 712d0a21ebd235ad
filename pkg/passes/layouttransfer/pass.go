// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package layouttransfer implements the "transfer_layout_pass": it converts fused convolutions
// (fused_conv2d_add_act) from NCHW to NHWC, when the convolution backends can run them that way.
//
// For each converted operator it:
//
//   - sets its "data_format" attribute to "NHWC";
//   - transposes its filters in the parameter scope, and updates their declared shapes;
//   - updates the declared shapes of its outputs;
//   - converts its NCHW activation inputs with "transfer_layout" operators.
//
// Operators that are not converted get their NHWC inputs converted back to NCHW.
//
// An operator can be converted if cuDNN supports it (all filters have input and output channels
// multiple of 8), or if it doesn't ask for cuDNN and cutlass is enabled with the "use_cutlass"
// configuration. Operators sharing a filter are either all converted or none is, since the filter
// storage is transposed in place.
//
// Import the package to register the pass:
//
//	import _ "github.com/gomlx/irpass/pkg/passes/layouttransfer"
package layouttransfer

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/irpass/pkg/core/layout"
	"github.com/gomlx/irpass/pkg/core/tensors"
	"github.com/gomlx/irpass/pkg/ir"
	"github.com/gomlx/irpass/pkg/passes"
	"k8s.io/klog/v2"
)

const (
	// PassName is the name under which the pass is registered.
	PassName = "transfer_layout_pass"

	// StatName is the graph statistic set to the number of operators converted.
	StatName = "fused_conv2d_add_act_layout_transfer"

	// ConfigUseCutlass is the boolean configuration that enables cutlass. Default is false.
	ConfigUseCutlass = "use_cutlass"

	// TargetOpType is the type of the operators converted.
	TargetOpType = "fused_conv2d_add_act"

	// ConversionOpType is the type of the operators inserted to convert activations.
	ConversionOpType = "transfer_layout"
)

// Operator slots and attributes read or written by the pass.
const (
	SlotFilter     = "Filter"
	AttrDataFormat = "data_format"
	AttrUseCudnn   = "use_cudnn"
	AttrFuseAlpha  = "fuse_alpha"
	AttrSrcLayout  = "src_layout"
	AttrDstLayout  = "dst_layout"
)

func init() {
	passes.Register(PassName, func(cfg passes.Config) passes.Pass { return New(cfg) })
	passes.RegisterConfig(ConfigUseCutlass, false)
}

// Report summarizes the changes of the last application of the pass.
type Report struct {
	Candidates, OpsConverted, Evicted int
	Conversions                       int
	WeightsTransposed                 int
	BytesTransposed                   uintptr
}

// Pass converts fused convolutions to NHWC. See package documentation.
type Pass struct {
	useCutlass bool
	report     Report
}

// New creates the pass, reading ConfigUseCutlass from cfg.
func New(cfg passes.Config) *Pass {
	return &Pass{useCutlass: passes.Get(cfg, ConfigUseCutlass, false)}
}

// Name implements passes.Pass.
func (p *Pass) Name() string { return PassName }

// LastReport returns the summary of the last call to Apply.
func (p *Pass) LastReport() Report { return p.report }

// Apply implements passes.Pass.
//
// It panics if g is nil, if it is not the main graph or has more than one block, or if it has no
// parameter scope.
func (p *Pass) Apply(g *ir.Graph) {
	if g == nil {
		exceptions.Panicf("%s: graph cannot be nil", PassName)
	}
	if !g.IsMainGraph() {
		exceptions.Panicf("%s: the graph must be the main graph", PassName)
	}
	if g.NumBlocks() != 1 {
		exceptions.Panicf("%s: graphs with multiple blocks (%d) are not supported", PassName, g.NumBlocks())
	}
	if g.ParamScope() == nil {
		exceptions.Panicf("%s: the graph has no parameter scope", PassName)
	}
	p.report = Report{}
	r := &rewriter{
		g:        g,
		eval:     &evaluator{params: g.ParamScope(), useCutlass: p.useCutlass},
		groups:   make(weightGroups),
		eligible: ir.MakeNodeSet(),
		backends: make(map[ir.NodeID]backend),
		flipped:  ir.MakeNodeSet(),
		ins:      newInserter(g, g.Block()),
		report:   &p.report,
	}
	r.run()
	g.SetStat(StatName, len(r.eligible))
	klog.V(1).Infof("%s: %d of %d candidates converted to NHWC (%d evicted for shared filters), %d conversions inserted",
		PassName, p.report.OpsConverted, p.report.Candidates, p.report.Evicted, p.report.Conversions)
}

// rewriter holds the state of one application of the pass.
type rewriter struct {
	g      *ir.Graph
	eval   *evaluator
	groups weightGroups

	// eligible operators, and the backend each was found eligible with.
	eligible ir.NodeSet
	backends map[ir.NodeID]backend

	// flipped holds the activations already declared as NHWC.
	flipped ir.NodeSet

	ins    *inserter
	report *Report
}

func (r *rewriter) run() {
	order := r.g.TopologySortOperations()
	if len(order) == 0 {
		return
	}

	for _, n := range order {
		op := n.Op()
		if !isCandidate(op) {
			continue
		}
		r.report.Candidates++
		r.groups.record(n.ID(), op.Input(SlotFilter))
		if b := r.eval.evaluate(op); b != backendNone {
			r.eligible.Insert(n.ID())
			r.backends[n.ID()] = b
			klog.V(2).Infof("%s: operator #%d can run NHWC with %s", PassName, n.ID(), b)
		} else {
			klog.V(2).Infof("%s: operator #%d can't run NHWC", PassName, n.ID())
		}
	}

	r.report.Evicted = propagateSharedWeights(order, r.groups, r.eligible)

	for _, n := range order {
		if r.eligible.Has(n.ID()) {
			r.convert(n)
		} else {
			r.restoreInputs(n)
		}
	}
	r.report.OpsConverted = len(r.eligible)
	r.report.Conversions = r.ins.numConversions
}

// convert switches the operator to NHWC, along with its filters and outputs, and converts its
// NCHW activation inputs.
func (r *rewriter) convert(n *ir.Node) {
	op := n.Op()
	switch r.backends[n.ID()] {
	case backendCutlass:
		if !op.HasAttr(AttrFuseAlpha) {
			op.SetAttr(AttrFuseAlpha, float32(0))
		}
	case backendCudnn:
		if op.HasAttr(AttrUseCudnn) {
			op.SetAttr(AttrUseCudnn, true)
		}
	}
	op.SetAttr(AttrDataFormat, layout.NHWC.String())
	op.Flush()

	for _, name := range op.Input(SlotFilter) {
		r.transposeFilter(n, name)
	}

	for _, id := range n.Outputs() {
		v := r.g.Node(id).Var()
		if v.Persistable() {
			continue
		}
		v.SetShape(permutedShape(v, layout.NCHW, layout.NHWC))
		r.flipped.Insert(id)
	}

	for _, id := range n.Inputs() {
		v := r.g.Node(id).Var()
		if v.Persistable() || r.flipped.Has(id) {
			continue
		}
		r.ins.insert(id, n.ID(), layout.NCHW, layout.NHWC)
	}
}

// transposeFilter transposes the filter tensor to NHWC, unless it already is, and updates the
// declared shape of the filter variable read by n.
func (r *rewriter) transposeFilter(n *ir.Node, name string) {
	v := r.eval.filterVar(name)
	t := v.Tensor()
	if t.Layout() == layout.NHWC {
		return
	}
	transposed, err := tensors.TransDataLayout(layout.NCHW, layout.NHWC, tensors.CPU, t)
	if err != nil {
		exceptions.Panicf("%s: failed to transpose filter %q: %+v", PassName, name, err)
	}
	v.SetTensor(transposed)
	r.report.WeightsTransposed++
	r.report.BytesTransposed += transposed.Memory()

	for _, id := range n.Inputs() {
		in := r.g.Node(id).Var()
		if in.Persistable() && in.Name() == name {
			in.SetShape(permutedShape(in, layout.NCHW, layout.NHWC))
		}
	}
}

// restoreInputs converts back to NCHW the NHWC inputs of an operator that was not converted.
func (r *rewriter) restoreInputs(n *ir.Node) {
	for _, id := range n.Inputs() {
		if r.flipped.Has(id) {
			r.ins.insert(id, n.ID(), layout.NHWC, layout.NCHW)
		}
	}
}

// permutedShape returns the declared shape of v converted between layouts. Unknown (empty) shapes
// stay unknown.
func permutedShape(v *ir.VarDesc, from, to layout.Layout) []int {
	dims := v.Shape()
	if len(dims) == 0 {
		return dims
	}
	permuted, err := layout.PermuteDims(dims, from, to)
	if err != nil {
		exceptions.Panicf("%s: variable %q: %+v", PassName, v.Name(), err)
	}
	return permuted
}
