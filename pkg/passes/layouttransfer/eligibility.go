// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layouttransfer

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/irpass/pkg/core/scope"
	"github.com/gomlx/irpass/pkg/core/tensors"
	"github.com/gomlx/irpass/pkg/ir"
)

// cudnnAlignment is the divisor required of both the output and input channels of the filters
// for cuDNN to run the convolution in NHWC.
const cudnnAlignment = 8

// backend through which a candidate was found eligible.
type backend uint8

const (
	backendNone backend = iota
	backendCutlass
	backendCudnn
)

// String implements fmt.Stringer.
func (b backend) String() string {
	switch b {
	case backendCutlass:
		return "cutlass"
	case backendCudnn:
		return "cudnn"
	default:
		return "none"
	}
}

// evaluator decides whether candidate operators can run in NHWC. It doesn't change the graph.
type evaluator struct {
	params     *scope.Scope
	useCutlass bool
}

// isCandidate returns whether op is a fused convolution declared as NCHW.
func isCandidate(op *ir.OpDesc) bool {
	return op.Type() == TargetOpType && ir.GetAttrIfExists[string](op, AttrDataFormat) == "NCHW"
}

// filterVar returns the parameter holding the filter, or panics if it is not in the parameter scope.
func (e *evaluator) filterVar(name string) *scope.Variable {
	v := e.params.FindLocalVar(name)
	if v == nil || v.Tensor() == nil {
		exceptions.Panicf("filter %q not found in the parameter scope %q", name, e.params.Path())
	}
	return v
}

func (e *evaluator) filterTensor(name string) *tensors.Tensor {
	return e.filterVar(name).Tensor()
}

// cudnnIsValid returns whether all filters are rank-4 with output and input channels multiple of
// cudnnAlignment.
func (e *evaluator) cudnnIsValid(op *ir.OpDesc) bool {
	for _, name := range op.Input(SlotFilter) {
		dims := e.filterTensor(name).Shape().Dimensions
		if len(dims) != 4 || dims[0]%cudnnAlignment != 0 || dims[1]%cudnnAlignment != 0 {
			return false
		}
	}
	return true
}

// cutlassIsValid returns whether the operator doesn't ask for cuDNN (it does by default) and
// cutlass is enabled.
func (e *evaluator) cutlassIsValid(op *ir.OpDesc) bool {
	return !ir.AttrOr(op, AttrUseCudnn, true) && e.useCutlass
}

// evaluate returns the backend that makes the operator eligible, cutlass taking precedence.
// The filters are always checked, so a filter missing from the parameters is reported even if
// cutlass would do.
func (e *evaluator) evaluate(op *ir.OpDesc) backend {
	cudnn := e.cudnnIsValid(op)
	switch {
	case e.cutlassIsValid(op):
		return backendCutlass
	case cudnn:
		return backendCudnn
	}
	return backendNone
}
