// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"maps"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// VarDesc describes a variable: its declared shape, dtype and whether it is persistable (a parameter
// whose value lives in the graph's parameter scope).
type VarDesc struct {
	name        string
	dtype       dtypes.DType
	shape       []int
	persistable bool
}

// NewVarDesc creates a Float32 non-persistable variable description with unknown shape.
func NewVarDesc(name string) *VarDesc {
	if name == "" {
		exceptions.Panicf("ir.NewVarDesc: variable name cannot be empty")
	}
	return &VarDesc{name: name, dtype: dtypes.Float32}
}

// Name of the variable.
func (v *VarDesc) Name() string { return v.name }

// DType of the variable.
func (v *VarDesc) DType() dtypes.DType { return v.dtype }

// SetDType changes the variable dtype.
func (v *VarDesc) SetDType(dtype dtypes.DType) { v.dtype = dtype }

// Shape returns a copy of the declared shape.
func (v *VarDesc) Shape() []int { return slices.Clone(v.shape) }

// SetShape changes the declared shape. The slice is copied.
func (v *VarDesc) SetShape(dims []int) { v.shape = slices.Clone(dims) }

// Persistable returns whether the variable is a parameter.
func (v *VarDesc) Persistable() bool { return v.persistable }

// SetPersistable marks the variable as a parameter.
func (v *VarDesc) SetPersistable(persistable bool) { v.persistable = persistable }

// Clone returns a deep copy.
func (v *VarDesc) Clone() *VarDesc {
	c := *v
	c.shape = slices.Clone(v.shape)
	return &c
}

// opState is the mutable content of an OpDesc.
type opState struct {
	opType          string
	inputs, outputs map[string][]string
	attrs           map[string]Attribute
}

func newOpState(opType string) opState {
	return opState{
		opType:  opType,
		inputs:  make(map[string][]string),
		outputs: make(map[string][]string),
		attrs:   make(map[string]Attribute),
	}
}

func (s opState) clone() opState {
	c := opState{opType: s.opType, attrs: maps.Clone(s.attrs)}
	c.inputs = cloneSlots(s.inputs)
	c.outputs = cloneSlots(s.outputs)
	return c
}

func cloneSlots(slots map[string][]string) map[string][]string {
	c := make(map[string][]string, len(slots))
	for k, v := range slots {
		c[k] = slices.Clone(v)
	}
	return c
}

// OpDesc describes an operator: its type, named input and output slots (each a list of variable
// names) and its attributes.
//
// Edits are made to the live state, and are only committed when Flush is called. Serialization
// (see WriteProgram) only accepts flushed operators.
type OpDesc struct {
	block     *BlockDesc
	live      opState
	committed opState
	dirty     bool
}

// NewOpDesc creates an empty operator of the given type, owned by block (it may be nil).
// It is not appended to the block, see BlockDesc.AppendOp for that.
func NewOpDesc(block *BlockDesc, opType string) *OpDesc {
	op := &OpDesc{block: block, live: newOpState(opType), dirty: true}
	op.committed = newOpState(opType)
	return op
}

// Block owning the operator, it may be nil.
func (op *OpDesc) Block() *BlockDesc { return op.block }

// Type of the operator.
func (op *OpDesc) Type() string { return op.live.opType }

// SetType changes the operator type.
func (op *OpDesc) SetType(opType string) {
	op.live.opType = opType
	op.dirty = true
}

// Input returns the variable names bound to the input slot, or nil if the slot is not set.
func (op *OpDesc) Input(slot string) []string { return slices.Clone(op.live.inputs[slot]) }

// SetInput binds the input slot to the given variable names.
func (op *OpDesc) SetInput(slot string, names ...string) {
	op.live.inputs[slot] = slices.Clone(names)
	op.dirty = true
}

// Output returns the variable names bound to the output slot, or nil if the slot is not set.
func (op *OpDesc) Output(slot string) []string { return slices.Clone(op.live.outputs[slot]) }

// SetOutput binds the output slot to the given variable names.
func (op *OpDesc) SetOutput(slot string, names ...string) {
	op.live.outputs[slot] = slices.Clone(names)
	op.dirty = true
}

// InputNames returns the sorted input slot names.
func (op *OpDesc) InputNames() []string { return slices.Sorted(maps.Keys(op.live.inputs)) }

// OutputNames returns the sorted output slot names.
func (op *OpDesc) OutputNames() []string { return slices.Sorted(maps.Keys(op.live.outputs)) }

// InputArgumentNames returns the variable names of all input slots, in slot order.
func (op *OpDesc) InputArgumentNames() []string { return flattenSlots(op.live.inputs) }

// OutputArgumentNames returns the variable names of all output slots, in slot order.
func (op *OpDesc) OutputArgumentNames() []string { return flattenSlots(op.live.outputs) }

func flattenSlots(slots map[string][]string) []string {
	var names []string
	for _, slot := range slices.Sorted(maps.Keys(slots)) {
		names = append(names, slots[slot]...)
	}
	return names
}

// RenameInput replaces every occurrence of oldName in the input slots by newName.
func (op *OpDesc) RenameInput(oldName, newName string) {
	for _, names := range op.live.inputs {
		for ii, name := range names {
			if name == oldName {
				names[ii] = newName
				op.dirty = true
			}
		}
	}
}

// HasAttr returns whether the attribute is set.
func (op *OpDesc) HasAttr(name string) bool {
	_, found := op.live.attrs[name]
	return found
}

// Attr returns the attribute and whether it was found.
func (op *OpDesc) Attr(name string) (Attribute, bool) {
	a, found := op.live.attrs[name]
	return a, found
}

// AttrNames returns the sorted names of the set attributes.
func (op *OpDesc) AttrNames() []string { return slices.Sorted(maps.Keys(op.live.attrs)) }

// SetAttr sets the attribute to value, which can be an Attribute or any Go value accepted by
// NewAttribute. It panics for unsupported value types.
func (op *OpDesc) SetAttr(name string, value any) {
	a, err := NewAttribute(value)
	if err != nil {
		panic(err)
	}
	op.live.attrs[name] = a
	op.dirty = true
}

// RemoveAttr removes the attribute, if set.
func (op *OpDesc) RemoveAttr(name string) {
	if _, found := op.live.attrs[name]; found {
		delete(op.live.attrs, name)
		op.dirty = true
	}
}

// GetAttrIfExists returns the value of the attribute, or the zero value of T if it is not set.
// It panics if the attribute holds a value of a different type.
func GetAttrIfExists[T any](op *OpDesc, name string) T {
	var zero T
	return AttrOr(op, name, zero)
}

// AttrOr returns the value of the attribute, or defaultValue if it is not set.
// It panics if the attribute holds a value of a different type.
func AttrOr[T any](op *OpDesc, name string, defaultValue T) T {
	a, found := op.live.attrs[name]
	if !found {
		return defaultValue
	}
	return attrAs[T](name, a)
}

// Flush commits the live edits.
func (op *OpDesc) Flush() {
	if !op.dirty {
		return
	}
	op.committed = op.live.clone()
	op.dirty = false
}

// IsDirty returns whether there are edits not yet committed with Flush.
func (op *OpDesc) IsDirty() bool { return op.dirty }

// Committed returns a read-only view of the last flushed state of the operator.
func (op *OpDesc) Committed() *OpDesc {
	return &OpDesc{block: op.block, live: op.committed.clone(), committed: op.committed.clone()}
}

// Clone returns a deep copy of the operator, including its committed state.
func (op *OpDesc) Clone() *OpDesc {
	return &OpDesc{block: op.block, live: op.live.clone(), committed: op.committed.clone(), dirty: op.dirty}
}

// BlockDesc is a flat list of operators and the declarations of the variables they use.
type BlockDesc struct {
	idx, parentIdx int
	vars           map[string]*VarDesc
	varOrder       []string
	ops            []*OpDesc
}

// NewBlockDesc creates the empty root block (index 0).
func NewBlockDesc() *BlockDesc {
	return &BlockDesc{parentIdx: -1, vars: make(map[string]*VarDesc)}
}

// ID is the index of the block in its program.
func (b *BlockDesc) ID() int { return b.idx }

// Var returns the variable with the given name, declaring it if needed.
func (b *BlockDesc) Var(name string) *VarDesc {
	if v, found := b.vars[name]; found {
		return v
	}
	v := NewVarDesc(name)
	b.vars[name] = v
	b.varOrder = append(b.varOrder, name)
	return v
}

// FindVar returns the variable with the given name, or nil if not declared.
func (b *BlockDesc) FindVar(name string) *VarDesc { return b.vars[name] }

// HasVar returns whether the variable is declared.
func (b *BlockDesc) HasVar(name string) bool {
	_, found := b.vars[name]
	return found
}

// VarNames returns the names of the declared variables, in declaration order.
func (b *BlockDesc) VarNames() []string { return slices.Clone(b.varOrder) }

// AppendOp creates a new operator of the given type at the end of the block.
func (b *BlockDesc) AppendOp(opType string) *OpDesc {
	op := NewOpDesc(b, opType)
	b.ops = append(b.ops, op)
	return op
}

// Ops returns the operators of the block, in order.
func (b *BlockDesc) Ops() []*OpDesc { return slices.Clone(b.ops) }
