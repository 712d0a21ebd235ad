// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// programJSON is the on-disk description of a block.
type programJSON struct {
	Vars []varJSON `json:"vars"`
	Ops  []opJSON  `json:"ops"`
}

type varJSON struct {
	Name        string `json:"name"`
	DType       string `json:"dtype,omitempty"`
	Shape       []int  `json:"shape,omitempty"`
	Persistable bool   `json:"persistable,omitempty"`
}

type opJSON struct {
	Type    string               `json:"type"`
	Inputs  map[string][]string  `json:"inputs,omitempty"`
	Outputs map[string][]string  `json:"outputs,omitempty"`
	Attrs   map[string]Attribute `json:"attrs,omitempty"`
}

// parseDType accepts both the canonical names ("Float32") and the lower case aliases ("float32").
func parseDType(name string) (dtypes.DType, error) {
	if name == "" {
		return dtypes.Float32, nil
	}
	if dtype, err := dtypes.DTypeString(name); err == nil {
		return dtype, nil
	}
	if dtype, found := dtypes.MapOfNames[name]; found {
		return dtype, nil
	}
	if dtype, err := dtypes.DTypeString(strings.ToUpper(name[:1]) + name[1:]); err == nil {
		return dtype, nil
	}
	return dtypes.InvalidDType, errors.Errorf("unknown dtype %q", name)
}

// ReadProgram decodes a block from its JSON description.
//
// Every variable referenced by an operator must be declared, and operators are returned flushed.
func ReadProgram(r io.Reader) (*BlockDesc, error) {
	var pj programJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&pj); err != nil {
		return nil, errors.Wrap(err, "failed to decode program")
	}

	block := NewBlockDesc()
	for _, vj := range pj.Vars {
		if vj.Name == "" {
			return nil, errors.New("program declares a variable with an empty name")
		}
		if block.HasVar(vj.Name) {
			return nil, errors.Errorf("variable %q declared more than once", vj.Name)
		}
		dtype, err := parseDType(vj.DType)
		if err != nil {
			return nil, errors.WithMessagef(err, "variable %q", vj.Name)
		}
		v := block.Var(vj.Name)
		v.SetDType(dtype)
		v.SetShape(vj.Shape)
		v.SetPersistable(vj.Persistable)
	}

	for opIdx, oj := range pj.Ops {
		if oj.Type == "" {
			return nil, errors.Errorf("operator #%d has no type", opIdx)
		}
		op := block.AppendOp(oj.Type)
		for slot, names := range oj.Inputs {
			op.SetInput(slot, names...)
		}
		for slot, names := range oj.Outputs {
			op.SetOutput(slot, names...)
		}
		for name, attr := range oj.Attrs {
			op.SetAttr(name, attr)
		}
		for _, name := range append(op.InputArgumentNames(), op.OutputArgumentNames()...) {
			if !block.HasVar(name) {
				return nil, errors.Errorf("operator #%d (%q) references undeclared variable %q", opIdx, oj.Type, name)
			}
		}
		op.Flush()
	}
	return block, nil
}

// WriteProgram encodes the block as indented JSON.
//
// It returns an error if any operator has edits not yet flushed.
func WriteProgram(w io.Writer, block *BlockDesc) error {
	var pj programJSON
	for _, name := range block.varOrder {
		v := block.vars[name]
		pj.Vars = append(pj.Vars, varJSON{
			Name:        v.name,
			DType:       v.dtype.String(),
			Shape:       v.shape,
			Persistable: v.persistable,
		})
	}
	for opIdx, op := range block.ops {
		if op.IsDirty() {
			return errors.Errorf("operator #%d (%q) has edits not flushed", opIdx, op.Type())
		}
		c := op.committed
		oj := opJSON{Type: c.opType, Inputs: c.inputs, Outputs: c.outputs}
		if len(c.attrs) > 0 {
			oj.Attrs = c.attrs
		}
		pj.Ops = append(pj.Ops, oj)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(pj), "failed to encode program")
}

// LoadProgramFile reads a block from a JSON file.
func LoadProgramFile(path string) (*BlockDesc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open program %q", path)
	}
	defer func() { _ = f.Close() }()
	block, err := ReadProgram(f)
	return block, errors.WithMessagef(err, "program %q", path)
}

// SaveProgramFile writes the block to a JSON file.
func SaveProgramFile(path string, block *BlockDesc) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create program %q", path)
	}
	if err = WriteProgram(f, block); err != nil {
		_ = f.Close()
		return errors.WithMessagef(err, "program %q", path)
	}
	return errors.Wrapf(f.Close(), "failed to close program %q", path)
}
