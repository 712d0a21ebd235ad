// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package scope provides the parameter storage of a program: a tree of scopes, each mapping variable
// names to variables holding a tensor.
//
// Lookups can be local to one scope (FindLocalVar) or search from the scope up to the root (FindVar).
// Example: let's say the scopes hold:
//
//	Scope: "/": { "conv1_w", "conv1_b" }
//	Scope: "/block1": { "conv2_w" }
//
//	block1.FindVar("conv1_w")      -> found in "/"
//	block1.FindLocalVar("conv1_w") -> nil
//	root.FindVar("conv2_w")        -> nil
package scope

import (
	"maps"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irpass/pkg/core/tensors"
)

// Separator of the parts of a scope path. The root scope's path is Separator itself.
const Separator = "/"

// Variable is a named entry of a Scope, holding a tensor.
type Variable struct {
	name   string
	tensor *tensors.Tensor
}

// Name of the variable.
func (v *Variable) Name() string { return v.name }

// Tensor held by the variable, or nil if not yet set.
func (v *Variable) Tensor() *tensors.Tensor { return v.tensor }

// SetTensor replaces the tensor held by the variable.
func (v *Variable) SetTensor(t *tensors.Tensor) { v.tensor = t }

// Scope maps variable names to variables. Scopes form a tree: see NewScope.
//
// A Scope is not safe for concurrent mutation.
type Scope struct {
	parent *Scope
	name   string
	vars   map[string]*Variable
	kids   map[string]*Scope
}

// New creates an empty root scope.
func New() *Scope {
	return &Scope{
		vars: make(map[string]*Variable),
		kids: make(map[string]*Scope),
	}
}

// NewScope returns the child scope with the given name, creating it if it doesn't exist yet.
func (s *Scope) NewScope(name string) *Scope {
	if name == "" {
		exceptions.Panicf("scope.NewScope: empty scope name under %q", s.Path())
	}
	if kid, found := s.kids[name]; found {
		return kid
	}
	kid := New()
	kid.parent = s
	kid.name = name
	s.kids[name] = kid
	return kid
}

// Parent returns the parent scope, or nil for the root.
func (s *Scope) Parent() *Scope { return s.parent }

// Path returns the full path of the scope, e.g. "/block1/layer2".
func (s *Scope) Path() string {
	if s.parent == nil {
		return Separator
	}
	parentPath := s.parent.Path()
	if parentPath == Separator {
		return Separator + s.name
	}
	return parentPath + Separator + s.name
}

// Var returns the variable with the given name in this scope, creating it if it doesn't exist yet.
func (s *Scope) Var(name string) *Variable {
	if v, found := s.vars[name]; found {
		return v
	}
	v := &Variable{name: name}
	s.vars[name] = v
	return v
}

// SetTensor is a shortcut to s.Var(name).SetTensor(t).
func (s *Scope) SetTensor(name string, t *tensors.Tensor) *Variable {
	v := s.Var(name)
	v.SetTensor(t)
	return v
}

// FindLocalVar returns the variable with the given name in this scope only, or nil if not found.
func (s *Scope) FindLocalVar(name string) *Variable {
	return s.vars[name]
}

// FindVar searches for the variable from this scope up to the root, and returns the first one found,
// or nil if not found.
func (s *Scope) FindVar(name string) *Variable {
	for current := s; current != nil; current = current.parent {
		if v, found := current.vars[name]; found {
			return v
		}
	}
	return nil
}

// EraseVars removes the given variables from this scope. Names not found are ignored.
func (s *Scope) EraseVars(names ...string) {
	for _, name := range names {
		delete(s.vars, name)
	}
}

// LocalVarNames returns the sorted names of the variables in this scope.
func (s *Scope) LocalVarNames() []string {
	return slices.Sorted(maps.Keys(s.vars))
}

// Enumerate calls fn for every variable of this scope and all its sub-scopes, in sorted order of
// scope path and variable name.
func (s *Scope) Enumerate(fn func(scopePath string, v *Variable)) {
	path := s.Path()
	for _, name := range s.LocalVarNames() {
		fn(path, s.vars[name])
	}
	for _, kidName := range slices.Sorted(maps.Keys(s.kids)) {
		s.kids[kidName].Enumerate(fn)
	}
}

// LocalTensors returns a map of the variable names to their tensors, for the variables of this scope
// that hold a tensor.
func (s *Scope) LocalTensors() map[string]*tensors.Tensor {
	out := make(map[string]*tensors.Tensor, len(s.vars))
	for name, v := range s.vars {
		if v.tensor != nil {
			out[name] = v.tensor
		}
	}
	return out
}
