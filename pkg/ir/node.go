// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
)

// NodeID identifies a node in its Graph. Ids are never reused, even after a node is removed.
type NodeID int

// InvalidNodeID is never assigned to a node.
const InvalidNodeID NodeID = -1

// NodeKind is either an operation or a variable.
type NodeKind uint8

const (
	KindOperation NodeKind = iota
	KindVariable
)

// String implements fmt.Stringer.
func (k NodeKind) String() string {
	switch k {
	case KindOperation:
		return "Operation"
	case KindVariable:
		return "Variable"
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// Node of a Graph. Edges always connect nodes of different kinds: an operation reads its input
// variables and writes its output variables.
type Node struct {
	id      NodeID
	kind    NodeKind
	op      *OpDesc
	v       *VarDesc
	inputs  []NodeID
	outputs []NodeID
}

// ID of the node in its graph.
func (n *Node) ID() NodeID { return n.id }

// Kind of the node.
func (n *Node) Kind() NodeKind { return n.kind }

// IsOp returns whether the node is an operation.
func (n *Node) IsOp() bool { return n.kind == KindOperation }

// IsVar returns whether the node is a variable.
func (n *Node) IsVar() bool { return n.kind == KindVariable }

// Name returns the operator type for operation nodes, and the variable name for variable nodes.
func (n *Node) Name() string {
	if n.IsOp() {
		return n.op.Type()
	}
	return n.v.Name()
}

// Op returns the operator description. It panics if the node is not an operation.
func (n *Node) Op() *OpDesc {
	if !n.IsOp() {
		exceptions.Panicf("node #%d (%q) is not an operation", n.id, n.Name())
	}
	return n.op
}

// Var returns the variable description. It panics if the node is not a variable.
func (n *Node) Var() *VarDesc {
	if !n.IsVar() {
		exceptions.Panicf("node #%d (%q) is not a variable", n.id, n.Name())
	}
	return n.v
}

// Inputs returns the ids of the nodes with an edge into this node.
func (n *Node) Inputs() []NodeID { return slices.Clone(n.inputs) }

// Outputs returns the ids of the nodes this node has an edge into.
func (n *Node) Outputs() []NodeID { return slices.Clone(n.outputs) }

// String implements fmt.Stringer.
func (n *Node) String() string {
	return fmt.Sprintf("#%d %s(%s)", n.id, n.kind, n.Name())
}
