// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"maps"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irpass/pkg/core/scope"
	"k8s.io/klog/v2"
)

// Graph is a mutable dataflow graph of operation and variable nodes built from a BlockDesc.
//
// Nodes are owned by the graph, in an arena indexed by NodeID, and edges are stored as NodeID
// adjacency lists on both ends.
//
// Variables are in SSA form: every operator output creates a new variable node, and operator
// inputs attach to the latest node of the variable. So a variable name may map to several nodes.
//
// Graph is not safe for concurrent use.
type Graph struct {
	block      *BlockDesc
	main       *Graph
	subGraphs  []*Graph
	nodes      []*Node
	paramScope *scope.Scope
	stats      map[string]int
}

// NewGraph builds the main graph of the given block.
//
// It panics if an operator references a variable not declared in the block.
func NewGraph(block *BlockDesc) *Graph {
	g := &Graph{block: block, stats: make(map[string]int)}
	g.build()
	return g
}

// NewSubGraph builds the graph of a sub-block (e.g. the body of a control flow operator) owned by
// this main graph.
func (g *Graph) NewSubGraph(block *BlockDesc) *Graph {
	if !g.IsMainGraph() {
		exceptions.Panicf("sub-graphs can only be created from the main graph")
	}
	block.idx = len(g.subGraphs) + 1
	block.parentIdx = g.block.idx
	sub := &Graph{block: block, main: g, stats: make(map[string]int)}
	sub.build()
	g.subGraphs = append(g.subGraphs, sub)
	return sub
}

func (g *Graph) build() {
	latest := make(map[string]NodeID)
	varNode := func(op *OpDesc, name string) *Node {
		desc := g.block.FindVar(name)
		if desc == nil {
			exceptions.Panicf("operator %q references variable %q not declared in block #%d", op.Type(), name, g.block.idx)
		}
		return g.CreateVarNode(desc)
	}
	for _, op := range g.block.ops {
		opNode := g.CreateOpNode(op)
		for _, name := range op.InputArgumentNames() {
			id, found := latest[name]
			if !found {
				id = varNode(op, name).id
				latest[name] = id
			}
			g.Link(id, opNode.id)
		}
		for _, name := range op.OutputArgumentNames() {
			out := varNode(op, name)
			g.Link(opNode.id, out.id)
			latest[name] = out.id
		}
	}
	klog.V(2).Infof("graph of block #%d: %d operators, %d nodes", g.block.idx, len(g.block.ops), len(g.nodes))
}

// IsMainGraph returns whether this is the graph of the root block.
func (g *Graph) IsMainGraph() bool { return g.main == nil }

// NumBlocks returns the number of blocks of the program: the main block plus one per sub-graph.
func (g *Graph) NumBlocks() int {
	if !g.IsMainGraph() {
		return g.main.NumBlocks()
	}
	return 1 + len(g.subGraphs)
}

// Block the graph was built from.
func (g *Graph) Block() *BlockDesc { return g.block }

// CreateOpNode adds an isolated operation node. The graph takes ownership of desc.
func (g *Graph) CreateOpNode(desc *OpDesc) *Node {
	if desc == nil {
		exceptions.Panicf("Graph.CreateOpNode: nil operator")
	}
	if desc.block == nil {
		desc.block = g.block
	}
	return g.addNode(&Node{kind: KindOperation, op: desc})
}

// CreateVarNode adds an isolated variable node with a copy of desc.
func (g *Graph) CreateVarNode(desc *VarDesc) *Node {
	if desc == nil {
		exceptions.Panicf("Graph.CreateVarNode: nil variable")
	}
	return g.addNode(&Node{kind: KindVariable, v: desc.Clone()})
}

func (g *Graph) addNode(n *Node) *Node {
	n.id = NodeID(len(g.nodes))
	g.nodes = append(g.nodes, n)
	return n
}

// Node returns the node with the given id. It panics if the id is invalid or the node was removed.
func (g *Graph) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) || g.nodes[id] == nil {
		exceptions.Panicf("invalid node id #%d", id)
	}
	return g.nodes[id]
}

// Nodes returns all nodes in id order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int {
	var count int
	for _, n := range g.nodes {
		if n != nil {
			count++
		}
	}
	return count
}

// VarNodes returns the variable nodes with the given name, in id order.
func (g *Graph) VarNodes(name string) []*Node {
	var nodes []*Node
	for _, n := range g.nodes {
		if n != nil && n.IsVar() && n.v.name == name {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// RemoveNode removes the node and all its edges.
func (g *Graph) RemoveNode(id NodeID) {
	n := g.Node(id)
	for _, in := range n.Inputs() {
		g.Unlink(in, id)
	}
	for _, out := range n.Outputs() {
		g.Unlink(id, out)
	}
	g.nodes[id] = nil
}

// Link adds the edge from -> to, if not present yet. It panics if both nodes are of the same kind.
func (g *Graph) Link(from, to NodeID) {
	src, dst := g.Node(from), g.Node(to)
	if src.kind == dst.kind {
		exceptions.Panicf("cannot link %s to %s: edges must connect operations and variables", src, dst)
	}
	if slices.Contains(src.outputs, to) {
		return
	}
	src.outputs = append(src.outputs, to)
	dst.inputs = append(dst.inputs, from)
}

// Unlink removes the edge from -> to, if present.
func (g *Graph) Unlink(from, to NodeID) {
	src, dst := g.Node(from), g.Node(to)
	src.outputs = slices.DeleteFunc(src.outputs, func(id NodeID) bool { return id == to })
	dst.inputs = slices.DeleteFunc(dst.inputs, func(id NodeID) bool { return id == from })
}

// HasEdge returns whether the edge from -> to exists.
func (g *Graph) HasEdge(from, to NodeID) bool {
	return slices.Contains(g.Node(from).outputs, to)
}

// ParamScope returns the scope holding the values of the persistable variables, or nil if not set.
func (g *Graph) ParamScope() *scope.Scope { return g.paramScope }

// SetParamScope sets the scope holding the values of the persistable variables.
func (g *Graph) SetParamScope(s *scope.Scope) { g.paramScope = s }

// SetStat records a named counter in the graph, usually by the passes applied to it.
func (g *Graph) SetStat(name string, value int) { g.stats[name] = value }

// Stat returns the named counter and whether it was set.
func (g *Graph) Stat(name string) (int, bool) {
	v, found := g.stats[name]
	return v, found
}

// Stats returns a copy of all counters.
func (g *Graph) Stats() map[string]int { return maps.Clone(g.stats) }

// ToBlock converts the graph back to a block, with operators in topological order.
//
// Operators with pending edits are flushed. Each variable is declared with the description of
// its latest node.
func (g *Graph) ToBlock() *BlockDesc {
	block := &BlockDesc{idx: g.block.idx, parentIdx: g.block.parentIdx, vars: make(map[string]*VarDesc)}
	for _, n := range g.nodes {
		if n == nil || !n.IsVar() {
			continue
		}
		if _, found := block.vars[n.v.name]; !found {
			block.varOrder = append(block.varOrder, n.v.name)
		}
		block.vars[n.v.name] = n.v.Clone()
	}
	var flushed int
	for _, n := range g.TopologySortOperations() {
		op := n.op
		if op.IsDirty() {
			op.Flush()
			flushed++
		}
		op.block = block
		block.ops = append(block.ops, op)
	}
	if flushed > 0 {
		klog.V(2).Infof("ToBlock flushed %d operators with pending edits", flushed)
	}
	return block
}
