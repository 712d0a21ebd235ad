// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"container/heap"

	"github.com/gomlx/exceptions"
)

// TopologySortOperations returns the operation nodes ordered so that every operator comes after the
// producers of its inputs. Ties are broken by the lowest node id, so the order is deterministic.
//
// It panics if the graph has a cycle.
func (g *Graph) TopologySortOperations() []*Node {
	inDegree := make(map[NodeID]int)
	ready := &nodeIDHeap{}
	var numOps int
	for _, n := range g.nodes {
		if n == nil || !n.IsOp() {
			continue
		}
		numOps++
		producers := g.producerOps(n)
		inDegree[n.id] = len(producers)
		if len(producers) == 0 {
			heap.Push(ready, n.id)
		}
	}

	sorted := make([]*Node, 0, numOps)
	for ready.Len() > 0 {
		n := g.nodes[heap.Pop(ready).(NodeID)]
		sorted = append(sorted, n)
		for _, consumer := range g.consumerOps(n).Sorted() {
			inDegree[consumer]--
			if inDegree[consumer] == 0 {
				heap.Push(ready, consumer)
			}
		}
	}
	if len(sorted) != numOps {
		exceptions.Panicf("graph has a cycle: only %d of %d operations could be sorted", len(sorted), numOps)
	}
	return sorted
}

// producerOps returns the distinct operations writing the inputs of op.
func (g *Graph) producerOps(op *Node) NodeSet {
	producers := MakeNodeSet()
	for _, in := range op.inputs {
		producers.Insert(g.nodes[in].inputs...)
	}
	producers.Remove(op.id)
	return producers
}

// consumerOps returns the distinct operations reading the outputs of op.
func (g *Graph) consumerOps(op *Node) NodeSet {
	consumers := MakeNodeSet()
	for _, out := range op.outputs {
		consumers.Insert(g.nodes[out].outputs...)
	}
	consumers.Remove(op.id)
	return consumers
}

type nodeIDHeap []NodeID

func (h nodeIDHeap) Len() int           { return len(h) }
func (h nodeIDHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h nodeIDHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeIDHeap) Push(x any)        { *h = append(*h, x.(NodeID)) }
func (h *nodeIDHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}
