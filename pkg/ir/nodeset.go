// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"maps"
	"slices"
)

// NodeSet is a set of node ids, as a `map[NodeID]struct{}` with better ergonomics.
type NodeSet map[NodeID]struct{}

// MakeNodeSet returns a NodeSet with the given ids inserted.
func MakeNodeSet(ids ...NodeID) NodeSet {
	s := make(NodeSet, len(ids))
	s.Insert(ids...)
	return s
}

// Has returns true if the set has the given id.
func (s NodeSet) Has(id NodeID) bool {
	_, found := s[id]
	return found
}

// Insert ids into the set.
func (s NodeSet) Insert(ids ...NodeID) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Remove ids from the set.
func (s NodeSet) Remove(ids ...NodeID) {
	for _, id := range ids {
		delete(s, id)
	}
}

// Sorted returns the ids in increasing order.
func (s NodeSet) Sorted() []NodeID {
	return slices.Sorted(maps.Keys(s))
}
