// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layouttransfer

import (
	"github.com/gomlx/irpass/pkg/ir"
	"k8s.io/klog/v2"
)

// weightGroups maps a filter name to the candidate operators using it, in traversal order.
type weightGroups map[string][]ir.NodeID

// record adds the operator to the groups of each of its filters.
func (groups weightGroups) record(id ir.NodeID, filterNames []string) {
	for _, name := range filterNames {
		groups[name] = append(groups[name], id)
	}
}

// unanimous returns whether all operators of the group are eligible.
func (groups weightGroups) unanimous(name string, eligible ir.NodeSet) bool {
	for _, id := range groups[name] {
		if !eligible.Has(id) {
			return false
		}
	}
	return true
}

// propagateSharedWeights removes from eligible every operator that shares a filter with an
// operator that is not eligible. Sweeps over order are repeated until nothing changes, so that
// chains of shared filters are fully resolved.
//
// It returns the number of evicted operators.
func propagateSharedWeights(order []*ir.Node, groups weightGroups, eligible ir.NodeSet) int {
	var evicted int
	for {
		before := evicted
		for _, n := range order {
			if !eligible.Has(n.ID()) {
				continue
			}
			for _, name := range n.Op().Input(SlotFilter) {
				if groups.unanimous(name, eligible) {
					continue
				}
				for _, id := range groups[name] {
					if eligible.Has(id) {
						eligible.Remove(id)
						evicted++
						klog.V(2).Infof("%s: operator #%d evicted, filter %q is shared with operators that can't use NHWC",
							PassName, id, name)
					}
				}
			}
		}
		if evicted == before {
			return evicted
		}
	}
}
