// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irpass/pkg/ir"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Manager applies a sequence of passes to graphs.
type Manager struct {
	passes []Pass

	// OnPassDone, if set, is called after each pass is successfully applied.
	OnPassDone func(p Pass, elapsed time.Duration)
}

// NewManager creates the passes with the given names, all sharing the same configuration.
func NewManager(cfg Config, names ...string) (*Manager, error) {
	m := &Manager{}
	for _, name := range names {
		var p Pass
		err := exceptions.TryCatch[error](func() {
			var err error
			p, err = New(name, cfg)
			if err != nil {
				panic(err)
			}
		})
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to create pass %q", name)
		}
		m.passes = append(m.passes, p)
	}
	return m, nil
}

// Passes returns the passes in the order they are applied.
func (m *Manager) Passes() []Pass { return m.passes }

// Run applies the passes in order to g. It stops at the first pass that fails.
func (m *Manager) Run(g *ir.Graph) error {
	for _, p := range m.passes {
		start := time.Now()
		err := exceptions.TryCatch[error](func() { p.Apply(g) })
		if err != nil {
			return errors.WithMessagef(err, "pass %q failed", p.Name())
		}
		elapsed := time.Since(start)
		klog.V(1).Infof("pass %q applied in %s", p.Name(), elapsed)
		if m.OnPassDone != nil {
			m.OnPassDone(p, elapsed)
		}
	}
	return nil
}
