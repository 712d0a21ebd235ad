// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package passes defines the interface of graph rewriting passes, a registry of passes by name, and a
// Manager that applies a sequence of them to a graph.
//
// Passes are registered during the initialization of their packages, so to make a pass available,
// import its package. E.g.:
//
//	import _ "github.com/gomlx/irpass/pkg/passes/layouttransfer"
//
// To simplify error handling, passes are expected to throw (panic) with a stack trace when a
// precondition fails. See package github.com/gomlx/exceptions. Manager.Run converts those to errors.
package passes

import (
	"maps"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irpass/pkg/ir"
	"github.com/pkg/errors"
)

// Pass rewrites a graph in place.
type Pass interface {
	// Name of the pass, as registered.
	Name() string

	// Apply the pass to the graph. It panics if a precondition of the pass is not met.
	Apply(g *ir.Graph)
}

// Factory creates a pass with the given configuration.
type Factory func(cfg Config) Pass

var registeredFactories = make(map[string]Factory)

// Register the pass factory with the given name.
//
// It panics if the name is already taken. To be safe, call Register during initialization of a package.
func Register(name string, factory Factory) {
	if _, found := registeredFactories[name]; found {
		exceptions.Panicf("pass %q registered more than once", name)
	}
	registeredFactories[name] = factory
}

// Registered returns the sorted names of the registered passes.
func Registered() []string {
	return slices.Sorted(maps.Keys(registeredFactories))
}

// New creates the pass registered with the given name.
func New(name string, cfg Config) (Pass, error) {
	factory, found := registeredFactories[name]
	if !found {
		return nil, errors.Errorf("unknown pass %q, registered passes: %q", name, Registered())
	}
	return factory(cfg), nil
}

// Config holds the configuration values of passes by key. A nil Config is valid and empty.
type Config map[string]any

// Get returns the value of key in cfg converted to T, or defaultValue if it is not set.
// It panics if the value is set with a different type.
func Get[T any](cfg Config, key string, defaultValue T) T {
	value, found := cfg[key]
	if !found {
		return defaultValue
	}
	v, ok := value.(T)
	if !ok {
		exceptions.Panicf("pass configuration %q is a %T (%v), but a %T was expected", key, value, value, defaultValue)
	}
	return v
}
