// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ir holds the intermediate representation rewritten by the passes: program descriptors
// (BlockDesc, OpDesc, VarDesc and Attribute) and the mutable dataflow Graph built from them.
//
// A typical flow:
//
//	block, err := ir.LoadProgramFile("model.json")
//	g := ir.NewGraph(block)
//	g.SetParamScope(params)
//	// ... apply passes to g ...
//	err = ir.SaveProgramFile("model_nhwc.json", g.ToBlock())
//
// Fatal conditions (malformed graphs, broken invariants) panic with github.com/gomlx/exceptions,
// errors from I/O and decoding are returned.
package ir
