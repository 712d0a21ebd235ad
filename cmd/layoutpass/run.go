// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/irpass/internal/fsutil"
	"github.com/gomlx/irpass/pkg/core/scope"
	"github.com/gomlx/irpass/pkg/core/tensors/numpy"
	"github.com/gomlx/irpass/pkg/ir"
	"github.com/gomlx/irpass/pkg/passes"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// options of one execution, usually taken from the flags.
type options struct {
	program, weights       string
	passNames              []string
	config                 passes.Config
	outProgram, outWeights string
	plain                  bool
}

// passTiming records how long a pass took.
type passTiming struct {
	pass    passes.Pass
	elapsed time.Duration
}

// run loads the program and its parameters, applies the passes, prints a report to w and saves
// the results.
func run(opts options, w io.Writer) error {
	if opts.plain {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	if err := resolvePaths(&opts); err != nil {
		return err
	}
	block, err := ir.LoadProgramFile(opts.program)
	if err != nil {
		return err
	}
	params, err := loadParams(opts.weights, block)
	if err != nil {
		return err
	}
	numOps := len(block.Ops())

	manager, err := passes.NewManager(opts.config, opts.passNames...)
	if err != nil {
		return err
	}
	g := ir.NewGraph(block)
	g.SetParamScope(params)
	var timings []passTiming
	progress := newPassProgress(len(opts.passNames), opts.plain)
	manager.OnPassDone = func(p passes.Pass, elapsed time.Duration) {
		timings = append(timings, passTiming{pass: p, elapsed: elapsed})
		progress.onPassDone(p)
	}
	err = manager.Run(g)
	progress.finish()
	if err != nil {
		return err
	}
	out := g.ToBlock()

	writeReport(w, &report{
		opts:        opts,
		numOpsIn:    numOps,
		numOpsOut:   len(out.Ops()),
		numVarsOut:  len(out.VarNames()),
		params:      params,
		timings:     timings,
		stats:       g.Stats(),
		passesByRun: manager.Passes(),
	})

	if opts.outProgram != "" {
		if err = ir.SaveProgramFile(opts.outProgram, out); err != nil {
			return err
		}
		klog.V(1).Infof("program saved to %q", opts.outProgram)
	}
	if opts.outWeights != "" {
		if err = numpy.ToNpzFile(params.LocalTensors(), opts.outWeights); err != nil {
			return errors.WithMessagef(err, "failed to save parameters")
		}
		klog.V(1).Infof("parameters saved to %q", opts.outWeights)
	}
	return nil
}

// resolvePaths expands "~" in the paths of opts, and checks that inputs exist and that outputs
// can be created.
func resolvePaths(opts *options) (err error) {
	if opts.program, err = fsutil.CheckInput(opts.program); err != nil {
		return errors.WithMessage(err, "-program")
	}
	if opts.weights != "" {
		if opts.weights, err = fsutil.CheckInput(opts.weights); err != nil {
			return errors.WithMessage(err, "-weights")
		}
	}
	if opts.outProgram != "" {
		if opts.outProgram, err = fsutil.CheckOutput(opts.outProgram); err != nil {
			return errors.WithMessage(err, "-out_program")
		}
	}
	if opts.outWeights != "" {
		if opts.outWeights, err = fsutil.CheckOutput(opts.outWeights); err != nil {
			return errors.WithMessage(err, "-out_weights")
		}
	}
	return nil
}

// loadParams reads the parameters from the .npz file into a new scope. An empty path yields an
// empty scope.
func loadParams(path string, block *ir.BlockDesc) (*scope.Scope, error) {
	params := scope.New()
	if path == "" {
		return params, nil
	}
	loaded, err := numpy.FromNpzFile(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load parameters")
	}
	for name, t := range loaded {
		params.SetTensor(name, t)
	}
	for _, name := range block.VarNames() {
		if block.FindVar(name).Persistable() && params.FindLocalVar(name) == nil {
			klog.Warningf("persistable variable %q has no value in %q", name, path)
		}
	}
	klog.V(1).Infof("%d parameters loaded from %q", len(loaded), path)
	return params, nil
}
