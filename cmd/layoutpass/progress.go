// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/gomlx/irpass/pkg/passes"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// passProgress displays a progress bar on stderr while the passes are applied.
// A nil *passProgress is valid and displays nothing.
type passProgress struct {
	out *termenv.Output
	bar *progressbar.ProgressBar
}

// newPassProgress returns nil if plain is set or if stderr is not a color terminal.
func newPassProgress(numPasses int, plain bool) *passProgress {
	if plain || numPasses == 0 {
		return nil
	}
	out := termenv.NewOutput(os.Stderr)
	if out.EnvColorProfile() == termenv.Ascii {
		return nil
	}
	out.HideCursor()
	return &passProgress{
		out: out,
		bar: progressbar.NewOptions(numPasses,
			progressbar.OptionSetDescription("passes"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
		),
	}
}

func (pp *passProgress) onPassDone(p passes.Pass) {
	if pp == nil {
		return
	}
	pp.bar.Describe(p.Name())
	_ = pp.bar.Add(1)
}

func (pp *passProgress) finish() {
	if pp == nil {
		return
	}
	_ = pp.bar.Finish()
	pp.out.ShowCursor()
	fmt.Fprintln(os.Stderr)
}
