// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/irpass/pkg/core/scope"
	"github.com/gomlx/irpass/pkg/passes"
	"github.com/gomlx/irpass/pkg/passes/layouttransfer"
	"github.com/muesli/termenv"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

// newTable creates a table with the first column right aligned. If headers are given, they are
// rendered reversed.
func newTable(headers ...string) *lgtable.Table {
	table := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			switch {
			case row < 0:
				return headerRowStyle
			case row%2 == 0:
				s = evenRowStyle
			default:
				s = oddRowStyle
			}
			if col == 0 {
				return s.Align(lipgloss.Right)
			}
			return s.Align(lipgloss.Left)
		})
	if len(headers) > 0 {
		table.Headers(headers...)
	}
	return table
}

// report of one execution.
type report struct {
	opts                options
	numOpsIn, numOpsOut int
	numVarsOut          int
	params              *scope.Scope
	timings             []passTiming
	stats               map[string]int
	passesByRun         []passes.Pass
}

func writeReport(w io.Writer, r *report) {
	_, _ = fmt.Fprintln(w, titleStyle.Render("Summary"))
	table := newTable()
	table.Row("program", r.opts.program)
	if r.opts.weights != "" {
		table.Row("weights", r.opts.weights)
	}
	table.Row("passes", strings.Join(r.opts.passNames, ", "))
	table.Row("# operators", fmt.Sprintf("%s -> %s", humanize.Comma(int64(r.numOpsIn)), humanize.Comma(int64(r.numOpsOut))))
	table.Row("# variables", humanize.Comma(int64(r.numVarsOut)))
	var numParams int
	var paramsMemory uintptr
	for _, t := range r.params.LocalTensors() {
		numParams += t.Size()
		paramsMemory += t.Memory()
	}
	table.Row("# parameters", humanize.Comma(int64(numParams)))
	table.Row("# bytes", humanize.Bytes(uint64(paramsMemory)))
	_, _ = fmt.Fprintln(w, table.Render())

	_, _ = fmt.Fprintln(w, titleStyle.Render("Passes"))
	table = newTable("Pass", "Time")
	for _, timing := range r.timings {
		table.Row(timing.pass.Name(), formatDuration(timing.elapsed))
	}
	_, _ = fmt.Fprintln(w, table.Render())

	if len(r.stats) > 0 {
		_, _ = fmt.Fprintln(w, titleStyle.Render("Statistics"))
		table = newTable("Statistic", "Value")
		for _, name := range slices.Sorted(maps.Keys(r.stats)) {
			table.Row(name, humanize.Comma(int64(r.stats[name])))
		}
		_, _ = fmt.Fprintln(w, table.Render())
	}

	for _, p := range r.passesByRun {
		lp, ok := p.(*layouttransfer.Pass)
		if !ok {
			continue
		}
		lr := lp.LastReport()
		_, _ = fmt.Fprintln(w, titleStyle.Render("Layout transfer"))
		table = newTable()
		table.Row("candidates", humanize.Comma(int64(lr.Candidates)))
		table.Row("converted to NHWC", humanize.Comma(int64(lr.OpsConverted)))
		table.Row("evicted (shared filters)", humanize.Comma(int64(lr.Evicted)))
		table.Row("conversions inserted", humanize.Comma(int64(lr.Conversions)))
		table.Row("filters transposed", humanize.Comma(int64(lr.WeightsTransposed)))
		table.Row("bytes transposed", humanize.Bytes(uint64(lr.BytesTransposed)))
		_, _ = fmt.Fprintln(w, table.Render())
	}
}

// listPasses prints the registered passes and the configuration keys with their defaults.
func listPasses(w io.Writer, plain bool) {
	if plain {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	_, _ = fmt.Fprintln(w, titleStyle.Render("Passes"))
	table := newTable("Pass")
	for _, name := range passes.Registered() {
		table.Row(name)
	}
	_, _ = fmt.Fprintln(w, table.Render())

	_, _ = fmt.Fprintln(w, titleStyle.Render("Configuration"))
	table = newTable("Key", "Type", "Default")
	defaults := passes.DefaultConfig()
	for _, key := range slices.Sorted(maps.Keys(defaults)) {
		table.Row(key, fmt.Sprintf("%T", defaults[key]), fmt.Sprintf("%v", defaults[key]))
	}
	_, _ = fmt.Fprintln(w, table.Render())
}

var durationRegexp = regexp.MustCompile(`(\d+\.?\d*)([µa-z]+)`)

// formatDuration pretty prints the duration with at most 2 decimal places.
func formatDuration(d time.Duration) string {
	s := d.String()
	matches := durationRegexp.FindStringSubmatch(s)
	if len(matches) != 3 {
		return s
	}
	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return s
	}
	return fmt.Sprintf("%.2f%s", num, matches[2])
}
