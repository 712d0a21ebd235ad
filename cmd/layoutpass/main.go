// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// layoutpass applies graph passes to a program, by default the "transfer_layout_pass" that
// converts fused convolutions to NHWC.
//
// The program is read from a JSON file, and its parameters from a .npz file. The transformed program
// and parameters are saved to -out_program and -out_weights. E.g.:
//
//	layoutpass -program=model.json -weights=model.npz -out_program=model_nhwc.json -out_weights=model_nhwc.npz
package main

import (
	"flag"
	"os"
	"slices"
	"strings"

	"github.com/gomlx/irpass/pkg/passes"
	"github.com/gomlx/irpass/pkg/passes/layouttransfer"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagProgram = flag.String("program", "", "Path to the JSON program to transform.")
	flagWeights = flag.String("weights", "", "Path to the .npz file with the parameters of the program.")
	flagPasses  = flag.String("passes", layouttransfer.PassName,
		"Comma-separated list of the passes to apply, in order. See -list for the available ones.")
	flagCutlass = flag.Bool("cutlass", false,
		"Enables cutlass convolutions, the same as -config=use_cutlass=true.")
	flagConfig = flag.String("config", "",
		"Passes configuration as a list of \"<key>=<value>\" separated by \";\", or \"file:<path>\" to read them from a file.")
	flagOutProgram = flag.String("out_program", "", "Path where to save the transformed program. If empty it is not saved.")
	flagOutWeights = flag.String("out_weights", "", "Path where to save the transformed parameters (.npz). If empty they are not saved.")
	flagPlain      = flag.Bool("plain", false, "Disables colors and the progress bar.")
	flagList       = flag.Bool("list", false, "Lists the registered passes and their configuration, and exits.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *flagList {
		listPasses(os.Stdout, *flagPlain)
		return
	}
	if *flagProgram == "" {
		klog.Errorf("Missing -program to transform. See 'layoutpass -help'.")
		os.Exit(1)
	}
	cfg := must.M1(passes.ParseConfig(passes.DefaultConfig(), *flagConfig))
	if *flagCutlass {
		cfg[layouttransfer.ConfigUseCutlass] = true
	}
	opts := options{
		program:    *flagProgram,
		weights:    *flagWeights,
		passNames:  must.M1(parsePassNames(*flagPasses)),
		config:     cfg,
		outProgram: *flagOutProgram,
		outWeights: *flagOutWeights,
		plain:      *flagPlain,
	}
	if err := run(opts, os.Stdout); err != nil {
		klog.Errorf("Failed with error: %+v", err)
		os.Exit(1)
	}
}

// parsePassNames splits the comma-separated list of passes, and checks that they are registered.
func parsePassNames(list string) ([]string, error) {
	registered := passes.Registered()
	var names []string
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !slices.Contains(registered, name) {
			return nil, errors.Errorf("unknown pass %q in -passes, see -list for the registered ones", name)
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, errors.New("no passes given in -passes")
	}
	return names, nil
}
