// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package decode implements the decode tool: it prints the instructions the propagator sees for a trace, with the
// exposures they cause, or extracts a slice of a trace into a new trace file.
package decode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/clueless-dift/clueless/analysis"
	"github.com/clueless-dift/clueless/analysis/config"
	"github.com/clueless-dift/clueless/analysis/taint"
	"github.com/clueless-dift/clueless/analysis/trace"
	"github.com/clueless-dift/clueless/cmd/clueless/tools"
	"github.com/clueless-dift/clueless/internal/formatutil"
)

// Usage of the decode tool.
const Usage = ` Print the decoded instructions of ChampSim traces, or extract a slice of a trace.
Usage:
  clueless decode [options] <trace path(s)>
Without a config file or -simulate, only the first 100 instructions are printed.
Examples:
  % clueless decode -warmup 1000 -simulate 20 trace.champsim.xz
  % clueless decode -warmup 1000000 -simulate 50000 -o slice.champsim.zst trace.champsim.xz
`

const defaultInstructions = 100

// Flags represents the parsed flags of the decode tool.
type Flags struct {
	tools.CommonFlags
	output string
}

// NewFlags returns the parsed flags of the decode tool with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("decode")
	output := flags.FlagSet.String("o", "", "write the records to this trace file instead of printing them")
	tools.SetUsage(flags.FlagSet, Usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, output: *output}, nil
}

// Run runs the decode tool with flags.
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.CommonFlags)
	if err != nil {
		return err
	}
	if flags.ConfigPath == "" && !flags.IsSet("simulate") {
		cfg.Simulate = defaultInstructions
	}
	paths, err := flags.Traces()
	if err != nil {
		return err
	}
	logger := config.NewLogGroup(cfg)
	if flags.output != "" {
		if len(paths) != 1 {
			return fmt.Errorf("-o extracts a single trace, got %d", len(paths))
		}
		return extract(cfg, logger, paths[0], flags.output)
	}
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	return run(cfg, logger, paths, out)
}

// run prints the instructions of every trace in turn.
func run(cfg *config.Config, logger *config.LogGroup, paths []string, w io.Writer) error {
	for _, path := range paths {
		fmt.Fprintln(w, formatutil.Bold(formatutil.Sanitize(path)))
		err := tools.Analyze(cfg, logger, []string{path}, func(_ int, s *analysis.Session) error {
			var pending []taint.SecretExposed
			s.Propagator.AddSecretExposedHook(taint.SecretExposedFunc(func(e taint.SecretExposed) {
				pending = append(pending, e)
			}))
			s.AddObserver(analysis.ObserverFunc(func(i uint64, ins *taint.Instr) {
				fmt.Fprintf(w, "%d\t%v\n", i+cfg.Warmup, ins)
				for _, e := range pending {
					fmt.Fprintf(w, "\t%s %v\n", formatutil.Red("exposed"), e)
				}
				pending = pending[:0]
			}))
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// extract copies the records of the simulated window of in to out.
func extract(cfg *config.Config, logger *config.LogGroup, in string, out string) error {
	r, err := analysis.OpenTrace(cfg, logger, in)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := r.Skip(cfg.Warmup); err != nil {
		return fmt.Errorf("skipping %d records of %s: %w", cfg.Warmup, in, err)
	}

	wr, err := trace.Create(out)
	if err != nil {
		return err
	}
	for i := uint64(0); i < cfg.Simulate; i++ {
		rec, err := r.ReadSingleInstr()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			wr.Close()
			return fmt.Errorf("reading record %d of %s: %w", i, in, err)
		}
		if err := wr.Write(&rec); err != nil {
			wr.Close()
			return fmt.Errorf("writing %s: %w", out, err)
		}
	}
	n := wr.Count()
	if err := wr.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", out, err)
	}
	logger.Infof("Wrote %d records of %s to %s", n, in, out)
	return nil
}
