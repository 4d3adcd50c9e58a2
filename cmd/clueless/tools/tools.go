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

// Package tools contains utility types and functions for clueless tool frontends.
package tools

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/clueless-dift/clueless/analysis"
	"github.com/clueless-dift/clueless/analysis/config"
	"github.com/clueless-dift/clueless/analysis/metrics"
	"github.com/clueless-dift/clueless/analysis/render"
	"golang.org/x/sync/errgroup"
)

// UnparsedCommonFlags represents an unparsed CLI sub-command flags.
type UnparsedCommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath *string
	Verbose    *bool
	Warmup     *uint64
	Simulate   *uint64
	Heartbeat  *uint64
}

// NewUnparsedCommonFlags returns an unparsed flag set with a given name.
// This is useful for creating sub-commands that have the flags -config,
// -verbose, -warmup, -simulate and -heartbeat but need other flags in addition.
func NewUnparsedCommonFlags(name string) UnparsedCommonFlags {
	cmd := flag.NewFlagSet(name, flag.ExitOnError)
	return UnparsedCommonFlags{
		FlagSet:    cmd,
		ConfigPath: cmd.String("config", "", "config file path for analysis"),
		Verbose:    cmd.Bool("verbose", false, "verbose printing on standard error"),
		Warmup:     cmd.Uint64("warmup", 0, "number of trace records skipped before tracking (overrides config)"),
		Simulate:   cmd.Uint64("simulate", 0, "number of instructions tracked (overrides config)"),
		Heartbeat:  cmd.Uint64("heartbeat", 0, "number of instructions between two reports (overrides config)"),
	}
}

// Parse parses args and returns the common flags.
func (u UnparsedCommonFlags) Parse(args []string) (CommonFlags, error) {
	if err := u.FlagSet.Parse(args); err != nil {
		return CommonFlags{}, fmt.Errorf("failed to parse command %s with args %v: %v", u.FlagSet.Name(), args, err)
	}
	return CommonFlags{
		FlagSet:    u.FlagSet,
		ConfigPath: *u.ConfigPath,
		Verbose:    *u.Verbose,
		Warmup:     *u.Warmup,
		Simulate:   *u.Simulate,
		Heartbeat:  *u.Heartbeat,
	}, nil
}

// CommonFlags represents a parsed CLI sub-command flags.
// E.g., for the command `clueless leaks ...`, "leaks" is the sub-command.
type CommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath string
	Verbose    bool
	Warmup     uint64
	Simulate   uint64
	Heartbeat  uint64
}

// NewCommonFlags returns a parsed flag set with a given name.
// Returns an error if args are invalid.
// Prints cmdUsage along with flag docs as the --help message.
func NewCommonFlags(name string, args []string, cmdUsage string) (CommonFlags, error) {
	flags := NewUnparsedCommonFlags(name)
	SetUsage(flags.FlagSet, cmdUsage)
	return flags.Parse(args)
}

// IsSet returns true if the flag name has been set on the command line.
func (f CommonFlags) IsSet(name string) bool {
	set := false
	f.FlagSet.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			set = true
		}
	})
	return set
}

// Traces returns the trace paths, the positional arguments of the command.
func (f CommonFlags) Traces() ([]string, error) {
	if f.FlagSet.NArg() == 0 {
		return nil, fmt.Errorf("no trace file specified")
	}
	return f.FlagSet.Args(), nil
}

// SetUsage sets cmd's usage (for --help flag) to output the string cmdUsage
// followed by each flag's documentation.
func SetUsage(cmd *flag.FlagSet, cmdUsage string) {
	cmd.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n", cmdUsage)
		fmt.Fprintf(os.Stderr, "Options:\n")
		cmd.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(os.Stderr, "  %s: %s (default: %q)\n", f.Name, f.Usage, f.DefValue)
		})
	}
}

// LoadConfig loads the config file of flags, or the default config if no file is given, and applies the overrides
// of the command line.
func LoadConfig(flags CommonFlags) (*config.Config, error) {
	cfg := config.NewDefault()
	if flags.ConfigPath != "" {
		config.SetGlobalConfig(flags.ConfigPath)
		c, err := config.LoadGlobal()
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", flags.ConfigPath, err)
		}
		cfg = c
	}

	if flags.Verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	if flags.IsSet("warmup") {
		cfg.Warmup = flags.Warmup
	}
	if flags.IsSet("simulate") {
		cfg.Simulate = flags.Simulate
	}
	if flags.IsSet("heartbeat") {
		cfg.Heartbeat = flags.Heartbeat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Analyze runs one session per trace of paths, with the analyses registered by build. The run is interrupted by
// SIGINT. When cfg.MetricsAddr is set, the Prometheus metrics of all the segments are served until the run ends, and
// the run is cancelled if the metrics server fails.
func Analyze(cfg *config.Config, logger *config.LogGroup, paths []string, build analysis.SegmentBuilder) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.MetricsAddr == "" {
		return analysis.RunSegments(ctx, cfg, logger, paths, build)
	}

	collector := metrics.NewCollector()
	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServing := context.WithCancel(gctx)
	g.Go(func() error {
		// a failing listener cancels gctx, which stops the segments
		if err := collector.Serve(serveCtx, cfg.MetricsAddr, logger); err != nil {
			logger.Errorf("Stopping analysis: %v", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer stopServing()
		return analysis.RunSegments(gctx, cfg, logger, paths, func(seg int, s *analysis.Session) error {
			s.Propagator.AddSecretExposedHook(collector)
			s.Propagator.AddTaintExhaustedHook(collector)
			s.AddObserver(collector)
			if build == nil {
				return nil
			}
			return build(seg, s)
		})
	})
	return g.Wait()
}

// ReportFile returns the path of the report name: in the reports directory if the config has one, otherwise name
// itself.
func ReportFile(cfg *config.Config, name string) string {
	if f := cfg.ReportFile(name); f != "" {
		return f
	}
	return name
}

// WritePlot writes the heartbeat plot of series to the plot file of cfg, if any.
func WritePlot(cfg *config.Config, logger *config.LogGroup, series ...*render.Series) error {
	if cfg.Plot == "" {
		return nil
	}
	file := ReportFile(cfg, cfg.Plot)
	if err := render.PlotToFile(file, series...); err != nil {
		return err
	}
	logger.Infof("Plot written to %s", file)
	return nil
}
