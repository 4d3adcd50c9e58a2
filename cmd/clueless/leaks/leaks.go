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

// Package leaks implements the leaks tool: it counts the secret addresses leaked by a trace, taking into account
// that an address stores a new secret every time it is written.
package leaks

import (
	"fmt"
	"io"
	"os"

	"github.com/clueless-dift/clueless/analysis"
	"github.com/clueless-dift/clueless/analysis/config"
	"github.com/clueless-dift/clueless/analysis/leak"
	"github.com/clueless-dift/clueless/analysis/render"
	"github.com/clueless-dift/clueless/cmd/clueless/tools"
	"github.com/clueless-dift/clueless/internal/formatutil"
)

// Usage of the leaks tool.
const Usage = ` Count the secret addresses leaked by ChampSim traces.
Usage:
  clueless leaks [options] <trace path(s)>
Every heartbeat prints a row "ins gtt all exhaust": instructions tracked, leaked secrets, addresses touched and
taint exhaustions.
Examples:
  % clueless leaks -simulate 1000000 -heartbeat 10000 trace.champsim.xz
`

// Flags represents the parsed flags of the leaks tool.
type Flags struct {
	tools.CommonFlags
}

// NewFlags returns the parsed flags of the leaks tool with args.
func NewFlags(args []string) (Flags, error) {
	flags, err := tools.NewCommonFlags("leaks", args, Usage)
	return Flags{CommonFlags: flags}, err
}

type segment struct {
	path    string
	counter *leak.Counter
	rows    []leak.Snapshot
}

// Run runs the leaks tool with flags.
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.CommonFlags)
	if err != nil {
		return err
	}
	paths, err := flags.Traces()
	if err != nil {
		return err
	}
	return run(cfg, config.NewLogGroup(cfg), paths, os.Stdout)
}

func run(cfg *config.Config, logger *config.LogGroup, paths []string, w io.Writer) error {
	logger.Infof(formatutil.Faint("clueless leaks - " + analysis.Version))

	segments := make([]segment, len(paths))
	err := tools.Analyze(cfg, logger, paths, func(i int, s *analysis.Session) error {
		seg := &segments[i]
		seg.path = paths[i]
		seg.counter = leak.NewCounter()
		s.Propagator.AddSecretExposedHook(seg.counter)
		s.Propagator.AddTaintExhaustedHook(seg.counter)
		s.AddObserver(seg.counter)
		s.OnHeartbeat(func(n uint64) {
			seg.rows = append(seg.rows, seg.counter.Snapshot(n))
		})
		return nil
	})
	if err != nil {
		return err
	}

	var series []*render.Series
	for _, seg := range segments {
		fmt.Fprintln(w, formatutil.Bold(formatutil.Sanitize(seg.path)))
		t := render.NewTable("ins", "gtt", "all", "exhaust")
		plot := render.NewSeries("leaks: "+seg.path, "gtt", "all", "exhaust")
		for _, r := range seg.rows {
			t.Append(r.Instructions, r.Leaked, r.Touched, r.Exhausted)
			plot.Add(r.Instructions, float64(r.Leaked), float64(r.Touched), float64(r.Exhausted))
		}
		t.Render(w)
		series = append(series, plot)

		hot := seg.counter.Hot(cfg.ReportThreshold)
		if len(hot) == 0 {
			continue
		}
		fmt.Fprintln(w, formatutil.Yellow(fmt.Sprintf("%d address(es) leaked more than %d times",
			len(hot), cfg.ReportThreshold)))
		h := render.NewTable("address", "versions", "valid")
		for _, addr := range hot {
			v, _ := seg.counter.Version(addr)
			h.Append(render.Hex(addr), v.N, v.Valid)
		}
		h.Render(w)
	}

	return tools.WritePlot(cfg, logger, series...)
}
