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

// Package how implements the how tool: it classifies the leaked secret addresses by the number of register moves
// between their load and their use as an address, and the transmit addresses by the number of secrets they are
// computed from.
package how

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/clueless-dift/clueless/analysis"
	"github.com/clueless-dift/clueless/analysis/config"
	"github.com/clueless-dift/clueless/analysis/provenance"
	"github.com/clueless-dift/clueless/analysis/render"
	"github.com/clueless-dift/clueless/cmd/clueless/tools"
	"github.com/clueless-dift/clueless/internal/formatutil"
)

// Usage of the how tool.
const Usage = ` Classify how secret values are used as addresses in ChampSim traces.
Usage:
  clueless how [options] <trace path(s)>
Every heartbeat prints a row "ins lvl0 lvl1 lvl2 lvl3+ t1 ... t7 t8+ gtt all": the number of leaked secret addresses
per propagation depth, the number of transmit addresses per number of secrets exposed at once, the number of leaked
secret addresses and of addresses touched.
Examples:
  % clueless how -config config.yaml trace.champsim.gz
`

// Flags represents the parsed flags of the how tool.
type Flags struct {
	tools.CommonFlags
}

// NewFlags returns the parsed flags of the how tool with args.
func NewFlags(args []string) (Flags, error) {
	flags, err := tools.NewCommonFlags("how", args, Usage)
	return Flags{CommonFlags: flags}, err
}

// Run runs the how tool with flags.
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

func header() []string {
	h := []string{"ins"}
	for i := 0; i < provenance.DepthBuckets; i++ {
		h = append(h, "lvl"+strconv.Itoa(i))
	}
	h[len(h)-1] += "+"
	for i := 1; i <= provenance.CountBuckets; i++ {
		h = append(h, "t"+strconv.Itoa(i))
	}
	h[len(h)-1] += "+"
	return append(h, "gtt", "all")
}

func run(cfg *config.Config, logger *config.LogGroup, paths []string, w io.Writer) error {
	logger.Infof(formatutil.Faint("clueless how - " + analysis.Version))

	rows := make([][]provenance.Row, len(paths))
	err := tools.Analyze(cfg, logger, paths, func(i int, s *analysis.Session) error {
		h := provenance.NewHistogram()
		s.Propagator.AddSecretExposedHook(h)
		s.AddObserver(h)
		s.OnHeartbeat(func(n uint64) {
			rows[i] = append(rows[i], h.Snapshot(n))
		})
		return nil
	})
	if err != nil {
		return err
	}

	var series []*render.Series
	for i, path := range paths {
		fmt.Fprintln(w, formatutil.Bold(formatutil.Sanitize(path)))
		t := render.NewTable(header()...)
		plot := render.NewSeries("depth: "+path, header()[1:provenance.DepthBuckets+1]...)
		for _, r := range rows[i] {
			cells := []any{r.Instructions}
			levels := make([]float64, 0, provenance.DepthBuckets)
			for _, n := range r.Levels {
				cells = append(cells, n)
				levels = append(levels, float64(n))
			}
			for _, n := range r.Counts {
				cells = append(cells, n)
			}
			t.Append(append(cells, r.GlobalTaintTracking, r.All)...)
			plot.Add(r.Instructions, levels...)
		}
		t.Render(w)
		series = append(series, plot)
	}

	return tools.WritePlot(cfg, logger, series...)
}
