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

// Package chains implements the chains tool: it builds the graph of the pointer chains of a trace and reports its
// longest chains and cycles.
package chains

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/clueless-dift/clueless/analysis"
	"github.com/clueless-dift/clueless/analysis/chains"
	"github.com/clueless-dift/clueless/analysis/config"
	"github.com/clueless-dift/clueless/analysis/render"
	"github.com/clueless-dift/clueless/cmd/clueless/tools"
	"github.com/clueless-dift/clueless/internal/formatutil"
	"github.com/clueless-dift/clueless/internal/funcutil"
)

// Usage of the chains tool.
const Usage = ` Build the graph of pointer chains of ChampSim traces: an edge goes from a secret address to every address
computed from the value loaded from it.
Usage:
  clueless chains [options] <trace path(s)>
Examples:
  % clueless chains -cycles 20 -dot trace.champsim.gz
`

// Flags represents the parsed flags of the chains tool.
type Flags struct {
	tools.CommonFlags
	cycles   int
	dot      bool
	minCount int64
}

// NewFlags returns the parsed flags of the chains tool with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("chains")
	cycles := flags.FlagSet.Int("cycles", 10, "maximum number of cycles printed per trace (0 for all)")
	dot := flags.FlagSet.Bool("dot", false, "write the graph of every trace to chains-<segment>.dot")
	minCount := flags.FlagSet.Int64("min-count", 1, "omit the edges seen less than min-count times from the graph")
	tools.SetUsage(flags.FlagSet, Usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, cycles: *cycles, dot: *dot, minCount: *minCount}, nil
}

// Run runs the chains tool with flags.
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.CommonFlags)
	if err != nil {
		return err
	}
	paths, err := flags.Traces()
	if err != nil {
		return err
	}
	return run(cfg, config.NewLogGroup(cfg), paths, flags, os.Stdout)
}

func run(cfg *config.Config, logger *config.LogGroup, paths []string, flags Flags, w io.Writer) error {
	logger.Infof(formatutil.Faint("clueless chains - " + analysis.Version))

	graphs := make([]*chains.Graph, len(paths))
	err := tools.Analyze(cfg, logger, paths, func(i int, s *analysis.Session) error {
		graphs[i] = chains.NewGraph()
		s.Propagator.AddSecretExposedHook(graphs[i])
		return nil
	})
	if err != nil {
		return err
	}

	t := render.NewTable("segment", "exposures", "addresses", "edges", "self-loops", "components", "largest",
		"chain")
	for i, g := range graphs {
		st := g.Stats()
		t.Append(i, st.Exposures, st.Addresses, st.Edges, st.SelfLoops, st.Components, st.LargestComponent,
			st.LongestChain)
	}
	t.Render(w)

	for i, g := range graphs {
		fmt.Fprintf(w, "%s %s\n", formatutil.Bold(fmt.Sprintf("[%d]", i)), formatutil.Sanitize(paths[i]))
		if chain := g.LongestChain(); len(chain) > 1 {
			fmt.Fprintf(w, "longest chain: %s\n", path(chain))
		}
		for _, c := range g.Cycles(flags.cycles) {
			fmt.Fprintf(w, "%s %s\n", formatutil.Red("cycle:"), path(append(c, c[0])))
		}

		if flags.dot {
			file := tools.ReportFile(cfg, fmt.Sprintf("chains-%d.dot", i))
			if err := render.GraphvizToFile(g.Edges(), flags.minCount, file); err != nil {
				return err
			}
			logger.Infof("Graph of %s written to %s", paths[i], file)
		}
	}
	return nil
}

func path(addrs []uint64) string {
	return strings.Join(funcutil.Map(addrs, render.Hex), " -> ")
}
