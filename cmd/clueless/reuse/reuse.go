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

// Package reuse implements the reuse tool: it samples the reuse distance of the cache blocks holding leaked secrets.
package reuse

import (
	"fmt"
	"io"
	"os"

	"github.com/clueless-dift/clueless/analysis"
	"github.com/clueless-dift/clueless/analysis/config"
	"github.com/clueless-dift/clueless/analysis/render"
	"github.com/clueless-dift/clueless/analysis/reuse"
	"github.com/clueless-dift/clueless/cmd/clueless/tools"
	"github.com/clueless-dift/clueless/internal/formatutil"
)

// Usage of the reuse tool.
const Usage = ` Sample the reuse distance of the blocks holding leaked secrets in ChampSim traces.
Usage:
  clueless reuse [options] <trace path(s)>
Prints one row "address mean min max sd naccess" per block. The reuse distance is the number of memory accesses
between two accesses to the block; unused samples count as the largest distance.
Examples:
  % clueless reuse -block-bits 6 -samples 10 trace.champsim.zst
`

// Flags represents the parsed flags of the reuse tool.
type Flags struct {
	tools.CommonFlags
	blockBits uint
	samples   int
}

// NewFlags returns the parsed flags of the reuse tool with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("reuse")
	blockBits := flags.FlagSet.Uint("block-bits", 0, "log2 of the block size (overrides config)")
	samples := flags.FlagSet.Int("samples", 0, "number of distances kept per block (overrides config)")
	tools.SetUsage(flags.FlagSet, Usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, blockBits: *blockBits, samples: *samples}, nil
}

// Run runs the reuse tool with flags.
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.CommonFlags)
	if err != nil {
		return err
	}
	if flags.IsSet("block-bits") {
		cfg.Reuse.BlockBits = flags.blockBits
	}
	if flags.IsSet("samples") {
		cfg.Reuse.Samples = flags.samples
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	paths, err := flags.Traces()
	if err != nil {
		return err
	}
	return run(cfg, config.NewLogGroup(cfg), paths, os.Stdout)
}

func run(cfg *config.Config, logger *config.LogGroup, paths []string, w io.Writer) error {
	logger.Infof(formatutil.Faint("clueless reuse - " + analysis.Version))

	samplers := make([]*reuse.Sampler, len(paths))
	err := tools.Analyze(cfg, logger, paths, func(i int, s *analysis.Session) error {
		samplers[i] = reuse.NewSampler(cfg.Reuse.BlockBits, cfg.Reuse.Samples)
		s.Propagator.AddSecretExposedHook(samplers[i])
		s.AddObserver(samplers[i])
		s.OnHeartbeat(func(n uint64) {
			logger.Debugf("%s: %d instructions, %d blocks sampled", paths[i], n, samplers[i].Len())
		})
		return nil
	})
	if err != nil {
		return err
	}

	for i, path := range paths {
		fmt.Fprintln(w, formatutil.Bold(formatutil.Sanitize(path)))
		t := render.NewTable("address", "mean", "min", "max", "sd", "naccess")
		for _, st := range samplers[i].Report() {
			t.Append(render.Hex(st.Address), st.Mean, st.Min, st.Max, st.StdDev, st.Accesses)
		}
		t.Render(w)
	}
	return nil
}
