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

package main

import (
	"fmt"
	"os"

	"github.com/clueless-dift/clueless/analysis"
	"github.com/clueless-dift/clueless/cmd/clueless/chains"
	"github.com/clueless-dift/clueless/cmd/clueless/decode"
	"github.com/clueless-dift/clueless/cmd/clueless/how"
	"github.com/clueless-dift/clueless/cmd/clueless/leaks"
	"github.com/clueless-dift/clueless/cmd/clueless/reuse"
	"github.com/clueless-dift/clueless/cmd/clueless/tools"
	"github.com/clueless-dift/clueless/internal/formatutil"
)

const usage = `Clueless: secret values leaking as addresses
Usage:
  clueless [tool] [options] <trace path(s)>
Tools:
  - leaks: counts the secret addresses whose content is used to compute an address
  - how: classifies leaks by propagation depth and transmit addresses by the number of secrets they expose
  - reuse: samples the reuse distance of the blocks holding leaked secrets
  - chains: builds the graph of pointer chains, and reports the longest chains and the cycles
  - decode: prints the decoded instructions of a trace, or extracts a slice of it
Traces are ChampSim traces compressed with gzip (.gz), xz (.xz) or zstd (.zst). Several traces are analyzed in
parallel as independent segments.
Examples:
  Count leaks: clueless leaks -config config.yaml trace.champsim.xz
  Print the first instructions: clueless decode -simulate 20 trace.champsim.xz`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "error: expected subcommand\n%s\n", usage)
		os.Exit(2)
	}

	// hardcode help flag
	if snd := os.Args[1]; snd == "-help" || snd == "--help" {
		fmt.Println(usage)
		return
	}

	// hardcode version flag
	if snd := os.Args[1]; snd == "-version" || snd == "--version" {
		fmt.Println(analysis.Version)
		return
	}

	args := os.Args[2:]
	switch cmd := os.Args[1]; cmd {
	case "leaks":
		flags, err := leaks.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := leaks.Run(flags); err != nil {
			errExit(err)
		}
	case "how":
		flags, err := how.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := how.Run(flags); err != nil {
			errExit(err)
		}
	case "reuse":
		flags, err := reuse.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := reuse.Run(flags); err != nil {
			errExit(err)
		}
	case "chains":
		flags, err := chains.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := chains.Run(flags); err != nil {
			errExit(err)
		}
	case "decode":
		flags, err := decode.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := decode.Run(flags); err != nil {
			errExit(err)
		}
	default:
		fmt.Fprintf(os.Stderr, "error: unexpected command: %v\n", cmd)
		fmt.Fprintf(os.Stderr, "usage:\n%s\n", usage)
		os.Exit(2)
	}
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", formatutil.Red("error:"), err)
	hint := tools.HintForErrorMessage(err.Error())
	if hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(2)
}
