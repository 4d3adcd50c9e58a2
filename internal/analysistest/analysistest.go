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

// Package analysistest runs sessions over small annotated traces written as text, and checks the exposures they
// produce against the annotations.
//
// A textual trace has one record per line:
//
//	<ip> [branch|taken] [dst=r,...] [src=r,...] [load=addr,...] [store=addr,...]  // @Exposes(addr, ...)
//
// Everything after a '#' is a comment. The @Exposes annotation lists the secret addresses exposed by the record.
package analysistest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/clueless-dift/clueless/analysis"
	"github.com/clueless-dift/clueless/analysis/config"
	"github.com/clueless-dift/clueless/analysis/taint"
	"github.com/clueless-dift/clueless/analysis/trace"
)

// ExposesRegex matches annotations of the form "@Exposes(0x1000, 0x2000)"
var ExposesRegex = regexp.MustCompile(`//.*@Exposes\(((?:\s*\w+\s*,?)+)\)`)

// Expectation maps a record index to the secret addresses exposed by that record.
type Expectation map[int]map[uint64]bool

func (e Expectation) add(i int, addr uint64) {
	if e[i] == nil {
		e[i] = map[uint64]bool{}
	}
	e[i][addr] = true
}

// ParseTrace parses a textual trace and returns its records and the expected exposures.
func ParseTrace(text string) ([]trace.Record, Expectation, error) {
	var recs []trace.Record
	want := Expectation{}
	for lineno, line := range strings.Split(text, "\n") {
		code := line
		if i := strings.Index(code, "//"); i >= 0 {
			code = code[:i]
		}
		if i := strings.Index(code, "#"); i >= 0 {
			code = code[:i]
		}
		if strings.TrimSpace(code) == "" {
			continue
		}
		rec, err := parseRecord(code)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", lineno+1, err)
		}
		if m := ExposesRegex.FindStringSubmatch(line); m != nil {
			for _, a := range strings.Split(m[1], ",") {
				addr, err := strconv.ParseUint(strings.TrimSpace(a), 0, 64)
				if err != nil {
					return nil, nil, fmt.Errorf("line %d: bad annotation: %w", lineno+1, err)
				}
				want.add(len(recs), addr)
			}
		}
		recs = append(recs, rec)
	}
	return recs, want, nil
}

func parseRecord(code string) (trace.Record, error) {
	var rec trace.Record
	fields := strings.Fields(code)
	ip, err := strconv.ParseUint(fields[0], 0, 64)
	if err != nil {
		return rec, fmt.Errorf("bad instruction pointer: %w", err)
	}
	rec.IP = ip
	for _, f := range fields[1:] {
		key, val, _ := strings.Cut(f, "=")
		switch key {
		case "branch":
			rec.IsBranch = true
		case "taken":
			rec.IsBranch, rec.BranchTaken = true, true
		case "dst":
			err = parseList(rec.DestinationRegisters[:], val, 8)
		case "src":
			err = parseList(rec.SourceRegisters[:], val, 8)
		case "load":
			err = parseList(rec.SourceMemory[:], val, 64)
		case "store":
			err = parseList(rec.DestinationMemory[:], val, 64)
		default:
			err = fmt.Errorf("unknown field %q", f)
		}
		if err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func parseList[T uint8 | uint64](dst []T, val string, bits int) error {
	parts := strings.Split(val, ",")
	if len(parts) > len(dst) {
		return fmt.Errorf("%d operands in %q, at most %d", len(parts), val, len(dst))
	}
	for i, p := range parts {
		x, err := strconv.ParseUint(p, 0, bits)
		if err != nil {
			return err
		}
		dst[i] = T(x)
	}
	return nil
}

// Dir returns the path of the test directory name in this package's testdata.
func Dir(name string) string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata", name)
}

// ReadTrace reads the textual trace trace.txt of dir.
func ReadTrace(t *testing.T, dir string) ([]trace.Record, Expectation) {
	b, err := os.ReadFile(filepath.Join(dir, "trace.txt"))
	if err != nil {
		t.Fatalf("error reading trace: %v", err)
	}
	recs, want, err := ParseTrace(string(b))
	if err != nil {
		t.Fatalf("error parsing %s: %v", dir, err)
	}
	return recs, want
}

// WriteTrace writes recs to path, compressed according to its extension.
func WriteTrace(t *testing.T, path string, recs []trace.Record) {
	w, err := trace.Create(path)
	if err != nil {
		t.Fatalf("error creating trace: %v", err)
	}
	for i := range recs {
		if err := w.Write(&recs[i]); err != nil {
			t.Fatalf("error writing trace: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("error closing trace: %v", err)
	}
}

// TraceFile compresses the textual trace of the test directory name into a temporary trace file with extension ext
// (e.g. ".gz") and returns its path.
func TraceFile(t *testing.T, name string, ext string) string {
	recs, _ := ReadTrace(t, Dir(name))
	path := filepath.Join(t.TempDir(), name+".champsim"+ext)
	WriteTrace(t, path, recs)
	return path
}

// LoadTest loads the config.yaml of dir, or the default config if there is none. Traces are never rewound and the
// logs are discarded.
func LoadTest(t *testing.T, dir string) (*config.Config, *config.LogGroup) {
	cfg := config.NewDefault()
	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); err == nil {
		config.SetGlobalConfig(configFile)
		cfg, err = config.LoadGlobal()
		if err != nil {
			t.Fatalf("error loading config: %v", err)
		}
	}
	cfg.Rewind = false
	logger := config.NewLogGroup(cfg)
	logger.SetAllOutput(io.Discard)
	return cfg, logger
}

// Result is what a session reported while running a test trace.
type Result struct {
	Exposures    Expectation
	Events       []taint.SecretExposed
	Exhausted    []taint.Label
	Instructions uint64
}

// RunTest runs a session over the trace of dir with the configuration of dir, and returns the exposures and
// exhaustions it reported with the expected exposures.
func RunTest(t *testing.T, dir string) (Result, Expectation) {
	cfg, logger := LoadTest(t, dir)
	recs, want := ReadTrace(t, dir)

	s, err := analysis.NewSession(cfg, logger, &Records{Records: recs})
	if err != nil {
		t.Fatalf("error creating session: %v", err)
	}
	res := Result{Exposures: Expectation{}}
	var pending []taint.SecretExposed
	s.Propagator.AddSecretExposedHook(taint.SecretExposedFunc(func(e taint.SecretExposed) {
		pending = append(pending, e)
	}))
	s.Propagator.AddTaintExhaustedHook(taint.TaintExhaustedFunc(func(l taint.Label) {
		res.Exhausted = append(res.Exhausted, l)
	}))
	s.AddObserver(analysis.ObserverFunc(func(i uint64, _ *taint.Instr) {
		for _, e := range pending {
			res.Exposures.add(int(i+cfg.Warmup), e.SecretAddress)
		}
		res.Events = append(res.Events, pending...)
		pending = pending[:0]
	}))

	res.Instructions, err = s.Run(context.Background())
	if err != nil {
		t.Fatalf("error running session: %v", err)
	}
	return res, want
}

// CheckExposures reports an error for every record whose exposures differ from the expected ones.
func CheckExposures(t *testing.T, want, got Expectation) {
	t.Helper()
	for i, addrs := range want {
		for a := range addrs {
			if !got[i][a] {
				t.Errorf("record %d: expected exposure of %#x", i, a)
			}
		}
	}
	for i, addrs := range got {
		for a := range addrs {
			if !want[i][a] {
				t.Errorf("record %d: unexpected exposure of %#x", i, a)
			}
		}
	}
}

// Records is a Source reading records from memory.
type Records struct {
	Records []trace.Record
	next    int
}

// ReadSingleInstr returns the next record, or io.EOF after the last one.
func (r *Records) ReadSingleInstr() (trace.Record, error) {
	if r.next >= len(r.Records) {
		return trace.Record{}, io.EOF
	}
	r.next++
	return r.Records[r.next-1], nil
}

// Lines returns the non-empty lines of out, with the fields of every line separated by a single space. Tables can be
// compared with Lines regardless of their column widths.
func Lines(out string) []string {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if f := strings.Fields(l); len(f) > 0 {
			lines = append(lines, strings.Join(f, " "))
		}
	}
	return lines
}
