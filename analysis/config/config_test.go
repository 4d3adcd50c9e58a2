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

package config

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

//go:embed testdata
var testfsys embed.FS

func loadFromTestDir(filename string) (string, *Config, error) {
	filename = filepath.Join("testdata", filename)
	b, err := testfsys.ReadFile(filename)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file %v: %v", filename, err)
	}
	config, err := Parse(filename, b)
	if err != nil {
		return filename, nil, fmt.Errorf("failed to load file %v: %w", filename, err)
	}
	return filename, config, err
}

func testLoadOneFile(t *testing.T, filename string, expected Config) {
	configFileName, config, err := loadFromTestDir(filename)
	if err != nil {
		t.Fatalf("Error loading %q: %v", configFileName, err)
	}
	c1, err1 := yaml.Marshal(config)
	c2, err2 := yaml.Marshal(expected)
	if err1 != nil {
		t.Errorf("Error marshalling %v", config)
	}
	if err2 != nil {
		t.Errorf("Error marshalling %v", expected)
	}
	if string(c1) != string(c2) {
		t.Errorf("Error in %q:\n%q is not\n%q\n", filename, c1, c2)
	}
}

func TestNewDefault(t *testing.T) {
	c := NewDefault()
	if err := c.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
	if c.Labels != 128 || c.Registers != 256 {
		t.Errorf("Default config should use all labels and registers, got %d and %d", c.Labels, c.Registers)
	}
	if c.Simulate != 10000000 || c.Heartbeat != 100000 || c.Warmup != 0 {
		t.Errorf("Unexpected default instruction counts %d %d %d", c.Warmup, c.Simulate, c.Heartbeat)
	}
	if !c.Rewind {
		t.Errorf("Default config should rewind traces")
	}
	if c.MemoryTaint.Enabled() {
		t.Errorf("Default config should not track memory taint")
	}
	if c.ReportFile("x") != "" {
		t.Errorf("Default config should not have a reports directory")
	}
}

func TestLoadMinimal(t *testing.T) {
	expected := NewDefault()
	expected.Simulate = 2000
	testLoadOneFile(t, "minimal.yaml", *expected)
}

func TestLoadNonExistentFileReturnsError(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "does-not-exist.yaml"))
	if c != nil || err == nil {
		t.Errorf("Expected error and nil value when trying to load non existent file.")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected a not-exist error, got %v", err)
	}
}

func TestLoadBadFormatFileReturnsError(t *testing.T) {
	_, config, err := loadFromTestDir("bad_format.yaml")
	if config != nil || err == nil {
		t.Errorf("Expected error and nil value when trying to load a badly formatted file.")
	}
}

func TestLoadInvalidValuesReturnsError(t *testing.T) {
	for _, name := range []string{"bad_labels.yaml", "bad_cache.yaml"} {
		_, config, err := loadFromTestDir(name)
		if config != nil || !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig when loading %s, got %v", name, err)
		}
	}
}

func TestLoadWithReportNoDirReturnsError(t *testing.T) {
	_, config, err := loadFromTestDir("config_with_reports_bad_dir.yaml")
	if config != nil || err == nil {
		t.Errorf("Expected error and nil value when trying to load config with a report dir that has a non-existing" +
			"directory name")
	}
}

//gocyclo:ignore
func TestLoadFullConfig(t *testing.T) {
	fileName, config, err := loadFromTestDir("full-config.yaml")
	if config == nil || err != nil {
		t.Fatalf("Could not load %s: %v", fileName, err)
	}
	// Remove temporary files
	defer os.Remove(config.ReportsDir)

	if config.LogLevel != int(TraceLevel) {
		t.Error("full config should have set trace")
	}
	if config.Labels != 64 || config.Registers != 128 {
		t.Error("full config should set 64 labels and 128 registers")
	}
	if config.Warmup != 1000 || config.Simulate != 500000 || config.Heartbeat != 10000 {
		t.Error("full config should set warmup, simulate and heartbeat")
	}
	if config.Rewind {
		t.Error("full config should disable rewind")
	}
	if len(config.Watch) != 2 || config.Watch[0].Start != 0x7ffff7dd0000 || config.Watch[0].Size != 4096 {
		t.Errorf("full config should have two watch ranges, got %v", config.Watch)
	}
	if !config.MemoryTaint.Enabled() || config.MemoryTaint.Sets != 1024 || config.MemoryTaint.Ways != 4 {
		t.Errorf("full config should enable a 1024x4 memory taint cache, got %v", config.MemoryTaint)
	}
	if config.Reuse.BlockBits != 7 || config.Reuse.Samples != 16 {
		t.Errorf("full config should set the reuse parameters, got %v", config.Reuse)
	}
	if config.MetricsAddr != ":9090" {
		t.Error("full config should set metrics-addr")
	}
	if config.ReportThreshold != 42 {
		t.Error("full config should set report-threshold to 42")
	}
	if config.ReportsDir == "" {
		t.Errorf("Expected reports-dir to be non-empty after loading config %q", fileName)
	}
	if !strings.HasSuffix(config.ReportFile(config.Plot), "heartbeat.html") {
		t.Errorf("Plot should be in the reports directory, got %q", config.ReportFile(config.Plot))
	}
	if config.RelPath("trace.xz") != "testdata/trace.xz" {
		t.Errorf("Paths should be relative to the config file, got %q", config.RelPath("trace.xz"))
	}
	if !config.Verbose() {
		t.Error("trace level should be verbose")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"zero labels", func(c *Config) { c.Labels = 0 }},
		{"too many registers", func(c *Config) { c.Registers = 257 }},
		{"zero heartbeat", func(c *Config) { c.Heartbeat = 0 }},
		{"no ways", func(c *Config) { c.MemoryTaint = CacheSpec{Sets: 64, Ways: 0} }},
		{"empty watch range", func(c *Config) { c.Watch = []WatchRange{{Start: 4, Size: 0}} }},
		{"no reuse samples", func(c *Config) { c.Reuse.Samples = 0 }},
		{"log level", func(c *Config) { c.LogLevel = 6 }},
	}
	for _, test := range tests {
		c := NewDefault()
		test.modify(c)
		if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", test.name, err)
		}
	}
}

func TestLogGroupLevels(t *testing.T) {
	c := NewDefault()
	c.LogLevel = int(WarnLevel)
	l := NewLogGroup(c)
	var buf bytes.Buffer
	l.SetAllOutput(&buf)
	l.SetAllFlags(0)

	l.Errorf("e%d", 1)
	l.Warnf("w%d", 2)
	l.Infof("i%d", 3)
	l.Debugf("d%d", 4)
	l.Tracef("t%d", 5)

	if got, want := buf.String(), "[ERROR] e1\n[WARN] w2\n"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if l.Level() != WarnLevel {
		t.Errorf("expected level %s, got %s", WarnLevel, l.Level())
	}
}

func TestLogGroupSetError(t *testing.T) {
	l := NewLogGroup(NewDefault())
	var all, errs bytes.Buffer
	l.SetAllOutput(&all)
	l.SetAllFlags(0)
	l.SetError(&errs)

	l.Warnf("w")
	l.Errorf("e")
	l.GetError().Print("server")

	if got, want := all.String(), "[WARN] w\n"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got, want := errs.String(), "[ERROR] e\n[ERROR] server\n"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
