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
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/clueless-dift/clueless/internal/funcutil"
	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// ErrInvalidConfig is returned by Validate, wrapped with the reason the configuration is rejected.
var ErrInvalidConfig = errors.New("invalid configuration")

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config contains the parameters of a tracking session and of the analyses run on top of it.
// If some field is not defined in the config file, it keeps the value set by NewDefault.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:",inline"`

	sourceFile string

	// Watch lists the address ranges that are watched. When non-empty, only loads from these ranges allocate taint.
	Watch []WatchRange `yaml:"watch"`

	// MemoryTaint configures the memory taint cache
	MemoryTaint CacheSpec `yaml:"memory-taint"`

	// Reuse configures the reuse distance analysis
	Reuse ReuseSpec `yaml:"reuse"`
}

// WatchRange is the address range [Start, Start+Size)
type WatchRange struct {
	Start uint64 `yaml:"start"`
	Size  uint64 `yaml:"size"`
}

// CacheSpec is the geometry of the memory taint cache. The cache is disabled when Sets is 0.
type CacheSpec struct {
	// Sets is the number of sets, a power of two
	Sets int `yaml:"sets"`

	// Ways is the associativity
	Ways int `yaml:"ways"`
}

// Enabled returns true when the memory taint cache should be created
func (c CacheSpec) Enabled() bool {
	return c.Sets > 0
}

// ReuseSpec contains the parameters of the reuse distance sampler
type ReuseSpec struct {
	// BlockBits is the number of low address bits dropped to get a block address
	BlockBits uint `yaml:"block-bits"`

	// Samples is the number of distances kept per block
	Samples int `yaml:"samples"`
}

type Options struct {
	// ReportsDir is the directory where all the reports will be stored. If the yaml config file this config struct has
	// been loaded from does not specify a ReportsDir but sets Plot, then ReportsDir will be created next to the config
	// file.
	ReportsDir string `yaml:"reports-dir"`

	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// Labels is the number of taint labels, between 1 and 128
	Labels int `yaml:"labels"`

	// Registers is the number of tracked register slots, between 1 and 256
	Registers int `yaml:"registers"`

	// Warmup is the number of trace records skipped before tracking starts
	Warmup uint64 `yaml:"warmup"`

	// Simulate is the number of trace records tracked
	Simulate uint64 `yaml:"simulate"`

	// Heartbeat is the number of instructions between two progress reports
	Heartbeat uint64 `yaml:"heartbeat"`

	// Rewind restarts the trace from the beginning when it ends before Simulate instructions have been tracked
	Rewind bool `yaml:"rewind"`

	// Plot is the name of the HTML file, in the reports directory, where the heartbeat plot is written. No plot is
	// written when empty.
	Plot string `yaml:"plot"`

	// MetricsAddr is the address the Prometheus metrics are served on, e.g. ":9090". Metrics are not served when
	// empty.
	MetricsAddr string `yaml:"metrics-addr"`

	// ReportThreshold is the number of versions above which a leaked address is listed in the leak report
	ReportThreshold uint64 `yaml:"report-threshold"`
}

// NewDefault returns the default config.
func NewDefault() *Config {
	return &Config{
		sourceFile: "",
		Watch:      nil,
		MemoryTaint: CacheSpec{
			Sets: 0,
			Ways: DefaultCacheWays,
		},
		Reuse: ReuseSpec{
			BlockBits: DefaultBlockBits,
			Samples:   DefaultReuseSamples,
		},
		Options: Options{
			ReportsDir:      "",
			LogLevel:        int(InfoLevel),
			Labels:          DefaultLabels,
			Registers:       DefaultRegisters,
			Warmup:          0,
			Simulate:        DefaultSimulate,
			Heartbeat:       DefaultHeartbeat,
			Rewind:          true,
			Plot:            "",
			MetricsAddr:     "",
			ReportThreshold: DefaultReportThreshold,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return Parse(filename, b)
}

// Parse reads a configuration from the contents b of the file filename. Relative paths in the configuration are
// relative to the directory of filename.
func Parse(filename string, b []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	cfg.sourceFile = filename

	// If logLevel has been set to 0 set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Plot != "" || cfg.ReportsDir != "" {
		if err := setReportsDir(cfg, filename); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func setReportsDir(c *Config, filename string) error {
	if c.ReportsDir == "" {
		tmpdir, err := os.MkdirTemp(path.Dir(filename), "*-report")
		if err != nil {
			return fmt.Errorf("could not create temp dir for reports")
		}
		c.ReportsDir = tmpdir
	} else {
		err := os.Mkdir(c.ReportsDir, 0750)
		if err != nil {
			if !os.IsExist(err) {
				return fmt.Errorf("could not create directory %s", c.ReportsDir)
			}
		}
	}
	return nil
}

// Validate returns an error wrapping ErrInvalidConfig if some option is out of range
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if c.Labels < 1 || c.Labels > MaxLabels {
		return invalid("labels must be in [1, %d], got %d", MaxLabels, c.Labels)
	}
	if c.Registers < 1 || c.Registers > MaxRegisters {
		return invalid("registers must be in [1, %d], got %d", MaxRegisters, c.Registers)
	}
	if c.Heartbeat == 0 {
		return invalid("heartbeat must be positive")
	}
	if c.LogLevel < int(ErrLevel) || c.LogLevel > int(TraceLevel) {
		return invalid("log-level must be in [%d, %d], got %d", ErrLevel, TraceLevel, c.LogLevel)
	}
	if c.MemoryTaint.Enabled() {
		if c.MemoryTaint.Sets&(c.MemoryTaint.Sets-1) != 0 {
			return invalid("memory-taint sets must be a power of two, got %d", c.MemoryTaint.Sets)
		}
		if c.MemoryTaint.Ways <= 0 {
			return invalid("memory-taint ways must be positive, got %d", c.MemoryTaint.Ways)
		}
	} else if c.MemoryTaint.Sets < 0 {
		return invalid("memory-taint sets must not be negative")
	}
	if funcutil.Exists(c.Watch, func(w WatchRange) bool { return w.Size == 0 }) {
		return invalid("watch ranges must have a positive size")
	}
	if c.Reuse.Samples <= 0 {
		return invalid("reuse samples must be positive, got %d", c.Reuse.Samples)
	}
	if c.Reuse.BlockBits >= 64 {
		return invalid("reuse block-bits must be less than 64, got %d", c.Reuse.BlockBits)
	}
	return nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// ReportFile returns the path of the report file name in the reports directory, or the empty string if no reports
// directory has been set
func (c Config) ReportFile(name string) string {
	if c.ReportsDir == "" {
		return ""
	}
	return filepath.Join(c.ReportsDir, name)
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}
