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

package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/clueless-dift/clueless/analysis/config"
	"github.com/clueless-dift/clueless/analysis/decode"
	"github.com/clueless-dift/clueless/analysis/taint"
	"github.com/clueless-dift/clueless/analysis/trace"
)

// cancelCheckInterval is the number of instructions between two checks of the context, besides heartbeats.
const cancelCheckInterval = 4096

// A Source provides trace records one at a time. *trace.Reader is a Source.
type Source interface {
	ReadSingleInstr() (trace.Record, error)
}

// An Observer is notified of every instruction after it has been propagated. The instruction is only valid
// during the call.
type Observer interface {
	OnInstr(i uint64, ins *taint.Instr)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(i uint64, ins *taint.Instr)

// OnInstr calls f(i, ins).
func (f ObserverFunc) OnInstr(i uint64, ins *taint.Instr) { f(i, ins) }

// Session reads a trace, decodes every record and propagates it. Every session owns its decoder and propagator:
// taint does not flow from one session to another.
type Session struct {
	Config     *config.Config
	Logger     *config.LogGroup
	Source     Source
	Decoder    decode.Decoder
	Propagator *taint.Propagator

	observers  []Observer
	heartbeats []func(i uint64)
}

// NewSession returns a session reading src, with a ChampSim decoder and a propagator configured by cfg.
func NewSession(cfg *config.Config, logger *config.LogGroup, src Source) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		Config:     cfg,
		Logger:     logger,
		Source:     src,
		Decoder:    decode.NewChampSim(),
		Propagator: NewPropagator(cfg),
	}
	s.Propagator.AddTaintExhaustedHook(taint.TaintExhaustedFunc(func(l taint.Label) {
		logger.Debugf("taint exhausted, evicted label %d", l)
	}))
	return s, nil
}

// NewPropagator returns a propagator with the capacities, watch ranges and memory taint cache of cfg.
func NewPropagator(cfg *config.Config) *taint.Propagator {
	opts := taint.Options{
		Labels:    cfg.Labels,
		Registers: cfg.Registers,
	}
	if len(cfg.Watch) > 0 {
		opts.Watch = taint.NewWatchSet()
		for _, w := range cfg.Watch {
			opts.Watch.Watch(w.Start, w.Size)
		}
	}
	if cfg.MemoryTaint.Enabled() {
		opts.Memory = taint.NewCache(cfg.MemoryTaint.Sets, cfg.MemoryTaint.Ways)
	}
	return taint.NewPropagator(opts)
}

// AddObserver registers o. Observers are called in registration order.
func (s *Session) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// OnHeartbeat registers f to be called every Heartbeat instructions, and once at the end of the run.
func (s *Session) OnHeartbeat(f func(i uint64)) {
	s.heartbeats = append(s.heartbeats, f)
}

// Run skips the warmup records, then propagates up to Simulate instructions.
//
// Run returns the number of instructions propagated. The run ends early, without error, at the end of a trace that
// is not rewound. If ctx is cancelled, Run stops at the next instruction boundary and returns ctx.Err(); the
// propagator is left in a consistent state.
func (s *Session) Run(ctx context.Context) (uint64, error) {
	start := time.Now()
	if err := s.warmup(ctx); err != nil {
		return 0, err
	}
	s.Logger.Infof("Tracking %d instructions ...", s.Config.Simulate)

	for i := uint64(0); i < s.Config.Simulate; i++ {
		beat := i%s.Config.Heartbeat == 0
		if beat || i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				s.heartbeat(i)
				return i, err
			}
		}
		if beat {
			s.heartbeat(i)
		}

		rec, err := s.Source.ReadSingleInstr()
		if errors.Is(err, io.EOF) {
			s.Logger.Infof("Reached end of trace after %d instructions", i)
			if !beat {
				s.heartbeat(i)
			}
			return i, nil
		}
		if err != nil {
			return i, fmt.Errorf("reading instruction %d: %w", i, err)
		}

		ins := s.Decoder.Decode(&rec)
		s.Logger.Tracef("%d: %v", i, ins)
		s.Propagator.Propagate(ins)
		for _, o := range s.observers {
			o.OnInstr(i, ins)
		}
	}

	s.heartbeat(s.Config.Simulate)
	stats := s.Propagator.Stats()
	s.Logger.Infof("Tracked %d instructions in %.2f s: %d allocations, %d exposures, %d exhaustions",
		stats.Total(), time.Since(start).Seconds(), stats.Allocations, stats.Exposures, stats.Exhaustions)
	return s.Config.Simulate, nil
}

func (s *Session) warmup(ctx context.Context) error {
	for i := uint64(0); i < s.Config.Warmup; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if _, err := s.Source.ReadSingleInstr(); err != nil {
			return fmt.Errorf("warmup stopped at record %d: %w", i, err)
		}
	}
	return nil
}

func (s *Session) heartbeat(i uint64) {
	for _, f := range s.heartbeats {
		f(i)
	}
}
