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

// Package analysis contains the session driver that feeds trace records to the taint propagator, and the helpers
// for running several sessions in parallel.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/clueless-dift/clueless/analysis/config"
	"github.com/clueless-dift/clueless/analysis/trace"
	"golang.org/x/sync/errgroup"
)

// SegmentBuilder is called once per trace segment, before the session runs. It registers the hooks, observers and
// heartbeat callbacks of the analyses on s. seg is the index of the segment's trace in the list of paths.
type SegmentBuilder func(seg int, s *Session) error

// OpenTrace opens the trace at path with the rewind setting of cfg. Rewinds are logged at info level.
func OpenTrace(cfg *config.Config, logger *config.LogGroup, path string) (*trace.Reader, error) {
	return trace.Open(path, trace.Options{
		Rewind: cfg.Rewind,
		OnRewind: func(p string) {
			logger.Infof("Reached end of trace %s, rewinding", p)
		},
	})
}

// RunSegments runs one session per trace in paths, in parallel. Each session has its own decoder and propagator, so
// taint does not flow between segments. build is called for every session before it starts; an error returned by
// build, by opening a trace or by a session cancels all the other segments.
//
// RunSegments returns the first error encountered, after all segments have stopped.
func RunSegments(ctx context.Context, cfg *config.Config, logger *config.LogGroup, paths []string,
	build SegmentBuilder) error {
	logger.Infof("Starting %d trace segment(s) ...", len(paths))
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			return runSegment(ctx, cfg, logger, i, path, build)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Infof("Segments done (%.2f s).", time.Since(start).Seconds())
	return nil
}

func runSegment(ctx context.Context, cfg *config.Config, logger *config.LogGroup, seg int, path string,
	build SegmentBuilder) error {
	r, err := OpenTrace(cfg, logger, path)
	if err != nil {
		return fmt.Errorf("segment %d: %w", seg, err)
	}
	defer r.Close()

	s, err := NewSession(cfg, logger, r)
	if err != nil {
		return fmt.Errorf("segment %d: %w", seg, err)
	}
	if build != nil {
		if err := build(seg, s); err != nil {
			return fmt.Errorf("segment %d: %w", seg, err)
		}
	}

	n, err := s.Run(ctx)
	if err != nil {
		return fmt.Errorf("segment %d (%s) stopped after %d instructions: %w", seg, path, n, err)
	}
	logger.Debugf("Segment %d (%s): %d instructions", seg, path, n)
	return nil
}
