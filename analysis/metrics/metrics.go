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

// Package metrics exports the activity of taint propagators as Prometheus counters.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/clueless-dift/clueless/analysis/config"
	"github.com/clueless-dift/clueless/analysis/taint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clueless"

var opcodes = []taint.Opcode{taint.OpReg, taint.OpLoad, taint.OpStore, taint.OpBranch}

// Collector implements taint.SecretExposedHook, taint.TaintExhaustedHook and the session's Observer interface.
// A collector is safe for concurrent use and may be shared by the sessions of several segments.
type Collector struct {
	registry     *prometheus.Registry
	instructions *prometheus.CounterVec
	exposed      *prometheus.CounterVec
	exhausted    prometheus.Counter

	// byOp caches the instruction counter of every opcode
	byOp map[taint.Opcode]prometheus.Counter
}

// NewCollector returns a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instructions_total",
			Help:      "Number of instructions propagated, by opcode.",
		}, []string{"op"}),
		exposed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "secret_exposed_total",
			Help:      "Number of secret exposures, by indirection.",
		}, []string{"indirect"}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "taint_exhausted_total",
			Help:      "Number of labels evicted because all labels were in use.",
		}),
		byOp: map[taint.Opcode]prometheus.Counter{},
	}
	c.registry.MustRegister(c.instructions, c.exposed, c.exhausted)
	for _, op := range opcodes {
		c.byOp[op] = c.instructions.WithLabelValues(op.String())
	}
	return c
}

// Registry returns the registry of the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// OnSecretExposed counts e.
func (c *Collector) OnSecretExposed(e taint.SecretExposed) {
	c.exposed.WithLabelValues(strconv.FormatBool(e.Indirect)).Inc()
}

// OnTaintExhausted counts an exhaustion.
func (c *Collector) OnTaintExhausted(taint.Label) {
	c.exhausted.Inc()
}

// OnInstr counts ins.
func (c *Collector) OnInstr(_ uint64, ins *taint.Instr) {
	if ctr, ok := c.byOp[ins.Op]; ok {
		ctr.Inc()
	}
}

// Handler returns the HTTP handler serving the metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve serves the metrics on addr under /metrics until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string, logger *config.LogGroup) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          logger.GetError(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("metrics server shutdown: %v", err)
		}
	}()

	logger.Infof("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
