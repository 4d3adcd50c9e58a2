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

// Package provenance classifies how leaked addresses are made.
//
// Secret addresses are bucketed by the propagation depth of their first exposure, and transmit addresses by the
// number of secrets exposed by the instruction that computed them.
package provenance

import (
	"github.com/clueless-dift/clueless/analysis/taint"
	"github.com/hashicorp/go-set"
)

const (
	// DepthBuckets is the number of depth buckets: 0, 1, 2 and 3 or more
	DepthBuckets = 4

	// CountBuckets is the number of taint count buckets: 1 to 7, and 8 or more
	CountBuckets = 8
)

// Histogram implements taint.SecretExposedHook and the session's Observer interface. Exposures are buffered until
// the observer is notified of the instruction that caused them, so that all the secrets exposed by one instruction
// are classified together.
type Histogram struct {
	pending []taint.SecretExposed
	levels  [DepthBuckets]*set.Set[uint64]
	counts  [CountBuckets]*set.Set[uint64]
	all     *set.Set[uint64]
}

// Row is the state of a histogram after some instructions.
type Row struct {
	Instructions uint64
	Levels       [DepthBuckets]int
	Counts       [CountBuckets]int

	// GlobalTaintTracking is the number of distinct secret addresses leaked
	GlobalTaintTracking int

	// All is the number of distinct addresses loaded from or stored to
	All int
}

// NewHistogram returns an empty histogram.
func NewHistogram() *Histogram {
	h := &Histogram{all: set.New[uint64](0)}
	for i := range h.levels {
		h.levels[i] = set.New[uint64](0)
	}
	for i := range h.counts {
		h.counts[i] = set.New[uint64](0)
	}
	return h
}

// OnSecretExposed buffers e.
func (h *Histogram) OnSecretExposed(e taint.SecretExposed) {
	h.pending = append(h.pending, e)
}

// OnInstr classifies the exposures caused by ins and records its address if it accesses memory.
func (h *Histogram) OnInstr(_ uint64, ins *taint.Instr) {
	h.flush()
	if ins.Op == taint.OpLoad || ins.Op == taint.OpStore {
		h.all.Insert(ins.Address)
	}
}

func (h *Histogram) flush() {
	if len(h.pending) == 0 {
		return
	}
	depth := h.pending[0].Depth
	for _, e := range h.pending[1:] {
		if e.Depth < depth {
			depth = e.Depth
		}
	}
	lvl := h.levels[min(int(depth), DepthBuckets-1)]
	for _, e := range h.pending {
		if !contains(h.levels[:], e.SecretAddress) {
			lvl.Insert(e.SecretAddress)
		}
	}

	transmit := h.pending[0].TransmitAddress
	if !contains(h.counts[:], transmit) {
		h.counts[min(len(h.pending), CountBuckets)-1].Insert(transmit)
	}
	h.pending = h.pending[:0]
}

// Level returns the bucket of secret address addr, and false if addr never leaked.
func (h *Histogram) Level(addr uint64) (int, bool) {
	return find(h.levels[:], addr)
}

// Count returns the bucket of transmit address addr, and false if addr was never computed from a secret.
func (h *Histogram) Count(addr uint64) (int, bool) {
	return find(h.counts[:], addr)
}

// Snapshot returns the bucket sizes, labelled with the instruction count i.
func (h *Histogram) Snapshot(i uint64) Row {
	r := Row{Instructions: i, All: h.all.Size()}
	for b, s := range h.levels {
		r.Levels[b] = s.Size()
		// an address is in at most one bucket
		r.GlobalTaintTracking += s.Size()
	}
	for b, s := range h.counts {
		r.Counts[b] = s.Size()
	}
	return r
}

func contains(buckets []*set.Set[uint64], addr uint64) bool {
	_, ok := find(buckets, addr)
	return ok
}

func find(buckets []*set.Set[uint64], addr uint64) (int, bool) {
	for i, s := range buckets {
		if s.Contains(addr) {
			return i, true
		}
	}
	return 0, false
}
