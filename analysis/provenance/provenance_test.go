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

package provenance

import (
	"testing"

	"github.com/clueless-dift/clueless/analysis/taint"
	"github.com/stretchr/testify/assert"
)

type harness struct {
	p *taint.Propagator
	h *Histogram
}

func newHarness() *harness {
	p := taint.NewPropagator(taint.Options{Labels: taint.MaxLabels})
	h := NewHistogram()
	p.AddSecretExposedHook(h)
	return &harness{p: p, h: h}
}

func (h *harness) run(ins ...*taint.Instr) {
	for i, in := range ins {
		h.p.Propagate(in)
		h.h.OnInstr(uint64(i), in)
	}
}

func load(addr uint64, dst taint.Reg, mem ...taint.Reg) *taint.Instr {
	return &taint.Instr{Op: taint.OpLoad, Address: addr, DstReg: []taint.Reg{dst}, MemReg: mem}
}

func move(dst taint.Reg, src ...taint.Reg) *taint.Instr {
	return &taint.Instr{Op: taint.OpReg, SrcReg: src, DstReg: []taint.Reg{dst}}
}

func TestHistogram(t *testing.T) {
	h := newHarness()

	// two secrets combined into one address
	h.run(load(0x1000, 1), load(0x1008, 2), move(3, 1, 2), load(0x5000, 4, 3))
	// 0x1000 leaks again, directly: it keeps its first bucket
	h.run(load(0x1000, 1), load(0x6000, 5, 1))
	// 0x5000 is computed again: it keeps its first bucket
	h.run(load(0x2000, 1), load(0x5000, 6, 1))

	got := h.h.Snapshot(42)
	want := Row{
		Instructions:        42,
		Levels:              [DepthBuckets]int{1, 2, 0, 0},
		Counts:              [CountBuckets]int{1, 1},
		GlobalTaintTracking: 3,
		All:                 5,
	}
	assert.Equal(t, want, got)

	lvl, ok := h.h.Level(0x1000)
	assert.True(t, ok)
	assert.Equal(t, 1, lvl)
	lvl, _ = h.h.Level(0x2000)
	assert.Equal(t, 0, lvl)
	cnt, ok := h.h.Count(0x5000)
	assert.True(t, ok)
	assert.Equal(t, 1, cnt)
	_, ok = h.h.Count(0x1000)
	assert.False(t, ok)
}

func TestHistogramDeepChains(t *testing.T) {
	h := newHarness()
	h.run(load(0x100, 1), move(2, 1), move(3, 2), move(4, 3), load(0x200, 9, 4))
	h.run(load(0x300, 1), move(2, 1), move(3, 2), move(4, 3), move(5, 4), move(6, 5), load(0x400, 9, 6))
	h.run(load(0x500, 1), move(2, 1), move(3, 2), load(0x600, 9, 3))

	got := h.h.Snapshot(0)
	assert.Equal(t, [DepthBuckets]int{0, 0, 1, 2}, got.Levels)
}

func TestHistogramManySecrets(t *testing.T) {
	h := newHarness()
	var regs []taint.Reg
	for r := taint.Reg(1); r <= 9; r++ {
		h.run(load(0x1000+uint64(r)*8, r))
		regs = append(regs, r)
	}
	h.run(move(10, regs...), load(0x9000, 11, 10))

	got := h.h.Snapshot(0)
	assert.Equal(t, [CountBuckets]int{0, 0, 0, 0, 0, 0, 0, 1}, got.Counts)
	assert.Equal(t, [DepthBuckets]int{0, 9, 0, 0}, got.Levels)
	assert.Equal(t, 9, got.GlobalTaintTracking)
}

func TestHistogramIgnoresInstructionsWithoutExposure(t *testing.T) {
	h := NewHistogram()
	h.OnInstr(0, &taint.Instr{Op: taint.OpBranch})
	h.OnInstr(1, &taint.Instr{Op: taint.OpReg})
	assert.Equal(t, Row{Instructions: 2}, h.Snapshot(2))
}
