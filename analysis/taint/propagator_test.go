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

package taint

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(ip, addr uint64, dst []Reg, mem ...Reg) *Instr {
	return &Instr{Op: OpLoad, IP: ip, DstReg: dst, MemReg: mem, Address: addr}
}

func store(ip, addr uint64, src []Reg, mem ...Reg) *Instr {
	return &Instr{Op: OpStore, IP: ip, SrcReg: src, MemReg: mem, Address: addr}
}

func move(dst []Reg, src ...Reg) *Instr {
	return &Instr{Op: OpReg, SrcReg: src, DstReg: dst}
}

type recorder struct {
	exposed   []SecretExposed
	exhausted []Label
}

func record(p *Propagator) *recorder {
	r := &recorder{}
	p.AddSecretExposedHook(SecretExposedFunc(func(e SecretExposed) { r.exposed = append(r.exposed, e) }))
	p.AddTaintExhaustedHook(TaintExhaustedFunc(func(l Label) { r.exhausted = append(r.exhausted, l) }))
	return r
}

func TestAllocReturnsUnheldLabel(t *testing.T) {
	p := NewPropagator(Options{Labels: 8, Registers: 16})
	for i := 0; i < 100; i++ {
		l := p.allocTaint()
		require.Zero(t, p.Holders(l), "allocation %d returned held label %d", i, l)
		p.regs.Add(Reg(i%16), l)
		if i%5 == 0 {
			p.regs.RemoveAll(Label(i % 8))
		}
	}
}

func TestColdStartAllocationOrder(t *testing.T) {
	p := NewPropagator(Options{Labels: 4})
	var got []Label
	for i := 0; i < 4; i++ {
		l := p.allocTaint()
		p.regs.Add(Reg(i), l)
		got = append(got, l)
	}
	assert.Equal(t, []Label{3, 2, 1, 0}, got)

	// a free label is reused before older ones
	p.regs.RemoveAll(2)
	assert.Equal(t, Label(2), p.allocTaint())
}

func TestRegUntaintedStaysUntainted(t *testing.T) {
	p := NewPropagator(Options{})
	r := record(p)
	p.Propagate(move([]Reg{1, 2}, 3, 4))
	assert.True(t, p.RegTaint(1).Empty())
	assert.True(t, p.RegTaint(2).Empty())
	assert.Empty(t, r.exposed)
}

func TestRegReplacesDestination(t *testing.T) {
	p := NewPropagator(Options{})
	p.Propagate(load(0x10, 0x1000, []Reg{1}))
	p.Propagate(load(0x14, 0x2000, []Reg{2}))
	a, b := p.RegTaint(1), p.RegTaint(2)

	p.Propagate(move([]Reg{2}, 1, 3))
	assert.Equal(t, a, p.RegTaint(2))
	assert.Equal(t, b.Len(), 1)
	assert.Equal(t, 0, p.Holders(b.Labels()[0]))

	// empty sources or destinations are a no-op
	p.Propagate(move(nil, 1))
	p.Propagate(move([]Reg{1}))
	assert.Equal(t, a, p.RegTaint(1))
}

func TestLoadAllocatesOneLabel(t *testing.T) {
	p := NewPropagator(Options{})
	p.Propagate(load(0x400, 0xbeef, []Reg{1, 2}))

	s := p.Stats()
	assert.Equal(t, uint64(1), s.Allocations)
	l := p.RegTaint(1).Labels()
	require.Len(t, l, 1)
	assert.Equal(t, p.RegTaint(1), p.RegTaint(2))
	addr, ip := p.Provenance(l[0])
	assert.Equal(t, uint64(0xbeef), addr)
	assert.Equal(t, uint64(0x400), ip)

	// loads add to the existing taint
	p.Propagate(load(0x404, 0xcafe, []Reg{1}))
	assert.Equal(t, 2, p.RegTaint(1).Len())
	assert.Equal(t, uint64(2), p.Stats().Allocations)

	// no destination, no allocation
	p.Propagate(load(0x408, 0xf00d, nil))
	assert.Equal(t, uint64(2), p.Stats().Allocations)
}

func TestStoreNeverAllocates(t *testing.T) {
	p := NewPropagator(Options{Memory: NewCache(64, 4)})
	p.Propagate(load(0, 0x10, []Reg{1}))
	before := p.Stats().Allocations
	p.Propagate(store(4, 0x20, []Reg{1}))
	p.Propagate(store(8, 0x30, []Reg{2, 3}, 4))
	assert.Equal(t, before, p.Stats().Allocations)
	assert.Equal(t, uint64(2), p.Stats().Of(OpStore))
}

func TestExhaustion(t *testing.T) {
	p := NewPropagator(Options{})
	r := record(p)

	for i := 0; i < MaxLabels; i++ {
		p.Propagate(load(uint64(i), uint64(0x1000+i), []Reg{Reg(i)}))
	}
	assert.Empty(t, r.exhausted)
	first := p.RegTaint(0).Labels()
	require.Len(t, first, 1)

	p.Propagate(load(MaxLabels, 0x9000, []Reg{MaxLabels}))
	require.Len(t, r.exhausted, 1)
	assert.Equal(t, first[0], r.exhausted[0])
	assert.Equal(t, Label(MaxLabels-1), r.exhausted[0])
	assert.True(t, p.RegTaint(0).Empty())
	assert.Equal(t, Of(first[0]), p.RegTaint(MaxLabels))
	addr, _ := p.Provenance(first[0])
	assert.Equal(t, uint64(0x9000), addr)
	assert.Equal(t, uint64(1), p.Stats().Exhaustions)
}

func TestExhaustionSmallLabelSpace(t *testing.T) {
	p := NewPropagator(Options{Labels: 2})
	r := record(p)
	p.Propagate(load(0, 0xa, []Reg{1}))
	p.Propagate(load(0, 0xb, []Reg{2}))
	p.Propagate(load(0, 0xc, []Reg{3}))
	p.Propagate(load(0, 0xd, []Reg{4}))
	assert.Equal(t, []Label{1, 0}, r.exhausted)
	assert.True(t, p.RegTaint(1).Empty())
	assert.True(t, p.RegTaint(2).Empty())
}

func TestSecretExposed(t *testing.T) {
	const secret, transmit = 0xa000, 0xb000
	p := NewPropagator(Options{})
	r := record(p)

	p.Propagate(load(0x100, secret, []Reg{1}))
	l := p.RegTaint(1).Labels()[0]
	p.Propagate(store(0x104, transmit, []Reg{2}, 1))

	want := []SecretExposed{{
		Label:           l,
		SecretAddress:   secret,
		AccessIP:        0x100,
		TransmitAddress: transmit,
		TransmitIP:      0x104,
	}}
	if diff := cmp.Diff(want, r.exposed); diff != "" {
		t.Errorf("exposures mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, p.Holders(l))
	assert.True(t, p.RegTaint(1).Empty())
}

func TestSecretExposedFreesEveryHolder(t *testing.T) {
	p := NewPropagator(Options{})
	r := record(p)

	p.Propagate(load(0x100, 0xa000, []Reg{1}))
	l := p.RegTaint(1).Labels()[0]
	p.Propagate(move([]Reg{2, 3}, 1))
	require.Equal(t, 3, p.Holders(l))

	p.Propagate(store(0x108, 0xb000, nil, 2))
	require.Len(t, r.exposed, 1)
	assert.Equal(t, uint8(1), r.exposed[0].Depth)
	assert.Zero(t, p.Holders(l))
	for _, reg := range []Reg{1, 2, 3} {
		assert.True(t, p.RegTaint(reg).Empty(), "register %d", reg)
	}
}

func TestPointerChase(t *testing.T) {
	p := NewPropagator(Options{})
	r := record(p)

	// r1 = *A; r2 = r1 + 8; r3 = *r2
	p.Propagate(load(0x10, 0xa0, []Reg{1}))
	first := p.RegTaint(1).Labels()[0]
	p.Propagate(move([]Reg{2}, 1))
	p.Propagate(load(0x18, 0xb0, []Reg{3}, 2))

	require.Len(t, r.exposed, 1)
	e := r.exposed[0]
	assert.Equal(t, first, e.Label)
	assert.Equal(t, uint64(0xa0), e.SecretAddress)
	assert.Equal(t, uint64(0xb0), e.TransmitAddress)
	assert.Equal(t, uint8(1), e.Depth)
	assert.True(t, e.Indirect)

	// the loaded value carries a fresh label for the new address
	second := p.RegTaint(3).Labels()
	require.Len(t, second, 1)
	addr, _ := p.Provenance(second[0])
	assert.Equal(t, uint64(0xb0), addr)
	assert.True(t, p.RegTaint(1).Empty())
	assert.True(t, p.RegTaint(2).Empty())
}

func TestDepthIsMinimumOverSources(t *testing.T) {
	p := NewPropagator(Options{})
	p.Propagate(load(0, 0xa0, []Reg{1}))
	l := p.RegTaint(1).Labels()[0]
	p.Propagate(move([]Reg{2}, 1))
	p.Propagate(move([]Reg{3}, 2))

	d, ok := p.Depth(3, l)
	require.True(t, ok)
	assert.Equal(t, uint8(2), d)

	p.Propagate(move([]Reg{4}, 3, 1))
	d, _ = p.Depth(4, l)
	assert.Equal(t, uint8(1), d)

	// register both source and destination
	p.Propagate(move([]Reg{4}, 4))
	d, _ = p.Depth(4, l)
	assert.Equal(t, uint8(2), d)

	// a new load resets the depth of its destination
	p.Propagate(load(0, 0xc0, []Reg{4}))
	d, ok = p.Depth(4, l)
	assert.True(t, ok)
	assert.Equal(t, uint8(0), d)

	_, ok = p.Depth(5, l)
	assert.False(t, ok)
}

func TestExposureOrderAndDeduplication(t *testing.T) {
	p := NewPropagator(Options{})
	r := record(p)
	p.Propagate(load(0, 0xa, []Reg{1}))
	p.Propagate(load(0, 0xb, []Reg{2}))
	p.Propagate(load(0, 0xc, []Reg{1, 2}))

	p.Propagate(store(0x50, 0xf0, nil, 1, 2, 2))
	require.Len(t, r.exposed, 3)
	for i := 1; i < len(r.exposed); i++ {
		assert.Less(t, r.exposed[i-1].Label, r.exposed[i].Label)
	}
	assert.Equal(t, uint64(3), p.Stats().Exposures)
	for _, e := range r.exposed {
		assert.Zero(t, p.Holders(e.Label))
	}
}

func TestBranchIsNoop(t *testing.T) {
	p := NewPropagator(Options{Memory: NewCache(16, 2)})
	r := record(p)
	p.Propagate(load(0, 0xa, []Reg{1}))
	p.Propagate(store(0, 0xb, []Reg{1}))

	regs, queue, addr := *p.regs, *p.queue, *p.address
	stats := p.Stats()
	p.Propagate(&Instr{Op: OpBranch, IP: 0x99, SrcReg: []Reg{1}, DstReg: []Reg{2}, MemReg: []Reg{1}, Address: 0xb})

	assert.Equal(t, regs, *p.regs)
	assert.Equal(t, queue, *p.queue)
	assert.Equal(t, addr, *p.address)
	assert.Empty(t, r.exposed)
	after := p.Stats()
	assert.Equal(t, stats.Instructions[OpBranch]+1, after.Instructions[OpBranch])
	after.Instructions[OpBranch]--
	assert.Equal(t, stats, after)
}

func TestHooksRunInRegistrationOrder(t *testing.T) {
	p := NewPropagator(Options{Labels: 1})
	var calls []string
	p.AddTaintExhaustedHook(TaintExhaustedFunc(func(Label) { calls = append(calls, "first") }))
	p.AddTaintExhaustedHook(TaintExhaustedFunc(func(Label) { calls = append(calls, "second") }))
	p.Propagate(load(0, 0xa, []Reg{1}))
	p.Propagate(load(0, 0xb, []Reg{2}))
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestReentrancyPanics(t *testing.T) {
	p := NewPropagator(Options{})
	p.AddSecretExposedHook(SecretExposedFunc(func(SecretExposed) {
		p.Propagate(&Instr{Op: OpBranch})
	}))
	p.Propagate(load(0, 0xa, []Reg{1}))
	assert.Panics(t, func() { p.Propagate(store(0, 0xb, nil, 1)) })

	// the guard is released after a panic
	assert.NotPanics(t, func() { p.Propagate(&Instr{Op: OpBranch}) })
}

func TestPreconditionPanics(t *testing.T) {
	p := NewPropagator(Options{Registers: 16})
	assert.Panics(t, func() { p.Propagate(load(0, 0, []Reg{16})) })
	assert.Panics(t, func() { p.Propagate(move([]Reg{1}, 20)) })
	assert.Panics(t, func() { p.Propagate(&Instr{Op: Opcode(9)}) })
	assert.Panics(t, func() { NewPropagator(Options{Labels: MaxLabels + 1}) })
}

func TestWatchMode(t *testing.T) {
	w := NewWatchSet()
	w.Watch(0x1000, 0x100)
	p := NewPropagator(Options{Watch: w, Memory: NewCache(64, 4)})
	r := record(p)

	p.Propagate(load(0, 0x2000, []Reg{1}))
	assert.True(t, p.RegTaint(1).Empty())
	assert.Zero(t, p.Stats().Allocations)

	p.Propagate(load(0, 0x1010, []Reg{2}))
	l := p.RegTaint(2).Labels()
	require.Len(t, l, 1)

	// the taint goes through memory and comes back on an unwatched load
	p.Propagate(store(0, 0x3000, []Reg{2}))
	p.Propagate(load(0, 0x3000, []Reg{3}))
	assert.Equal(t, Of(l[0]), p.RegTaint(3))
	d, ok := p.Depth(3, l[0])
	assert.True(t, ok)
	assert.Zero(t, d)

	// exposure clears the label from memory too
	p.Propagate(load(0, 0x4000, []Reg{4}, 3))
	require.Len(t, r.exposed, 1)
	assert.Zero(t, p.Holders(l[0]))
	s, _ := p.mem.Read(0x3000)
	assert.True(t, s.Empty())
}

func TestMemoryTaintKeepsLabelsAlive(t *testing.T) {
	p := NewPropagator(Options{Labels: 2, Memory: NewCache(16, 2)})
	r := record(p)
	p.Propagate(load(0, 0xa0, []Reg{1}))
	p.Propagate(store(0, 0x40, []Reg{1}))
	p.Propagate(move([]Reg{1}, 5)) // clears r1; the label survives in memory
	p.Propagate(load(0, 0xb0, []Reg{2}))
	assert.Empty(t, r.exhausted)
	p.Propagate(load(0, 0xc0, []Reg{3}))
	assert.Len(t, r.exhausted, 1)
}
