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

import "fmt"

// maxDepth is the saturation value of propagation depths.
const maxDepth = ^uint8(0)

// Options are the construction-time parameters of a Propagator. The zero value is the default configuration:
// MaxLabels labels, MaxRegisters registers, no watch set and no memory taint.
type Options struct {
	// Labels is the number of taint labels in [1, MaxLabels]. Zero means MaxLabels.
	Labels int

	// Registers is the number of register slots in [1, MaxRegisters]. Zero means MaxRegisters.
	Registers int

	// Watch enables watch mode when non-nil: only loads from watched addresses allocate labels.
	Watch *WatchSet

	// Memory enables memory taint tracking when non-nil: stores write the taint of the stored registers to the
	// cache and, in watch mode, unwatched loads read it back.
	Memory *Cache
}

// Stats are the counters of a Propagator.
type Stats struct {
	// Instructions counts the propagated instructions per opcode.
	Instructions [numOpcodes]uint64

	Allocations uint64
	Exhaustions uint64
	Exposures   uint64
	Frees       uint64
}

// Total returns the total number of propagated instructions.
func (s Stats) Total() uint64 {
	var n uint64
	for _, c := range s.Instructions {
		n += c
	}
	return n
}

// Of returns the number of propagated instructions with opcode op.
func (s Stats) Of(op Opcode) uint64 {
	if op >= numOpcodes {
		return 0
	}
	return s.Instructions[op]
}

// A Propagator tracks taint labels through registers (and optionally memory) as instructions are propagated
// one at a time, and reports secret exposures and label exhaustion to its hooks.
//
// A Propagator is not safe for concurrent use. Hooks are called synchronously from Propagate and must not call
// Propagate themselves.
type Propagator struct {
	nlabels int
	all     Set

	regs    *RegTable
	queue   *Queue
	address *AddressTable
	ip      *AddressTable

	// depth[r][t] is the number of register-to-register steps from the load that allocated t to register r.
	// Only meaningful while r holds t.
	depth [MaxRegisters][MaxLabels]uint8

	watch *WatchSet
	mem   *Cache

	exposedHooks   []SecretExposedHook
	exhaustedHooks []TaintExhaustedHook

	busy  bool
	stats Stats

	// scratch buffers reused across calls
	exposed []SecretExposed
	nextLvl [MaxLabels]uint8
}

// NewPropagator returns a propagator with empty tables. It panics if the capacities in opts are out of range.
func NewPropagator(opts Options) *Propagator {
	nl := opts.Labels
	if nl == 0 {
		nl = MaxLabels
	}
	nr := opts.Registers
	if nr == 0 {
		nr = MaxRegisters
	}
	return &Propagator{
		nlabels: nl,
		all:     firstN(nl),
		regs:    NewRegTable(nr),
		queue:   NewQueue(nl),
		address: NewAddressTable(nl),
		ip:      NewAddressTable(nl),
		watch:   opts.Watch,
		mem:     opts.Memory,
	}
}

// AddSecretExposedHook registers h. Hooks are called in registration order.
func (p *Propagator) AddSecretExposedHook(h SecretExposedHook) {
	p.exposedHooks = append(p.exposedHooks, h)
}

// AddTaintExhaustedHook registers h. Hooks are called in registration order.
func (p *Propagator) AddTaintExhaustedHook(h TaintExhaustedHook) {
	p.exhaustedHooks = append(p.exhaustedHooks, h)
}

// Propagate applies the propagation rule of ins. It panics if ins names a register outside the register table,
// or if it is called from a hook.
func (p *Propagator) Propagate(ins *Instr) {
	if p.busy {
		panic("taint: Propagate called from a hook")
	}
	p.busy = true
	defer func() { p.busy = false }()

	switch ins.Op {
	case OpReg:
		p.regToReg(ins)
	case OpLoad:
		p.memToReg(ins)
	case OpStore:
		p.regToMem(ins)
	case OpBranch:
	default:
		panic(fmt.Sprintf("taint: unknown opcode %d", ins.Op))
	}
	p.stats.Instructions[ins.Op]++
}

// Stats returns a snapshot of the counters.
func (p *Propagator) Stats() Stats { return p.stats }

// Labels returns the number of taint labels.
func (p *Propagator) Labels() int { return p.nlabels }

// RegTaint returns the taint set of register r.
func (p *Propagator) RegTaint(r Reg) Set { return p.regs.Read(r) }

// Provenance returns the address and instruction pointer of the load that last allocated l.
func (p *Propagator) Provenance(l Label) (address, ip uint64) {
	return p.address.Get(l), p.ip.Get(l)
}

// Depth returns the propagation depth of label l in register r, and whether r holds l.
func (p *Propagator) Depth(r Reg, l Label) (uint8, bool) {
	if !p.regs.Read(r).Test(l) {
		return 0, false
	}
	return p.depth[r][l], true
}

// Holders returns the number of registers and memory entries holding l.
func (p *Propagator) Holders(l Label) int {
	n := p.regs.Count(l)
	if p.mem != nil {
		n += p.mem.Count(l)
	}
	return n
}

// regToReg replaces the taint of every destination with the union of the sources.
func (p *Propagator) regToReg(ins *Instr) {
	if len(ins.SrcReg) == 0 || len(ins.DstReg) == 0 {
		return
	}
	ts := p.union(ins.SrcReg)

	// depths are computed before any destination is written, since a register may be both source and destination
	ts.ForEach(func(t Label) {
		lvl := maxDepth
		for _, r := range ins.SrcReg {
			if p.regs.Read(r).Test(t) && p.depth[r][t] < lvl {
				lvl = p.depth[r][t]
			}
		}
		if lvl < maxDepth {
			lvl++
		}
		p.nextLvl[t] = lvl
	})

	for _, r := range ins.DstReg {
		p.regs.Write(r, ts)
		ts.ForEach(func(t Label) { p.depth[r][t] = p.nextLvl[t] })
	}
}

// memToReg allocates a label for the loaded value and adds it to every destination.
func (p *Propagator) memToReg(ins *Instr) {
	p.handleMemTaint(ins)

	if len(ins.DstReg) == 0 {
		return
	}
	for _, r := range ins.DstReg {
		p.regs.check(r)
	}

	if p.watch != nil && !p.watch.Contains(ins.Address) {
		p.loadMemoryTaint(ins)
		return
	}

	t := p.allocTaint()
	for _, r := range ins.DstReg {
		p.regs.Add(r, t)
		p.depth[r] = [MaxLabels]uint8{}
	}
	p.address.Put(t, ins.Address)
	p.ip.Put(t, ins.IP)
}

// loadMemoryTaint adds the cached taint of the loaded address to every destination.
func (p *Propagator) loadMemoryTaint(ins *Instr) {
	if p.mem == nil {
		return
	}
	s, ok := p.mem.Read(ins.Address)
	if !ok || s.Empty() {
		return
	}
	for _, r := range ins.DstReg {
		gained := s.Minus(p.regs.Read(r))
		p.regs.Write(r, p.regs.Read(r).Union(s))
		gained.ForEach(func(t Label) { p.depth[r][t] = 0 })
	}
}

// regToMem never allocates. With memory taint on, the stored address takes the taint of the source registers.
func (p *Propagator) regToMem(ins *Instr) {
	p.handleMemTaint(ins)

	if p.mem == nil {
		return
	}
	ts := p.union(ins.SrcReg)
	if _, ok := p.mem.Read(ins.Address); ok || !ts.Empty() {
		p.mem.Write(ins.Address, ts)
	}
}

// handleMemTaint reports every label held by an address-forming register as exposed, then frees those labels.
func (p *Propagator) handleMemTaint(ins *Instr) {
	if len(ins.MemReg) == 0 {
		return
	}
	exposed := p.union(ins.MemReg)
	if exposed.Empty() {
		return
	}

	p.exposed = p.exposed[:0]
	exposed.ForEach(func(t Label) {
		lvl := maxDepth
		for _, r := range ins.MemReg {
			if p.regs.Read(r).Test(t) && p.depth[r][t] < lvl {
				lvl = p.depth[r][t]
			}
		}
		p.exposed = append(p.exposed, SecretExposed{
			Label:           t,
			SecretAddress:   p.address.Get(t),
			AccessIP:        p.ip.Get(t),
			TransmitAddress: ins.Address,
			TransmitIP:      ins.IP,
			Depth:           lvl,
			Indirect:        lvl > 0,
		})
	})

	for _, e := range p.exposed {
		p.stats.Exposures++
		for _, h := range p.exposedHooks {
			h.OnSecretExposed(e)
		}
	}
	exposed.ForEach(p.free)
}

// allocTaint returns the most recently used label with no holder, or evicts the least recently used label when
// every label is held. The returned label is made MRU.
func (p *Propagator) allocTaint() Label {
	held := p.regs.Held()
	if p.mem != nil {
		held = held.Union(p.mem.Held())
	}

	var t Label
	if p.all.Minus(held).Empty() {
		t = p.queue.LRU()
		p.free(t)
		p.stats.Exhaustions++
		for _, h := range p.exhaustedHooks {
			h.OnTaintExhausted(t)
		}
	} else {
		p.queue.walkFromMRU(func(l Label) bool {
			if held.Test(l) {
				return true
			}
			t = l
			return false
		})
	}

	p.queue.MakeMRU(t)
	p.stats.Allocations++
	return t
}

// free removes t from every register and memory entry.
func (p *Propagator) free(t Label) {
	p.regs.RemoveAll(t)
	if p.mem != nil {
		p.mem.ClearLabel(t)
	}
	p.stats.Frees++
}

func (p *Propagator) union(regs []Reg) Set {
	var s Set
	for _, r := range regs {
		s = s.Union(p.regs.Read(r))
	}
	return s
}
