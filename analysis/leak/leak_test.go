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

package leak

import (
	"testing"

	"github.com/clueless-dift/clueless/analysis/taint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	p *taint.Propagator
	c *Counter
	i uint64
}

func newHarness(labels int) *harness {
	p := taint.NewPropagator(taint.Options{Labels: labels})
	c := NewCounter()
	p.AddSecretExposedHook(c)
	p.AddTaintExhaustedHook(c)
	return &harness{p: p, c: c}
}

func (h *harness) run(ins ...*taint.Instr) {
	for _, in := range ins {
		h.p.Propagate(in)
		h.c.OnInstr(h.i, in)
		h.i++
	}
}

func load(addr uint64, dst taint.Reg, mem ...taint.Reg) *taint.Instr {
	return &taint.Instr{Op: taint.OpLoad, Address: addr, DstReg: []taint.Reg{dst}, MemReg: mem}
}

func store(addr uint64, src taint.Reg, mem ...taint.Reg) *taint.Instr {
	return &taint.Instr{Op: taint.OpStore, Address: addr, SrcReg: []taint.Reg{src}, MemReg: mem}
}

func TestCounterVersions(t *testing.T) {
	h := newHarness(taint.MaxLabels)

	h.run(load(0x1000, 1), load(0x2000, 2, 1))
	assert.Equal(t, uint64(1), h.c.Leaked())
	v, ok := h.c.Version(0x1000)
	require.True(t, ok)
	assert.Equal(t, Version{N: 1, Valid: true}, v)

	// overwriting the secret starts a new version that has not leaked yet
	h.run(store(0x1000, 3))
	v, _ = h.c.Version(0x1000)
	assert.Equal(t, Version{N: 2, Valid: false}, v)
	assert.Equal(t, uint64(1), h.c.Leaked())

	// a second store does not create another version
	h.run(store(0x1000, 3))
	v, _ = h.c.Version(0x1000)
	assert.Equal(t, uint64(2), v.N)

	h.run(load(0x1000, 1), load(0x3000, 2, 1))
	assert.Equal(t, uint64(2), h.c.Leaked())

	// the same version leaking again is not counted twice
	h.run(load(0x1000, 1), load(0x3000, 2, 1))
	assert.Equal(t, uint64(2), h.c.Leaked())

	_, ok = h.c.Version(0x2000)
	assert.False(t, ok, "transmit addresses are not secrets")
}

func TestCounterTouched(t *testing.T) {
	h := newHarness(taint.MaxLabels)
	h.run(
		load(0x1000, 1),
		load(0x1000, 2),
		store(0x2000, 1),
		&taint.Instr{Op: taint.OpReg, SrcReg: []taint.Reg{1}, DstReg: []taint.Reg{3}},
		&taint.Instr{Op: taint.OpBranch},
	)
	assert.Equal(t, 2, h.c.Touched())
}

func TestCounterExhausted(t *testing.T) {
	h := newHarness(2)
	h.run(load(0x10, 1), load(0x20, 2), load(0x30, 3), load(0x40, 4))
	assert.Equal(t, uint64(2), h.c.Exhausted())

	snap := h.c.Snapshot(h.i)
	assert.Equal(t, Snapshot{Instructions: 4, Leaked: 0, Touched: 4, Exhausted: 2}, snap)
}

func TestCounterHot(t *testing.T) {
	c := NewCounter()
	for _, addr := range []uint64{0x30, 0x10, 0x20} {
		c.OnSecretExposed(taint.SecretExposed{SecretAddress: addr})
	}
	// three more versions of 0x30, one more of 0x10
	for i := 0; i < 3; i++ {
		c.OnInstr(0, store(0x30, 1))
		c.OnSecretExposed(taint.SecretExposed{SecretAddress: 0x30})
	}
	c.OnInstr(0, store(0x10, 1))

	assert.Equal(t, []uint64{0x10, 0x30}, c.Hot(1))
	assert.Equal(t, []uint64{0x30}, c.Hot(2))
	assert.Empty(t, c.Hot(4))
	// 0x30: 4 valid versions, 0x10: 2 versions, the last one not leaked, 0x20: 1
	assert.Equal(t, uint64(6), c.Leaked())
}
