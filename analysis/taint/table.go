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

// MaxRegisters is the number of register slots of a RegTable. General-purpose and vector registers are mapped
// into this dense id space by the decoder; the instruction pointer and flags are never tracked.
const MaxRegisters = 256

// Reg is a normalized register id.
type Reg uint8

// RegTable maps every register to its taint set.
//
// The table also counts, for each label, how many registers hold it. The counts are updated incrementally on every
// write so that Count is O(1); RemoveAll only scans the registers when the label is actually held.
type RegTable struct {
	n     int
	sets  [MaxRegisters]Set
	count [MaxLabels]uint16
	held  Set
}

// NewRegTable returns an empty table with n register slots. It panics if n is not in [1, MaxRegisters].
func NewRegTable(n int) *RegTable {
	if n < 1 || n > MaxRegisters {
		panic(fmt.Sprintf("taint: register count %d out of range [1, %d]", n, MaxRegisters))
	}
	return &RegTable{n: n}
}

// Len returns the number of register slots.
func (t *RegTable) Len() int { return t.n }

// Read returns the taint set of register r.
func (t *RegTable) Read(r Reg) Set {
	t.check(r)
	return t.sets[r]
}

// Write replaces the taint set of register r with s.
func (t *RegTable) Write(r Reg, s Set) {
	t.check(r)
	old := t.sets[r]
	if old == s {
		return
	}
	s.Minus(old).ForEach(func(l Label) {
		t.count[l]++
		t.held.w[l/64] |= 1 << (l % 64)
	})
	old.Minus(s).ForEach(t.release)
	t.sets[r] = s
}

// Add adds label l to the taint set of register r.
func (t *RegTable) Add(r Reg, l Label) {
	t.Write(r, t.Read(r).Add(l))
}

// RemoveAll removes label l from every register.
func (t *RegTable) RemoveAll(l Label) {
	checkLabel(l)
	if t.count[l] == 0 {
		return
	}
	for r := 0; r < t.n; r++ {
		t.sets[r] = t.sets[r].Remove(l)
	}
	t.count[l] = 0
	t.held = t.held.Remove(l)
}

// Count returns the number of registers holding label l.
func (t *RegTable) Count(l Label) int {
	checkLabel(l)
	return int(t.count[l])
}

// Held returns the labels held by at least one register.
func (t *RegTable) Held() Set { return t.held }

func (t *RegTable) release(l Label) {
	t.count[l]--
	if t.count[l] == 0 {
		t.held = t.held.Remove(l)
	}
}

func (t *RegTable) check(r Reg) {
	if int(r) >= t.n {
		panic(fmt.Sprintf("taint: register %d out of range [0, %d)", r, t.n))
	}
}

// AddressTable maps a label to a 64-bit value: the address or the instruction pointer of the load that allocated
// the label. Entries are overwritten when the label is reallocated, and stale until then.
type AddressTable struct {
	n int
	v [MaxLabels]uint64
}

// NewAddressTable returns a table for the labels [0, n).
func NewAddressTable(n int) *AddressTable {
	if n < 1 || n > MaxLabels {
		panic(fmt.Sprintf("taint: label count %d out of range [1, %d]", n, MaxLabels))
	}
	return &AddressTable{n: n}
}

// Get returns the value recorded for label l.
func (a *AddressTable) Get(l Label) uint64 {
	a.check(l)
	return a.v[l]
}

// Put records v for label l.
func (a *AddressTable) Put(l Label, v uint64) {
	a.check(l)
	a.v[l] = v
}

func (a *AddressTable) check(l Label) {
	if int(l) >= a.n {
		panic(fmt.Sprintf("taint: label %d out of range [0, %d)", l, a.n))
	}
}
