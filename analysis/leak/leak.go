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

// Package leak counts the secret values leaking as addresses in a trace.
//
// A secret address leaks when the value loaded from it is used to compute an address. Every store to a leaked
// address overwrites the secret, so the counter keeps a version per address: a leaked address that is overwritten
// and leaks again counts twice.
package leak

import (
	"github.com/clueless-dift/clueless/analysis/taint"
	"github.com/hashicorp/go-set"
	"golang.org/x/exp/slices"
)

// Version is the leak state of a secret address. N is the number of versions of the value at the address, and Valid
// is true when the current version has leaked.
type Version struct {
	N     uint64
	Valid bool
}

// leaked returns the number of leaked versions
func (v Version) leaked() uint64 {
	if v.Valid {
		return v.N
	}
	return v.N - 1
}

// Counter is notified of exposures, exhaustions and instructions. It implements taint.SecretExposedHook,
// taint.TaintExhaustedHook and the session's Observer interface.
type Counter struct {
	versions  map[uint64]*Version
	touched   *set.Set[uint64]
	exhausted uint64
}

// Snapshot is the state of a counter after some instructions.
type Snapshot struct {
	Instructions uint64
	Leaked       uint64
	Touched      int
	Exhausted    uint64
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{
		versions: map[uint64]*Version{},
		touched:  set.New[uint64](0),
	}
}

// OnSecretExposed marks the current version of the secret address as leaked.
func (c *Counter) OnSecretExposed(e taint.SecretExposed) {
	if v, ok := c.versions[e.SecretAddress]; ok {
		v.Valid = true
		return
	}
	c.versions[e.SecretAddress] = &Version{N: 1, Valid: true}
}

// OnTaintExhausted counts the exhaustion.
func (c *Counter) OnTaintExhausted(taint.Label) {
	c.exhausted++
}

// OnInstr records the address of memory accesses. A store to a leaked address starts a new version.
func (c *Counter) OnInstr(_ uint64, ins *taint.Instr) {
	switch ins.Op {
	case taint.OpStore:
		if v, ok := c.versions[ins.Address]; ok && v.Valid {
			v.N++
			v.Valid = false
		}
		c.touched.Insert(ins.Address)
	case taint.OpLoad:
		c.touched.Insert(ins.Address)
	}
}

// Leaked returns the number of leaked versions over all addresses.
func (c *Counter) Leaked() uint64 {
	var n uint64
	for _, v := range c.versions {
		n += v.leaked()
	}
	return n
}

// Touched returns the number of distinct addresses loaded from or stored to.
func (c *Counter) Touched() int {
	return c.touched.Size()
}

// Exhausted returns the number of taint exhaustions.
func (c *Counter) Exhausted() uint64 {
	return c.exhausted
}

// Version returns the version of addr, and false if addr never leaked.
func (c *Counter) Version(addr uint64) (Version, bool) {
	v, ok := c.versions[addr]
	if !ok {
		return Version{}, false
	}
	return *v, true
}

// Hot returns the addresses with more than threshold versions, in increasing order.
func (c *Counter) Hot(threshold uint64) []uint64 {
	var hot []uint64
	for addr, v := range c.versions {
		if v.N > threshold {
			hot = append(hot, addr)
		}
	}
	slices.Sort(hot)
	return hot
}

// Snapshot returns the current state of the counter, labelled with the instruction count i.
func (c *Counter) Snapshot(i uint64) Snapshot {
	return Snapshot{
		Instructions: i,
		Leaked:       c.Leaked(),
		Touched:      c.Touched(),
		Exhausted:    c.exhausted,
	}
}
