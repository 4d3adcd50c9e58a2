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
	"fmt"
	"math/bits"
)

// WordBits is the number of low address bits ignored by an AddrMap: taint is tracked per 4-byte word.
const WordBits = 2

// AddrMap splits an address into a set index and a tag, like a hardware cache:
//
//	| tag (TagBits) | index (IndexBits) | word offset (WordBits) |
type AddrMap struct {
	IndexBits uint
	TagBits   uint
	idxMask   uint64
	tagMask   uint64
}

// NewAddrMap returns the map for a cache of sets sets. It panics unless sets is a power of two.
func NewAddrMap(sets int) AddrMap {
	if sets < 1 || sets&(sets-1) != 0 {
		panic(fmt.Sprintf("taint: number of cache sets %d is not a power of two", sets))
	}
	idx := uint(bits.Len(uint(sets)) - 1)
	return AddrMap{
		IndexBits: idx,
		TagBits:   64 - idx - WordBits,
		idxMask:   ((uint64(1) << idx) - 1) << WordBits,
		tagMask:   ^uint64(0) << (idx + WordBits),
	}
}

// Index returns the set index of addr.
func (m AddrMap) Index(addr uint64) uint64 {
	return (addr & m.idxMask) >> WordBits
}

// Tag returns the tag of addr.
func (m AddrMap) Tag(addr uint64) uint64 {
	return (addr & m.tagMask) >> (m.IndexBits + WordBits)
}

type cacheEntry struct {
	tag uint64
	set Set
}

type cacheSet struct {
	head    int
	entries []cacheEntry
}

// Cache is a set-associative table of taint sets keyed by memory address. Within a set, entries are replaced in
// round-robin order: a miss evicts the entry just before the head, which becomes the new head.
//
// Empty entries carry the tag of the all-ones address and an empty taint set.
type Cache struct {
	m     AddrMap
	ways  int
	sets  []cacheSet
	count [MaxLabels]int
	held  Set
}

// NewCache returns an empty cache with sets sets of ways entries each. sets must be a power of two.
func NewCache(sets, ways int) *Cache {
	if ways < 1 {
		panic(fmt.Sprintf("taint: cache associativity %d must be positive", ways))
	}
	m := NewAddrMap(sets)
	c := &Cache{m: m, ways: ways, sets: make([]cacheSet, sets)}
	empty := m.Tag(^uint64(0))
	for i := range c.sets {
		c.sets[i].entries = make([]cacheEntry, ways)
		for j := range c.sets[i].entries {
			c.sets[i].entries[j].tag = empty
		}
	}
	return c
}

// Map returns the address split used by c.
func (c *Cache) Map() AddrMap { return c.m }

// Read returns the taint set cached for addr, and whether addr was present.
func (c *Cache) Read(addr uint64) (Set, bool) {
	if e := c.lookup(addr); e != nil {
		return e.set, true
	}
	return Set{}, false
}

// Write stores s for addr, evicting an entry of the set on a miss.
func (c *Cache) Write(addr uint64, s Set) {
	e := c.lookup(addr)
	if e == nil {
		cs := &c.sets[c.m.Index(addr)]
		evict := (cs.head + c.ways - 1) % c.ways
		cs.head = evict
		e = &cs.entries[evict]
		c.drop(e.set)
		*e = cacheEntry{tag: c.m.Tag(addr)}
	}
	c.drop(e.set.Minus(s))
	s.Minus(e.set).ForEach(func(l Label) {
		c.count[l]++
		c.held.w[l/64] |= 1 << (l % 64)
	})
	e.set = s
}

// ClearLabel removes l from every entry.
func (c *Cache) ClearLabel(l Label) {
	checkLabel(l)
	if c.count[l] == 0 {
		return
	}
	for i := range c.sets {
		for j := range c.sets[i].entries {
			e := &c.sets[i].entries[j]
			e.set = e.set.Remove(l)
		}
	}
	c.count[l] = 0
	c.held = c.held.Remove(l)
}

// Count returns the number of entries holding l.
func (c *Cache) Count(l Label) int {
	checkLabel(l)
	return c.count[l]
}

// Held returns the labels held by at least one entry.
func (c *Cache) Held() Set { return c.held }

func (c *Cache) lookup(addr uint64) *cacheEntry {
	cs := &c.sets[c.m.Index(addr)]
	tag := c.m.Tag(addr)
	for i, it := 0, cs.head; i < c.ways; i, it = i+1, (it+1)%c.ways {
		if cs.entries[it].tag == tag {
			return &cs.entries[it]
		}
	}
	return nil
}

func (c *Cache) drop(s Set) {
	s.ForEach(func(l Label) {
		c.count[l]--
		if c.count[l] == 0 {
			c.held = c.held.Remove(l)
		}
	})
}
