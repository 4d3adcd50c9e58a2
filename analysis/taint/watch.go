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
	"sort"
)

// Range is the half-open address range [Start, End).
type Range struct {
	Start uint64
	End   uint64
}

// Contains reports whether addr is in r.
func (r Range) Contains(addr uint64) bool {
	return r.Start <= addr && addr < r.End
}

func (r Range) String() string {
	return fmt.Sprintf("[%#x, %#x)", r.Start, r.End)
}

// WatchSet is a set of watched address ranges. Ranges may overlap; an address is watched if any range contains it.
//
// Ranges are kept sorted by start address together with the running maximum of their end addresses, so that
// Contains is a binary search.
type WatchSet struct {
	ranges []Range
	maxEnd []uint64
}

// NewWatchSet returns a watch set containing rs.
func NewWatchSet(rs ...Range) *WatchSet {
	w := &WatchSet{}
	for _, r := range rs {
		w.add(r)
	}
	w.reindex()
	return w
}

// Watch adds the range [start, start+size). Empty ranges are ignored. The end of the range saturates at the top
// of the address space.
func (w *WatchSet) Watch(start, size uint64) {
	if size == 0 {
		return
	}
	end := start + size
	if end < start {
		end = ^uint64(0)
	}
	w.add(Range{Start: start, End: end})
	w.reindex()
}

// Unwatch removes every range starting at start, and reports whether one was found.
func (w *WatchSet) Unwatch(start uint64) bool {
	i := sort.Search(len(w.ranges), func(i int) bool { return w.ranges[i].Start >= start })
	j := i
	for j < len(w.ranges) && w.ranges[j].Start == start {
		j++
	}
	if i == j {
		return false
	}
	w.ranges = append(w.ranges[:i], w.ranges[j:]...)
	w.reindex()
	return true
}

// Contains reports whether addr is watched.
func (w *WatchSet) Contains(addr uint64) bool {
	// first range starting after addr; only ranges before it may contain addr
	i := sort.Search(len(w.ranges), func(i int) bool { return w.ranges[i].Start > addr })
	return i > 0 && w.maxEnd[i-1] > addr
}

// Len returns the number of ranges.
func (w *WatchSet) Len() int { return len(w.ranges) }

// Ranges returns a copy of the ranges, sorted by start address.
func (w *WatchSet) Ranges() []Range {
	return append([]Range(nil), w.ranges...)
}

func (w *WatchSet) add(r Range) {
	if r.End <= r.Start {
		return
	}
	i := sort.Search(len(w.ranges), func(i int) bool { return w.ranges[i].Start > r.Start })
	w.ranges = append(w.ranges, Range{})
	copy(w.ranges[i+1:], w.ranges[i:])
	w.ranges[i] = r
}

func (w *WatchSet) reindex() {
	w.maxEnd = w.maxEnd[:0]
	var m uint64
	for _, r := range w.ranges {
		if r.End > m {
			m = r.End
		}
		w.maxEnd = append(w.maxEnd, m)
	}
}
