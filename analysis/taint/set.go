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
	"strings"
)

// MaxLabels is the number of distinct taint labels a Set can hold.
const MaxLabels = 128

const setWords = MaxLabels / 64

// Label identifies one taint label in [0, MaxLabels).
type Label uint8

func checkLabel(l Label) {
	if l >= MaxLabels {
		panic(fmt.Sprintf("taint: label %d out of range [0, %d)", l, MaxLabels))
	}
}

// Set is a set of labels. It is a value: all operations return a new Set and leave the receiver untouched.
type Set struct {
	w [setWords]uint64
}

// Of returns the set containing the labels ls.
func Of(ls ...Label) Set {
	var s Set
	for _, l := range ls {
		s = s.Add(l)
	}
	return s
}

// firstN returns the set {0, ..., n-1}.
func firstN(n int) Set {
	var s Set
	for i := 0; i < setWords; i++ {
		switch rem := n - 64*i; {
		case rem >= 64:
			s.w[i] = ^uint64(0)
		case rem > 0:
			s.w[i] = (uint64(1) << rem) - 1
		}
	}
	return s
}

// Add returns s with label l added.
func (s Set) Add(l Label) Set {
	checkLabel(l)
	s.w[l/64] |= 1 << (l % 64)
	return s
}

// Remove returns s with label l removed.
func (s Set) Remove(l Label) Set {
	checkLabel(l)
	s.w[l/64] &^= 1 << (l % 64)
	return s
}

// Test reports whether l is in s.
func (s Set) Test(l Label) bool {
	checkLabel(l)
	return s.w[l/64]&(1<<(l%64)) != 0
}

// Union returns the labels in s or in o.
func (s Set) Union(o Set) Set {
	for i := range s.w {
		s.w[i] |= o.w[i]
	}
	return s
}

// Intersect returns the labels in both s and o.
func (s Set) Intersect(o Set) Set {
	for i := range s.w {
		s.w[i] &= o.w[i]
	}
	return s
}

// Minus returns the labels in s that are not in o.
func (s Set) Minus(o Set) Set {
	for i := range s.w {
		s.w[i] &^= o.w[i]
	}
	return s
}

// Empty reports whether s has no labels.
func (s Set) Empty() bool {
	return s.w == [setWords]uint64{}
}

// Len returns the number of labels in s.
func (s Set) Len() int {
	n := 0
	for _, w := range s.w {
		n += bits.OnesCount64(w)
	}
	return n
}

// Iter returns an iterator over the labels of s in ascending order. The iterator works on a copy of s, and a new
// call to Iter restarts from label 0.
func (s Set) Iter() Iterator {
	return Iterator{rest: s}
}

// ForEach calls f on each label of s in ascending order.
func (s Set) ForEach(f func(Label)) {
	it := s.Iter()
	for l, ok := it.Next(); ok; l, ok = it.Next() {
		f(l)
	}
}

// Labels returns the labels of s in ascending order.
func (s Set) Labels() []Label {
	ls := make([]Label, 0, s.Len())
	s.ForEach(func(l Label) { ls = append(ls, l) })
	return ls
}

func (s Set) String() string {
	var b strings.Builder
	b.WriteByte('{')
	it := s.Iter()
	for l, ok := it.Next(); ok; l, ok = it.Next() {
		if b.Len() > 1 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d", l)
	}
	b.WriteByte('}')
	return b.String()
}

// Iterator walks the labels of a Set in ascending order.
type Iterator struct {
	rest Set
	word int
}

// Next returns the next label and true, or false when the set is exhausted.
func (it *Iterator) Next() (Label, bool) {
	for it.word < setWords {
		w := it.rest.w[it.word]
		if w == 0 {
			it.word++
			continue
		}
		b := bits.TrailingZeros64(w)
		it.rest.w[it.word] = w & (w - 1)
		return Label(it.word*64 + b), true
	}
	return 0, false
}
