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

const nilNode = -1

// Queue is a total order over the labels [0, n), from least recently used (LRU) to most recently used (MRU).
// It is an intrusive doubly linked list indexed by label, so that every operation is O(1).
//
// A new queue orders the labels 0, 1, ..., n-1: label 0 is the LRU and label n-1 the MRU.
type Queue struct {
	n    int
	prev [MaxLabels]int16
	next [MaxLabels]int16
	head int16 // LRU
	tail int16 // MRU
}

// NewQueue returns a queue over the labels [0, n). It panics if n is not in [1, MaxLabels].
func NewQueue(n int) *Queue {
	if n < 1 || n > MaxLabels {
		panic(fmt.Sprintf("taint: queue size %d out of range [1, %d]", n, MaxLabels))
	}
	q := &Queue{n: n, head: 0, tail: int16(n - 1)}
	for i := 0; i < n; i++ {
		q.prev[i] = int16(i - 1)
		q.next[i] = int16(i + 1)
	}
	q.next[n-1] = nilNode
	return q
}

// Len returns the number of labels in the queue.
func (q *Queue) Len() int { return q.n }

// LRU returns the least recently used label.
func (q *Queue) LRU() Label { return Label(q.head) }

// MRU returns the most recently used label.
func (q *Queue) MRU() Label { return Label(q.tail) }

// MakeMRU moves l to the MRU end. The relative order of the other labels does not change, so calling MakeMRU on
// the current MRU label is a no-op.
func (q *Queue) MakeMRU(l Label) {
	q.check(l)
	t := int16(l)
	if t == q.tail {
		return
	}
	// unlink; t is not the tail so next[t] is valid
	if p := q.prev[t]; p != nilNode {
		q.next[p] = q.next[t]
	} else {
		q.head = q.next[t]
	}
	q.prev[q.next[t]] = q.prev[t]

	q.prev[t] = q.tail
	q.next[t] = nilNode
	q.next[q.tail] = t
	q.tail = t
}

// walkFromMRU calls f on labels from MRU to LRU until f returns false.
func (q *Queue) walkFromMRU(f func(Label) bool) {
	for t := q.tail; t != nilNode; t = q.prev[t] {
		if !f(Label(t)) {
			return
		}
	}
}

// Order returns the labels from LRU to MRU.
func (q *Queue) Order() []Label {
	ls := make([]Label, 0, q.n)
	for t := q.head; t != nilNode; t = q.next[t] {
		ls = append(ls, Label(t))
	}
	return ls
}

func (q *Queue) check(l Label) {
	if int(l) >= q.n {
		panic(fmt.Sprintf("taint: label %d out of range [0, %d)", l, q.n))
	}
}
