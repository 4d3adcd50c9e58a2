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

package graphutil

import (
	"github.com/yourbasic/graph"
	"golang.org/x/exp/slices"
)

// FindAllElementaryCycles returns the elementary cycles of g, using Johnson's algorithm. A cycle is returned as the
// list of its vertices, starting with its smallest vertex; a self loop is a cycle of one vertex.
// The search stops after limit cycles have been found, unless limit is 0 or less.
func FindAllElementaryCycles(g graph.Iterator, limit int) [][]int {
	n := g.Order()
	s := &state{
		g:       g,
		limit:   limit,
		blocked: make([]bool, n),
		blist:   make([]map[int]bool, n),
	}
	for start := 0; start < n && !s.full(); start++ {
		comp := componentOf(above{g, start}, start)
		if comp == nil {
			continue
		}
		for v := range comp {
			s.blocked[v] = false
			s.blist[v] = nil
		}
		s.start = start
		s.comp = comp
		s.circuit(start)
	}
	return s.cycles
}

// above is the subgraph of g induced by the vertices greater than or equal to min
type above struct {
	g   graph.Iterator
	min int
}

func (a above) Order() int { return a.g.Order() }

func (a above) Visit(v int, do func(w int, c int64) bool) bool {
	if v < a.min {
		return false
	}
	return a.g.Visit(v, func(w int, c int64) bool {
		return w >= a.min && do(w, c)
	})
}

// componentOf returns the strongly connected component of v, or nil if v is on no cycle
func componentOf(g graph.Iterator, v int) map[int]bool {
	for _, c := range graph.StrongComponents(g) {
		if !slices.Contains(c, v) {
			continue
		}
		if len(c) == 1 && !hasSelfLoop(g, v) {
			return nil
		}
		comp := make(map[int]bool, len(c))
		for _, w := range c {
			comp[w] = true
		}
		return comp
	}
	return nil
}

func hasSelfLoop(g graph.Iterator, v int) bool {
	return g.Visit(v, func(w int, _ int64) bool { return w == v })
}

type state struct {
	g       graph.Iterator
	limit   int
	start   int
	comp    map[int]bool
	blocked []bool
	blist   []map[int]bool
	stack   []int
	cycles  [][]int
}

func (s *state) full() bool {
	return s.limit > 0 && len(s.cycles) >= s.limit
}

func (s *state) unblock(u int) {
	s.blocked[u] = false
	for w := range s.blist[u] {
		delete(s.blist[u], w)
		if s.blocked[w] {
			s.unblock(w)
		}
	}
}

func (s *state) circuit(v int) bool {
	found := false
	s.stack = append(s.stack, v)
	s.blocked[v] = true
	s.g.Visit(v, func(w int, _ int64) bool {
		if !s.comp[w] {
			return false
		}
		if w == s.start {
			s.cycles = append(s.cycles, slices.Clone(s.stack))
			found = true
		} else if !s.blocked[w] && s.circuit(w) {
			found = true
		}
		return s.full()
	})

	if found {
		s.unblock(v)
	} else {
		s.g.Visit(v, func(w int, _ int64) bool {
			if s.comp[w] {
				if s.blist[w] == nil {
					s.blist[w] = map[int]bool{}
				}
				s.blist[w][v] = true
			}
			return false
		})
	}
	s.stack = s.stack[:len(s.stack)-1]
	return found
}
