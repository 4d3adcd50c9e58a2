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

// Package chains builds the graph of pointer chains of a trace: there is an edge from a secret address to a transmit
// address every time the value loaded from the secret address is used to compute the transmit address.
//
// Linked data structures show up as long chains (a list traversal) or cycles (a circular list, a pointer to itself).
package chains

import (
	"github.com/clueless-dift/clueless/analysis/taint"
	"github.com/clueless-dift/clueless/internal/funcutil"
	"github.com/clueless-dift/clueless/internal/graphutil"
	"github.com/yourbasic/graph"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph/topo"
)

// Graph implements taint.SecretExposedHook.
type Graph struct {
	g         *graphutil.Graph[uint64]
	exposures uint64
}

// Stats summarizes a graph.
type Stats struct {
	Exposures uint64

	// Addresses is the number of distinct secret and transmit addresses
	Addresses int

	// Edges is the number of distinct (secret, transmit) pairs
	Edges int

	// SelfLoops is the number of addresses computed from their own content
	SelfLoops int

	// Components is the number of strongly connected components on a cycle, and LargestComponent the size of the
	// largest one
	Components       int
	LargestComponent int

	// LongestChain is the number of addresses of the longest chain
	LongestChain int
}

// Edge is the exposure of a secret address into a transmit address, Count times.
type Edge struct {
	Secret   uint64
	Transmit uint64
	Count    int64
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{g: graphutil.NewGraph[uint64]()}
}

// OnSecretExposed adds an edge from the secret address to the transmit address.
func (c *Graph) OnSecretExposed(e taint.SecretExposed) {
	c.exposures++
	c.g.AddEdge(e.SecretAddress, e.TransmitAddress)
}

// Weight returns the number of exposures of secret into transmit.
func (c *Graph) Weight(secret, transmit uint64) int64 {
	v, ok := c.g.Vertex(secret)
	w, ok2 := c.g.Vertex(transmit)
	if !ok || !ok2 {
		return 0
	}
	return c.g.Weight(v, w)
}

// Edges returns the edges of the graph, ordered by the first appearance of their secret address, then of their
// transmit address.
func (c *Graph) Edges() []Edge {
	edges := make([]Edge, 0, c.g.Size())
	for v := 0; v < c.g.Order(); v++ {
		for _, w := range c.g.Successors(v) {
			edges = append(edges, Edge{Secret: c.g.Label(v), Transmit: c.g.Label(w), Count: c.g.Weight(v, w)})
		}
	}
	return edges
}

// Reaches returns true if transmit is computed, through a chain of any length, from the content of secret.
func (c *Graph) Reaches(secret, transmit uint64) bool {
	v, ok := c.g.Vertex(secret)
	w, ok2 := c.g.Vertex(transmit)
	if !ok || !ok2 {
		return false
	}
	return topo.PathExistsIn(c.g, c.g.Node(int64(v)), c.g.Node(int64(w)))
}

// Components returns the strongly connected components that contain a cycle. Addresses are sorted within a
// component, and components by their smallest address.
func (c *Graph) Components() [][]uint64 {
	var comps [][]uint64
	for _, scc := range c.sccs() {
		if len(scc) == 1 && !c.g.HasEdgeFromTo(int64(scc[0]), int64(scc[0])) {
			continue
		}
		comps = append(comps, c.labels(scc))
	}
	slices.SortFunc(comps, func(a, b []uint64) bool { return a[0] < b[0] })
	return comps
}

// LongestChain returns the longest chain of the graph, with every component on a cycle collapsed into its smallest
// address. Among chains of the same length, the one starting at the smallest address is returned.
func (c *Graph) LongestChain() []uint64 {
	sccs := c.sccs()
	comp := make([]int, c.g.Order())
	reps := make([]uint64, len(sccs))
	for i, scc := range sccs {
		for _, v := range scc {
			comp[v] = i
		}
		reps[i] = funcutil.Min(c.labels(scc))
	}

	// successors appear before their predecessors in sccs
	length := make([]int, len(sccs))
	next := make([]int, len(sccs))
	for i, scc := range sccs {
		length[i] = 1
		next[i] = -1
		for _, v := range scc {
			for _, w := range c.g.Successors(v) {
				j := comp[w]
				if j == i {
					continue
				}
				if length[j]+1 > length[i] || (length[j]+1 == length[i] && reps[j] < reps[next[i]]) {
					length[i] = length[j] + 1
					next[i] = j
				}
			}
		}
	}

	start := -1
	for i := range sccs {
		if start < 0 || length[i] > length[start] || (length[i] == length[start] && reps[i] < reps[start]) {
			start = i
		}
	}
	var chain []uint64
	for i := start; i >= 0; i = next[i] {
		chain = append(chain, reps[i])
	}
	return chain
}

// Cycles returns at most limit elementary cycles, or all of them if limit is 0. A cycle starts at the address
// first seen in the trace.
func (c *Graph) Cycles(limit int) [][]uint64 {
	return funcutil.Map(graphutil.FindAllElementaryCycles(c.g, limit), func(cycle []int) []uint64 {
		return funcutil.Map(cycle, c.g.Label)
	})
}

// Stats returns the statistics of the graph.
func (c *Graph) Stats() Stats {
	s := Stats{
		Exposures: c.exposures,
		Addresses: c.g.Order(),
		Edges:     c.g.Size(),
		SelfLoops: graph.Check(c.g).Loops,
	}
	for _, comp := range c.Components() {
		s.Components++
		if len(comp) > s.LargestComponent {
			s.LargestComponent = len(comp)
		}
	}
	s.LongestChain = len(c.LongestChain())
	return s
}

func (c *Graph) sccs() [][]int {
	vertices := make([]int, c.g.Order())
	for i := range vertices {
		vertices[i] = i
	}
	return graphutil.StronglyConnectedComponents(vertices, c.g.Successors)
}

func (c *Graph) labels(vertices []int) []uint64 {
	addrs := funcutil.Map(vertices, c.g.Label)
	slices.Sort(addrs)
	return addrs
}
