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
	"sort"

	"gonum.org/v1/gonum/graph"
)

// Graph is a directed multigraph over values of type T. Vertices are numbered 0..Order()-1 in insertion order, and
// parallel edges are counted.
//
// A *Graph implements the Iterator interface of github.com/yourbasic/graph, where the cost of an edge is the number
// of times it was added, and the graph.Directed interface of gonum, where node ids are vertex numbers.
type Graph[T comparable] struct {
	// vertex maps from labels to vertex numbers
	vertex map[T]int

	// labels maps from vertex numbers to labels
	labels []T

	// out[v][w] is the number of edges from v to w
	out []map[int]int64

	// in[w] is the set of predecessors of w
	in []map[int]bool

	size int
}

// NewGraph returns an empty graph.
func NewGraph[T comparable]() *Graph[T] {
	return &Graph[T]{vertex: map[T]int{}}
}

// AddVertex returns the vertex of x, adding it if necessary.
func (g *Graph[T]) AddVertex(x T) int {
	if v, ok := g.vertex[x]; ok {
		return v
	}
	v := len(g.labels)
	g.vertex[x] = v
	g.labels = append(g.labels, x)
	g.out = append(g.out, map[int]int64{})
	g.in = append(g.in, map[int]bool{})
	return v
}

// AddEdge adds an edge from x to y and returns the number of edges from x to y.
func (g *Graph[T]) AddEdge(x, y T) int64 {
	v, w := g.AddVertex(x), g.AddVertex(y)
	if g.out[v][w] == 0 {
		g.size++
	}
	g.out[v][w]++
	g.in[w][v] = true
	return g.out[v][w]
}

// Vertex returns the vertex of x, and false if x is not in the graph.
func (g *Graph[T]) Vertex(x T) (int, bool) {
	v, ok := g.vertex[x]
	return v, ok
}

// Label returns the value of vertex v.
func (g *Graph[T]) Label(v int) T {
	return g.labels[v]
}

// Size returns the number of distinct edges.
func (g *Graph[T]) Size() int {
	return g.size
}

// Weight returns the number of edges from v to w.
func (g *Graph[T]) Weight(v, w int) int64 {
	if v < 0 || v >= len(g.out) {
		return 0
	}
	return g.out[v][w]
}

// Successors returns the successors of v in increasing order.
func (g *Graph[T]) Successors(v int) []int {
	return sortedKeys(g.out[v])
}

// Order returns the number of vertices.
func (g *Graph[T]) Order() int {
	return len(g.labels)
}

// Visit calls do for every successor of v, in increasing order, until do returns true.
func (g *Graph[T]) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if v < 0 || v >= len(g.out) {
		return false
	}
	for _, w := range sortedKeys(g.out[v]) {
		if do(w, g.out[v][w]) {
			return true
		}
	}
	return false
}

// Node returns the node with vertex number id, or nil.
func (g *Graph[T]) Node(id int64) graph.Node {
	if id < 0 || id >= int64(len(g.labels)) {
		return nil
	}
	return Node(id)
}

// Nodes returns all the nodes of the graph.
func (g *Graph[T]) Nodes() graph.Nodes {
	ids := make([]int, len(g.labels))
	for i := range ids {
		ids[i] = i
	}
	return newNodeSet(ids)
}

// From returns the successors of id.
func (g *Graph[T]) From(id int64) graph.Nodes {
	if g.Node(id) == nil {
		return newNodeSet(nil)
	}
	return newNodeSet(sortedKeys(g.out[id]))
}

// To returns the predecessors of id.
func (g *Graph[T]) To(id int64) graph.Nodes {
	if g.Node(id) == nil {
		return newNodeSet(nil)
	}
	return newNodeSet(sortedKeys(g.in[id]))
}

// HasEdgeBetween returns whether an edge exists between xid and yid, in either direction.
func (g *Graph[T]) HasEdgeBetween(xid, yid int64) bool {
	return g.HasEdgeFromTo(xid, yid) || g.HasEdgeFromTo(yid, xid)
}

// HasEdgeFromTo returns whether an edge exists from uid to vid.
func (g *Graph[T]) HasEdgeFromTo(uid, vid int64) bool {
	return g.Node(uid) != nil && g.out[uid][int(vid)] > 0
}

// Edge returns the edge from uid to vid, or nil.
func (g *Graph[T]) Edge(uid, vid int64) graph.Edge {
	if !g.HasEdgeFromTo(uid, vid) {
		return nil
	}
	return Edge{F: Node(uid), T: Node(vid)}
}

// Node is a vertex number, as a gonum graph.Node
type Node int64

// ID returns the vertex number.
func (n Node) ID() int64 {
	return int64(n)
}

// Edge is a directed edge, as a gonum graph.Edge
type Edge struct {
	F, T Node
}

// From returns the source of the edge.
func (e Edge) From() graph.Node {
	return e.F
}

// To returns the target of the edge.
func (e Edge) To() graph.Node {
	return e.T
}

// ReversedEdge returns the edge from e.T to e.F.
func (e Edge) ReversedEdge() graph.Edge {
	return Edge{F: e.T, T: e.F}
}

// NodeSet is a gonum graph.Nodes iterator over vertex numbers
type NodeSet struct {
	// ids is the set of node ids in the iterator
	ids []int

	// cur is the current index of the iterator. It is -1 before the first call to Next.
	// invariant: -1 <= cur < len(ids)
	cur int
}

func newNodeSet(ids []int) *NodeSet {
	return &NodeSet{ids: ids, cur: -1}
}

// Next advances the iterator and returns whether the next call to Node will return a node.
func (ns *NodeSet) Next() bool {
	if ns.cur < len(ns.ids)-1 {
		ns.cur++
		return true
	}
	ns.cur = len(ns.ids)
	return false
}

// Len returns the number of nodes remaining in the iterator.
func (ns *NodeSet) Len() int {
	if ns.cur >= len(ns.ids) {
		return 0
	}
	return len(ns.ids) - ns.cur - 1
}

// Reset returns the iterator to its start position.
func (ns *NodeSet) Reset() {
	ns.cur = -1
}

// Node returns the current node, or nil when the iterator is exhausted or Next has not been called.
func (ns *NodeSet) Node() graph.Node {
	if ns.cur < 0 || ns.cur >= len(ns.ids) {
		return nil
	}
	return Node(ns.ids[ns.cur])
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
