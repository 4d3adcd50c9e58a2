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

package graphutil_test

import (
	"reflect"
	"testing"

	"github.com/clueless-dift/clueless/internal/graphutil"
	"github.com/yourbasic/graph"
)

func smallGraph() *graphutil.Graph[string] {
	g := graphutil.NewGraph[string]()
	for _, e := range [][2]string{{"a", "b"}, {"b", "a"}, {"b", "c"}, {"c", "a"}, {"c", "c"}, {"d", "a"}} {
		g.AddEdge(e[0], e[1])
	}
	return g
}

func TestFindAllElementaryCycles(t *testing.T) {
	g := smallGraph()
	stats := graph.Check(g)
	t.Logf("Stats:\n\tsize: %d\n\tmulti: %d\n\tloops: %d\n\tisolated: %d",
		stats.Size, stats.Multi, stats.Loops, stats.Isolated)
	if stats.Loops != 1 {
		t.Errorf("Expected one self loop, found %d", stats.Loops)
	}

	cycles := graphutil.FindAllElementaryCycles(g, 0)
	expected := [][]int{{0, 1}, {0, 1, 2}, {2}}
	if !reflect.DeepEqual(cycles, expected) {
		t.Fatalf("Expected cycles %v, found %v", expected, cycles)
	}

	cycles = graphutil.FindAllElementaryCycles(g, 2)
	if len(cycles) != 2 {
		t.Errorf("Expected the search to stop after 2 cycles, found %d", len(cycles))
	}
}

func TestFindAllElementaryCyclesAcyclic(t *testing.T) {
	g := graphutil.NewGraph[int]()
	for i := 0; i < 10; i++ {
		g.AddEdge(i, i+1)
		g.AddEdge(i, i+2)
	}
	if cycles := graphutil.FindAllElementaryCycles(g, 0); len(cycles) != 0 {
		t.Errorf("Expected no cycle in a DAG, found %v", cycles)
	}
}
