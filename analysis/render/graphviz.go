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

package render

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/clueless-dift/clueless/analysis/chains"
)

// edgeColor defines specific color for specific edges in the pointer chain graph
// - an address computed from its own content will be colored with a red edge
// - an edge seen at least minHeavy times will be drawn bold
// - all other edges have a default style
func edgeColor(e chains.Edge, minHeavy int64) string {
	switch {
	case e.Secret == e.Transmit:
		return "[color=red]"
	case minHeavy > 0 && e.Count >= minHeavy:
		return "[style=bold]"
	}
	return ""
}

// WriteGraphviz writes a graphviz representation of the edges to w. Edges seen less than minCount times are
// omitted, and edges seen at least 10*minCount times are drawn bold.
func WriteGraphviz(edges []chains.Edge, minCount int64, w io.Writer) error {
	before := "digraph chains {\n"
	after := "}\n"

	if _, err := io.WriteString(w, before); err != nil {
		return fmt.Errorf("error while writing in file: %w", err)
	}
	for _, e := range edges {
		if e.Count < minCount {
			continue
		}
		s := fmt.Sprintf("  \"%#x\" -> \"%#x\" [label=%d] %s;\n",
			e.Secret, e.Transmit, e.Count, edgeColor(e, 10*minCount))
		if _, err := io.WriteString(w, s); err != nil {
			return fmt.Errorf("error while writing in file: %w", err)
		}
	}
	if _, err := io.WriteString(w, after); err != nil {
		return fmt.Errorf("error while writing in file: %w", err)
	}
	return nil
}

// GraphvizToFile writes the graphviz representation of the edges to filename.
func GraphvizToFile(edges []chains.Edge, minCount int64, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if err := WriteGraphviz(edges, minCount, w); err != nil {
		return fmt.Errorf("error while writing graph: %w", err)
	}
	return w.Flush()
}
