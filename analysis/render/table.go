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

// Package render writes the results of the analyses: plain text tables, HTML plots of heartbeat series and GraphViz
// representations of pointer chains.
package render

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// Table is a table of results. Tables are rendered without borders, one row per line and columns separated by
// spaces, so they can be read back by plotting scripts.
type Table struct {
	header []string
	rows   [][]string
}

// NewTable returns an empty table with the column names header.
func NewTable(header ...string) *Table {
	return &Table{header: header}
}

// Append adds a row. Unsigned integers are printed in decimal, use Hex for addresses.
func (t *Table) Append(cells ...any) {
	row := make([]string, len(cells))
	for i, c := range cells {
		switch c := c.(type) {
		case float64:
			row[i] = fmt.Sprintf("%.2f", c)
		default:
			row[i] = fmt.Sprint(c)
		}
	}
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table to w.
func (t *Table) Render(w io.Writer) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(t.header)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetBorder(false)
	tw.SetHeaderLine(false)
	tw.SetColumnSeparator("")
	tw.SetCenterSeparator("")
	tw.SetRowSeparator("")
	tw.SetTablePadding(" ")
	tw.SetNoWhiteSpace(true)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.AppendBulk(t.rows)
	tw.Render()
}

// Hex formats an address.
func Hex(addr uint64) string {
	return fmt.Sprintf("%#x", addr)
}
