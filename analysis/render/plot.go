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
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Series is a set of named values sampled at every heartbeat.
type Series struct {
	Title string
	Names []string

	// X holds the instruction counts, and Y[i] the values of Names[i]
	X []uint64
	Y [][]float64
}

// NewSeries returns an empty series of the values names.
func NewSeries(title string, names ...string) *Series {
	return &Series{Title: title, Names: names, Y: make([][]float64, len(names))}
}

// Add appends the values ys sampled after x instructions. It panics if the number of values does not match the
// number of names.
func (s *Series) Add(x uint64, ys ...float64) {
	if len(ys) != len(s.Names) {
		panic(fmt.Sprintf("render: %d values for %d series", len(ys), len(s.Names)))
	}
	s.X = append(s.X, x)
	for i, y := range ys {
		s.Y[i] = append(s.Y[i], y)
	}
}

// Len returns the number of samples.
func (s *Series) Len() int {
	return len(s.X)
}

func (s *Series) chart() *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: s.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "instructions"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	xs := make([]string, len(s.X))
	for i, x := range s.X {
		xs[i] = strconv.FormatUint(x, 10)
	}
	line.SetXAxis(xs)
	for i, name := range s.Names {
		data := make([]opts.LineData, len(s.Y[i]))
		for j, y := range s.Y[i] {
			data[j] = opts.LineData{Value: y}
		}
		line.AddSeries(name, data)
	}
	return line
}

// WritePlot writes an HTML page with one line chart per series to w.
func WritePlot(w io.Writer, series ...*Series) error {
	page := components.NewPage()
	page.PageTitle = "clueless"
	for _, s := range series {
		page.AddCharts(s.chart())
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("error while rendering plot: %w", err)
	}
	return nil
}

// PlotToFile writes the plot of series to filename.
func PlotToFile(filename string, series ...*Series) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	if err := WritePlot(f, series...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
