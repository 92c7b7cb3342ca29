/*
 * monitor.go, part of gomm.
 *
 * Copyright 2024 The gomm authors.
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

//Package monitor records scalar observables of a state along a run, and turns them into
//histograms, plots and, for umbrella sampling, bias-corrected free-energy profiles.
package monitor

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"strings"

	mm "github.com/rmera/gomm"
	"github.com/rmera/gomm/ff"
	"github.com/rmera/gomm/histo"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

//Sampler extracts a scalar observable from a state.
type Sampler func(s *mm.State) float64

//Series is a monitor that records one observable each time Measure is called.
type Series struct {
	name    string
	sampler Sampler
	data    []float64
	steps   []int
}

//NewSeries returns a monitor named name that samples f.
func NewSeries(name string, f Sampler) *Series {
	return &Series{name: name, sampler: f}
}

//AtomDistance returns a monitor of the distance between atoms i and j.
func AtomDistance(i, j int) *Series {
	return NewSeries(fmt.Sprintf("distance_%d_%d", i, j), func(s *mm.State) float64 {
		return s.Distance(i, j)
	})
}

//Umbrella returns a monitor of the coordinate Q of a restraint, named after it.
func Umbrella(r ff.Restraint) *Series {
	return NewSeries(r.Name(), r.Q)
}

//Temperature returns a monitor of the kinetic temperature. momentumRemoved tells whether
//the 3 degrees of freedom of the total momentum are removed in the run.
func Temperature(momentumRemoved bool) *Series {
	return NewSeries("temperature", func(s *mm.State) float64 {
		return s.Temperature(s.DegreesOfFreedom(momentumRemoved))
	})
}

func (S *Series) Name() string { return S.name }

//Measure samples the state at the given step, records and returns the value.
func (S *Series) Measure(step int, s *mm.State) float64 {
	v := S.sampler(s)
	S.data = append(S.data, v)
	S.steps = append(S.steps, step)
	return v
}

//Data returns the recorded values. The slice is not a copy.
func (S *Series) Data() []float64 { return S.data }

//Steps returns the steps at which the values were recorded.
func (S *Series) Steps() []int { return S.steps }

func (S *Series) Len() int { return len(S.data) }

//Reset discards the recorded data.
func (S *Series) Reset() {
	S.data = S.data[:0]
	S.steps = S.steps[:0]
}

//Mean returns the mean of the recorded values, or NaN if there are none.
func (S *Series) Mean() float64 {
	if len(S.data) == 0 {
		return math.NaN()
	}
	return stat.Mean(S.data, nil)
}

//StdDev returns the sample standard deviation of the recorded values.
func (S *Series) StdDev() float64 {
	if len(S.data) < 2 {
		return 0
	}
	return stat.StdDev(S.data, nil)
}

//Histogram returns a histogram of the recorded values with bins of the given width.
func (S *Series) Histogram(width float64) (*histo.Data, error) {
	h, err := histo.NewFixedWidth(S.data, width)
	if err != nil {
		return nil, fmt.Errorf("gomm/monitor: histogram of %s: %w", S.name, err)
	}
	return h, nil
}

//Plot saves a PNG (or any other format gonum/plot infers from the extension of path)
//with the normalized histogram of the recorded values.
func (S *Series) Plot(path string, width float64) error {
	h, err := S.Histogram(width)
	if err != nil {
		return err
	}
	h.Normalize()
	div := h.CopyDividers()
	bins := make([]plotter.HistogramBin, 0, len(h.View()))
	for i, v := range h.View() {
		bins = append(bins, plotter.HistogramBin{Min: div[i], Max: div[i+1], Weight: v})
	}
	p := plot.New()
	p.Title.Text = S.name
	p.X.Label.Text = S.name
	p.Y.Label.Text = "P"
	p.Add(plotter.NewGrid())
	p.Add(&plotter.Histogram{
		Bins:      bins,
		Width:     width,
		FillColor: color.RGBA{R: 90, G: 120, B: 200, A: 255},
		LineStyle: plotter.DefaultLineStyle,
	})
	return p.Save(5*vg.Inch, 4*vg.Inch, path)
}

//PlotSeries saves a plot of the recorded values against the step.
func (S *Series) PlotSeries(path string) error {
	if len(S.data) == 0 {
		return fmt.Errorf("gomm/monitor: no data recorded for %s", S.name)
	}
	pts := make(plotter.XYs, len(S.data))
	for i, v := range S.data {
		pts[i].X = float64(S.steps[i])
		pts[i].Y = v
	}
	p := plot.New()
	p.Title.Text = S.name
	p.X.Label.Text = "step"
	p.Y.Label.Text = S.name
	p.Add(plotter.NewGrid())
	l, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	l.Color = color.RGBA{R: 255, A: 255}
	p.Add(l)
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

//Set is an ordered collection of monitors with unique names.
type Set struct {
	series []*Series
}

//Add adds m to the set.
func (S *Set) Add(m *Series) error {
	if S.Get(m.Name()) != nil {
		return mm.NewConfigError("monitor set", "monitor %q added twice", m.Name())
	}
	S.series = append(S.series, m)
	return nil
}

//Get returns the monitor with the given name, or nil.
func (S *Set) Get(name string) *Series {
	if S == nil {
		return nil
	}
	for _, v := range S.series {
		if v.Name() == name {
			return v
		}
	}
	return nil
}

//All returns the monitors in the set.
func (S *Set) All() []*Series {
	if S == nil {
		return nil
	}
	return S.series
}

//Len returns the number of monitors in the set.
func (S *Set) Len() int {
	if S == nil {
		return 0
	}
	return len(S.series)
}

//Run measures every monitor in the set. It is a no-op on a nil Set.
func (S *Set) Run(step int, s *mm.State) {
	if S == nil {
		return
	}
	for _, v := range S.series {
		v.Measure(step, s)
	}
}

//Summary writes the number of samples, mean and standard deviation of each monitor to w.
func (S *Set) Summary(w io.Writer) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-24s %8s %14s %14s\n", "monitor", "samples", "mean", "stddev")
	for _, v := range S.All() {
		fmt.Fprintf(&sb, "%-24s %8d %14.5f %14.5f\n", v.Name(), v.Len(), v.Mean(), v.StdDev())
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
