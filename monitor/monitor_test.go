/*
 * monitor_test.go, part of gomm.
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

package monitor

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	mm "github.com/rmera/gomm"
	"github.com/rmera/gomm/ff"
	v3 "github.com/rmera/gomm/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diatomic(Te *testing.T) *mm.State {
	top, err := mm.NewTopology([]*mm.Atom{{Name: "C"}, {Name: "O"}})
	require.NoError(Te, err)
	c, err := v3.NewMatrix([]float64{0, 0, 0, 2, 0, 0})
	require.NoError(Te, err)
	s, err := mm.NewState(top, c, nil)
	require.NoError(Te, err)
	return s
}

func TestSeries(Te *testing.T) {
	s := diatomic(Te)
	d := AtomDistance(0, 1)
	for k, x := range []float64{1, 2, 3, 4} {
		s.Coords.Set(1, 0, x)
		assert.Equal(Te, x, d.Measure(10*k, s))
	}
	assert.Equal(Te, []int{0, 10, 20, 30}, d.Steps())
	assert.InDelta(Te, 2.5, d.Mean(), 1e-12)
	assert.InDelta(Te, math.Sqrt(5.0/3), d.StdDev(), 1e-12)
	h, err := d.Histogram(1)
	require.NoError(Te, err)
	assert.Equal(Te, 4, h.Total())
	dir := Te.TempDir()
	require.NoError(Te, d.Plot(filepath.Join(dir, "hist.png"), 0.5))
	require.NoError(Te, d.PlotSeries(filepath.Join(dir, "series.png")))
	fi, err := os.Stat(filepath.Join(dir, "hist.png"))
	require.NoError(Te, err)
	assert.Greater(Te, fi.Size(), int64(0))
	d.Reset()
	assert.Equal(Te, 0, d.Len())
	assert.True(Te, math.IsNaN(d.Mean()))
	assert.Error(Te, d.PlotSeries(filepath.Join(dir, "empty.png")))
}

func TestSet(Te *testing.T) {
	s := diatomic(Te)
	s.SetVelocities(v3.Zeros(2))
	var S Set
	require.NoError(Te, S.Add(AtomDistance(0, 1)))
	require.NoError(Te, S.Add(Temperature(false)))
	assert.Error(Te, S.Add(AtomDistance(0, 1)))
	S.Run(0, s)
	S.Run(1, s)
	assert.Equal(Te, 2, S.Len())
	assert.Equal(Te, 2, S.Get("temperature").Len())
	assert.Nil(Te, S.Get("nothing"))
	var buf bytes.Buffer
	require.NoError(Te, S.Summary(&buf))
	assert.Contains(Te, buf.String(), "distance_0_1")
	var nilset *Set
	nilset.Run(0, s)
	assert.Equal(Te, 0, nilset.Len())
}

func TestUmbrellaProfile(Te *testing.T) {
	s := diatomic(Te)
	r := &ff.AtomDistance{I: 0, J: 1, K: 10, Dist: 2}
	require.NoError(Te, r.Setup(s))
	m := Umbrella(r)
	assert.Equal(Te, r.Name(), m.Name())
	//a triangular distribution around 2 A
	samples := map[float64]int{1.82: 1, 1.93: 3, 2.04: 3, 2.15: 1}
	step := 0
	for x, n := range samples {
		for k := 0; k < n; k++ {
			s.Coords.Set(1, 0, x)
			m.Measure(step, s)
			step++
		}
	}
	kT := mm.KT(300)
	P, err := UmbrellaProfile(m, r, 0.1, kT)
	require.NoError(Te, err)
	require.Len(Te, P.Bins, 4)
	var sum float64
	for _, b := range P.Bins {
		sum += b.P
		assert.InDelta(Te, -kT*math.Log(b.P), b.FE, 1e-12)
		assert.InDelta(Te, b.FE-r.EnergyAtQ(b.Q), b.PMF, 1e-12)
	}
	assert.InDelta(Te, 1, sum, 1e-12)
	P.Shift()
	min := math.Inf(1)
	for _, b := range P.Bins {
		min = math.Min(min, b.PMF)
	}
	assert.InDelta(Te, 0, min, 1e-12)
	var buf bytes.Buffer
	_, err = P.WriteTo(&buf)
	require.NoError(Te, err)
	assert.Contains(Te, buf.String(), "PMF")
	_, err = UmbrellaProfile(m, r, 0.1, 0)
	assert.Error(Te, err)
}
