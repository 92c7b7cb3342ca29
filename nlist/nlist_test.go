/*
 * nlist_test.go, part of gomm.
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

package nlist

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	mm "github.com/rmera/gomm"
	v3 "github.com/rmera/gomm/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomCoords(n int, edge float64, seed uint64) *v3.Matrix {
	rng := rand.New(rand.NewPCG(seed, seed))
	c := v3.Zeros(n)
	for i := 0; i < n; i++ {
		c.SetVec(i, v3.Vec{edge * rng.Float64(), edge * rng.Float64(), edge * rng.Float64()})
	}
	return c
}

//bruteForce returns the set of pairs closer than rc.
func bruteForce(c *v3.Matrix, box mm.Boundary, rc float64) map[[2]int]bool {
	ret := make(map[[2]int]bool)
	for i := 0; i < c.NVecs(); i++ {
		for j := i + 1; j < c.NVecs(); j++ {
			if box.MinImage(c.Vec(j).Sub(c.Vec(i))).Norm() < rc {
				ret[[2]int{i, j}] = true
			}
		}
	}
	return ret
}

func listed(L *List) map[[2]int]bool {
	ret := make(map[[2]int]bool)
	L.ForEachPair(func(i, j int) {
		ret[[2]int{i, j}] = true
	})
	return ret
}

func TestBuildMatchesBruteForce(Te *testing.T) {
	box, err := mm.NewPeriodicBox(20, 22, 25)
	require.NoError(Te, err)
	for _, b := range []mm.Boundary{mm.Vacuum{}, box} {
		c := randomCoords(300, 20, 11)
		L, err := New(6, 1.5, b)
		require.NoError(Te, err)
		L.Build(c)
		want := bruteForce(c, b, 7.5)
		got := listed(L)
		assert.Equal(Te, len(want), L.NPairs())
		assert.Equal(Te, want, got, fmt.Sprintf("boundary %v", b))
	}
}

func TestSmallBoxNoDoubleCounting(Te *testing.T) {
	//only one or two cells per dimension: the offsets wrap onto the same cells.
	box, err := mm.NewPeriodicBox(9, 9, 9)
	require.NoError(Te, err)
	L, err := New(4, 0.5, box)
	require.NoError(Te, err)
	c := randomCoords(60, 9, 5)
	L.Build(c)
	assert.Equal(Te, bruteForce(c, box, 4.5), listed(L))
	assert.Equal(Te, len(bruteForce(c, box, 4.5)), L.NPairs())
}

func TestCutoffAgainstBox(Te *testing.T) {
	box, _ := mm.NewPeriodicBox(10, 10, 30)
	_, err := New(6, 1, box)
	var cerr *mm.ConfigError
	assert.True(Te, errors.As(err, &cerr))
	L, err := New(4, 2, box)
	require.NoError(Te, err)
	assert.Equal(Te, 1.0, L.Buffer())
	_, err = New(-1, 1, nil)
	assert.Error(Te, err)
	_, err = New(5, -1, nil)
	assert.Error(Te, err)
}

func TestStaleness(Te *testing.T) {
	c := randomCoords(50, 15, 3)
	L, err := New(5, 2, nil)
	require.NoError(Te, err)
	assert.True(Te, L.IsStale(c))
	assert.True(Te, L.Update(c))
	assert.False(Te, L.Update(c))
	//moving one atom less than half the buffer keeps the list valid
	c.AddToVec(7, v3.Vec{0.9, 0, 0})
	assert.False(Te, L.IsStale(c))
	c.AddToVec(7, v3.Vec{0.2, 0, 0})
	assert.True(Te, L.IsStale(c))
	assert.True(Te, L.Update(c))
	assert.Equal(Te, 2, L.Rebuilds())
	//step interval
	L.Interval = 3
	for i := 0; i < 3; i++ {
		assert.False(Te, L.Update(c))
		L.Tick()
	}
	assert.True(Te, L.Update(c))
	L.Invalidate()
	assert.True(Te, L.IsStale(c))
}

//A list that is not stale must contain every pair within the cutoff.
func TestNoMissedPairsWithinBuffer(Te *testing.T) {
	c := randomCoords(200, 18, 8)
	L, err := New(5, 2, nil)
	require.NoError(Te, err)
	L.Build(c)
	rng := rand.New(rand.NewPCG(1, 2))
	for step := 0; step < 20; step++ {
		for i := 0; i < c.NVecs(); i++ {
			c.AddToVec(i, v3.Vec{0.1 * (rng.Float64() - 0.5), 0.1 * (rng.Float64() - 0.5), 0.1 * (rng.Float64() - 0.5)})
		}
		L.Update(c)
		got := listed(L)
		for p := range bruteForce(c, mm.Vacuum{}, 5) {
			assert.True(Te, got[p], "missed pair %v at step %d", p, step)
		}
	}
}
