/*
 * nlist.go, part of gomm.
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

//Package nlist implements a buffered neighbor list built with a cell list.
//Pairs are stored once (j>i) and include every pair closer than cutoff+buffer under the
//boundary condition of the system, using the minimum image convention for periodic boxes.
package nlist

import (
	"math"
	"sort"

	mm "github.com/rmera/gomm"
	"github.com/rmera/gomm/metrics"
	v3 "github.com/rmera/gomm/v3"
	"go.uber.org/zap"
)

//List is a buffered neighbor list. It is owned by a forcefield, which is the only
//component that rebuilds it; terms only read it.
type List struct {
	cutoff   float64
	buffer   float64
	Interval int //if >0, the list is rebuilt at least every Interval steps
	box      mm.Boundary
	neigh    [][]int
	ref      *v3.Matrix //positions at the last build
	built    bool
	shrunk   float64 //requested buffer, if it had to be shrunk
	since    int
	rebuilds int
	Log      *zap.Logger
	Metrics  *metrics.Collector
}

//New returns a neighbor list for the given cutoff and buffer margin, in A. A nil box means vacuum.
//For periodic boxes, a cutoff larger than half of the shortest edge is a configuration error.
//If only cutoff+buffer exceeds that limit, the buffer is shrunk to fit.
func New(cutoff, buffer float64, box mm.Boundary) (*List, error) {
	if box == nil {
		box = mm.Vacuum{}
	}
	if !(cutoff > 0) || math.IsInf(cutoff, 0) {
		return nil, mm.NewConfigError("neighbor list", "cutoff must be positive and finite, got %g", cutoff)
	}
	if buffer < 0 || math.IsNaN(buffer) {
		return nil, mm.NewConfigError("neighbor list", "buffer must be non-negative, got %g", buffer)
	}
	L := &List{cutoff: cutoff, buffer: buffer, box: box, Log: zap.NewNop()}
	if box.Periodic() {
		e := box.Edges()
		half := 0.5 * math.Min(e[0], math.Min(e[1], e[2]))
		if cutoff > half {
			return nil, mm.NewConfigError("neighbor list", "cutoff %g larger than half the shortest box edge (%g)", cutoff, half)
		}
		if cutoff+buffer > half {
			L.shrunk = buffer
			L.buffer = half - cutoff
		}
	}
	return L, nil
}

//Cutoff returns the interaction cutoff of the list.
func (L *List) Cutoff() float64 { return L.cutoff }

//Buffer returns the buffer margin, which can be smaller than the requested one for periodic boxes.
func (L *List) Buffer() float64 { return L.buffer }

//Box returns the boundary used by the list.
func (L *List) Box() mm.Boundary { return L.box }

//Rebuilds returns the number of times the list has been built.
func (L *List) Rebuilds() int { return L.rebuilds }

//Invalidate forces a rebuild on the next Update, e.g. after the positions were replaced wholesale.
func (L *List) Invalidate() { L.built = false }

//Tick tells the list that one integration step has elapsed.
func (L *List) Tick() { L.since++ }

//IsStale returns true if the list was never built, if the number of atoms changed, or if any atom
//moved more than half the buffer since the last build.
func (L *List) IsStale(coords *v3.Matrix) bool {
	if !L.built || L.ref == nil || L.ref.NVecs() != coords.NVecs() {
		return true
	}
	lim := 0.25 * L.buffer * L.buffer
	for i := 0; i < coords.NVecs(); i++ {
		d := L.box.MinImage(coords.Vec(i).Sub(L.ref.Vec(i)))
		if d.Norm2() > lim {
			return true
		}
	}
	return false
}

//Update rebuilds the list if it is stale or if Interval steps have elapsed since the last build.
//It returns true if the list was rebuilt.
func (L *List) Update(coords *v3.Matrix) bool {
	if L.IsStale(coords) || (L.Interval > 0 && L.since >= L.Interval) {
		L.Build(coords)
		return true
	}
	return false
}

//Neighbors returns the neighbors j>i of atom i. The slice must not be modified.
func (L *List) Neighbors(i int) []int {
	if i >= len(L.neigh) {
		return nil
	}
	return L.neigh[i]
}

//Len returns the number of atoms in the list.
func (L *List) Len() int { return len(L.neigh) }

//NPairs returns the number of stored pairs.
func (L *List) NPairs() int {
	n := 0
	for _, v := range L.neigh {
		n += len(v)
	}
	return n
}

//ForEachPair calls f for every stored pair, with i<j, in a deterministic order.
func (L *List) ForEachPair(f func(i, j int)) {
	for i, v := range L.neigh {
		for _, j := range v {
			f(i, j)
		}
	}
}

type cell [3]int

//Build constructs the list from scratch for the given positions.
func (L *List) Build(coords *v3.Matrix) {
	n := coords.NVecs()
	rc := L.cutoff + L.buffer
	rc2 := rc * rc
	periodic := L.box.Periodic()
	edges := L.box.Edges()
	var ncell [3]int
	var size v3.Vec
	var origin v3.Vec
	if periodic {
		for k := range edges {
			ncell[k] = int(math.Floor(edges[k] / rc))
			if ncell[k] < 1 {
				ncell[k] = 1
			}
			size[k] = edges[k] / float64(ncell[k])
		}
	} else {
		lo := v3.Vec{math.Inf(1), math.Inf(1), math.Inf(1)}
		for i := 0; i < n; i++ {
			p := coords.Vec(i)
			for k := range p {
				lo[k] = math.Min(lo[k], p[k])
			}
		}
		origin = lo
		size = v3.Vec{rc, rc, rc}
	}
	cellOf := func(p v3.Vec) cell {
		var c cell
		if periodic {
			p = L.box.Wrap(p)
		}
		for k := range p {
			c[k] = int(math.Floor((p[k] - origin[k]) / size[k]))
			if periodic && c[k] >= ncell[k] {
				c[k] = ncell[k] - 1
			}
		}
		return c
	}
	cells := make(map[cell][]int)
	owner := make([]cell, n)
	for i := 0; i < n; i++ {
		c := cellOf(coords.Vec(i))
		owner[i] = c
		cells[c] = append(cells[c], i)
	}
	L.neigh = make([][]int, n)
	for i := 0; i < n; i++ {
		pi := coords.Vec(i)
		for _, c := range L.adjacent(owner[i], ncell, periodic) {
			for _, j := range cells[c] {
				if j <= i {
					continue
				}
				d := L.box.MinImage(coords.Vec(j).Sub(pi))
				if d.Norm2() < rc2 {
					L.neigh[i] = append(L.neigh[i], j)
				}
			}
		}
		sort.Ints(L.neigh[i])
	}
	if L.ref == nil || L.ref.NVecs() != n {
		L.ref = coords.Clone()
	} else {
		L.ref.CopyFrom(coords)
	}
	L.built = true
	L.since = 0
	L.rebuilds++
	L.Metrics.NListRebuild()
	if L.Log != nil {
		if L.shrunk > 0 && L.rebuilds == 1 {
			L.Log.Warn("neighbor list buffer shrunk to fit the periodic box", zap.Float64("requested", L.shrunk), zap.Float64("buffer", L.buffer))
		}
		L.Log.Debug("neighbor list rebuilt", zap.Int("atoms", n), zap.Int("pairs", L.NPairs()), zap.Int("rebuilds", L.rebuilds))
	}
}

//adjacent returns the distinct cells adjacent to c (c included). In small periodic
//boxes, different offsets can map to the same cell, and each cell must be visited once.
func (L *List) adjacent(c cell, ncell [3]int, periodic bool) []cell {
	ret := make([]cell, 0, 27)
	seen := make(map[cell]bool, 27)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				o := cell{c[0] + dx, c[1] + dy, c[2] + dz}
				if periodic {
					for k := range o {
						o[k] = ((o[k] % ncell[k]) + ncell[k]) % ncell[k]
					}
				}
				if seen[o] {
					continue
				}
				seen[o] = true
				ret = append(ret, o)
			}
		}
	}
	return ret
}
