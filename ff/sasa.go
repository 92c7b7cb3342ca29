/*
 * sasa.go, part of gomm.
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

package ff

import (
	"fmt"
	"math"

	mm "github.com/rmera/gomm"
	"github.com/rmera/gomm/nlist"
	v3 "github.com/rmera/gomm/v3"
)

//Hasel overlap factors for bonded and non-bonded neighbors.
const (
	haselBonded    = 0.8875
	haselNonBonded = 0.3516
)

//SASA is a non-polar solvation term proportional to the solvent-accessible surface
//area of each atom, estimated with the Hasel, Hendrickson and Still approximation:
//
//	A_i = S_i prod_j (1 - p_i p_ij b_ij / S_i),  S_i = 4 pi (R_i+Rp)^2
//	E = sum_i ASP_i A_i
//
//Radii are the element van der Waals radii.
type SASA struct {
	Label       string
	ProbeRadius float64   //A
	GlobalASP   float64   //kcal/(mol A^2)
	ASP         []float64 //per-atom surface tension, overrides GlobalASP if not nil

	radius []float64
	area   []float64
	maxcut float64
}

//NewSASA returns a SASA term with a water-sized probe.
func NewSASA() *SASA {
	return &SASA{ProbeRadius: 1.4, GlobalASP: 0.005}
}

func (S *SASA) Name() string       { return label(S.Label, "sasa") }
func (S *SASA) MaxCutoff() float64 { return S.maxcut }

func (S *SASA) Setup(s *mm.State) error {
	if S.ProbeRadius < 0 {
		return mm.NewConfigError(S.Name(), "negative probe radius %g", S.ProbeRadius)
	}
	if S.ASP != nil && len(S.ASP) != s.Len() {
		return mm.NewConfigError(S.Name(), "%d surface tensions for %d atoms", len(S.ASP), s.Len())
	}
	S.radius = make([]float64, s.Len())
	S.area = make([]float64, s.Len())
	maxr := 0.0
	for i := range S.radius {
		S.radius[i] = mm.ElementVdwRadius(s.Top.Atom(i).Symbol)
		maxr = math.Max(maxr, S.radius[i])
	}
	S.maxcut = 2 * (maxr + S.ProbeRadius)
	return nil
}

func (S *SASA) asp(i int) float64 {
	if S.ASP != nil {
		return S.ASP[i]
	}
	return S.GlobalASP
}

//overlap returns b_ij and its derivative with respect to r.
func (S *SASA) overlap(ri, rj, r float64) (b, db float64) {
	rp := S.ProbeRadius
	a := math.Pi * (ri + rp)
	x := ri + rj + 2*rp - r
	y := 1 + (rj-ri)/r
	b = a * x * y
	if b <= 0 {
		return 0, 0
	}
	db = a * (-y - x*(rj-ri)/(r*r))
	return b, db
}

type sasaPair struct {
	i, j     int
	d        v3.Vec
	r        float64
	gij, gji float64 //overlap factors
	dij, dji float64 //their derivatives with respect to r
}

//AtomSASA returns a copy of the per-atom areas from the last evaluation, in A^2.
func (S *SASA) AtomSASA() []float64 {
	return append([]float64(nil), S.area...)
}

func (S *SASA) Energy(s *mm.State, nl *nlist.List) float64 {
	return S.Forces(s, nl, nil)
}

func (S *SASA) Forces(s *mm.State, nl *nlist.List, acc *Accumulator) float64 {
	top := s.Top
	rp := S.ProbeRadius
	n := s.Len()
	zeros := make([]int, n)
	for i := range S.area {
		R := S.radius[i] + rp
		S.area[i] = 4 * math.Pi * R * R
	}
	var pairs []sasaPair
	for i := 0; i < nl.Len(); i++ {
		ri := S.radius[i]
		si := S.area[i]
		pi := top.Atom(i).SASAP
		for _, j := range nl.Neighbors(i) {
			rj := S.radius[j]
			d := s.Displacement(i, j)
			r := d.Norm()
			if r >= ri+rj+2*rp || r == 0 {
				continue
			}
			pij := haselNonBonded
			if top.Bonded(i, j) {
				pij = haselBonded
			}
			pj := top.Atom(j).SASAP
			sj := 4 * math.Pi * (rj + rp) * (rj + rp)
			p := sasaPair{i: i, j: j, d: d, r: r}
			bij, dbij := S.overlap(ri, rj, r)
			bji, dbji := S.overlap(rj, ri, r)
			p.gij = 1 - pi*pij*bij/si
			p.dij = -pi * pij * dbij / si
			p.gji = 1 - pj*pij*bji/sj
			p.dji = -pj * pij * dbji / sj
			if p.gij <= 0 {
				p.gij, p.dij = 0, 0
				zeros[i]++
			} else {
				S.area[i] *= p.gij
			}
			if p.gji <= 0 {
				p.gji, p.dji = 0, 0
				zeros[j]++
			} else {
				S.area[j] *= p.gji
			}
			pairs = append(pairs, p)
		}
	}
	var E float64
	for i := range S.area {
		if zeros[i] > 0 {
			S.area[i] = 0
		}
		e := S.asp(i) * S.area[i]
		E += e
		acc.AtomEnergy(i, e)
	}
	if !acc.Forces() {
		return E
	}
	for _, p := range pairs {
		var dEdr float64
		if S.area[p.i] > 0 {
			dEdr += S.asp(p.i) * S.area[p.i] * p.dij / p.gij
		}
		if S.area[p.j] > 0 {
			dEdr += S.asp(p.j) * S.area[p.j] * p.dji / p.gji
		}
		acc.PairGrad(p.i, p.j, dEdr, p.d, p.r)
	}
	return E
}

func (S *SASA) Parameters() string {
	asp := fmt.Sprintf("%.4f", S.GlobalASP)
	if S.ASP != nil {
		asp = "per-atom"
	}
	return fmt.Sprintf("%s: Hasel SASA, probe %.2f A, ASP %s kcal/(mol A^2)", S.Name(), S.ProbeRadius, asp)
}
