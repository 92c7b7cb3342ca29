/*
 * softvdw.go, part of gomm.
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

	mm "github.com/rmera/gomm"
	"github.com/rmera/gomm/nlist"
)

//SoftVDW is a purely repulsive, quadratic steric term used to relieve clashes before a full
//force field is applied:
//
//	E = Hardness*(d0-r)^2  for r < d0,  d0 = Vdw_i+Vdw_j-OlapOffset
//
//1-2 and 1-3 pairs are excluded.
type SoftVDW struct {
	Label      string
	OlapOffset float64 //A
	Hardness   float64 //kcal/(mol A^2)
	Cutoff     float64 //largest contact distance considered, A
}

//NewSoftVDW returns a soft steric term with default parameters.
func NewSoftVDW() *SoftVDW {
	return &SoftVDW{OlapOffset: 0.6, Hardness: 12, Cutoff: 6}
}

func (S *SoftVDW) Name() string       { return label(S.Label, "softvdw") }
func (S *SoftVDW) MaxCutoff() float64 { return S.Cutoff }

func (S *SoftVDW) Setup(s *mm.State) error {
	if !(S.Hardness > 0) || !(S.Cutoff > 0) || S.OlapOffset < 0 {
		return mm.NewConfigError(S.Name(), "need positive hardness and cutoff and non-negative offset, got %g, %g, %g", S.Hardness, S.Cutoff, S.OlapOffset)
	}
	for i := 0; i < s.Len(); i++ {
		if 2*s.Top.Atom(i).Vdw-S.OlapOffset > S.Cutoff {
			return mm.NewConfigError(S.Name(), "contact distance of atom %d exceeds the cutoff %g", i, S.Cutoff)
		}
	}
	return nil
}

func (S *SoftVDW) Energy(s *mm.State, nl *nlist.List) float64 {
	return S.Forces(s, nl, nil)
}

func (S *SoftVDW) Forces(s *mm.State, nl *nlist.List, acc *Accumulator) float64 {
	var E float64
	top := s.Top
	for i := 0; i < nl.Len(); i++ {
		ri := top.Atom(i).Vdw
		for _, j := range nl.Neighbors(i) {
			if top.Excluded(i, j) {
				continue
			}
			d0 := ri + top.Atom(j).Vdw - S.OlapOffset
			d := s.Displacement(i, j)
			r := d.Norm()
			if r >= d0 {
				continue
			}
			x := d0 - r
			e := S.Hardness * x * x
			E += e
			acc.PairEnergy(i, j, e)
			acc.PairGrad(i, j, -2*S.Hardness*x, d, r)
		}
	}
	return E
}

func (S *SoftVDW) Parameters() string {
	return fmt.Sprintf("%s: hardness %.2f kcal/(mol A^2), overlap offset %.2f A", S.Name(), S.Hardness, S.OlapOffset)
}
