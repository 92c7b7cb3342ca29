/*
 * nonbonded.go, part of gomm.
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
)

//NonBonded is the pairwise electrostatic plus Lennard-Jones term. Both parts are switched
//to zero between their inner and outer cutoffs. 1-2 and 1-3 pairs are excluded, and 1-4
//pairs are scaled.
//
//	Elec = C qi qj / (eps r)       (or C qi qj / (eps r^2) with DDDielectric)
//	Vdw  = eps_ij ((Rmin/r)^12 - 2 (Rmin/r)^6),  Rmin = Vdw_i+Vdw_j, eps_ij = sqrt(eps_i eps_j)
type NonBonded struct {
	Label          string
	Cutoff         float64 //electrostatic outer cutoff, A
	InnerCutoff    float64 //electrostatic switching onset, A
	VdwCutoff      float64
	VdwInnerCutoff float64
	Dielectric     float64
	DDDielectric   bool //distance-dependent dielectric, eps(r)=Dielectric*r
	Elec14Scaling  float64
	Vdw14Scaling   float64
	NoElec         bool
	NoVdw          bool
}

//NewNonBonded returns a non-bonded term with the usual protein-simulation defaults.
func NewNonBonded() *NonBonded {
	return &NonBonded{
		Cutoff:         12,
		InnerCutoff:    9,
		VdwCutoff:      8,
		VdwInnerCutoff: 6,
		Dielectric:     1,
		Elec14Scaling:  1 / 1.2,
		Vdw14Scaling:   0.5,
	}
}

func (N *NonBonded) Name() string { return label(N.Label, "nonbonded") }

func (N *NonBonded) MaxCutoff() float64 {
	c := 0.0
	if !N.NoElec {
		c = N.Cutoff
	}
	if !N.NoVdw {
		c = math.Max(c, N.VdwCutoff)
	}
	return c
}

func (N *NonBonded) Setup(s *mm.State) error {
	c := N.Name()
	if !N.NoElec && (!(N.Cutoff > 0) || N.InnerCutoff < 0 || N.InnerCutoff >= N.Cutoff) {
		return mm.NewConfigError(c, "need 0 <= InnerCutoff < Cutoff, got %g and %g", N.InnerCutoff, N.Cutoff)
	}
	if !N.NoVdw && (!(N.VdwCutoff > 0) || N.VdwInnerCutoff < 0 || N.VdwInnerCutoff >= N.VdwCutoff) {
		return mm.NewConfigError(c, "need 0 <= VdwInnerCutoff < VdwCutoff, got %g and %g", N.VdwInnerCutoff, N.VdwCutoff)
	}
	if !(N.Dielectric > 0) {
		return mm.NewConfigError(c, "non-positive dielectric %g", N.Dielectric)
	}
	if N.Elec14Scaling < 0 || N.Vdw14Scaling < 0 {
		return mm.NewConfigError(c, "negative 1-4 scaling")
	}
	//make sure the exclusions are derived now, not during the first step.
	s.Top.Pairs14()
	return nil
}

func (N *NonBonded) Energy(s *mm.State, nl *nlist.List) float64 {
	return N.Forces(s, nl, nil)
}

//pair returns the (switched) energy of the pair i-j at distance r, and its derivative.
func (N *NonBonded) pair(ai, aj *mm.Atom, r, elecScale, vdwScale float64) (e, dEdr float64) {
	if !N.NoElec && r < N.Cutoff && ai.Charge != 0 && aj.Charge != 0 {
		qq := elecScale * mm.CoulombConst * ai.Charge * aj.Charge / N.Dielectric
		var ec, dec float64
		if N.DDDielectric {
			ec = qq / (r * r)
			dec = -2 * ec / r
		} else {
			ec = qq / r
			dec = -ec / r
		}
		sw, dsw := Switch(r, N.InnerCutoff, N.Cutoff)
		e += ec * sw
		dEdr += dec*sw + ec*dsw
	}
	if !N.NoVdw && r < N.VdwCutoff {
		eps := vdwScale * math.Sqrt(ai.VdwEps*aj.VdwEps)
		if eps != 0 {
			rm := ai.Vdw + aj.Vdw
			x6 := math.Pow(rm/r, 6)
			x12 := x6 * x6
			ev := eps * (x12 - 2*x6)
			dev := 12 * eps * (x6 - x12) / r
			sw, dsw := Switch(r, N.VdwInnerCutoff, N.VdwCutoff)
			e += ev * sw
			dEdr += dev*sw + ev*dsw
		}
	}
	return e, dEdr
}

func (N *NonBonded) Forces(s *mm.State, nl *nlist.List, acc *Accumulator) float64 {
	var E float64
	top := s.Top
	for i := 0; i < nl.Len(); i++ {
		ai := top.Atom(i)
		for _, j := range nl.Neighbors(i) {
			es, vs := 1.0, 1.0
			switch top.Separation(i, j) {
			case 1, 2:
				continue
			case 3:
				es, vs = N.Elec14Scaling, N.Vdw14Scaling
			}
			d := s.Displacement(i, j)
			r := d.Norm()
			if r >= N.MaxCutoff() || r == 0 {
				continue
			}
			e, dEdr := N.pair(ai, top.Atom(j), r, es, vs)
			E += e
			acc.PairEnergy(i, j, e)
			acc.PairGrad(i, j, dEdr, d, r)
		}
	}
	return E
}

func (N *NonBonded) Parameters() string {
	diel := fmt.Sprintf("%.2f", N.Dielectric)
	if N.DDDielectric {
		diel += "*r"
	}
	return fmt.Sprintf("%s: elec %.2f-%.2f A (eps %s, 1-4 x%.3f) vdw %.2f-%.2f A (1-4 x%.3f)",
		N.Name(), N.InnerCutoff, N.Cutoff, diel, N.Elec14Scaling, N.VdwInnerCutoff, N.VdwCutoff, N.Vdw14Scaling)
}
