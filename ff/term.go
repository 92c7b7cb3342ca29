/*
 * term.go, part of gomm.
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

//Package ff implements force-field terms and the Forcefield composite that sums them.
//
//A term computes, for the current state and the shared neighbor list, a scalar energy
//in kcal/mol and (optionally) its contribution to the per-atom forces, in kcal/(mol A).
//Terms never rebuild the neighbor list: that is done by the Forcefield before each evaluation.
package ff

import (
	"math"

	mm "github.com/rmera/gomm"
	"github.com/rmera/gomm/nlist"
	v3 "github.com/rmera/gomm/v3"
)

//Term is a force-field term.
type Term interface {
	Name() string
	//Setup validates the term against the state and captures any reference
	//geometry. It is called once, when the term is added to a Forcefield.
	Setup(s *mm.State) error
	//Energy returns the energy of the term without computing forces.
	Energy(s *mm.State, nl *nlist.List) float64
	//Forces adds the forces (and, if requested, per-atom energies) of the term to acc,
	//and returns the energy.
	Forces(s *mm.State, nl *nlist.List, acc *Accumulator) float64
	//Parameters returns a human-readable description of the parameters of the term.
	Parameters() string
}

//Cutoffer is implemented by the pairwise terms. MaxCutoff is the largest distance at which the
//term interacts, which must not exceed the cutoff of the neighbor list.
type Cutoffer interface {
	MaxCutoff() float64
}

//Restraint is a term that biases a scalar coordinate Q of the system. EnergyAtQ returns the
//bias energy that the restraint applies when the coordinate has the value q, which is used to
//remove the bias from umbrella-sampling histograms.
type Restraint interface {
	Term
	Q(s *mm.State) float64
	EnergyAtQ(q float64) float64
}

//Accumulator collects forces and per-atom energies. All its methods are no-ops on a nil
//Accumulator, and the force/energy parts are skipped when F or AtomE are nil, so a term
//can share a single code path for energies and forces.
type Accumulator struct {
	F     *v3.Matrix
	AtomE []float64
}

//Add adds the force f to atom i.
func (A *Accumulator) Add(i int, f v3.Vec) {
	if A == nil || A.F == nil {
		return
	}
	A.F.AddToVec(i, f)
}

//PairGrad adds the forces that derive from an energy that depends on the distance r between
//atoms i and j, where d is the vector from i to j, and dEdr is the derivative of that energy
//with respect to r. The two forces are equal and opposite.
func (A *Accumulator) PairGrad(i, j int, dEdr float64, d v3.Vec, r float64) {
	if A == nil || A.F == nil || r == 0 {
		return
	}
	f := d.Scale(dEdr / r)
	A.F.AddToVec(i, f)
	A.F.AddToVec(j, f.Scale(-1))
}

//Forces returns true if the accumulator collects forces.
func (A *Accumulator) Forces() bool {
	return A != nil && A.F != nil
}

//AtomEnergy adds e to the energy of atom i.
func (A *Accumulator) AtomEnergy(i int, e float64) {
	if A == nil || A.AtomE == nil {
		return
	}
	A.AtomE[i] += e
}

//PairEnergy splits e evenly between atoms i and j.
func (A *Accumulator) PairEnergy(i, j int, e float64) {
	if A == nil || A.AtomE == nil {
		return
	}
	A.AtomE[i] += 0.5 * e
	A.AtomE[j] += 0.5 * e
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

//selection returns sel, or all the atom indexes if sel is nil, checking the range.
func selection(comp string, s *mm.State, sel []int) ([]int, error) {
	if sel == nil {
		sel = make([]int, s.Len())
		for i := range sel {
			sel[i] = i
		}
		return sel, nil
	}
	for _, v := range sel {
		if v < 0 || v >= s.Len() {
			return nil, mm.NewConfigError(comp, "atom index %d out of range [0,%d)", v, s.Len())
		}
	}
	return sel, nil
}

func label(l, def string) string {
	if l != "" {
		return l
	}
	return def
}
