/*
 * state.go, part of gomm.
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

package mm

import (
	"math"
	"math/rand/v2"

	v3 "github.com/rmera/gomm/v3"
)

//State is the particle state store of a run: the topology plus positions, velocities and
//forces. It is owned by a single run; integrators and evaluators keep a reference to it and
//update it in place. All three matrices always have one vector per atom.
type State struct {
	Top    *Topology
	Coords *v3.Matrix //Angstrom
	Vel    *v3.Matrix //Angstrom/ps
	Forces *v3.Matrix //kcal/(mol A)
	Box    Boundary
	mass   []float64
}

//NewState returns a state for the given topology and coordinates. Velocities and forces
//start at zero. If box is nil, vacuum is used.
func NewState(top *Topology, coords *v3.Matrix, box Boundary) (*State, error) {
	if top == nil || coords == nil {
		return nil, NewConfigError("state", "nil topology or coordinates")
	}
	if coords.NVecs() != top.Len() {
		return nil, NewConfigError("state", "%d coordinates given for %d atoms", coords.NVecs(), top.Len())
	}
	for i := 0; i < coords.NVecs(); i++ {
		if !coords.Vec(i).IsFinite() {
			return nil, NewConfigError("state", "non-finite coordinates for atom %d", i)
		}
	}
	if box == nil {
		box = Vacuum{}
	}
	S := &State{
		Top:    top,
		Coords: coords,
		Vel:    v3.Zeros(top.Len()),
		Forces: v3.Zeros(top.Len()),
		Box:    box,
		mass:   top.Masses(),
	}
	return S, nil
}

//Len returns the number of atoms.
func (S *State) Len() int { return len(S.mass) }

//Mass returns the mass of atom i.
func (S *State) Mass(i int) float64 { return S.mass[i] }

//SetVelocities copies vel into the velocities of the state.
func (S *State) SetVelocities(vel *v3.Matrix) error {
	if vel.NVecs() != S.Len() {
		return NewConfigError("state", "%d velocities given for %d atoms", vel.NVecs(), S.Len())
	}
	S.Vel.CopyFrom(vel)
	return nil
}

//Displacement returns the minimum-image vector from atom i to atom j.
func (S *State) Displacement(i, j int) v3.Vec {
	return S.Box.MinImage(S.Coords.Vec(j).Sub(S.Coords.Vec(i)))
}

//Distance returns the minimum-image distance between atoms i and j.
func (S *State) Distance(i, j int) float64 {
	return S.Displacement(i, j).Norm()
}

//KineticEnergy returns the kinetic energy, in kcal/mol.
func (S *State) KineticEnergy() float64 {
	var ke float64
	for i, m := range S.mass {
		ke += m * S.Vel.Vec(i).Norm2()
	}
	return 0.5 * ke / ForceToAccel
}

//DegreesOfFreedom returns 3N minus the fixed atoms, minus 3 more if
//the net momentum is removed.
func (S *State) DegreesOfFreedom(momentumRemoved bool) int {
	n := 0
	for i := 0; i < S.Len(); i++ {
		if !S.Top.Atom(i).Fixed {
			n += 3
		}
	}
	if momentumRemoved && n > 3 {
		n -= 3
	}
	return n
}

//Temperature returns the instantaneous temperature estimated from the kinetic energy
//and the given number of degrees of freedom.
func (S *State) Temperature(ndf int) float64 {
	if ndf <= 0 {
		return 0
	}
	return 2 * S.KineticEnergy() / (float64(ndf) * KB)
}

//MaxwellBoltzmann draws velocities from the Maxwell-Boltzmann distribution at temp, using rng.
//Fixed atoms get zero velocity.
func (S *State) MaxwellBoltzmann(temp float64, rng *rand.Rand) {
	for i, m := range S.mass {
		if S.Top.Atom(i).Fixed || temp <= 0 {
			S.Vel.SetVec(i, v3.Vec{})
			continue
		}
		sigma := math.Sqrt(KB * temp * ForceToAccel / m)
		S.Vel.SetVec(i, v3.Vec{sigma * rng.NormFloat64(), sigma * rng.NormFloat64(), sigma * rng.NormFloat64()})
	}
}

//NetMomentum returns the total linear momentum, in amu A/ps.
func (S *State) NetMomentum() v3.Vec {
	var p v3.Vec
	for i, m := range S.mass {
		p = p.Add(S.Vel.Vec(i).Scale(m))
	}
	return p
}

//RemoveNetMomentum subtracts the center-of-mass velocity from all the mobile atoms.
func (S *State) RemoveNetMomentum() {
	var mtot float64
	var p v3.Vec
	for i, m := range S.mass {
		if S.Top.Atom(i).Fixed {
			continue
		}
		mtot += m
		p = p.Add(S.Vel.Vec(i).Scale(m))
	}
	if mtot == 0 {
		return
	}
	vcm := p.Scale(-1 / mtot)
	for i := range S.mass {
		if !S.Top.Atom(i).Fixed {
			S.Vel.AddToVec(i, vcm)
		}
	}
}

//ScaleVelocities multiplies all velocities by f.
func (S *State) ScaleVelocities(f float64) {
	S.Vel.Scale(f, S.Vel.Dense)
}

//Snapshot is a saved copy of the positions and velocities of a state.
type Snapshot struct {
	Coords *v3.Matrix
	Vel    *v3.Matrix
}

//Snapshot returns a copy of the current positions and velocities.
func (S *State) Snapshot() *Snapshot {
	return &Snapshot{Coords: S.Coords.Clone(), Vel: S.Vel.Clone()}
}

//Restore copies the positions and velocities saved in snap back into the state.
func (S *State) Restore(snap *Snapshot) {
	S.Coords.CopyFrom(snap.Coords)
	S.Vel.CopyFrom(snap.Vel)
}

//SwapBuffers exchanges the position and velocity buffers of S and O, which must have the
//same number of atoms. No data is copied: each state takes ownership of the other's matrices.
func (S *State) SwapBuffers(O *State) error {
	if S.Len() != O.Len() {
		return NewConfigError("state", "cannot swap buffers of states with %d and %d atoms", S.Len(), O.Len())
	}
	S.Coords, O.Coords = O.Coords, S.Coords
	S.Vel, O.Vel = O.Vel, S.Vel
	return nil
}
