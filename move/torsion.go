/*
 * torsion.go, part of gomm.
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

package move

import (
	"fmt"
	"math/rand/v2"

	mm "github.com/rmera/gomm"
)

type rotatable struct {
	i, j int   //rotation axis, from i to j
	side []int //atoms rotated
}

type torsionStep struct {
	b     int
	angle float64
}

//TorsionMove rotates the smaller side of randomly chosen rotatable bonds. If Bonds is nil,
//every bond that is not in a ring and not terminal is rotatable. If Atoms is not nil, only
//bonds with both atoms in it are used.
type TorsionMove struct {
	Label  string
	Bonds  [][2]int
	Atoms  []int
	NMoves int  //bonds rotated per move
	Step   Step //radians
	rot    []rotatable
	ready  bool
	next   []torsionStep
	u      undo
}

//NewTorsionMove returns a move that rotates one torsion by up to 60 degrees.
func NewTorsionMove() *TorsionMove {
	return &TorsionMove{NMoves: 1, Step: Step{Dist: Uniform, Size: 60 * mm.Deg2Rad}}
}

func (T *TorsionMove) Name() string {
	if T.Label != "" {
		return T.Label
	}
	return "torsion"
}

func (T *TorsionMove) prepare(s *mm.State) error {
	top := s.Top
	var in map[int]bool
	if T.Atoms != nil {
		in = make(map[int]bool, len(T.Atoms))
		for _, v := range T.Atoms {
			in[v] = true
		}
	}
	bonds := T.Bonds
	explicit := bonds != nil
	if !explicit {
		bonds = top.Bonds()
	}
	T.rot = T.rot[:0]
	for _, b := range bonds {
		i, j := b[0], b[1]
		if in != nil && (!in[i] || !in[j]) {
			continue
		}
		if !explicit && (len(top.Neighbors(i)) < 2 || len(top.Neighbors(j)) < 2) {
			continue
		}
		sj, err := top.SideOf(i, j)
		if err != nil {
			if explicit {
				return mm.NewConfigError(T.Name(), "bond %d-%d is not rotatable: %v", i, j, err)
			}
			continue
		}
		r := rotatable{i: i, j: j, side: sj}
		if 2*len(sj) > top.Len() {
			si, err := top.SideOf(j, i)
			if err == nil {
				r = rotatable{i: j, j: i, side: si}
			}
		}
		T.rot = append(T.rot, r)
	}
	if len(T.rot) == 0 {
		return mm.NewConfigError(T.Name(), "no rotatable bonds")
	}
	if T.NMoves <= 0 {
		T.NMoves = 1
	}
	T.ready = true
	return nil
}

//Rotatable returns the number of rotatable bonds found.
func (T *TorsionMove) Rotatable() int { return len(T.rot) }

func (T *TorsionMove) Propose(s *mm.State, rng *rand.Rand) error {
	if !T.ready {
		if err := T.prepare(s); err != nil {
			return err
		}
	}
	T.next = T.next[:0]
	for k := 0; k < T.NMoves; k++ {
		T.next = append(T.next, torsionStep{b: rng.IntN(len(T.rot)), angle: T.Step.Draw(rng)})
	}
	return nil
}

func (T *TorsionMove) Apply(s *mm.State) {
	T.u.save(s, nil)
	for _, st := range T.next {
		r := T.rot[st.b]
		T.u.add(s, r.side)
		ax1 := s.Coords.Vec(r.i)
		ax2 := ax1.Add(s.Displacement(r.i, r.j))
		rotate(s, r.side, ax1, ax2, st.angle)
	}
}

func (T *TorsionMove) Revert(s *mm.State) { T.u.restore(s) }

func (T *TorsionMove) String() string {
	return fmt.Sprintf("%s: %d rotatable bonds, %d per move, %s step %.1f deg", T.Name(), len(T.rot), T.NMoves, T.Step.Dist, T.Step.Size*mm.Rad2Deg)
}

//BackboneMove rotates the phi (N-CA) torsion of a random residue by d and its psi (CA-C)
//torsion by -Correlation*d, moving the rest of the chain downstream of each bond. With
//Correlation 1 the change is mostly local. Residues whose N-CA or CA-C bond is in a ring
//are skipped.
type BackboneMove struct {
	Label       string
	Step        Step
	Correlation float64
	res         [][3]int //N, CA, C
	phiSide     [][]int
	psiSide     [][]int
	ready       bool
	next        int
	d           float64
	u           undo
}

//NewBackboneMove returns a backbone move with 20 degree uniform steps and full correlation.
func NewBackboneMove() *BackboneMove {
	return &BackboneMove{Step: Step{Dist: Uniform, Size: 20 * mm.Deg2Rad}, Correlation: 1}
}

func (B *BackboneMove) Name() string {
	if B.Label != "" {
		return B.Label
	}
	return "backbone"
}

type resKey struct {
	chain string
	id    int
}

func (B *BackboneMove) prepare(s *mm.State) error {
	top := s.Top
	idx := make(map[resKey]*[3]int)
	var order []resKey
	for i := 0; i < top.Len(); i++ {
		a := top.Atom(i)
		k := resKey{a.Chain, a.MolID}
		r, ok := idx[k]
		if !ok {
			r = &[3]int{-1, -1, -1}
			idx[k] = r
			order = append(order, k)
		}
		switch a.Name {
		case "N":
			r[0] = i
		case "CA":
			r[1] = i
		case "C":
			r[2] = i
		}
	}
	B.res, B.phiSide, B.psiSide = B.res[:0], B.phiSide[:0], B.psiSide[:0]
	for _, k := range order {
		r := *idx[k]
		if r[0] < 0 || r[1] < 0 || r[2] < 0 {
			continue
		}
		phi, err := top.SideOf(r[0], r[1])
		if err != nil {
			continue
		}
		psi, err := top.SideOf(r[1], r[2])
		if err != nil {
			continue
		}
		B.res = append(B.res, r)
		B.phiSide = append(B.phiSide, phi)
		B.psiSide = append(B.psiSide, psi)
	}
	if len(B.res) == 0 {
		return mm.NewConfigError(B.Name(), "no residues with rotatable phi and psi")
	}
	B.ready = true
	return nil
}

func (B *BackboneMove) Propose(s *mm.State, rng *rand.Rand) error {
	if !B.ready {
		if err := B.prepare(s); err != nil {
			return err
		}
	}
	B.next = rng.IntN(len(B.res))
	B.d = B.Step.Draw(rng)
	return nil
}

func (B *BackboneMove) Apply(s *mm.State) {
	r := B.res[B.next]
	B.u.save(s, B.phiSide[B.next])
	B.u.add(s, B.psiSide[B.next])
	n := s.Coords.Vec(r[0])
	rotate(s, B.phiSide[B.next], n, n.Add(s.Displacement(r[0], r[1])), B.d)
	ca := s.Coords.Vec(r[1])
	rotate(s, B.psiSide[B.next], ca, ca.Add(s.Displacement(r[1], r[2])), -B.Correlation*B.d)
}

func (B *BackboneMove) Revert(s *mm.State) { B.u.restore(s) }

//Residues returns the number of residues the move can act on.
func (B *BackboneMove) Residues() int { return len(B.res) }
