/*
 * move_test.go, part of gomm.
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
	"math"
	"testing"

	mm "github.com/rmera/gomm"
	v3 "github.com/rmera/gomm/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//peptide returns three residues N-CA(-CB)-C(=O) bonded in a chain, plus a
//separate diatomic molecule.
func peptide(Te *testing.T) *mm.State {
	var atoms []*mm.Atom
	var coords []float64
	names := []string{"N", "CA", "C", "O", "CB"}
	for r := 0; r < 3; r++ {
		for k, n := range names {
			atoms = append(atoms, &mm.Atom{Name: n, Symbol: n[:1], MolID: r + 1, Chain: "A"})
			x := 3.6*float64(r) + []float64{0, 1.2, 2.4, 2.6, 1.4}[k]
			y := []float64{0, 0.9, 0.2, -1.0, 2.3}[k]
			z := []float64{0, 0.3, 0.1, 0.2, -0.4}[k]
			coords = append(coords, x, y, z)
		}
	}
	atoms = append(atoms, &mm.Atom{Name: "O", Symbol: "O"}, &mm.Atom{Name: "O", Symbol: "O"})
	coords = append(coords, 5, 6, 1, 5.2, 7.1, 1.3)
	top, err := mm.NewTopology(atoms)
	require.NoError(Te, err)
	for r := 0; r < 3; r++ {
		o := 5 * r
		for _, b := range [][2]int{{0, 1}, {1, 2}, {2, 3}, {1, 4}} {
			require.NoError(Te, top.AddBond(o+b[0], o+b[1]))
		}
		if r > 0 {
			require.NoError(Te, top.AddBond(o-3, o)) //C(r-1)-N(r)
		}
	}
	require.NoError(Te, top.AddBond(15, 16))
	c, err := v3.NewMatrix(coords)
	require.NoError(Te, err)
	s, err := mm.NewState(top, c, nil)
	require.NoError(Te, err)
	return s
}

func bondLengths(s *mm.State) []float64 {
	var ret []float64
	for _, b := range s.Top.Bonds() {
		ret = append(ret, s.Distance(b[0], b[1]))
	}
	return ret
}

//exercise applies m n times, checking that every move keeps bond lengths and that
//Revert restores the exact coordinates.
func exercise(Te *testing.T, s *mm.State, m Move, n int) {
	Te.Helper()
	rng := mm.NewRand(7)
	ref := bondLengths(s)
	for k := 0; k < n; k++ {
		before := s.Coords.Clone()
		require.NoError(Te, m.Propose(s, rng))
		m.Apply(s)
		assert.InDeltaSlice(Te, ref, bondLengths(s), 1e-9, m.Name())
		moved := false
		for i := 0; i < s.Len(); i++ {
			if s.Coords.Vec(i) != before.Vec(i) {
				moved = true
			}
		}
		assert.True(Te, moved, m.Name())
		m.Revert(s)
		for i := 0; i < s.Len(); i++ {
			require.Equal(Te, before.Vec(i), s.Coords.Vec(i), "%s: atom %d not restored", m.Name(), i)
		}
		//keep some of the moves, so the next ones start from a new geometry
		if k%2 == 0 {
			m.Apply(s)
		}
	}
}

func TestTorsionMove(Te *testing.T) {
	s := peptide(Te)
	T := NewTorsionMove()
	T.NMoves = 2
	exercise(Te, s, T, 20)
	//backbone bonds, except the N-CA of the first residue, which is terminal
	assert.Equal(Te, 7, T.Rotatable())
	for _, r := range T.rot {
		assert.LessOrEqual(Te, 2*len(r.side), s.Len())
	}
	bad := NewTorsionMove()
	bad.Bonds = [][2]int{{0, 2}}
	assert.Error(Te, bad.Propose(s, mm.NewRand(1)))
}

func TestBackboneMove(Te *testing.T) {
	s := peptide(Te)
	B := NewBackboneMove()
	exercise(Te, s, B, 10)
	assert.Equal(Te, 3, B.Residues())
	rng := mm.NewRand(3)
	for {
		require.NoError(Te, B.Propose(s, rng))
		if B.next > 0 {
			break
		}
	}
	r := B.res[B.next]
	prevC := r[0] - 3
	phi0 := mm.StateDihedral(s, prevC, r[0], r[1], r[2])
	B.Apply(s)
	phi1 := mm.StateDihedral(s, prevC, r[0], r[1], r[2])
	assert.InDelta(Te, B.d, mm.WrapAngle(phi1-phi0), 1e-9)
}

//wrapped puts the peptide in a periodic cell so that it is split across the walls.
func wrapped(Te *testing.T) *mm.State {
	s := peptide(Te)
	box, err := mm.NewPeriodicBox(30, 30, 30)
	require.NoError(Te, err)
	s.Box = box
	for i := 0; i < s.Len(); i++ {
		s.Coords.SetVec(i, box.Wrap(s.Coords.Vec(i).Add(v3.Vec{25, 0, 0})))
	}
	return s
}

func TestPeriodicTorsions(Te *testing.T) {
	for name, m := range map[string]Move{
		"torsion":  NewTorsionMove(),
		"backbone": NewBackboneMove(),
	} {
		Te.Run(name, func(Te *testing.T) {
			s := wrapped(Te)
			var split bool
			for _, b := range s.Top.Bonds() {
				if s.Coords.Vec(b[0]).Sub(s.Coords.Vec(b[1])).Norm() > 15 {
					split = true
				}
			}
			require.True(Te, split)
			exercise(Te, s, m, 20)
		})
	}
}

func TestRigidDisplacement(Te *testing.T) {
	s := peptide(Te)
	R := NewRigidDisplacement()
	R.TransStep.Dist = Gaussian
	exercise(Te, s, R, 20)
	assert.Len(Te, R.Molecules, 2)
	rng := mm.NewRand(5)
	require.NoError(Te, R.Propose(s, rng))
	mol := R.Molecules[R.next]
	other := R.Molecules[1-R.next]
	d0 := s.Distance(mol[0], mol[len(mol)-1])
	o0 := s.Coords.Vec(other[0])
	R.Apply(s)
	assert.InDelta(Te, d0, s.Distance(mol[0], mol[len(mol)-1]), 1e-9)
	assert.Equal(Te, o0, s.Coords.Vec(other[0]))
}

func TestStep(Te *testing.T) {
	rng := mm.NewRand(11)
	u := Step{Dist: Uniform, Size: 0.3}
	g := Step{Dist: Gaussian, Size: 0.3}
	var sum2 float64
	n := 20000
	for k := 0; k < n; k++ {
		x := u.Draw(rng)
		assert.True(Te, x >= -0.3 && x < 0.3)
		y := g.Draw(rng)
		sum2 += y * y
	}
	assert.InDelta(Te, 0.3, math.Sqrt(sum2/float64(n)), 0.01)
}

func TestSet(Te *testing.T) {
	var S Set
	assert.Nil(Te, S.Pick(mm.NewRand(1)))
	a, b := NewTorsionMove(), NewRigidDisplacement()
	require.NoError(Te, S.Add(a, 1))
	require.NoError(Te, S.Add(b, 3))
	assert.Error(Te, S.Add(NewBackboneMove(), 0))
	assert.Equal(Te, 2, S.Len())
	rng := mm.NewRand(2)
	count := 0
	n := 40000
	for k := 0; k < n; k++ {
		if S.Pick(rng) == Move(b) {
			count++
		}
	}
	assert.InDelta(Te, 0.75, float64(count)/float64(n), 0.01)
	//a second move of the same kind is picked by position
	require.NoError(Te, S.Add(NewRigidDisplacement(), 4))
	seen := make([]int, S.Len())
	for k := 0; k < n; k++ {
		seen[S.PickIndex(rng)]++
	}
	assert.InDelta(Te, 0.5, float64(seen[2])/float64(n), 0.01)
	assert.Equal(Te, -1, (&Set{}).PickIndex(rng))
}
