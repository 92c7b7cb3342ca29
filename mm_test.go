/*
 * mm_test.go, part of gomm.
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
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	v3 "github.com/rmera/gomm/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//butane-like chain 0-1-2-3-4 plus a hydrogen (5) on atom 0.
func chainTopology(Te *testing.T) *Topology {
	atoms := make([]*Atom, 6)
	for i := range atoms {
		atoms[i] = &Atom{Name: "C", MolID: i / 2}
	}
	atoms[5] = &Atom{Name: "H1"}
	T, err := NewTopology(atoms)
	require.NoError(Te, err)
	for _, b := range [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {0, 5}} {
		require.NoError(Te, T.AddBond(b[0], b[1]))
	}
	return T
}

func TestTopologyExclusions(Te *testing.T) {
	T := chainTopology(Te)
	assert.True(Te, T.Excluded(0, 1))
	assert.True(Te, T.Excluded(2, 0))
	assert.False(Te, T.Excluded(0, 3))
	assert.True(Te, T.Is14(0, 3))
	assert.True(Te, T.Is14(5, 2))
	assert.False(Te, T.Is14(0, 4))
	want := [][2]int{{0, 3}, {1, 4}, {2, 5}}
	if d := cmp.Diff(want, T.Pairs14()); d != "" {
		Te.Errorf("1-4 pairs mismatch (-want +got):\n%s", d)
	}
	assert.Equal(Te, 12.01, T.Atom(0).Mass)
	assert.True(Te, T.Atom(5).IsHydrogen())
	assert.Len(Te, T.InferAngles(), 4)
	assert.Len(Te, T.InferDihedrals(), 3)
}

func TestTopologyErrors(Te *testing.T) {
	_, err := NewTopology([]*Atom{{Name: "X", Symbol: "Xx"}})
	var cerr *ConfigError
	require.True(Te, errors.As(err, &cerr))
	fmt.Println(cerr)
	T := chainTopology(Te)
	assert.Error(Te, T.AddBond(0, 6))
	assert.Error(Te, T.AddAngle(0, 1, 1))
	assert.NoError(Te, T.AddDihedral(0, 1, 2, 3))
}

func TestSideOf(Te *testing.T) {
	T := chainTopology(Te)
	side, err := T.SideOf(1, 2)
	require.NoError(Te, err)
	assert.Equal(Te, []int{2, 3, 4}, side)
	side, err = T.SideOf(2, 1)
	require.NoError(Te, err)
	assert.Equal(Te, []int{0, 1, 5}, side)
	_, err = T.SideOf(0, 2)
	assert.Error(Te, err)
	//close a ring
	require.NoError(Te, T.AddBond(4, 0))
	_, err = T.SideOf(1, 2)
	assert.Error(Te, err)
	assert.Len(Te, T.Molecules(), 1)
}

func TestMolecules(Te *testing.T) {
	atoms := []*Atom{{Name: "O"}, {Name: "H"}, {Name: "O"}, {Name: "H"}}
	T, err := NewTopology(atoms)
	require.NoError(Te, err)
	require.NoError(Te, T.AddBond(0, 1))
	require.NoError(Te, T.AddBond(2, 3))
	m := T.Molecules()
	assert.Equal(Te, [][]int{{0, 1}, {2, 3}}, m)
	assert.Equal(Te, 1, T.Atom(3).Molecule)
}

func TestBoundary(Te *testing.T) {
	_, err := NewPeriodicBox(10, 0, 10)
	assert.Error(Te, err)
	B, err := NewPeriodicBox(10, 20, 30)
	require.NoError(Te, err)
	d := B.MinImage(v3.Vec{9, -11, 14})
	assert.InDeltaSlice(Te, []float64{-1, 9, 14}, d[:], 1e-12)
	w := B.Wrap(v3.Vec{-1, 41, 5})
	assert.InDeltaSlice(Te, []float64{9, 1, 5}, w[:], 1e-12)
	assert.Equal(Te, 5.0, B.HalfMin())
	assert.Equal(Te, v3.Vec{3, 4, 5}, Vacuum{}.MinImage(v3.Vec{3, 4, 5}))
}

func TestMetropolisLimits(Te *testing.T) {
	for _, T := range []float64{1, 100, 300, 1e6} {
		kT := KT(T)
		assert.Equal(Te, 1.0, AcceptanceProbability(0, kT))
		assert.Equal(Te, 1.0, AcceptanceProbability(-5, kT))
		assert.Equal(Te, 0.0, AcceptanceProbability(math.Inf(1), kT))
		assert.Less(Te, AcceptanceProbability(1e6, kT), 1e-3)
		p1 := AcceptanceProbability(1, kT)
		p2 := AcceptanceProbability(2, kT)
		assert.Less(Te, p2, p1)
	}
	assert.Equal(Te, 0.0, AcceptanceProbability(math.NaN(), 1))
	rng := NewRand(3)
	acc := 0
	for i := 0; i < 10000; i++ {
		if Metropolis(KT(300), KT(300), rng) {
			acc++
		}
	}
	//exp(-1)
	assert.InDelta(Te, math.Exp(-1), float64(acc)/10000, 0.03)
}

func TestStateKinetics(Te *testing.T) {
	T := chainTopology(Te)
	st, err := NewState(T, v3.Zeros(6), nil)
	require.NoError(Te, err)
	_, err = NewState(T, v3.Zeros(5), nil)
	assert.Error(Te, err)
	rng := NewRand(7)
	st.MaxwellBoltzmann(300, rng)
	st.RemoveNetMomentum()
	p := st.NetMomentum()
	assert.InDelta(Te, 0, p.Norm(), 1e-9)
	temp := st.Temperature(st.DegreesOfFreedom(true))
	assert.Greater(Te, temp, 0.0)
	st.ScaleVelocities(2)
	assert.InDelta(Te, 4*temp, st.Temperature(st.DegreesOfFreedom(true)), 1e-9)
	snap := st.Snapshot()
	st.Coords.SetVec(0, v3.Vec{1, 2, 3})
	st.Restore(snap)
	assert.Equal(Te, v3.Vec{}, st.Coords.Vec(0))

	other, _ := NewState(T, v3.Zeros(6), nil)
	other.Coords.SetVec(1, v3.Vec{5, 5, 5})
	oc := other.Coords
	require.NoError(Te, st.SwapBuffers(other))
	assert.Same(Te, oc, st.Coords)
	assert.Equal(Te, v3.Vec{5, 5, 5}, st.Coords.Vec(1))
}

func TestGeometry(Te *testing.T) {
	a := v3.Vec{1, 0, 0}
	b := v3.Vec{0, 0, 0}
	c := v3.Vec{0, 1, 0}
	assert.InDelta(Te, math.Pi/2, Angle(a, b, c), 1e-12)
	d := v3.Vec{0, 1, 1}
	assert.InDelta(Te, -math.Pi/2, Dihedral(a, b, c, d), 1e-12)
	d = v3.Vec{0, 1, -1}
	assert.InDelta(Te, math.Pi/2, Dihedral(a, b, c, d), 1e-12)
	assert.InDelta(Te, -math.Pi+0.1, WrapAngle(math.Pi+0.1), 1e-12)
	//rotating d=(0,1,1) by 90 degrees around the b-c axis takes it to the cis position.
	d = v3.Vec{0, 1, 1}
	R := NewRotator(b, c, math.Pi/2)
	d2 := R.Rotate(d)
	assert.InDeltaSlice(Te, []float64{1, 1, 0}, d2[:], 1e-12)
	assert.InDelta(Te, 0, Dihedral(a, b, c, d2), 1e-9)
	assert.InDelta(Te, d.Norm(), d2.Norm(), 1e-12)
}

func TestElementData(Te *testing.T) {
	m, ok := ElementMass("C")
	assert.True(Te, ok)
	assert.InDelta(Te, 12.01, m, 0.01)
	_, ok = ElementMass("Xx")
	assert.False(Te, ok)
	A := &Atom{Name: "CA"}
	A.fillDefaults()
	assert.Equal(Te, "C", A.Symbol)
	assert.Equal(Te, m, A.Mass)
}

func TestMemTraj(Te *testing.T) {
	T := chainTopology(Te)
	st, _ := NewState(T, v3.Zeros(6), nil)
	M := &MemTraj{}
	require.NoError(Te, M.WriteFrame(st))
	st.Coords.SetVec(2, v3.Vec{1, 1, 1})
	require.NoError(Te, M.WriteFrame(st))
	require.NoError(Te, M.Close())
	assert.Error(Te, M.WriteFrame(st))
	R := M.Reader()
	c := v3.Zeros(6)
	require.NoError(Te, R.Next(c))
	require.NoError(Te, R.Next(c))
	assert.Equal(Te, v3.Vec{1, 1, 1}, c.Vec(2))
	assert.True(Te, IsLastFrame(R.Next(c)))
}
