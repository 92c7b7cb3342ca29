/*
 * ff_test.go, part of gomm.
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
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	mm "github.com/rmera/gomm"
	"github.com/rmera/gomm/metrics"
	"github.com/rmera/gomm/nlist"
	v3 "github.com/rmera/gomm/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//testSystem returns a 10-atom charged chain plus a water molecule placed
//close to it, in vacuum.
func testSystem(Te *testing.T) *mm.State {
	symbols := []string{"N", "C", "C", "O", "N", "C", "C", "O", "H", "H", "O", "H", "H"}
	atoms := make([]*mm.Atom, len(symbols))
	for i, s := range symbols {
		q := 0.3
		if i%2 == 1 {
			q = -0.3
		}
		atoms[i] = &mm.Atom{Name: s, Symbol: s, MolID: i / 3, Charge: q, VdwEps: 0.1}
	}
	atoms[10].Charge, atoms[11].Charge, atoms[12].Charge = -0.8, 0.4, 0.4
	atoms[10].MolID, atoms[11].MolID, atoms[12].MolID = 10, 10, 10
	top, err := mm.NewTopology(atoms)
	require.NoError(Te, err)
	c := v3.Zeros(len(atoms))
	for i := 0; i < 10; i++ {
		x := float64(i)
		c.SetVec(i, v3.Vec{1.3 * x, 0.8*float64(i%2) + 0.3*math.Sin(x), 0.5 * math.Cos(1.7*x)})
		if i > 0 {
			require.NoError(Te, top.AddBond(i-1, i))
		}
	}
	c.SetVec(10, v3.Vec{6.1, 3.6, 0.4})
	c.SetVec(11, v3.Vec{6.9, 4.1, 0.3})
	c.SetVec(12, v3.Vec{5.4, 4.2, 0.7})
	require.NoError(Te, top.AddBond(10, 11))
	require.NoError(Te, top.AddBond(10, 12))
	s, err := mm.NewState(top, c, nil)
	require.NoError(Te, err)
	return s
}

func testList(Te *testing.T, s *mm.State) *nlist.List {
	nl, err := nlist.New(8, 1, s.Box)
	require.NoError(Te, err)
	nl.Build(s.Coords)
	return nl
}

//checkGradient compares the forces of t with the central finite-difference gradient of its energy.
func checkGradient(Te *testing.T, s *mm.State, nl *nlist.List, t Term) {
	Te.Helper()
	acc := &Accumulator{F: v3.Zeros(s.Len())}
	t.Forces(s, nl, acc)
	const h = 1e-5
	for i := 0; i < s.Len(); i++ {
		for k := 0; k < 3; k++ {
			x := s.Coords.At(i, k)
			s.Coords.Set(i, k, x+h)
			ep := t.Energy(s, nl)
			s.Coords.Set(i, k, x-h)
			em := t.Energy(s, nl)
			s.Coords.Set(i, k, x)
			num := -(ep - em) / (2 * h)
			got := acc.F.At(i, k)
			assert.InDeltaf(Te, num, got, 1e-4*(1+math.Abs(num)), "%s: atom %d, coordinate %d", t.Name(), i, k)
		}
	}
}

//checkNetForce verifies that the forces of t add up to zero.
func checkNetForce(Te *testing.T, s *mm.State, nl *nlist.List, t Term) {
	Te.Helper()
	acc := &Accumulator{F: v3.Zeros(s.Len())}
	t.Forces(s, nl, acc)
	net := acc.F.Sum()
	assert.InDeltaf(Te, 0, net.Norm(), 1e-9, "%s: net force %v", t.Name(), net)
}

func TestSwitch(Te *testing.T) {
	for _, c := range [][2]float64{{9, 12}, {6, 8}, {0, 5}, {3.5, 3.6}} {
		on, off := c[0], c[1]
		s, ds := Switch(on, on, off)
		assert.Equal(Te, 1.0, s)
		assert.Equal(Te, 0.0, ds)
		s, ds = Switch(on+1e-9, on, off)
		assert.InDelta(Te, 1, s, 1e-6)
		assert.InDelta(Te, 0, ds, 1e-5)
		s, ds = Switch(off, on, off)
		assert.Equal(Te, 0.0, s)
		assert.Equal(Te, 0.0, ds)
		s, ds = Switch(off-1e-9, on, off)
		assert.InDelta(Te, 0, s, 1e-9)
		assert.InDelta(Te, 0, ds, 1e-5)
		//derivative matches finite differences in the middle
		r := 0.5 * (on + off)
		sp, _ := Switch(r+1e-6, on, off)
		sm, _ := Switch(r-1e-6, on, off)
		_, ds = Switch(r, on, off)
		assert.InDelta(Te, (sp-sm)/2e-6, ds, 1e-5)
	}
	s, _ := Switch(4, 5, 5)
	assert.Equal(Te, 1.0, s)
}

//A single stretched bond.
func TestSingleBond(Te *testing.T) {
	top, err := mm.NewTopology([]*mm.Atom{{Name: "C"}, {Name: "C"}})
	require.NoError(Te, err)
	require.NoError(Te, top.AddBond(0, 1))
	c, err := v3.NewMatrix([]float64{0, 0, 0, 1.5, 0, 0})
	require.NoError(Te, err)
	s, err := mm.NewState(top, c, nil)
	require.NoError(Te, err)
	k := 300.0
	B := NewBonded()
	B.Bonds = []Bond{{I: 0, J: 1, K: k, R0: 1.0}}
	F := New(s, nil)
	require.NoError(Te, F.Add(B))
	res, err := F.Evaluate()
	require.NoError(Te, err)
	assert.InDelta(Te, 0.5*k*0.25, res.Total, 1e-10)
	f0, f1 := s.Forces.Vec(0), s.Forces.Vec(1)
	assert.InDelta(Te, k*0.5, f0.Norm(), 1e-10)
	assert.InDelta(Te, k*0.5, f1.Norm(), 1e-10)
	assert.InDelta(Te, k*0.5, f0[0], 1e-10) //atom 0 is pulled toward atom 1
	assert.InDelta(Te, 0, f0.Add(f1).Norm(), 1e-12)
	assert.InDelta(Te, 0, f0.Cross(v3.Vec{1, 0, 0}).Norm(), 1e-12)
}

func TestBondedGradient(Te *testing.T) {
	s := testSystem(Te)
	B := NewBonded()
	B.FromGeometry(s, 300, 50)
	for _, d := range s.Top.InferDihedrals() {
		B.Dihedrals = append(B.Dihedrals, Dihedral{I: d[0], J: d[1], K: d[2], L: d[3], Kphi: 1.2, N: 3, Phase: 0.3})
	}
	B.Impropers = []Improper{{I: 0, J: 1, K: 2, L: 3, Kpsi: 10, Psi0: 0.2}}
	require.NoError(Te, B.Setup(s))
	s.Coords.Set(3, 1, s.Coords.At(3, 1)+0.2)
	s.Coords.Set(6, 2, s.Coords.At(6, 2)-0.15)
	checkGradient(Te, s, nil, B)
	checkNetForce(Te, s, nil, B)
	B.BreakStrain = 0.05
	checkGradient(Te, s, nil, B)
}

func TestBondedErrors(Te *testing.T) {
	s := testSystem(Te)
	B := NewBonded()
	B.Bonds = []Bond{{I: 0, J: 1, K: 0, R0: 1}}
	var cerr *mm.ConfigError
	assert.True(Te, errors.As(B.Setup(s), &cerr))
	B.Bonds = []Bond{{I: 0, J: 40, K: 10, R0: 1}}
	assert.Error(Te, B.Setup(s))
	B.Bonds = nil
	B.Angles = []Angle{{I: 0, J: 1, K: 2, Ktheta: -1}}
	assert.Error(Te, B.Setup(s))
}

func TestBreakableBond(Te *testing.T) {
	top, err := mm.NewTopology([]*mm.Atom{{Name: "C"}, {Name: "C"}})
	require.NoError(Te, err)
	require.NoError(Te, top.AddBond(0, 1))
	c, err := v3.NewMatrix([]float64{0, 0, 0, 4, 0, 0})
	require.NoError(Te, err)
	s, err := mm.NewState(top, c, nil)
	require.NoError(Te, err)
	B := NewBonded()
	B.Bonds = []Bond{{I: 0, J: 1, K: 300, R0: 1.0}}
	B.BreakStrain = 0.2
	require.NoError(Te, B.Setup(s))
	acc := &Accumulator{F: v3.Zeros(2)}
	e := B.Forces(s, nil, acc)
	f := acc.F.Vec(0).Norm()
	assert.Greater(Te, f, 0.0)
	assert.LessOrEqual(Te, f, 300*0.2+1e-9)
	assert.Less(Te, e, 0.5*300*9.0)
	//saturation: the energy is bounded by 1.5*K*s^2
	assert.Less(Te, e, 1.5*300*0.04)
}

func TestBreak(Te *testing.T) {
	s := testSystem(Te)
	B := NewBonded()
	B.FromGeometry(s, 300, 50)
	for _, d := range s.Top.InferDihedrals() {
		B.Dihedrals = append(B.Dihedrals, Dihedral{I: d[0], J: d[1], K: d[2], L: d[3], Kphi: 1, N: 2})
	}
	require.NoError(Te, B.Setup(s))
	s.Coords.Set(5, 0, s.Coords.At(5, 0)+0.3)
	e0 := B.Energy(s, nil)
	B.Break(4, 5)
	assert.Equal(Te, 1, B.Broken())
	e1 := B.Energy(s, nil)
	assert.NotEqual(Te, e0, e1)
	checkGradient(Te, s, nil, B)
	B.ClearBreaks()
	assert.InDelta(Te, e0, B.Energy(s, nil), 1e-12)
	assert.True(Te, strings.Contains(B.Parameters(), "bonds"))
}

func TestNonBonded(Te *testing.T) {
	s := testSystem(Te)
	nl := testList(Te, s)
	N := NewNonBonded()
	N.InnerCutoff, N.Cutoff = 3, 6
	N.VdwInnerCutoff, N.VdwCutoff = 3, 5
	require.NoError(Te, N.Setup(s))
	checkGradient(Te, s, nl, N)
	checkNetForce(Te, s, nl, N)
	N.DDDielectric = true
	N.Dielectric = 4
	checkGradient(Te, s, nl, N)
	checkNetForce(Te, s, nl, N)
	N.InnerCutoff = 7
	assert.Error(Te, N.Setup(s))
}

func TestNonBondedCutoff(Te *testing.T) {
	N := NewNonBonded()
	a := &mm.Atom{Charge: 1, Vdw: 1.7, VdwEps: 0.1}
	b := &mm.Atom{Charge: -1, Vdw: 1.7, VdwEps: 0.1}
	for _, r := range []float64{N.Cutoff, N.Cutoff + 1} {
		e, d := N.pair(a, b, r, 1, 1)
		assert.Equal(Te, 0.0, e)
		assert.Equal(Te, 0.0, d)
	}
	e, d := N.pair(a, b, N.Cutoff-1e-9, 1, 1)
	assert.InDelta(Te, 0, e, 1e-9)
	assert.InDelta(Te, 0, d, 1e-6)
	//continuity at the inner cutoff
	e1, d1 := N.pair(a, b, N.InnerCutoff-1e-8, 1, 1)
	e2, d2 := N.pair(a, b, N.InnerCutoff+1e-8, 1, 1)
	assert.InDelta(Te, e1, e2, 1e-6)
	assert.InDelta(Te, d1, d2, 1e-6)
	//the LJ minimum sits at Rmin
	N.NoElec = true
	_, d = N.pair(a, b, 3.4, 1, 1)
	assert.InDelta(Te, 0, d, 1e-10)
	e, _ = N.pair(a, b, 3.4, 1, 1)
	assert.InDelta(Te, -0.1, e, 1e-10)
}

func TestSoftVDW(Te *testing.T) {
	s := testSystem(Te)
	//push the water into the chain
	for i := 10; i < 13; i++ {
		s.Coords.Set(i, 1, s.Coords.At(i, 1)-1.5)
	}
	nl := testList(Te, s)
	S := NewSoftVDW()
	require.NoError(Te, S.Setup(s))
	e := S.Energy(s, nl)
	assert.Greater(Te, e, 0.0)
	checkGradient(Te, s, nl, S)
	checkNetForce(Te, s, nl, S)
}

func TestGB(Te *testing.T) {
	s := testSystem(Te)
	nl := testList(Te, s)
	G := NewGB()
	G.InnerCutoff, G.Cutoff = 4, 7
	require.NoError(Te, G.Setup(s))
	e := G.Energy(s, nl)
	assert.Less(Te, e, 0.0) //solvation is favorable
	for i, a := range G.BornRadii() {
		assert.Greater(Te, a, G.rho[i]-1e-12, "descreening can only grow the radii")
		assert.LessOrEqual(Te, a, G.MaxBornRadius)
	}
	checkGradient(Te, s, nl, G)
	checkNetForce(Te, s, nl, G)
}

func TestHCT(Te *testing.T) {
	for _, c := range [][3]float64{{3, 1.5, 1.2}, {1.0, 1.4, 1.2}, {0.4, 1.0, 2.0}, {5, 1.7, 1.3}} {
		r, rho, sc := c[0], c[1], c[2]
		I, dI := hct(r, rho, sc)
		assert.GreaterOrEqual(Te, I, 0.0)
		Ip, _ := hct(r+1e-6, rho, sc)
		Im, _ := hct(r-1e-6, rho, sc)
		assert.InDelta(Te, (Ip-Im)/2e-6, dI, 1e-5)
	}
	I, _ := hct(0.5, 2, 1)
	assert.Equal(Te, 0.0, I)
}

func TestSASA(Te *testing.T) {
	s := testSystem(Te)
	nl := testList(Te, s)
	S := NewSASA()
	require.NoError(Te, S.Setup(s))
	assert.LessOrEqual(Te, S.MaxCutoff(), nl.Cutoff())
	e := S.Energy(s, nl)
	assert.Greater(Te, e, 0.0)
	for i, a := range S.AtomSASA() {
		R := S.radius[i] + S.ProbeRadius
		assert.GreaterOrEqual(Te, a, 0.0)
		assert.LessOrEqual(Te, a, 4*math.Pi*R*R)
	}
	checkGradient(Te, s, nl, S)
	checkNetForce(Te, s, nl, S)
	//fully buried atoms get zero area, never a negative one
	for i := 0; i < s.Len(); i++ {
		s.Coords.SetVec(i, v3.Vec{0.01 * float64(i), 0, 0})
	}
	nl.Build(s.Coords)
	S.Energy(s, nl)
	for _, a := range S.AtomSASA() {
		assert.GreaterOrEqual(Te, a, 0.0)
	}
}

func TestRestraints(Te *testing.T) {
	s := testSystem(Te)
	nc := NewNativeContact(nil, 5)
	nc.MinResidueSeparation = 2
	rs := []Restraint{
		NewPositional([]int{0, 3, 5}, 10),
		&Positional{Atoms: []int{1, 2}, K: 5, Power: 4},
		NewInternal([]int{0, 1, 2, 3, 4, 5}, 8),
		NewTorsional(nil, 3),
		nc,
		&AtomDistance{I: 0, J: 9, K: 2, Dist: 10},
	}
	for _, r := range rs {
		require.NoError(Te, r.Setup(s), r.Name())
	}
	//at the reference geometry the restraints are satisfied
	for _, r := range rs[:5] {
		assert.InDelta(Te, 0, r.Energy(s, nil), 1e-12, r.Name())
		assert.InDelta(Te, 0, r.Q(s), 1e-12, r.Name())
	}
	assert.Equal(Te, 1.0, nc.Fraction(s))
	for i := 0; i < s.Len(); i++ {
		s.Coords.AddToVec(i, v3.Vec{0.1 * math.Sin(float64(i)), 0.07 * float64(i%3), -0.05 * math.Cos(float64(i))})
	}
	for _, r := range rs {
		checkGradient(Te, s, nil, r)
		assert.Greater(Te, r.Energy(s, nil), 0.0, r.Name())
	}
	//EnergyAtQ is exact for single harmonic restraints and for uniform deviations
	ad := rs[5]
	assert.InDelta(Te, ad.Energy(s, nil), ad.EnergyAtQ(ad.Q(s)), 1e-12)
	pos := NewPositional([]int{0}, 10)
	require.NoError(Te, pos.Setup(s))
	s.Coords.AddToVec(0, v3.Vec{0.3, 0, 0})
	assert.InDelta(Te, 0.3, pos.Q(s), 1e-12)
	assert.InDelta(Te, pos.Energy(s, nil), pos.EnergyAtQ(pos.Q(s)), 1e-12)
}

func TestRestraintErrors(Te *testing.T) {
	s := testSystem(Te)
	var cerr *mm.ConfigError
	assert.True(Te, errors.As(NewPositional(nil, 0).Setup(s), &cerr))
	assert.True(Te, errors.As(NewPositional([]int{100}, 1).Setup(s), &cerr))
	assert.NoError(Te, (&Positional{K: 0, Passive: true}).Setup(s))
	assert.Error(Te, (&AtomDistance{I: 1, J: 1, K: 1}).Setup(s))
	nc := NewNativeContact([]int{0, 1}, 1)
	assert.True(Te, errors.As(nc.Setup(s), &cerr))
	pas := &AtomDistance{I: 0, J: 9, K: 1, Passive: true, Dist: 1}
	require.NoError(Te, pas.Setup(s))
	assert.Equal(Te, 0.0, pas.Energy(s, nil))
	assert.Greater(Te, pas.Q(s), 1.0)
	tor := NewTorsional(nil, 1)
	tor.OneRestraintPerBond = true
	require.NoError(Te, tor.Setup(s))
	assert.Equal(Te, 7, tor.NDihedrals())
}

type nanTerm struct{}

func (nanTerm) Name() string                                        { return "nan" }
func (nanTerm) Setup(*mm.State) error                               { return nil }
func (nanTerm) Energy(*mm.State, *nlist.List) float64               { return math.NaN() }
func (nanTerm) Forces(*mm.State, *nlist.List, *Accumulator) float64 { return math.NaN() }
func (nanTerm) Parameters() string                                  { return "nan" }

func fullForcefield(Te *testing.T, s *mm.State) *Forcefield {
	nl, err := nlist.New(12, 1.5, s.Box)
	require.NoError(Te, err)
	F := New(s, nl)
	B := NewBonded()
	B.FromGeometry(s, 300, 50)
	for _, t := range []Term{B, NewNonBonded(), NewGB(), NewSASA(), NewPositional([]int{0}, 1)} {
		require.NoError(Te, F.Add(t))
	}
	return F
}

func TestForcefield(Te *testing.T) {
	s := testSystem(Te)
	F := fullForcefield(Te, s)
	assert.Len(Te, F.Terms(), 5)
	r1, err := F.Evaluate()
	require.NoError(Te, err)
	f1 := s.Forces.Clone()
	r2, err := F.Evaluate()
	require.NoError(Te, err)
	assert.Equal(Te, r1.Total, r2.Total)
	assert.True(Te, mat2Equal(f1, s.Forces))
	e, err := F.Energy()
	require.NoError(Te, err)
	assert.InDelta(Te, r1.Total, e, 1e-9)
	assert.True(Te, mat2Equal(f1, s.Forces))
	var sum float64
	for _, v := range r1.ByTerm {
		sum += v.Energy
	}
	assert.InDelta(Te, r1.Total, sum, 1e-9)
	ra, err := F.EvaluateByAtom()
	require.NoError(Te, err)
	sum = 0
	for _, v := range ra.ByAtom {
		sum += v
	}
	assert.InDelta(Te, ra.Total, sum, 1e-8)
	gb, ok := r1.Term("gb")
	assert.True(Te, ok)
	assert.Less(Te, gb, 0.0)
	var buf bytes.Buffer
	require.NoError(Te, F.Summary(&buf))
	assert.Contains(Te, buf.String(), "nonbonded")
	assert.Contains(Te, F.Parameters(), "HCT")
	assert.NotNil(Te, F.Term("sasa"))
	assert.Len(Te, r1.Fields(), 6)
}

func mat2Equal(a, b *v3.Matrix) bool {
	for i := 0; i < a.NVecs(); i++ {
		if a.Vec(i) != b.Vec(i) {
			return false
		}
	}
	return true
}

func TestForcefieldErrors(Te *testing.T) {
	s := testSystem(Te)
	F := fullForcefield(Te, s)
	var cerr *mm.ConfigError
	assert.True(Te, errors.As(F.Add(NewNonBonded()), &cerr), "duplicated name")
	nb := NewNonBonded()
	nb.Label = "far"
	nb.Cutoff = 20
	assert.True(Te, errors.As(F.Add(nb), &cerr), "cutoff beyond the neighbor list")
	assert.Error(Te, New(s, nil).Add(NewSoftVDW()), "no neighbor list")
	require.NoError(Te, F.Add(nanTerm{}))
	_, err := F.Evaluate()
	var derr *mm.DivergenceError
	require.True(Te, errors.As(err, &derr))
	assert.Equal(Te, -1, derr.Step)

	//the SASA cutoff is only known once the radii are read
	nl, err := nlist.New(3, 0.5, s.Box)
	require.NoError(Te, err)
	F = New(s, nl)
	assert.True(Te, errors.As(F.Add(NewSASA()), &cerr), "SASA overlaps beyond the neighbor list")
	assert.Empty(Te, F.Terms())
}

func rebuildsMetric(n int) *strings.Reader {
	return strings.NewReader(`# HELP gomm_nlist_rebuilds_total Neighbor list rebuilds.
# TYPE gomm_nlist_rebuilds_total counter
gomm_nlist_rebuilds_total ` + fmt.Sprint(n) + "\n")
}

func TestForcefieldNeighborList(Te *testing.T) {
	s := testSystem(Te)
	reg := prometheus.NewRegistry()
	C, err := metrics.New(reg)
	require.NoError(Te, err)
	nl, err := nlist.New(12, 1.5, s.Box)
	require.NoError(Te, err)
	nl.Metrics, nl.Interval = C, 2
	F := New(s, nl)
	F.Metrics = C
	require.NoError(Te, F.Add(NewNonBonded()))
	//evaluations are not steps, so they never age the list
	for i := 0; i < 5; i++ {
		_, err := F.Evaluate()
		require.NoError(Te, err)
		_, err = F.Energy()
		require.NoError(Te, err)
	}
	assert.Equal(Te, 1, nl.Rebuilds())
	require.NoError(Te, testutil.GatherAndCompare(reg, rebuildsMetric(1), "gomm_nlist_rebuilds_total"))
	nl.Tick()
	nl.Tick()
	_, err = F.Evaluate()
	require.NoError(Te, err)
	assert.Equal(Te, 2, nl.Rebuilds())
	require.NoError(Te, testutil.GatherAndCompare(reg, rebuildsMetric(2), "gomm_nlist_rebuilds_total"))
}
