/*
 * bonded.go, part of gomm.
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
	"strings"

	mm "github.com/rmera/gomm"
	"github.com/rmera/gomm/nlist"
	v3 "github.com/rmera/gomm/v3"
)

//Bond is a harmonic bond, E = 0.5*K*(r-R0)^2. K in kcal/(mol A^2), R0 in A.
type Bond struct {
	I, J  int
	K, R0 float64
}

//Angle is a harmonic angle i-j-k, E = 0.5*Ktheta*(theta-Theta0)^2, angles in radians.
type Angle struct {
	I, J, K        int
	Ktheta, Theta0 float64
}

//Dihedral is a periodic proper dihedral, E = Kphi*(1+cos(N*phi-Phase)).
type Dihedral struct {
	I, J, K, L int
	Kphi       float64
	N          int
	Phase      float64
}

//Improper is a harmonic improper dihedral, E = 0.5*Kpsi*(psi-Psi0)^2.
type Improper struct {
	I, J, K, L int
	Kpsi, Psi0 float64
}

//Bonded groups the bonded terms of a system. If BreakStrain is positive, bonds are
//breakable: once |r-R0| exceeds BreakStrain, the energy saturates exponentially, so the
//restoring force never exceeds K*BreakStrain but does not vanish either.
type Bonded struct {
	Label       string
	Bonds       []Bond
	Angles      []Angle
	Dihedrals   []Dihedral
	Impropers   []Improper
	BreakStrain float64
	broken      map[[2]int]bool
}

//NewBonded returns an empty, unbreakable, bonded term.
func NewBonded() *Bonded {
	return &Bonded{broken: make(map[[2]int]bool)}
}

func (B *Bonded) Name() string { return label(B.Label, "bonded") }

//FromGeometry adds a harmonic bond for every bond of the topology and a harmonic angle for
//every angle implied by it, with the current geometry of s as equilibrium values.
//Zero force constants skip the corresponding terms.
func (B *Bonded) FromGeometry(s *mm.State, kbond, kangle float64) {
	if kbond > 0 {
		for _, b := range s.Top.Bonds() {
			B.Bonds = append(B.Bonds, Bond{I: b[0], J: b[1], K: kbond, R0: s.Distance(b[0], b[1])})
		}
	}
	if kangle > 0 {
		for _, a := range s.Top.InferAngles() {
			th := mm.Angle(s.Coords.Vec(a[1]).Add(s.Displacement(a[1], a[0])), s.Coords.Vec(a[1]), s.Coords.Vec(a[1]).Add(s.Displacement(a[1], a[2])))
			B.Angles = append(B.Angles, Angle{I: a[0], J: a[1], K: a[2], Ktheta: kangle, Theta0: th})
		}
	}
}

func inRange(n int, idx ...int) bool {
	for _, v := range idx {
		if v < 0 || v >= n {
			return false
		}
	}
	return true
}

//Setup checks the indexes and force constants of all terms.
func (B *Bonded) Setup(s *mm.State) error {
	n := s.Len()
	c := B.Name()
	if B.broken == nil {
		B.broken = make(map[[2]int]bool)
	}
	if B.BreakStrain < 0 {
		return mm.NewConfigError(c, "negative break strain %g", B.BreakStrain)
	}
	for _, b := range B.Bonds {
		if !inRange(n, b.I, b.J) || b.I == b.J {
			return mm.NewConfigError(c, "invalid bond %d-%d", b.I, b.J)
		}
		if !(b.K > 0) || b.R0 < 0 {
			return mm.NewConfigError(c, "bond %d-%d: non-positive force constant %g or negative length %g", b.I, b.J, b.K, b.R0)
		}
	}
	for _, a := range B.Angles {
		if !inRange(n, a.I, a.J, a.K) {
			return mm.NewConfigError(c, "invalid angle %d-%d-%d", a.I, a.J, a.K)
		}
		if !(a.Ktheta > 0) {
			return mm.NewConfigError(c, "angle %d-%d-%d: non-positive force constant %g", a.I, a.J, a.K, a.Ktheta)
		}
	}
	for _, d := range B.Dihedrals {
		if !inRange(n, d.I, d.J, d.K, d.L) {
			return mm.NewConfigError(c, "invalid dihedral %d-%d-%d-%d", d.I, d.J, d.K, d.L)
		}
		if d.Kphi < 0 || d.N < 0 {
			return mm.NewConfigError(c, "dihedral %d-%d-%d-%d: negative barrier %g or multiplicity %d", d.I, d.J, d.K, d.L, d.Kphi, d.N)
		}
	}
	for _, d := range B.Impropers {
		if !inRange(n, d.I, d.J, d.K, d.L) {
			return mm.NewConfigError(c, "invalid improper %d-%d-%d-%d", d.I, d.J, d.K, d.L)
		}
		if !(d.Kpsi > 0) {
			return mm.NewConfigError(c, "improper %d-%d-%d-%d: non-positive force constant %g", d.I, d.J, d.K, d.L, d.Kpsi)
		}
	}
	return nil
}

//Break removes, from the evaluation, every bonded term that spans the bond i-j.
func (B *Bonded) Break(i, j int) {
	if B.broken == nil {
		B.broken = make(map[[2]int]bool)
	}
	B.broken[pairKey(i, j)] = true
}

//ClearBreaks restores all the terms removed by Break.
func (B *Bonded) ClearBreaks() {
	B.broken = make(map[[2]int]bool)
}

//Broken returns the number of broken bonds.
func (B *Bonded) Broken() int { return len(B.broken) }

func pairKey(i, j int) [2]int {
	if i > j {
		return [2]int{j, i}
	}
	return [2]int{i, j}
}

//spans returns true if any consecutive pair in the chain idx is a broken bond.
func (B *Bonded) spans(idx ...int) bool {
	if len(B.broken) == 0 {
		return false
	}
	for k := 0; k+1 < len(idx); k++ {
		if B.broken[pairKey(idx[k], idx[k+1])] {
			return true
		}
	}
	return false
}

//bondEnergy returns the energy of a bond of length r, and its derivative with respect to r.
func (B *Bonded) bondEnergy(b Bond, r float64) (float64, float64) {
	dr := r - b.R0
	s := B.BreakStrain
	if s <= 0 || math.Abs(dr) <= s {
		return 0.5 * b.K * dr * dr, b.K * dr
	}
	sign := 1.0
	if dr < 0 {
		sign = -1
	}
	x := math.Exp(-(math.Abs(dr) - s) / s)
	e := 0.5*b.K*s*s + b.K*s*s*(1-x)
	return e, sign * b.K * s * x
}

func (B *Bonded) Energy(s *mm.State, nl *nlist.List) float64 {
	return B.Forces(s, nl, nil)
}

func (B *Bonded) Forces(s *mm.State, nl *nlist.List, acc *Accumulator) float64 {
	var E float64
	for _, b := range B.Bonds {
		if B.spans(b.I, b.J) {
			continue
		}
		d := s.Displacement(b.I, b.J)
		r := d.Norm()
		e, dEdr := B.bondEnergy(b, r)
		E += e
		acc.PairEnergy(b.I, b.J, e)
		acc.PairGrad(b.I, b.J, dEdr, d, r)
	}
	for _, a := range B.Angles {
		if B.spans(a.I, a.J, a.K) {
			continue
		}
		E += angleTerm(s, a, acc)
	}
	for _, d := range B.Dihedrals {
		if B.spans(d.I, d.J, d.K, d.L) {
			continue
		}
		t := newTorsion(s, d.I, d.J, d.K, d.L)
		x := float64(d.N)*t.phi - d.Phase
		e := d.Kphi * (1 + math.Cos(x))
		t.apply(acc, -d.Kphi*float64(d.N)*math.Sin(x))
		t.energy(acc, e)
		E += e
	}
	for _, d := range B.Impropers {
		if B.spans(d.I, d.J, d.K, d.L) || B.spans(d.I, d.K) || B.spans(d.I, d.L) || B.spans(d.J, d.L) {
			continue
		}
		t := newTorsion(s, d.I, d.J, d.K, d.L)
		dp := mm.WrapAngle(t.phi - d.Psi0)
		e := 0.5 * d.Kpsi * dp * dp
		t.apply(acc, d.Kpsi*dp)
		t.energy(acc, e)
		E += e
	}
	return E
}

//angleTerm computes the energy of a harmonic angle and adds its forces to acc.
func angleTerm(s *mm.State, a Angle, acc *Accumulator) float64 {
	u := s.Displacement(a.J, a.I)
	w := s.Displacement(a.J, a.K)
	nu, nw := u.Norm(), w.Norm()
	theta := math.Atan2(u.Cross(w).Norm(), u.Dot(w))
	dt := theta - a.Theta0
	e := 0.5 * a.Ktheta * dt * dt
	if acc != nil && acc.AtomE != nil {
		acc.AtomE[a.I] += e / 3
		acc.AtomE[a.J] += e / 3
		acc.AtomE[a.K] += e / 3
	}
	if !acc.Forces() || nu == 0 || nw == 0 {
		return e
	}
	dEdt := a.Ktheta * dt
	sin := math.Max(math.Sin(theta), 1e-8)
	cos := math.Cos(theta)
	uh := u.Scale(1 / nu)
	wh := w.Scale(1 / nw)
	fi := wh.Sub(uh.Scale(cos)).Scale(dEdt / (sin * nu))
	fk := uh.Sub(wh.Scale(cos)).Scale(dEdt / (sin * nw))
	acc.Add(a.I, fi)
	acc.Add(a.K, fk)
	acc.Add(a.J, fi.Add(fk).Scale(-1))
	return e
}

//torsion holds the geometry of the dihedral i-j-k-l needed to distribute the forces
//of a torsional potential.
type torsion struct {
	i, j, k, l int
	phi        float64
	rij, rkj   v3.Vec
	rkl        v3.Vec
	m, n       v3.Vec
}

//newTorsion computes the dihedral i-j-k-l (IUPAC convention, in (-pi, pi]) with
//minimum-image bond vectors.
func newTorsion(s *mm.State, i, j, k, l int) *torsion {
	t := &torsion{i: i, j: j, k: k, l: l}
	t.rij = s.Displacement(j, i)
	t.rkj = s.Displacement(j, k)
	t.rkl = s.Displacement(l, k)
	t.m = t.rij.Cross(t.rkj)
	t.n = t.rkj.Cross(t.rkl)
	t.phi = math.Atan2(t.m.Cross(t.n).Norm(), t.m.Dot(t.n))
	if t.rij.Dot(t.n) < 0 {
		t.phi = -t.phi
	}
	return t
}

//apply adds to acc the forces derived from a potential with derivative ddphi=dE/dphi.
func (t *torsion) apply(acc *Accumulator, ddphi float64) {
	if !acc.Forces() {
		return
	}
	iprm := t.m.Norm2()
	iprn := t.n.Norm2()
	nrkj2 := t.rkj.Norm2()
	if iprm < 1e-12*nrkj2 || iprn < 1e-12*nrkj2 || nrkj2 == 0 {
		//collinear atoms, the angle is undefined
		return
	}
	nrkj := math.Sqrt(nrkj2)
	fi := t.m.Scale(-ddphi * nrkj / iprm)
	fl := t.n.Scale(ddphi * nrkj / iprn)
	p := t.rij.Dot(t.rkj) / nrkj2
	q := t.rkl.Dot(t.rkj) / nrkj2
	sv := fi.Scale(p).Sub(fl.Scale(q))
	fj := fi.Sub(sv)
	fk := fl.Add(sv)
	acc.Add(t.i, fi)
	acc.Add(t.j, fj.Scale(-1))
	acc.Add(t.k, fk.Scale(-1))
	acc.Add(t.l, fl)
}

func (t *torsion) energy(acc *Accumulator, e float64) {
	if acc == nil || acc.AtomE == nil {
		return
	}
	for _, a := range []int{t.i, t.j, t.k, t.l} {
		acc.AtomE[a] += e / 4
	}
}

func (B *Bonded) Parameters() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d bonds, %d angles, %d dihedrals, %d impropers", B.Name(), len(B.Bonds), len(B.Angles), len(B.Dihedrals), len(B.Impropers))
	if B.BreakStrain > 0 {
		fmt.Fprintf(&sb, ", breakable (strain %.3f A, %d broken)", B.BreakStrain, len(B.broken))
	}
	return sb.String()
}
