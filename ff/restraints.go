/*
 * restraints.go, part of gomm.
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

//All restraints capture their target geometry from the state given to Setup.
//A Passive restraint still reports its coordinate Q, but contributes neither
//energy nor forces, so it can be used to monitor a coordinate without biasing it.

func checkK(comp string, k float64, passive bool) error {
	if passive && k >= 0 {
		return nil
	}
	if !(k > 0) || math.IsInf(k, 0) {
		return mm.NewConfigError(comp, "force constant must be positive, got %g", k)
	}
	return nil
}

//Positional restrains atoms to their positions at Setup, E = sum 0.5*K*d^Power.
//Q is the RMS deviation from the reference positions.
type Positional struct {
	Label   string
	Atoms   []int //nil means all atoms
	K       float64
	Power   float64
	Passive bool
	ref     []v3.Vec
}

//NewPositional returns a harmonic positional restraint on the given atoms.
func NewPositional(atoms []int, k float64) *Positional {
	return &Positional{Atoms: atoms, K: k, Power: 2}
}

func (P *Positional) Name() string { return label(P.Label, "positional") }

func (P *Positional) Setup(s *mm.State) error {
	var err error
	if P.Atoms, err = selection(P.Name(), s, P.Atoms); err != nil {
		return err
	}
	if err = checkK(P.Name(), P.K, P.Passive); err != nil {
		return err
	}
	if P.Power == 0 {
		P.Power = 2
	}
	if P.Power < 1 {
		return mm.NewConfigError(P.Name(), "power must be at least 1, got %g", P.Power)
	}
	P.ref = make([]v3.Vec, len(P.Atoms))
	for k, i := range P.Atoms {
		P.ref[k] = s.Coords.Vec(i)
	}
	return nil
}

func (P *Positional) dev(s *mm.State, k int) v3.Vec {
	return s.Box.MinImage(s.Coords.Vec(P.Atoms[k]).Sub(P.ref[k]))
}

func (P *Positional) Q(s *mm.State) float64 {
	if len(P.Atoms) == 0 {
		return 0
	}
	var sum float64
	for k := range P.Atoms {
		sum += P.dev(s, k).Norm2()
	}
	return math.Sqrt(sum / float64(len(P.Atoms)))
}

//Deviation returns the RMS deviation from the reference positions.
func (P *Positional) Deviation(s *mm.State) float64 { return P.Q(s) }

func (P *Positional) EnergyAtQ(q float64) float64 {
	return float64(len(P.Atoms)) * 0.5 * P.K * math.Pow(q, P.Power)
}

func (P *Positional) Energy(s *mm.State, nl *nlist.List) float64 { return P.Forces(s, nl, nil) }

func (P *Positional) Forces(s *mm.State, nl *nlist.List, acc *Accumulator) float64 {
	if P.Passive {
		return 0
	}
	var E float64
	for k, i := range P.Atoms {
		d := P.dev(s, k)
		r := d.Norm()
		e := 0.5 * P.K * math.Pow(r, P.Power)
		E += e
		acc.AtomEnergy(i, e)
		if r > 0 {
			acc.Add(i, d.Scale(-0.5*P.K*P.Power*math.Pow(r, P.Power-1)/r))
		}
	}
	return E
}

func (P *Positional) Parameters() string {
	return fmt.Sprintf("%s: %d atoms, K %.3f, power %.1f%s", P.Name(), len(P.Atoms), P.K, P.Power, passive(P.Passive))
}

func passive(p bool) string {
	if p {
		return " (passive)"
	}
	return ""
}

type distPair struct {
	i, j int
	r0   float64
}

//pairRestraint is the machinery shared by the restraints on a set of interatomic distances.
type pairRestraint struct {
	pairs []distPair
	k     float64
	norm  float64 //energies are divided by this
}

func (R *pairRestraint) q(s *mm.State) float64 {
	if len(R.pairs) == 0 {
		return 0
	}
	var sum float64
	for _, p := range R.pairs {
		d := s.Distance(p.i, p.j) - p.r0
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(R.pairs)))
}

func (R *pairRestraint) energyAtQ(q float64) float64 {
	return float64(len(R.pairs)) * 0.5 * R.k * q * q / R.norm
}

func (R *pairRestraint) forces(s *mm.State, acc *Accumulator) float64 {
	var E float64
	for _, p := range R.pairs {
		d := s.Displacement(p.i, p.j)
		r := d.Norm()
		x := r - p.r0
		e := 0.5 * R.k * x * x / R.norm
		E += e
		acc.PairEnergy(p.i, p.j, e)
		acc.PairGrad(p.i, p.j, R.k*x/R.norm, d, r)
	}
	return E
}

//Internal restrains every distance between the selected atoms that is shorter than
//RestCutoff at Setup to its initial value, acting as a set of elastic struts.
//With DivByNumber, the energy is divided by the number of distances.
type Internal struct {
	Label       string
	Atoms       []int
	K           float64
	RestCutoff  float64
	DivByNumber bool
	Passive     bool
	pairRestraint
}

//NewInternal returns an internal restraint with a 6 A strut cutoff.
func NewInternal(atoms []int, k float64) *Internal {
	return &Internal{Atoms: atoms, K: k, RestCutoff: 6}
}

func (I *Internal) Name() string { return label(I.Label, "internal") }

func (I *Internal) Setup(s *mm.State) error {
	var err error
	if I.Atoms, err = selection(I.Name(), s, I.Atoms); err != nil {
		return err
	}
	if err = checkK(I.Name(), I.K, I.Passive); err != nil {
		return err
	}
	if !(I.RestCutoff > 0) {
		return mm.NewConfigError(I.Name(), "RestCutoff must be positive, got %g", I.RestCutoff)
	}
	I.pairs = I.pairs[:0]
	for a := 0; a < len(I.Atoms); a++ {
		for b := a + 1; b < len(I.Atoms); b++ {
			r := s.Distance(I.Atoms[a], I.Atoms[b])
			if r < I.RestCutoff {
				I.pairs = append(I.pairs, distPair{I.Atoms[a], I.Atoms[b], r})
			}
		}
	}
	I.k, I.norm = I.K, 1
	if I.DivByNumber && len(I.pairs) > 0 {
		I.norm = float64(len(I.pairs))
	}
	return nil
}

//Q returns the RMS deviation of the restrained distances.
func (I *Internal) Q(s *mm.State) float64                      { return I.q(s) }
func (I *Internal) Deviation(s *mm.State) float64              { return I.q(s) }
func (I *Internal) EnergyAtQ(q float64) float64                { return I.energyAtQ(q) }
func (I *Internal) Energy(s *mm.State, nl *nlist.List) float64 { return I.Forces(s, nl, nil) }

func (I *Internal) Forces(s *mm.State, nl *nlist.List, acc *Accumulator) float64 {
	if I.Passive {
		return 0
	}
	return I.forces(s, acc)
}

//NPairs returns the number of restrained distances.
func (I *Internal) NPairs() int { return len(I.pairs) }

func (I *Internal) Parameters() string {
	return fmt.Sprintf("%s: %d distances under %.2f A, K %.3f%s", I.Name(), len(I.pairs), I.RestCutoff, I.K, passive(I.Passive))
}

//NativeContact restrains the contacts present at Setup: pairs of selected atoms closer than
//ContactCutoff whose residues are at least MinResidueSeparation apart (or in different chains).
//The energy is normalized by the number of contacts.
type NativeContact struct {
	Label                string
	Atoms                []int
	K                    float64
	ContactCutoff        float64
	MinResidueSeparation int
	Passive              bool
	pairRestraint
}

//NewNativeContact returns a native-contact restraint with a 6 A contact cutoff and
//a minimum separation of 3 residues.
func NewNativeContact(atoms []int, k float64) *NativeContact {
	return &NativeContact{Atoms: atoms, K: k, ContactCutoff: 6, MinResidueSeparation: 3}
}

func (N *NativeContact) Name() string { return label(N.Label, "native_contact") }

func (N *NativeContact) Setup(s *mm.State) error {
	var err error
	if N.Atoms, err = selection(N.Name(), s, N.Atoms); err != nil {
		return err
	}
	if err = checkK(N.Name(), N.K, N.Passive); err != nil {
		return err
	}
	if !(N.ContactCutoff > 0) {
		return mm.NewConfigError(N.Name(), "ContactCutoff must be positive, got %g", N.ContactCutoff)
	}
	N.pairs = N.pairs[:0]
	for a := 0; a < len(N.Atoms); a++ {
		ai := s.Top.Atom(N.Atoms[a])
		for b := a + 1; b < len(N.Atoms); b++ {
			aj := s.Top.Atom(N.Atoms[b])
			sep := ai.MolID - aj.MolID
			if sep < 0 {
				sep = -sep
			}
			if ai.Chain == aj.Chain && sep < N.MinResidueSeparation {
				continue
			}
			r := s.Distance(N.Atoms[a], N.Atoms[b])
			if r < N.ContactCutoff {
				N.pairs = append(N.pairs, distPair{N.Atoms[a], N.Atoms[b], r})
			}
		}
	}
	if len(N.pairs) == 0 {
		return mm.NewConfigError(N.Name(), "no native contacts found under %.2f A", N.ContactCutoff)
	}
	N.k, N.norm = N.K, float64(len(N.pairs))
	return nil
}

//Q returns the RMS deviation of the contact distances from their native values.
func (N *NativeContact) Q(s *mm.State) float64         { return N.q(s) }
func (N *NativeContact) Deviation(s *mm.State) float64 { return N.q(s) }
func (N *NativeContact) EnergyAtQ(q float64) float64   { return N.energyAtQ(q) }
func (N *NativeContact) Energy(s *mm.State, nl *nlist.List) float64 {
	return N.Forces(s, nl, nil)
}

func (N *NativeContact) Forces(s *mm.State, nl *nlist.List, acc *Accumulator) float64 {
	if N.Passive {
		return 0
	}
	return N.forces(s, acc)
}

//Fraction returns the fraction of native contacts that are formed, i.e. shorter
//than 1.2 times their native distance.
func (N *NativeContact) Fraction(s *mm.State) float64 {
	if len(N.pairs) == 0 {
		return 0
	}
	formed := 0
	for _, p := range N.pairs {
		if s.Distance(p.i, p.j) < 1.2*p.r0 {
			formed++
		}
	}
	return float64(formed) / float64(len(N.pairs))
}

//NContacts returns the number of native contacts.
func (N *NativeContact) NContacts() int { return len(N.pairs) }

func (N *NativeContact) Parameters() string {
	return fmt.Sprintf("%s: %d contacts under %.2f A (min. residue separation %d), K %.3f%s",
		N.Name(), len(N.pairs), N.ContactCutoff, N.MinResidueSeparation, N.K, passive(N.Passive))
}

//AtomDistance restrains the distance between atoms I and J to Dist. If Dist is not
//positive, the distance at Setup is used. Q is the distance itself.
type AtomDistance struct {
	Label   string
	I, J    int
	Dist    float64
	K       float64
	Passive bool
}

func (A *AtomDistance) Name() string { return label(A.Label, fmt.Sprintf("distance_%d_%d", A.I, A.J)) }

func (A *AtomDistance) Setup(s *mm.State) error {
	if A.I < 0 || A.J < 0 || A.I >= s.Len() || A.J >= s.Len() || A.I == A.J {
		return mm.NewConfigError(A.Name(), "invalid atom pair %d-%d", A.I, A.J)
	}
	if err := checkK(A.Name(), A.K, A.Passive); err != nil {
		return err
	}
	if A.Dist <= 0 {
		A.Dist = s.Distance(A.I, A.J)
	}
	return nil
}

func (A *AtomDistance) Q(s *mm.State) float64 { return s.Distance(A.I, A.J) }

//Deviation returns the difference between the current and the target distance.
func (A *AtomDistance) Deviation(s *mm.State) float64 { return A.Q(s) - A.Dist }

func (A *AtomDistance) EnergyAtQ(q float64) float64 {
	x := q - A.Dist
	return 0.5 * A.K * x * x
}

func (A *AtomDistance) Energy(s *mm.State, nl *nlist.List) float64 { return A.Forces(s, nl, nil) }

func (A *AtomDistance) Forces(s *mm.State, nl *nlist.List, acc *Accumulator) float64 {
	if A.Passive {
		return 0
	}
	d := s.Displacement(A.I, A.J)
	r := d.Norm()
	e := A.EnergyAtQ(r)
	acc.PairEnergy(A.I, A.J, e)
	acc.PairGrad(A.I, A.J, A.K*(r-A.Dist), d, r)
	return e
}

func (A *AtomDistance) Parameters() string {
	return fmt.Sprintf("%s: target %.3f A, K %.3f%s", A.Name(), A.Dist, A.K, passive(A.Passive))
}

//Torsional restrains the proper dihedrals among the selected atoms to their values at Setup,
//E = sum 0.5*K*(phi-phi0)^2. The dihedrals of the topology are used, or inferred from the bonds
//if the topology has none. With OneRestraintPerBond only the first dihedral around each central
//bond is restrained.
type Torsional struct {
	Label               string
	Atoms               []int
	K                   float64
	OneRestraintPerBond bool
	Passive             bool
	dih                 [][4]int
	phi0                []float64
}

//NewTorsional returns a torsional restraint on the dihedrals among atoms.
func NewTorsional(atoms []int, k float64) *Torsional {
	return &Torsional{Atoms: atoms, K: k}
}

func (T *Torsional) Name() string { return label(T.Label, "torsional") }

func (T *Torsional) Setup(s *mm.State) error {
	var err error
	if T.Atoms, err = selection(T.Name(), s, T.Atoms); err != nil {
		return err
	}
	if err = checkK(T.Name(), T.K, T.Passive); err != nil {
		return err
	}
	in := make(map[int]bool, len(T.Atoms))
	for _, v := range T.Atoms {
		in[v] = true
	}
	cand := s.Top.Dihedrals()
	if len(cand) == 0 {
		cand = s.Top.InferDihedrals()
	}
	seen := make(map[[2]int]bool)
	T.dih, T.phi0 = T.dih[:0], T.phi0[:0]
	for _, d := range cand {
		if !in[d[0]] || !in[d[1]] || !in[d[2]] || !in[d[3]] {
			continue
		}
		if T.OneRestraintPerBond {
			b := pairKey(d[1], d[2])
			if seen[b] {
				continue
			}
			seen[b] = true
		}
		T.dih = append(T.dih, d)
		T.phi0 = append(T.phi0, newTorsion(s, d[0], d[1], d[2], d[3]).phi)
	}
	return nil
}

func (T *Torsional) Q(s *mm.State) float64 {
	if len(T.dih) == 0 {
		return 0
	}
	var sum float64
	for k, d := range T.dih {
		x := mm.WrapAngle(newTorsion(s, d[0], d[1], d[2], d[3]).phi - T.phi0[k])
		sum += x * x
	}
	return math.Sqrt(sum / float64(len(T.dih)))
}

//Deviation returns the RMS deviation of the restrained dihedrals, in radians.
func (T *Torsional) Deviation(s *mm.State) float64 { return T.Q(s) }

func (T *Torsional) EnergyAtQ(q float64) float64 {
	return float64(len(T.dih)) * 0.5 * T.K * q * q
}

//NDihedrals returns the number of restrained dihedrals.
func (T *Torsional) NDihedrals() int { return len(T.dih) }

func (T *Torsional) Energy(s *mm.State, nl *nlist.List) float64 { return T.Forces(s, nl, nil) }

func (T *Torsional) Forces(s *mm.State, nl *nlist.List, acc *Accumulator) float64 {
	if T.Passive {
		return 0
	}
	var E float64
	for k, d := range T.dih {
		t := newTorsion(s, d[0], d[1], d[2], d[3])
		x := mm.WrapAngle(t.phi - T.phi0[k])
		e := 0.5 * T.K * x * x
		t.apply(acc, T.K*x)
		t.energy(acc, e)
		E += e
	}
	return E
}

func (T *Torsional) Parameters() string {
	return fmt.Sprintf("%s: %d dihedrals, K %.3f kcal/(mol rad^2)%s", T.Name(), len(T.dih), T.K, passive(T.Passive))
}
