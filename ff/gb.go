/*
 * gb.go, part of gomm.
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

//GB is a generalized Born implicit-solvent term. Born radii are obtained by
//Hawkins-Cramer-Truhlar pairwise descreening, and the interaction uses Still's
//smooth function
//
//	f = sqrt(r^2 + ai aj exp(-r^2/(4 ai aj)))
//	E = -0.5 C (1/SoluteDielectric - 1/SolventDielectric) sum_ij qi qj / f
//
//where the i==j terms are the Born self energies. Pair terms and descreening are
//switched off between InnerCutoff and Cutoff. No pairs are excluded.
type GB struct {
	Label             string
	Cutoff            float64
	InnerCutoff       float64
	SoluteDielectric  float64
	SolventDielectric float64
	RadiusOffset      float64 //subtracted from the intrinsic radii, A
	MaxBornRadius     float64 //A

	rho   []float64 //offset intrinsic radii
	sr    []float64 //scaled radii
	alpha []float64
	dadI  []float64 //d alpha/d(descreening sum), 0 for clamped radii
	dEda  []float64
}

//NewGB returns a GB term with water as solvent and a 12 A cutoff.
func NewGB() *GB {
	return &GB{
		Cutoff:            12,
		InnerCutoff:       9,
		SoluteDielectric:  1,
		SolventDielectric: 78.5,
		RadiusOffset:      0.09,
		MaxBornRadius:     30,
	}
}

func (G *GB) Name() string       { return label(G.Label, "gb") }
func (G *GB) MaxCutoff() float64 { return G.Cutoff }

func (G *GB) Setup(s *mm.State) error {
	c := G.Name()
	if !(G.Cutoff > 0) || G.InnerCutoff < 0 || G.InnerCutoff >= G.Cutoff {
		return mm.NewConfigError(c, "need 0 <= InnerCutoff < Cutoff, got %g and %g", G.InnerCutoff, G.Cutoff)
	}
	if !(G.SoluteDielectric > 0) || !(G.SolventDielectric > 0) {
		return mm.NewConfigError(c, "dielectric constants must be positive")
	}
	if G.RadiusOffset < 0 || !(G.MaxBornRadius > 0) {
		return mm.NewConfigError(c, "invalid radius offset %g or maximum Born radius %g", G.RadiusOffset, G.MaxBornRadius)
	}
	n := s.Len()
	G.rho = make([]float64, n)
	G.sr = make([]float64, n)
	G.alpha = make([]float64, n)
	G.dadI = make([]float64, n)
	G.dEda = make([]float64, n)
	for i := 0; i < n; i++ {
		a := s.Top.Atom(i)
		G.rho[i] = a.GBRadius - G.RadiusOffset
		if !(G.rho[i] > 0) {
			return mm.NewConfigError(c, "atom %d: GB radius %g not larger than the offset %g", i, a.GBRadius, G.RadiusOffset)
		}
		if a.GBScale < 0 {
			return mm.NewConfigError(c, "atom %d: negative descreening scale %g", i, a.GBScale)
		}
		G.sr[i] = a.GBScale * G.rho[i]
	}
	return nil
}

func (G *GB) tau() float64 {
	return 1/G.SoluteDielectric - 1/G.SolventDielectric
}

//hct returns the descreening of a sphere of radius rho by a sphere of radius s
//whose center is at a distance r, and its derivative with respect to r.
func hct(r, rho, s float64) (I, dI float64) {
	if rho >= r+s {
		return 0, 0
	}
	var L, dL float64
	if d := math.Abs(r - s); d > rho {
		L = 1 / d
		if r > s {
			dL = -L * L
		} else {
			dL = L * L
		}
	} else {
		L = 1 / rho
	}
	U := 1 / (r + s)
	dU := -U * U
	L2, U2 := L*L, U*U
	ln := math.Log(U / L)
	s2 := s * s
	t := L - U + 0.25*r*(U2-L2) + 0.5*ln/r + 0.25*s2*(L2-U2)/r
	dt := dL - dU + 0.25*(U2-L2) + 0.5*r*(U*dU-L*dL) +
		0.5*(dU/U-dL/L)/r - 0.5*ln/(r*r) -
		0.25*s2*(L2-U2)/(r*r) + 0.5*s2*(L*dL-U*dU)/r
	if rho < s-r {
		t += 2 * (1/rho - L)
		dt -= 2 * dL
	}
	return 0.5 * t, 0.5 * dt
}

//radii computes the Born radii.
func (G *GB) radii(s *mm.State, nl *nlist.List) {
	n := s.Len()
	sum := make([]float64, n)
	for i := 0; i < nl.Len(); i++ {
		for _, j := range nl.Neighbors(i) {
			r := s.Distance(i, j)
			if r >= G.Cutoff || r == 0 {
				continue
			}
			sw, _ := Switch(r, G.InnerCutoff, G.Cutoff)
			Iij, _ := hct(r, G.rho[i], G.sr[j])
			Iji, _ := hct(r, G.rho[j], G.sr[i])
			sum[i] += sw * Iij
			sum[j] += sw * Iji
		}
	}
	for i := 0; i < n; i++ {
		inv := 1/G.rho[i] - sum[i]
		if inv <= 1/G.MaxBornRadius {
			G.alpha[i] = G.MaxBornRadius
			G.dadI[i] = 0
			continue
		}
		G.alpha[i] = 1 / inv
		G.dadI[i] = G.alpha[i] * G.alpha[i]
	}
}

//BornRadii returns a copy of the Born radii from the last evaluation.
func (G *GB) BornRadii() []float64 {
	return append([]float64(nil), G.alpha...)
}

func (G *GB) Energy(s *mm.State, nl *nlist.List) float64 {
	return G.Forces(s, nl, nil)
}

func (G *GB) Forces(s *mm.State, nl *nlist.List, acc *Accumulator) float64 {
	G.radii(s, nl)
	top := s.Top
	pre := mm.CoulombConst * G.tau()
	var E float64
	for i := range G.dEda {
		q := top.Atom(i).Charge
		e := -0.5 * pre * q * q / G.alpha[i]
		E += e
		acc.AtomEnergy(i, e)
		G.dEda[i] = -e / G.alpha[i]
	}
	for i := 0; i < nl.Len(); i++ {
		qi := top.Atom(i).Charge
		ai := G.alpha[i]
		for _, j := range nl.Neighbors(i) {
			qj := top.Atom(j).Charge
			if qi == 0 || qj == 0 {
				continue
			}
			d := s.Displacement(i, j)
			r := d.Norm()
			if r >= G.Cutoff {
				continue
			}
			aj := G.alpha[j]
			aa := ai * aj
			D := math.Exp(-r * r / (4 * aa))
			f := math.Sqrt(r*r + aa*D)
			sw, dsw := Switch(r, G.InnerCutoff, G.Cutoff)
			k := pre * qi * qj
			e := -k * sw / f
			E += e
			acc.PairEnergy(i, j, e)
			if !acc.Forces() {
				continue
			}
			dfdr := r * (1 - 0.25*D) / f
			acc.PairGrad(i, j, -k*(dsw/f-sw*dfdr/(f*f)), d, r)
			c := D * (1 + r*r/(4*aa)) / (2 * f)
			//dE/df = k sw/f^2
			G.dEda[i] += k * sw / (f * f) * aj * c
			G.dEda[j] += k * sw / (f * f) * ai * c
		}
	}
	if !acc.Forces() {
		return E
	}
	//Born radii chain rule.
	for i := 0; i < nl.Len(); i++ {
		for _, j := range nl.Neighbors(i) {
			if G.dadI[i] == 0 && G.dadI[j] == 0 {
				continue
			}
			d := s.Displacement(i, j)
			r := d.Norm()
			if r >= G.Cutoff || r == 0 {
				continue
			}
			sw, dsw := Switch(r, G.InnerCutoff, G.Cutoff)
			Iij, dIij := hct(r, G.rho[i], G.sr[j])
			Iji, dIji := hct(r, G.rho[j], G.sr[i])
			dEdr := G.dEda[i]*G.dadI[i]*(dsw*Iij+sw*dIij) +
				G.dEda[j]*G.dadI[j]*(dsw*Iji+sw*dIji)
			acc.PairGrad(i, j, dEdr, d, r)
		}
	}
	return E
}

func (G *GB) Parameters() string {
	return fmt.Sprintf("%s: HCT radii, Still GB, eps %.1f/%.1f, switch %.2f-%.2f A, max radius %.1f A",
		G.Name(), G.SoluteDielectric, G.SolventDielectric, G.InnerCutoff, G.Cutoff, G.MaxBornRadius)
}
