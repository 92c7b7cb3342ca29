/*
 * atom.go, part of gomm.
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

//Atom contains the per-particle metadata: identity, residue membership and the
//force-field parameters attached to it.
type Atom struct {
	Name     string  //PDB-like atom name, e.g. "CA"
	ID       int     //serial number, for output only
	Symbol   string  //chemical element
	MolName  string  //residue name
	MolID    int     //residue number
	Chain    string  //chain identifier
	Molecule int     //index of the covalently connected molecule, set by the topology
	Mass     float64 //amu
	Charge   float64 //elementary charges
	Vdw      float64 //half of the Lennard-Jones Rmin, Angstrom
	VdwEps   float64 //Lennard-Jones well depth, kcal/mol (positive)
	GBRadius float64 //intrinsic Born radius, Angstrom
	GBScale  float64 //descreening scale factor
	SASAP    float64 //surface-area overlap parameter
	Fixed    bool    //if true, integrators do not move the atom
}

//Copy returns a copy of the atom.
func (A *Atom) Copy() *Atom {
	r := *A
	return &r
}

//IsHydrogen returns true if the atom is a hydrogen.
func (A *Atom) IsHydrogen() bool {
	if A.Symbol != "" {
		return A.Symbol == "H" || A.Symbol == "D"
	}
	return len(A.Name) > 0 && A.Name[0] == 'H'
}

//fillDefaults sets element-derived parameters for the fields that
//were left at zero.
func (A *Atom) fillDefaults() {
	if A.Symbol == "" && A.Name != "" {
		A.Symbol = A.Name[:1]
	}
	if A.Mass == 0 {
		if m, ok := ElementMass(A.Symbol); ok {
			A.Mass = m
		}
	}
	if A.Vdw == 0 {
		A.Vdw = ElementVdwRadius(A.Symbol)
	}
	if A.GBRadius == 0 {
		A.GBRadius = defaultGBRadius
		if r, ok := symbolGBRadius[A.Symbol]; ok {
			A.GBRadius = r
		}
	}
	if A.GBScale == 0 {
		A.GBScale = defaultGBScale
		if s, ok := symbolGBScale[A.Symbol]; ok {
			A.GBScale = s
		}
	}
	if A.SASAP == 0 {
		A.SASAP = ElementSASAP(A.Symbol)
	}
}
