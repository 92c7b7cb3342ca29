/*
 * units.go, part of gomm.
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

//Physical constants in the internal units (Angstrom, amu, ps, kcal/mol, e, K).
const (
	//Boltzmann constant, kcal/(mol K)
	KB = 0.0019872041
	//Coulomb constant, kcal A/(mol e^2)
	CoulombConst = 332.0637
	//ForceToAccel converts a force in kcal/(mol A) divided by a mass in amu
	//into an acceleration in A/ps^2.
	ForceToAccel = 418.4
	//SecondsToPs converts seconds into picoseconds.
	SecondsToPs = 1e12
)

//KT returns the thermal energy in kcal/mol at the given temperature, in K.
func KT(temp float64) float64 {
	return KB * temp
}
