/*
 * geometric.go, part of gomm.
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

	v3 "github.com/rmera/gomm/v3"
)

//Angle returns the angle a-b-c in radians.
func Angle(a, b, c v3.Vec) float64 {
	u := a.Sub(b)
	w := c.Sub(b)
	return math.Atan2(u.Cross(w).Norm(), u.Dot(w))
}

//Dihedral returns the dihedral angle a-b-c-d in radians, in the (-pi, pi] range
//(IUPAC sign convention).
func Dihedral(a, b, c, d v3.Vec) float64 {
	bma := b.Sub(a)
	cmb := c.Sub(b)
	dmc := d.Sub(c)
	first := bma.Scale(cmb.Norm()).Dot(cmb.Cross(dmc))
	second := bma.Cross(cmb).Dot(cmb.Cross(dmc))
	return math.Atan2(first, second)
}

//WrapAngle returns the angle a mapped to the [-pi, pi) range.
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

//StateDihedral returns the dihedral i-j-k-l in the state s, using minimum-image bond vectors.
func StateDihedral(s *State, i, j, k, l int) float64 {
	b := s.Coords.Vec(j)
	a := b.Sub(s.Displacement(i, j))
	c := b.Add(s.Displacement(j, k))
	d := c.Add(s.Displacement(k, l))
	return Dihedral(a, b, c, d)
}
