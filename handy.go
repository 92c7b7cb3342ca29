/*
 * handy.go, part of gomm.
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

//Rotator rotates points by a fixed angle around a fixed axis, using the Rodrigues
//formula. It precomputes the trigonometric factors, so rotating many atoms with the
//same Rotator is cheap.
type Rotator struct {
	origin v3.Vec
	axis   v3.Vec
	cos    float64
	sin    float64
}

//NewRotator returns a Rotator for a rotation of angle radians around the axis that goes
//from ax1 to ax2. The rotation follows the right-hand rule.
func NewRotator(ax1, ax2 v3.Vec, angle float64) *Rotator {
	return &Rotator{origin: ax1, axis: ax2.Sub(ax1).Unit(), cos: math.Cos(angle), sin: math.Sin(angle)}
}

//NewAxisRotator returns a Rotator around an axis with direction axis, through origin.
func NewAxisRotator(origin, axis v3.Vec, angle float64) *Rotator {
	return &Rotator{origin: origin, axis: axis.Unit(), cos: math.Cos(angle), sin: math.Sin(angle)}
}

//Rotate returns the rotated image of p.
func (R *Rotator) Rotate(p v3.Vec) v3.Vec {
	v := p.Sub(R.origin)
	k := R.axis
	rot := v.Scale(R.cos).Add(k.Cross(v).Scale(R.sin)).Add(k.Scale(k.Dot(v) * (1 - R.cos)))
	return rot.Add(R.origin)
}

//RotateAbout rotates, in place, the atoms of coords with indexes in atoms, by angle radians
//around the axis that goes from ax1 to ax2. If box is periodic, each atom is first taken
//to its image closest to ax1, so a molecule split by the cell walls stays whole.
func RotateAbout(coords *v3.Matrix, box Boundary, atoms []int, ax1, ax2 v3.Vec, angle float64) {
	R := NewRotator(ax1, ax2, angle)
	for _, i := range atoms {
		p := coords.Vec(i)
		if box != nil && box.Periodic() {
			p = ax1.Add(box.MinImage(p.Sub(ax1)))
		}
		coords.SetVec(i, R.Rotate(p))
	}
}

//Deg2Rad and Rad2Deg convert between degrees and radians.
const (
	Deg2Rad = math.Pi / 180.0
	Rad2Deg = 180.0 / math.Pi
)
