/*
 * switch.go, part of gomm.
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

//Switch returns the value and the derivative with respect to r of the CHARMM energy switching
//function, which goes smoothly from 1 at ron to 0 at roff:
//
//	S(r) = (roff^2-r^2)^2 (roff^2+2r^2-3ron^2) / (roff^2-ron^2)^3
//
//S is 1 for r<=ron and 0 for r>=roff. Both S and dS/dr are continuous. If ron>=roff the
//function is a plain step at roff.
func Switch(r, ron, roff float64) (s, ds float64) {
	if r >= roff {
		return 0, 0
	}
	if r <= ron || ron >= roff {
		return 1, 0
	}
	r2 := r * r
	on2 := ron * ron
	off2 := roff * roff
	den := off2 - on2
	den = den * den * den
	a := off2 - r2
	s = a * a * (off2 + 2*r2 - 3*on2) / den
	ds = 12 * r * a * (on2 - r2) / den
	return s, ds
}
