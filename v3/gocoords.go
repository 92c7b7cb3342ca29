/*
 * gocoords.go, part of gomm.
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

//gocoords.go contains the per-vector accessors of Matrix and the small Vec type.

package v3

import "math"

//Vec is a single 3D vector. It is a value type, so it can be used in hot loops
//without allocations.
type Vec [3]float64

//Add returns a+b
func (a Vec) Add(b Vec) Vec { return Vec{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }

//Sub returns a-b
func (a Vec) Sub(b Vec) Vec { return Vec{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

//Scale returns f*a
func (a Vec) Scale(f float64) Vec { return Vec{f * a[0], f * a[1], f * a[2]} }

//Dot returns the dot product of a and b
func (a Vec) Dot(b Vec) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

//Cross returns the cross product a x b
func (a Vec) Cross(b Vec) Vec {
	return Vec{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
}

//Norm2 returns the squared euclidean norm of a.
func (a Vec) Norm2() float64 { return a.Dot(a) }

//Norm returns the euclidean norm of a.
func (a Vec) Norm() float64 { return math.Sqrt(a.Dot(a)) }

//Unit returns a normalized copy of a. The zero vector is returned unchanged.
func (a Vec) Unit() Vec {
	n := a.Norm()
	if n == 0 {
		return a
	}
	return a.Scale(1 / n)
}

//IsFinite returns false if any component of a is NaN or infinite.
func (a Vec) IsFinite() bool {
	for _, v := range a {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

//Vec returns a copy of the ith vector of F.
func (F *Matrix) Vec(i int) Vec {
	r := F.RawRowView(i)
	return Vec{r[0], r[1], r[2]}
}

//SetVec sets the ith vector of F to v.
func (F *Matrix) SetVec(i int, v Vec) {
	r := F.RawRowView(i)
	r[0], r[1], r[2] = v[0], v[1], v[2]
}

//AddToVec adds v to the ith vector of F.
func (F *Matrix) AddToVec(i int, v Vec) {
	r := F.RawRowView(i)
	r[0] += v[0]
	r[1] += v[1]
	r[2] += v[2]
}

//SomeVecs puts in the receiver the vectors of A with indexes in clist,
//in the same order as clist.
func (F *Matrix) SomeVecs(A *Matrix, clist []int) {
	if F.NVecs() != len(clist) {
		panic(ErrShape)
	}
	for k, v := range clist {
		F.SetVec(k, A.Vec(v))
	}
}

//SetVecs sets the vectors of the receiver with indexes in clist
//to the consecutive vectors in A.
func (F *Matrix) SetVecs(A *Matrix, clist []int) {
	if A.NVecs() < len(clist) {
		panic(ErrShape)
	}
	for k, v := range clist {
		F.SetVec(v, A.Vec(k))
	}
}

//Sum returns the vector sum of all the vectors in F.
func (F *Matrix) Sum() Vec {
	var s Vec
	for i := 0; i < F.NVecs(); i++ {
		s = s.Add(F.Vec(i))
	}
	return s
}

//Centroid returns the geometric center of the vectors in F with indexes in clist,
//or of all the vectors if clist is nil.
func (F *Matrix) Centroid(clist []int) Vec {
	var s Vec
	if clist == nil {
		n := F.NVecs()
		if n == 0 {
			return s
		}
		return F.Sum().Scale(1 / float64(n))
	}
	if len(clist) == 0 {
		return s
	}
	for _, v := range clist {
		s = s.Add(F.Vec(v))
	}
	return s.Scale(1 / float64(len(clist)))
}
