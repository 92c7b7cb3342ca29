/*
 * boundary.go, part of gomm.
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
	"fmt"
	"math"

	v3 "github.com/rmera/gomm/v3"
)

//Boundary describes the geometry of the simulation cell. Both the neighbor list and the
//force-field terms obtain interatomic vectors through it.
type Boundary interface {
	//MinImage returns the minimum-image version of the displacement d.
	MinImage(d v3.Vec) v3.Vec
	//Wrap returns the image of p inside the primary cell.
	Wrap(p v3.Vec) v3.Vec
	Periodic() bool
	//Edges returns the cell edge lengths, all zero for non-periodic boundaries.
	Edges() v3.Vec
}

//Vacuum is a non-periodic, infinite boundary.
type Vacuum struct{}

func (Vacuum) MinImage(d v3.Vec) v3.Vec { return d }
func (Vacuum) Wrap(p v3.Vec) v3.Vec     { return p }
func (Vacuum) Periodic() bool           { return false }
func (Vacuum) Edges() v3.Vec            { return v3.Vec{} }
func (Vacuum) String() string           { return "vacuum" }

//PeriodicBox is an orthorhombic periodic cell.
type PeriodicBox struct {
	edges v3.Vec
}

//NewPeriodicBox returns an orthorhombic periodic box with the given edges.
func NewPeriodicBox(x, y, z float64) (*PeriodicBox, error) {
	for _, v := range []float64{x, y, z} {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, NewConfigError("boundary", "box edges must be positive and finite, got %g %g %g", x, y, z)
		}
	}
	return &PeriodicBox{edges: v3.Vec{x, y, z}}, nil
}

func (B *PeriodicBox) MinImage(d v3.Vec) v3.Vec {
	for k, l := range B.edges {
		d[k] -= l * math.Round(d[k]/l)
	}
	return d
}

func (B *PeriodicBox) Wrap(p v3.Vec) v3.Vec {
	for k, l := range B.edges {
		p[k] -= l * math.Floor(p[k]/l)
	}
	return p
}

func (B *PeriodicBox) Periodic() bool { return true }
func (B *PeriodicBox) Edges() v3.Vec  { return B.edges }

//Volume returns the volume of the box, in A^3.
func (B *PeriodicBox) Volume() float64 { return B.edges[0] * B.edges[1] * B.edges[2] }

//HalfMin returns half of the shortest edge, the largest cutoff compatible with the
//minimum image convention.
func (B *PeriodicBox) HalfMin() float64 {
	return 0.5 * math.Min(B.edges[0], math.Min(B.edges[1], B.edges[2]))
}

func (B *PeriodicBox) String() string {
	return fmt.Sprintf("periodic %.3f x %.3f x %.3f", B.edges[0], B.edges[1], B.edges[2])
}

//BoxVectors returns the 9 components of the box vectors, row by row.
//They are all zero for non-periodic boundaries.
func BoxVectors(b Boundary) []float64 {
	e := b.Edges()
	return []float64{e[0], 0, 0, 0, e[1], 0, 0, 0, e[2]}
}
