/*
 * rigid.go, part of gomm.
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

package move

import (
	"math/rand/v2"

	mm "github.com/rmera/gomm"
	v3 "github.com/rmera/gomm/v3"
)

//RigidDisplacement translates and rotates, as a rigid body, one randomly chosen molecule.
//If Molecules is nil, the connected components of the bond graph are used.
type RigidDisplacement struct {
	Label     string
	Molecules [][]int
	TransStep Step //A, per Cartesian component
	RotStep   Step //radians
	next      int
	shift     v3.Vec
	axis      v3.Vec
	angle     float64
	u         undo
}

//NewRigidDisplacement returns a rigid move with 0.5 A and 10 degree uniform steps.
func NewRigidDisplacement() *RigidDisplacement {
	return &RigidDisplacement{
		TransStep: Step{Dist: Uniform, Size: 0.5},
		RotStep:   Step{Dist: Uniform, Size: 10 * mm.Deg2Rad},
	}
}

func (R *RigidDisplacement) Name() string {
	if R.Label != "" {
		return R.Label
	}
	return "rigid"
}

func (R *RigidDisplacement) Propose(s *mm.State, rng *rand.Rand) error {
	if R.Molecules == nil {
		R.Molecules = s.Top.Molecules()
	}
	if len(R.Molecules) == 0 {
		return mm.NewConfigError(R.Name(), "no molecules to move")
	}
	for _, m := range R.Molecules {
		for _, i := range m {
			if i < 0 || i >= s.Len() {
				return mm.NewConfigError(R.Name(), "atom index %d out of range", i)
			}
		}
	}
	R.next = rng.IntN(len(R.Molecules))
	R.shift = v3.Vec{R.TransStep.Draw(rng), R.TransStep.Draw(rng), R.TransStep.Draw(rng)}
	R.axis = randomAxis(rng)
	R.angle = R.RotStep.Draw(rng)
	return nil
}

func (R *RigidDisplacement) Apply(s *mm.State) {
	mol := R.Molecules[R.next]
	if len(mol) == 0 {
		return
	}
	R.u.save(s, mol)
	//unwrap the molecule around its first atom so it can be rotated as a whole.
	x0 := s.Coords.Vec(mol[0])
	pos := make([]v3.Vec, len(mol))
	var c v3.Vec
	for k, i := range mol {
		pos[k] = x0.Add(s.Box.MinImage(s.Coords.Vec(i).Sub(x0)))
		c = c.Add(pos[k])
	}
	c = c.Scale(1 / float64(len(mol)))
	rot := mm.NewAxisRotator(c, R.axis, R.angle)
	for k, i := range mol {
		p := pos[k]
		if len(mol) > 1 && R.angle != 0 {
			p = rot.Rotate(p)
		}
		s.Coords.SetVec(i, p.Add(R.shift))
	}
}

func (R *RigidDisplacement) Revert(s *mm.State) { R.u.restore(s) }
