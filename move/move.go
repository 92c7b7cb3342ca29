/*
 * move.go, part of gomm.
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

//Package move implements Monte Carlo moves: random perturbations of the coordinates of a
//state that can be exactly undone. A move is used in three stages: Propose draws the random
//parameters of the move, Apply changes the coordinates, and Revert, if called after Apply,
//restores them bit for bit.
package move

import (
	"math"
	"math/rand/v2"

	mm "github.com/rmera/gomm"
	v3 "github.com/rmera/gomm/v3"
)

//Move is a Monte Carlo move.
type Move interface {
	Name() string
	Propose(s *mm.State, rng *rand.Rand) error
	Apply(s *mm.State)
	Revert(s *mm.State)
}

//Dist is the distribution of a random step.
type Dist int

const (
	Uniform  Dist = iota //uniform in [-Size, Size)
	Gaussian             //normal with standard deviation Size
)

func (d Dist) String() string {
	if d == Gaussian {
		return "gaussian"
	}
	return "uniform"
}

//Step is a tunable random step.
type Step struct {
	Dist Dist
	Size float64
}

//Draw returns a random step.
func (S Step) Draw(rng *rand.Rand) float64 {
	if S.Dist == Gaussian {
		return S.Size * rng.NormFloat64()
	}
	return S.Size * (2*rng.Float64() - 1)
}

//undo keeps the coordinates of the atoms changed by the last Apply.
type undo struct {
	atoms []int
	old   []v3.Vec
}

func (u *undo) save(s *mm.State, atoms []int) {
	u.atoms = append(u.atoms[:0], atoms...)
	u.old = u.old[:0]
	for _, i := range atoms {
		u.old = append(u.old, s.Coords.Vec(i))
	}
}

//add saves the atoms not already saved.
func (u *undo) add(s *mm.State, atoms []int) {
	seen := make(map[int]bool, len(u.atoms))
	for _, i := range u.atoms {
		seen[i] = true
	}
	for _, i := range atoms {
		if !seen[i] {
			u.atoms = append(u.atoms, i)
			u.old = append(u.old, s.Coords.Vec(i))
		}
	}
}

func (u *undo) restore(s *mm.State) {
	for k, i := range u.atoms {
		s.Coords.SetVec(i, u.old[k])
	}
	u.atoms = u.atoms[:0]
	u.old = u.old[:0]
}

//randomAxis returns a unit vector uniformly distributed on the sphere.
func randomAxis(rng *rand.Rand) v3.Vec {
	for {
		v := v3.Vec{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		if n := v.Norm(); n > 1e-8 {
			return v.Scale(1 / n)
		}
	}
}

func rotate(s *mm.State, atoms []int, ax1, ax2 v3.Vec, angle float64) {
	if angle == 0 || math.IsNaN(angle) {
		return
	}
	mm.RotateAbout(s.Coords, s.Box, atoms, ax1, ax2, angle)
}

//Set is a weighted collection of moves.
type Set struct {
	moves   []Move
	weights []float64
	total   float64
}

//Add adds m with the given relative weight, which must be positive.
func (S *Set) Add(m Move, weight float64) error {
	if !(weight > 0) || math.IsInf(weight, 0) {
		return mm.NewConfigError("move set", "weight of move %s must be positive, got %g", m.Name(), weight)
	}
	S.moves = append(S.moves, m)
	S.weights = append(S.weights, weight)
	S.total += weight
	return nil
}

//Len returns the number of moves in the set.
func (S *Set) Len() int { return len(S.moves) }

//Moves returns the moves in the set.
func (S *Set) Moves() []Move { return S.moves }

//Pick returns a move chosen with probability proportional to its weight, or nil for an empty set.
func (S *Set) Pick(rng *rand.Rand) Move {
	i := S.PickIndex(rng)
	if i < 0 {
		return nil
	}
	return S.moves[i]
}

//PickIndex is like Pick, but returns the position of the move in the set, or -1 for an empty set.
func (S *Set) PickIndex(rng *rand.Rand) int {
	if len(S.moves) == 0 {
		return -1
	}
	if len(S.moves) == 1 {
		return 0
	}
	x := rng.Float64() * S.total
	for i, w := range S.weights {
		if x < w {
			return i
		}
		x -= w
	}
	return len(S.moves) - 1
}
