/*
 * metropolis.go, part of gomm.
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
	"math/rand/v2"
)

//AcceptanceProbability returns the Metropolis acceptance probability min(1, exp(-dE/kT)).
//It is exactly 1 for dE<=0, and 0 for non-finite or positive-infinite dE, or for kT<=0 and dE>0.
func AcceptanceProbability(dE, kT float64) float64 {
	if math.IsNaN(dE) || math.IsInf(dE, 1) {
		return 0
	}
	if dE <= 0 {
		return 1
	}
	if !(kT > 0) {
		return 0
	}
	return math.Exp(-dE / kT)
}

//Metropolis decides whether to accept a change of energy dE at thermal energy kT,
//drawing from rng only when the acceptance probability is neither 0 nor 1.
func Metropolis(dE, kT float64, rng *rand.Rand) bool {
	p := AcceptanceProbability(dE, kT)
	if p >= 1 {
		return true
	}
	if p <= 0 {
		return false
	}
	return rng.Float64() < p
}

//NewRand returns a generator seeded with seed. All the randomness of a run should come from
//generators created by this function, so a fixed seed gives a reproducible run.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
