/*
 * doc.go, part of gomm.
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

/***Dedicated to the long life of the Ven. Khenpo Phuntzok Tenzin Rinpoche***/

/*Package mm is the root package of gomm, a small molecular mechanics engine.
It provides the particle state store shared by every other package: atoms and their
topology, positions, velocities and forces, the boundary conditions, the error
types, and a few helpers (units, Metropolis acceptance, rotations) used by the
force field, the integrators and the samplers.

	**gomm layout**

    mm          atoms, topology, state, boundaries, errors.

    v3          Nx3 matrices (positions, velocities, forces) over gonum.

    nlist       cell-list based neighbor list with a buffer margin.

    ff          force-field terms and the Forcefield composite evaluator.

    move        Monte Carlo perturbations.

    protocol    single points, reruns, minimisation, MD and Monte Carlo.

    rex         temperature replica exchange.

    monitor     scalar observables, histograms and umbrella profiles.

    traj/stf    compressed text trajectories.

    hclconf     HCL run descriptions.

Internal units are Angstrom, amu, picoseconds, kcal/mol, elementary charges and Kelvin.
Options expressed in SI (such as the MD timestep, in seconds) are converted when a run starts.
*/
package mm
