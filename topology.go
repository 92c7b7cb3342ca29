/*
 * topology.go, part of gomm.
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
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
)

//Topology holds the atoms of a system and the index tuples of its bonded terms.
//The bond graph is kept as a gonum undirected graph, from which the exclusion
//sets and the 1-4 pairs are derived once and cached.
type Topology struct {
	atoms     []*Atom
	bonds     [][2]int
	angles    [][3]int
	dihedrals [][4]int
	impropers [][4]int
	g         *simple.UndirectedGraph
	//topological distance (1, 2 or 3 bonds) between pairs of atoms
	sep    map[[2]int]uint8
	pairs  [][2]int //1-4 pairs
	cached bool
}

//NewTopology returns a topology containing the given atoms, with element defaults filled
//in for the zero-valued parameters. It returns a ConfigError if an atom has no positive mass.
func NewTopology(atoms []*Atom) (*Topology, error) {
	T := &Topology{atoms: atoms, g: simple.NewUndirectedGraph()}
	for i, at := range atoms {
		if at == nil {
			return nil, NewConfigError("topology", "atom %d is nil", i)
		}
		at.fillDefaults()
		if at.Mass <= 0 {
			return nil, NewConfigError("topology", "atom %d (%s) has non-positive mass %g", i, at.Name, at.Mass)
		}
		T.g.AddNode(simple.Node(int64(i)))
	}
	return T, nil
}

//Len returns the number of atoms.
func (T *Topology) Len() int { return len(T.atoms) }

//Atom returns the ith atom.
func (T *Topology) Atom(i int) *Atom { return T.atoms[i] }

func (T *Topology) check(comp string, idx ...int) error {
	seen := make(map[int]bool, len(idx))
	for _, v := range idx {
		if v < 0 || v >= len(T.atoms) {
			return NewConfigError(comp, "atom index %d out of range [0,%d)", v, len(T.atoms))
		}
		if seen[v] {
			return NewConfigError(comp, "atom index %d repeated in %v", v, idx)
		}
		seen[v] = true
	}
	return nil
}

//AddBond adds a bond between atoms i and j.
func (T *Topology) AddBond(i, j int) error {
	if err := T.check("bond", i, j); err != nil {
		return err
	}
	if T.g.HasEdgeBetween(int64(i), int64(j)) {
		return nil
	}
	T.bonds = append(T.bonds, [2]int{i, j})
	T.g.SetEdge(simple.Edge{F: simple.Node(int64(i)), T: simple.Node(int64(j))})
	T.cached = false
	return nil
}

//AddAngle adds the angle i-j-k.
func (T *Topology) AddAngle(i, j, k int) error {
	if err := T.check("angle", i, j, k); err != nil {
		return err
	}
	T.angles = append(T.angles, [3]int{i, j, k})
	return nil
}

//AddDihedral adds the proper dihedral i-j-k-l.
func (T *Topology) AddDihedral(i, j, k, l int) error {
	if err := T.check("dihedral", i, j, k, l); err != nil {
		return err
	}
	T.dihedrals = append(T.dihedrals, [4]int{i, j, k, l})
	return nil
}

//AddImproper adds the improper dihedral i-j-k-l.
func (T *Topology) AddImproper(i, j, k, l int) error {
	if err := T.check("improper", i, j, k, l); err != nil {
		return err
	}
	T.impropers = append(T.impropers, [4]int{i, j, k, l})
	return nil
}

//Bonds returns the bonds in the topology. The slice should not be modified.
func (T *Topology) Bonds() [][2]int { return T.bonds }

//Angles returns the angles in the topology.
func (T *Topology) Angles() [][3]int { return T.angles }

//Dihedrals returns the proper dihedrals in the topology.
func (T *Topology) Dihedrals() [][4]int { return T.dihedrals }

//Impropers returns the improper dihedrals in the topology.
func (T *Topology) Impropers() [][4]int { return T.impropers }

//Graph returns the bond graph. Node IDs are atom indexes.
func (T *Topology) Graph() graph.Undirected { return T.g }

//Bonded returns true if atoms i and j share a bond.
func (T *Topology) Bonded(i, j int) bool {
	return T.g.HasEdgeBetween(int64(i), int64(j))
}

//Neighbors returns the atoms bonded to i, sorted.
func (T *Topology) Neighbors(i int) []int {
	nodes := T.g.From(int64(i))
	ret := make([]int, 0, nodes.Len())
	for nodes.Next() {
		ret = append(ret, int(nodes.Node().ID()))
	}
	sort.Ints(ret)
	return ret
}

func key(i, j int) [2]int {
	if i > j {
		return [2]int{j, i}
	}
	return [2]int{i, j}
}

//cache derives, from the bond graph, the topological separation of all the pairs
//of atoms closer than 4 bonds.
func (T *Topology) cache() {
	if T.cached {
		return
	}
	T.sep = make(map[[2]int]uint8)
	T.pairs = T.pairs[:0]
	for i := range T.atoms {
		//breadth-first up to depth 3 from each atom.
		depth := map[int]uint8{i: 0}
		frontier := []int{i}
		for d := uint8(1); d <= 3; d++ {
			var next []int
			for _, a := range frontier {
				for _, b := range T.Neighbors(a) {
					if _, ok := depth[b]; ok {
						continue
					}
					depth[b] = d
					next = append(next, b)
				}
			}
			frontier = next
		}
		for j, d := range depth {
			if j <= i {
				continue
			}
			T.sep[[2]int{i, j}] = d
			if d == 3 {
				T.pairs = append(T.pairs, [2]int{i, j})
			}
		}
	}
	sort.Slice(T.pairs, func(a, b int) bool {
		if T.pairs[a][0] == T.pairs[b][0] {
			return T.pairs[a][1] < T.pairs[b][1]
		}
		return T.pairs[a][0] < T.pairs[b][0]
	})
	T.cached = true
}

//Separation returns the number of bonds separating atoms i and j, if it is 3 or less,
//and 0 otherwise (or if i==j).
func (T *Topology) Separation(i, j int) int {
	T.cache()
	return int(T.sep[key(i, j)])
}

//Excluded returns true if the non-bonded interaction between i and j is
//excluded, i.e. if they are 1-2 or 1-3 neighbors.
func (T *Topology) Excluded(i, j int) bool {
	s := T.Separation(i, j)
	return s == 1 || s == 2
}

//Is14 returns true if i and j are separated by exactly 3 bonds.
func (T *Topology) Is14(i, j int) bool {
	return T.Separation(i, j) == 3
}

//Pairs14 returns the 1-4 pairs of the topology, with i<j.
func (T *Topology) Pairs14() [][2]int {
	T.cache()
	return T.pairs
}

//InferAngles returns all the angles i-j-k implied by the bonds, without adding them.
func (T *Topology) InferAngles() [][3]int {
	var ret [][3]int
	for j := range T.atoms {
		n := T.Neighbors(j)
		for a := 0; a < len(n); a++ {
			for b := a + 1; b < len(n); b++ {
				ret = append(ret, [3]int{n[a], j, n[b]})
			}
		}
	}
	return ret
}

//InferDihedrals returns all the proper dihedrals i-j-k-l implied by the bonds, without adding them.
func (T *Topology) InferDihedrals() [][4]int {
	var ret [][4]int
	for _, b := range T.bonds {
		j, k := b[0], b[1]
		for _, i := range T.Neighbors(j) {
			if i == k {
				continue
			}
			for _, l := range T.Neighbors(k) {
				if l == j || l == i {
					continue
				}
				ret = append(ret, [4]int{i, j, k, l})
			}
		}
	}
	return ret
}

//SideOf returns the atoms that are reachable from j without crossing the bond i-j,
//j included. It returns an error if i and j are not bonded, or if they belong to a ring,
//in which case there is no rotatable side.
func (T *Topology) SideOf(i, j int) ([]int, error) {
	if !T.Bonded(i, j) {
		return nil, fmt.Errorf("gomm: atoms %d and %d are not bonded", i, j)
	}
	var side []int
	ring := false
	bf := traverse.BreadthFirst{
		Traverse: func(e graph.Edge) bool {
			f, t := e.From().ID(), e.To().ID()
			return !((f == int64(i) && t == int64(j)) || (f == int64(j) && t == int64(i)))
		},
	}
	bf.Walk(T.g, simple.Node(int64(j)), func(n graph.Node, _ int) bool {
		if n.ID() == int64(i) {
			ring = true
			return true
		}
		side = append(side, int(n.ID()))
		return false
	})
	if ring {
		return nil, fmt.Errorf("gomm: bond %d-%d is part of a ring", i, j)
	}
	sort.Ints(side)
	return side, nil
}

//Molecules returns the connected components of the bond graph, each one sorted, ordered
//by their lowest atom index. It also sets the Molecule field of each atom.
func (T *Topology) Molecules() [][]int {
	cc := topo.ConnectedComponents(T.g)
	ret := make([][]int, 0, len(cc))
	for _, c := range cc {
		m := make([]int, 0, len(c))
		for _, n := range c {
			m = append(m, int(n.ID()))
		}
		sort.Ints(m)
		ret = append(ret, m)
	}
	sort.Slice(ret, func(a, b int) bool { return ret[a][0] < ret[b][0] })
	for i, m := range ret {
		for _, a := range m {
			T.atoms[a].Molecule = i
		}
	}
	return ret
}

//Masses returns a new slice with the masses of all atoms.
func (T *Topology) Masses() []float64 {
	ret := make([]float64, len(T.atoms))
	for i, v := range T.atoms {
		ret[i] = v.Mass
	}
	return ret
}

//Select returns the indexes of the atoms for which f returns true.
func (T *Topology) Select(f func(*Atom) bool) []int {
	var ret []int
	for i, v := range T.atoms {
		if f(v) {
			ret = append(ret, i)
		}
	}
	return ret
}
