/*
 * forcefield.go, part of gomm.
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

import (
	"fmt"
	"io"
	"strings"

	mm "github.com/rmera/gomm"
	"github.com/rmera/gomm/metrics"
	"github.com/rmera/gomm/nlist"
	"go.uber.org/zap"
)

//TermEnergy is the energy contributed by one term.
type TermEnergy struct {
	Name   string
	Energy float64
}

//Result is the outcome of one evaluation.
type Result struct {
	Total  float64
	ByTerm []TermEnergy
	ByAtom []float64 //only filled by EvaluateByAtom
}

//Term returns the energy of the term with the given name, and false if there is no such term.
func (R *Result) Term(name string) (float64, bool) {
	for _, v := range R.ByTerm {
		if v.Name == name {
			return v.Energy, true
		}
	}
	return 0, false
}

//Forcefield is the composite evaluator: it owns its terms and sums their energies and
//forces for a state. The neighbor list is shared by all the pairwise terms and is only
//updated here, once per evaluation.
type Forcefield struct {
	s       *mm.State
	nl      *nlist.List
	terms   []Term
	last    *Result
	Log     *zap.Logger
	Metrics *metrics.Collector
}

//New returns an empty Forcefield for the state s. nl can be nil if no pairwise term
//will be added.
func New(s *mm.State, nl *nlist.List) *Forcefield {
	return &Forcefield{s: s, nl: nl, Log: zap.NewNop()}
}

//Add sets up t against the state of the forcefield and adds it.
func (F *Forcefield) Add(t Term) error {
	name := t.Name()
	for _, v := range F.terms {
		if v.Name() == name {
			return mm.NewConfigError("forcefield", "a term named %q was already added", name)
		}
	}
	_, pairwise := t.(Cutoffer)
	if pairwise && F.nl == nil {
		return mm.NewConfigError(name, "pairwise term needs a neighbor list")
	}
	if err := t.Setup(F.s); err != nil {
		return mm.ErrDecorate(err, "Forcefield.Add")
	}
	//some cutoffs depend on the atoms, so they are only known after Setup.
	if c, ok := t.(Cutoffer); ok && c.MaxCutoff() > F.nl.Cutoff() {
		return mm.NewConfigError(name, "cutoff %g larger than the neighbor list cutoff %g", c.MaxCutoff(), F.nl.Cutoff())
	}
	F.terms = append(F.terms, t)
	F.logger().Debug("term added", zap.String("term", name), zap.String("parameters", t.Parameters()))
	return nil
}

func (F *Forcefield) logger() *zap.Logger {
	if F.Log == nil {
		return zap.NewNop()
	}
	return F.Log
}

//Terms returns the terms of the forcefield, in the order they were added.
func (F *Forcefield) Terms() []Term { return F.terms }

//Term returns the term with the given name, or nil.
func (F *Forcefield) Term(name string) Term {
	for _, v := range F.terms {
		if v.Name() == name {
			return v
		}
	}
	return nil
}

//State returns the state the forcefield evaluates.
func (F *Forcefield) State() *mm.State { return F.s }

//NeighborList returns the neighbor list of the forcefield, which can be nil.
func (F *Forcefield) NeighborList() *nlist.List { return F.nl }

//Last returns the result of the last evaluation, or nil.
func (F *Forcefield) Last() *Result { return F.last }

//Evaluate computes the energy and fills the Forces of the state.
func (F *Forcefield) Evaluate() (*Result, error) {
	return F.evaluate(true, false)
}

//EvaluateByAtom is like Evaluate, but also decomposes the energy per atom.
func (F *Forcefield) EvaluateByAtom() (*Result, error) {
	return F.evaluate(true, true)
}

//Energy returns the total energy without computing forces. The Forces of the state
//are not modified.
func (F *Forcefield) Energy() (float64, error) {
	r, err := F.evaluate(false, false)
	if err != nil {
		return 0, err
	}
	return r.Total, nil
}

func (F *Forcefield) evaluate(withForces, byAtom bool) (*Result, error) {
	s := F.s
	if F.nl != nil {
		F.nl.Update(s.Coords)
	}
	var acc *Accumulator
	if withForces || byAtom {
		acc = &Accumulator{}
	}
	if withForces {
		s.Forces.Zero()
		acc.F = s.Forces
	}
	res := &Result{ByTerm: make([]TermEnergy, 0, len(F.terms))}
	if byAtom {
		res.ByAtom = make([]float64, s.Len())
		acc.AtomE = res.ByAtom
	}
	for _, t := range F.terms {
		var e float64
		if acc != nil {
			e = t.Forces(s, F.nl, acc)
		} else {
			e = t.Energy(s, F.nl)
		}
		if !finite(e) {
			return nil, mm.NewDivergenceError(-1, -1, "energy of term "+t.Name(), e)
		}
		res.ByTerm = append(res.ByTerm, TermEnergy{Name: t.Name(), Energy: e})
		res.Total += e
		F.Metrics.Energy(t.Name(), e)
	}
	if withForces {
		for i := 0; i < s.Len(); i++ {
			f := s.Forces.Vec(i)
			if !f.IsFinite() {
				return nil, mm.NewDivergenceError(-1, i, "force", f.Norm())
			}
		}
	}
	F.Metrics.Energy("total", res.Total)
	F.last = res
	return res, nil
}

//Parameters returns the description of the parameters of every term, one per line.
func (F *Forcefield) Parameters() string {
	var sb strings.Builder
	if F.nl != nil {
		fmt.Fprintf(&sb, "neighbor list: cutoff %.2f A, buffer %.2f A\n", F.nl.Cutoff(), F.nl.Buffer())
	}
	for _, t := range F.terms {
		sb.WriteString(t.Parameters())
		sb.WriteByte('\n')
	}
	return sb.String()
}

//Summary writes a table with the per-term energies of the last evaluation to w.
func (F *Forcefield) Summary(w io.Writer) error {
	if F.last == nil {
		_, err := fmt.Fprintln(w, "no energy evaluated")
		return err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-20s %16s\n", "term", "kcal/mol")
	for _, v := range F.last.ByTerm {
		fmt.Fprintf(&sb, "%-20s %16.4f\n", v.Name, v.Energy)
	}
	fmt.Fprintf(&sb, "%-20s %16.4f\n", "total", F.last.Total)
	_, err := io.WriteString(w, sb.String())
	return err
}

//Fields returns the energies of the result as zap fields, for progress logging.
func (R *Result) Fields() []zap.Field {
	ret := make([]zap.Field, 0, len(R.ByTerm)+1)
	ret = append(ret, zap.Float64("epot", R.Total))
	for _, v := range R.ByTerm {
		ret = append(ret, zap.Float64(v.Name, v.Energy))
	}
	return ret
}
