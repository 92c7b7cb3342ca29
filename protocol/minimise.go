/*
 * minimise.go, part of gomm.
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

package protocol

import (
	"context"
	"math"

	mm "github.com/rmera/gomm"
	"github.com/rmera/gomm/ff"
	v3 "github.com/rmera/gomm/v3"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

//Algorithm is a minimisation algorithm.
type Algorithm int

const (
	SteepestDescent Algorithm = iota
	ConjugateGradients
)

func (a Algorithm) String() string {
	if a == ConjugateGradients {
		return "cg"
	}
	return "sd"
}

//Minimisation lowers the potential energy of the state of FF. Each step moves the
//atoms along the search direction so that the largest displacement equals the current
//cap. The cap starts at StepSize*InitialCapFactor and grows back to StepSize while
//steps are accepted. A step that raises the energy is undone and the cap halved, so the
//energy of the state never increases.
//
//Run always performs Steps steps unless SlopeCutoff is set. Steps taken once the forces on
//the mobile atoms vanish leave the state unchanged.
type Minimisation struct {
	Base
	FF               *ff.Forcefield
	Algorithm        Algorithm
	StepSize         float64 //largest displacement of an atom in one step, A
	InitialCapFactor float64
	SlopeCutoff      float64 //if >0, the run stops when the RMS force falls below this
	Atoms            []int   //atoms that move. If nil, all atoms that are not Fixed.

	mobile    []bool
	mult      float64
	epot      float64
	dir       *v3.Matrix
	prevF     *v3.Matrix
	saved     *v3.Matrix
	savedF    *v3.Matrix
	ready     bool
	converged bool
	step      int
}

//NewMinimisation returns a steepest-descent minimisation of F with 1000 steps.
func NewMinimisation(F *ff.Forcefield) *Minimisation {
	return &Minimisation{
		Base:             defaultBase(1000),
		FF:               F,
		StepSize:         0.1,
		InitialCapFactor: 0.05,
	}
}

func (M *Minimisation) init() error {
	s := M.FF.State()
	if M.StepSize <= 0 {
		return mm.NewConfigError("minimisation", "StepSize must be positive, got %g", M.StepSize)
	}
	if M.InitialCapFactor <= 0 || M.InitialCapFactor > 1 {
		M.InitialCapFactor = 1
	}
	M.mobile = make([]bool, s.Len())
	if M.Atoms == nil {
		for i := range M.mobile {
			M.mobile[i] = !s.Top.Atom(i).Fixed
		}
	} else {
		for _, i := range M.Atoms {
			if i < 0 || i >= s.Len() {
				return mm.NewConfigError("minimisation", "atom index %d out of range", i)
			}
			M.mobile[i] = !s.Top.Atom(i).Fixed
		}
	}
	M.setup(M.FF)
	r, err := M.FF.Evaluate()
	if err != nil {
		return err
	}
	M.epot = r.Total
	M.mult = M.InitialCapFactor
	n := s.Len()
	M.dir = v3.Zeros(n)
	M.saved = v3.Zeros(n)
	M.savedF = v3.Zeros(n)
	M.prevF = nil
	M.converged = false
	M.ready = true
	return nil
}

//masked returns the forces of the mobile atoms, zero for the others.
func (M *Minimisation) masked(F *v3.Matrix) *v3.Matrix {
	r := F.Clone()
	for i, ok := range M.mobile {
		if !ok {
			r.SetVec(i, v3.Vec{})
		}
	}
	return r
}

//direction sets M.dir for the current forces.
func (M *Minimisation) direction() {
	g := M.masked(M.FF.State().Forces)
	gd := g.RawMatrix().Data
	if M.Algorithm == ConjugateGradients && M.prevF != nil {
		pd := M.prevF.RawMatrix().Data
		den := floats.Dot(pd, pd)
		beta := 0.0
		if den > 0 {
			beta = (floats.Dot(gd, gd) - floats.Dot(gd, pd)) / den
		}
		beta = math.Max(beta, 0) //Polak-Ribiere+
		dd := M.dir.RawMatrix().Data
		floats.AddScaledTo(dd, gd, beta, dd)
		//not a descent direction, restart
		if floats.Dot(dd, gd) <= 0 {
			copy(dd, gd)
		}
		M.prevF = g
		return
	}
	M.dir.CopyFrom(g)
	M.prevF = g
}

func (M *Minimisation) rmsForce() float64 {
	f := M.FF.State().Forces
	var sum float64
	n := 0
	for i, ok := range M.mobile {
		if ok {
			sum += f.Vec(i).Norm2()
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

//Step performs one minimisation step and returns the potential energy after it.
func (M *Minimisation) Step() (float64, error) {
	if !M.ready {
		if err := M.init(); err != nil {
			return 0, atStep(err, M.step, "Minimisation.Step")
		}
	}
	M.step++
	tick(M.FF)
	s := M.FF.State()
	M.direction()
	var maxd float64
	for i := 0; i < s.Len(); i++ {
		maxd = math.Max(maxd, M.dir.Vec(i).Norm())
	}
	if maxd == 0 {
		M.converged = true
		return M.epot, nil
	}
	scale := M.StepSize * M.mult / maxd
	M.saved.CopyFrom(s.Coords)
	M.savedF.CopyFrom(s.Forces)
	for i, ok := range M.mobile {
		if ok {
			s.Coords.AddToVec(i, M.dir.Vec(i).Scale(scale))
		}
	}
	r, err := M.FF.Evaluate()
	if err != nil {
		return M.epot, atStep(err, M.step, "Minimisation.Step")
	}
	if r.Total <= M.epot {
		M.epot = r.Total
		M.mult = math.Min(1, M.mult*1.2)
		return M.epot, nil
	}
	s.Coords.CopyFrom(M.saved)
	s.Forces.CopyFrom(M.savedF)
	M.mult *= 0.5
	M.prevF = nil
	return M.epot, nil
}

//Epot returns the potential energy of the last accepted step.
func (M *Minimisation) Epot() float64 { return M.epot }

//Converged returns true if the forces vanished during the last run, or fell below
//SlopeCutoff.
func (M *Minimisation) Converged() bool { return M.converged }

//Run performs Steps minimisation steps from the current state.
func (M *Minimisation) Run(ctx context.Context) error {
	M.step = 0
	if err := M.init(); err != nil {
		return atStep(err, 0, "Minimisation.Run")
	}
	log := M.logger()
	for i := 1; i <= M.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := M.Step()
		if err != nil {
			return err
		}
		M.Metrics.Step("minimisation")
		if every(i, M.UpdateScr) {
			log.Info("minimisation", zap.Int("step", i), zap.Float64("epot", e),
				zap.Float64("rms_force", M.rmsForce()), zap.Float64("cap", M.StepSize*M.mult))
		}
		if err := M.output(i, M.FF.State()); err != nil {
			return err
		}
		if M.SlopeCutoff > 0 && M.rmsForce() < M.SlopeCutoff {
			M.converged = true
			log.Debug("minimisation converged", zap.Int("step", i), zap.Float64("epot", e))
			break
		}
	}
	return nil
}

//Potential minimises the state and returns its final energy.
func (M *Minimisation) Potential(ctx context.Context) (float64, error) {
	if err := M.Run(ctx); err != nil {
		return 0, err
	}
	return M.epot, nil
}

func (M *Minimisation) Forcefield() *ff.Forcefield { return M.FF }
func (M *Minimisation) Relaxes() bool              { return true }

//DualMinimisation minimises first with a cheap steric forcefield, and then with the full one.
//The stages are, in order: SDPreMinSteps of steepest descent with Steric (or FF if Steric is nil),
//StericMinSteps of conjugate gradients with Steric, and the minimisation of FF given by the
//embedded options. The last stage only runs if the full energy after the steric stages is
//below StericKillFull.
type DualMinimisation struct {
	Minimisation
	Steric            *ff.Forcefield
	SDPreMinSteps     int
	StericMinSteps    int
	StericStepSize    float64
	StericSlopeCutoff float64
	StericKillFull    float64
}

//NewDualMinimisation returns a minimisation of full preceded by a minimisation of steric, which
//must share its state.
func NewDualMinimisation(full, steric *ff.Forcefield) (*DualMinimisation, error) {
	if steric != nil && steric.State() != full.State() {
		return nil, mm.NewConfigError("minimisation", "the steric and full forcefields must share one state")
	}
	D := &DualMinimisation{
		Minimisation:   *NewMinimisation(full),
		Steric:         steric,
		StericMinSteps: 100,
		StericStepSize: 0.1,
		StericKillFull: math.Inf(1),
	}
	D.Algorithm = ConjugateGradients
	return D, nil
}

func (D *DualMinimisation) stage(F *ff.Forcefield, alg Algorithm, steps int, step, slope float64) *Minimisation {
	m := &Minimisation{
		Base:             D.Base,
		FF:               F,
		Algorithm:        alg,
		StepSize:         step,
		InitialCapFactor: D.InitialCapFactor,
		SlopeCutoff:      slope,
		Atoms:            D.Atoms,
	}
	m.Steps = steps
	m.Trajs = nil
	return m
}

//Run performs the three minimisation stages.
func (D *DualMinimisation) Run(ctx context.Context) error {
	if D.Steric != nil && D.Steric.State() != D.FF.State() {
		return mm.NewConfigError("minimisation", "the steric and full forcefields must share one state")
	}
	log := D.logger()
	if D.SDPreMinSteps > 0 {
		F := D.Steric
		if F == nil {
			F = D.FF
		}
		if err := D.stage(F, SteepestDescent, D.SDPreMinSteps, D.StepSize, 0).Run(ctx); err != nil {
			return err
		}
	}
	if D.Steric != nil && D.StericMinSteps > 0 {
		st := D.stage(D.Steric, ConjugateGradients, D.StericMinSteps, D.StericStepSize, D.StericSlopeCutoff)
		if err := st.Run(ctx); err != nil {
			return err
		}
		log.Info("steric minimisation", zap.Float64("epot", st.Epot()))
	}
	e, err := D.FF.Energy()
	if err != nil {
		return mm.ErrDecorate(err, "DualMinimisation.Run")
	}
	if e >= D.StericKillFull {
		log.Info("full minimisation skipped", zap.Float64("epot", e), zap.Float64("kill", D.StericKillFull))
		D.epot = e
		return nil
	}
	return D.Minimisation.Run(ctx)
}

//Potential runs the minimisation and returns the final energy of the full forcefield.
func (D *DualMinimisation) Potential(ctx context.Context) (float64, error) {
	if err := D.Run(ctx); err != nil {
		return 0, err
	}
	return D.epot, nil
}
