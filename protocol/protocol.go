/*
 * protocol.go, part of gomm.
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

//Package protocol implements the simulation protocols that drive a state with a
//forcefield: single-point energies, reruns of trajectories, energy minimisation,
//molecular dynamics and Monte Carlo sampling.
//
//Every protocol embeds Base, which holds the options shared by all of them: the number
//of steps and the intervals for screen (log) output, trajectory frames, monitor
//measurements and forced neighbor list updates. An interval of 0 disables the
//corresponding output.
package protocol

import (
	"context"
	"errors"

	mm "github.com/rmera/gomm"
	"github.com/rmera/gomm/ff"
	"github.com/rmera/gomm/metrics"
	"github.com/rmera/gomm/monitor"
	"go.uber.org/zap"
)

//Base contains the options common to all protocols.
type Base struct {
	Steps       int
	UpdateScr   int //steps between log lines
	UpdateTra   int //steps between trajectory frames
	UpdateMon   int //steps between monitor measurements
	UpdateNList int //if >0, the neighbor list is rebuilt at least this often
	Trajs       []mm.TrajWriter
	Monitors    *monitor.Set
	Log         *zap.Logger
	Metrics     *metrics.Collector
}

func defaultBase(steps int) Base {
	return Base{Steps: steps, UpdateScr: 10, UpdateTra: 0, UpdateMon: 1, Log: zap.NewNop()}
}

//SetSteps sets the number of steps of the next run.
func (B *Base) SetSteps(n int) { B.Steps = n }

func every(step, n int) bool {
	return n > 0 && step%n == 0
}

func (B *Base) logger() *zap.Logger {
	if B.Log == nil {
		return zap.NewNop()
	}
	return B.Log
}

func (B *Base) setup(F *ff.Forcefield) {
	if nl := F.NeighborList(); nl != nil && B.UpdateNList > 0 {
		nl.Interval = B.UpdateNList
	}
}

//tick counts one protocol step for the neighbor list of F, so UpdateNList is in steps
//and not in evaluations.
func tick(F *ff.Forcefield) {
	if nl := F.NeighborList(); nl != nil {
		nl.Tick()
	}
}

//writeFrame writes s to every trajectory.
func (B *Base) writeFrame(s *mm.State) error {
	for _, t := range B.Trajs {
		if err := t.WriteFrame(s); err != nil {
			return err
		}
	}
	return nil
}

//output writes a trajectory frame and runs the monitors, if step is due for them.
func (B *Base) output(step int, s *mm.State) error {
	if every(step, B.UpdateTra) {
		if err := B.writeFrame(s); err != nil {
			return err
		}
	}
	if every(step, B.UpdateMon) {
		B.Monitors.Run(step, s)
	}
	return nil
}

//atStep sets the step of a divergence error, and decorates any error with the caller.
func atStep(err error, step int, caller string) error {
	var derr *mm.DivergenceError
	if errors.As(err, &derr) && derr.Step < 0 {
		derr.Step = step
	}
	return mm.ErrDecorate(err, caller)
}

//Evaluator computes the potential energy of the state of its forcefield. Evaluators
//that relax the state (a minimisation) change its coordinates.
type Evaluator interface {
	Potential(ctx context.Context) (float64, error)
	Forcefield() *ff.Forcefield
	Relaxes() bool
}

//Energy is a single-point energy evaluation.
type Energy struct {
	Base
	FF *ff.Forcefield
}

//NewEnergy returns a single-point protocol for F.
func NewEnergy(F *ff.Forcefield) *Energy {
	return &Energy{Base: defaultBase(1), FF: F}
}

//Run evaluates the energy and forces once, logs the per-term energies, and writes the state
//to the trajectories and monitors if their intervals are not zero.
func (E *Energy) Run(ctx context.Context) (*ff.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	E.setup(E.FF)
	r, err := E.FF.Evaluate()
	if err != nil {
		return nil, atStep(err, 0, "Energy.Run")
	}
	E.Metrics.Step("energy")
	if E.UpdateScr > 0 {
		E.logger().Info("energy", r.Fields()...)
	}
	return r, E.output(0, E.FF.State())
}

func (E *Energy) Potential(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return E.FF.Energy()
}

func (E *Energy) Forcefield() *ff.Forcefield { return E.FF }
func (E *Energy) Relaxes() bool              { return false }

//Rerun loads every frame of Source into the state and runs the evaluator on it.
type Rerun struct {
	Base
	Evaluator Evaluator
	Source    mm.FrameReader
}

//NewRerun returns a protocol that re-evaluates the frames from src with ev.
func NewRerun(ev Evaluator, src mm.FrameReader) *Rerun {
	R := &Rerun{Base: defaultBase(0), Evaluator: ev, Source: src}
	R.UpdateScr = 1
	return R
}

//Run returns the energy of each frame. Steps, if positive, limits the number of frames read.
func (R *Rerun) Run(ctx context.Context) ([]float64, error) {
	F := R.Evaluator.Forcefield()
	s := F.State()
	R.setup(F)
	box := make([]float64, 9)
	var ret []float64
	for frame := 0; R.Steps <= 0 || frame < R.Steps; frame++ {
		if err := ctx.Err(); err != nil {
			return ret, err
		}
		err := R.Source.Next(s.Coords, box)
		if mm.IsLastFrame(err) {
			break
		}
		if err != nil {
			return ret, mm.ErrDecorate(err, "Rerun.Run")
		}
		//the positions changed wholesale
		if nl := F.NeighborList(); nl != nil {
			nl.Invalidate()
		}
		e, err := R.Evaluator.Potential(ctx)
		if err != nil {
			return ret, atStep(err, frame, "Rerun.Run")
		}
		ret = append(ret, e)
		R.Metrics.Step("rerun")
		if every(frame, R.UpdateScr) {
			R.logger().Info("rerun", zap.Int("frame", frame), zap.Float64("epot", e))
		}
		if err := R.output(frame, s); err != nil {
			return ret, err
		}
	}
	return ret, nil
}
