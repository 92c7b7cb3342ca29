/*
 * montecarlo.go, part of gomm.
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
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	mm "github.com/rmera/gomm"
	"github.com/rmera/gomm/move"
	"go.uber.org/zap"
)

//FinalState selects the state a Monte Carlo run leaves behind.
type FinalState int

const (
	LastAccepted FinalState = iota
	LowestEnergy
	Last //the last trial state, even if it was rejected
)

//Filter is checked on each trial state before its energy is computed. If it returns
//false, the trial is rejected without evaluation.
type Filter func(s *mm.State) bool

//Schedule gives the temperature at a fraction of the run, between 0 and 1.
type Schedule func(frac float64) float64

//LinearAnnealing returns a schedule that goes linearly from t0 to t1.
func LinearAnnealing(t0, t1 float64) Schedule {
	return func(frac float64) float64 { return t0 + (t1-t0)*frac }
}

//Outcome is the result of one Monte Carlo step.
type Outcome struct {
	Move     string
	Accepted bool
	Filtered bool
	Trial    float64 //energy of the trial state, NaN if it was not evaluated
	Energy   float64 //energy of the current state after the step
}

//MoveStats counts the attempts of one move.
type MoveStats struct {
	Move     string //the move name, with its position in the set appended if the name is repeated
	Attempts int
	Accepted int
}

//Rate returns the acceptance ratio.
func (M MoveStats) Rate() float64 {
	if M.Attempts == 0 {
		return 0
	}
	return float64(M.Accepted) / float64(M.Attempts)
}

//MonteCarlo samples the states of a system with the Metropolis criterion. Each step draws
//a move from Moves and applies it. The Evaluator then gives the energy of the trial state,
//which is accepted or reverted. When the evaluator relaxes the state (a minimisation) the
//whole coordinate set is restored on rejection.
//
//Monitors are run every UpdateMon steps whether the step was accepted or not. Frames are
//written on steps that are multiples of UpdateTra, if UpdateTraAcc or UpdateTraRej
//selects the outcome of the step.
type MonteCarlo struct {
	Base
	Evaluator    Evaluator
	Moves        *move.Set
	Temperature  float64
	Schedule     Schedule //if not nil, overrides Temperature
	UpdateScrAcc bool
	UpdateScrRej bool
	UpdateTraAcc bool
	UpdateTraRej bool
	FinalState   FinalState
	Filters      []Filter
	Rand         *rand.Rand

	stats   []MoveStats
	epot    float64
	lowest  float64
	lowSnap *mm.Snapshot
	trial   *mm.Snapshot
	keep    bool
	step    int
	ready   bool
}

//NewMonteCarlo returns a sampler at 300 K.
func NewMonteCarlo(ev Evaluator, moves *move.Set) *MonteCarlo {
	return &MonteCarlo{
		Base:         defaultBase(1000),
		Evaluator:    ev,
		Moves:        moves,
		Temperature:  300,
		UpdateScrAcc: true,
		Rand:         mm.NewRand(1),
	}
}

func (M *MonteCarlo) temperature() float64 {
	if M.Schedule == nil || M.Steps <= 1 {
		return M.Temperature
	}
	return M.Schedule(math.Min(1, float64(M.step)/float64(M.Steps-1)))
}

func (M *MonteCarlo) init(ctx context.Context) error {
	if M.Moves == nil || M.Moves.Len() == 0 {
		return mm.NewConfigError("montecarlo", "no moves")
	}
	if M.Evaluator == nil {
		return mm.NewConfigError("montecarlo", "no evaluator")
	}
	if M.Temperature < 0 {
		return mm.NewConfigError("montecarlo", "negative temperature %g", M.Temperature)
	}
	if M.Rand == nil {
		M.Rand = mm.NewRand(1)
	}
	M.setup(M.Evaluator.Forcefield())
	e, err := M.Evaluator.Potential(ctx)
	if err != nil {
		return atStep(err, 0, "MonteCarlo")
	}
	M.epot, M.lowest = e, e
	M.lowSnap = M.state().Snapshot()
	M.stats = M.stats[:0]
	moves := M.Moves.Moves()
	count := make(map[string]int)
	for _, m := range moves {
		count[m.Name()]++
	}
	for i, m := range moves {
		label := m.Name()
		if count[label] > 1 {
			label = fmt.Sprintf("%s_%d", label, i)
		}
		M.stats = append(M.stats, MoveStats{Move: label})
	}
	M.ready = true
	return nil
}

func (M *MonteCarlo) state() *mm.State { return M.Evaluator.Forcefield().State() }

//Epot returns the energy of the current state.
func (M *MonteCarlo) Epot() float64 { return M.epot }

//Lowest returns the lowest energy accepted so far.
func (M *MonteCarlo) Lowest() float64 { return M.lowest }

//Stats returns the attempts of each move, in the order of the move set.
func (M *MonteCarlo) Stats() []MoveStats { return M.stats }

//Rate returns the overall acceptance ratio.
func (M *MonteCarlo) Rate() float64 {
	var t MoveStats
	for _, s := range M.stats {
		t.Attempts += s.Attempts
		t.Accepted += s.Accepted
	}
	return t.Rate()
}

func (M *MonteCarlo) filtered(s *mm.State) bool {
	for _, f := range M.Filters {
		if !f(s) {
			return true
		}
	}
	return false
}

//Step performs one Monte Carlo step.
func (M *MonteCarlo) Step(ctx context.Context) (Outcome, error) {
	if !M.ready {
		if err := M.init(ctx); err != nil {
			return Outcome{}, err
		}
	}
	s := M.state()
	tick(M.Evaluator.Forcefield())
	relax := M.Evaluator.Relaxes()
	idx := M.Moves.PickIndex(M.Rand)
	m := M.Moves.Moves()[idx]
	st := &M.stats[idx]
	out := Outcome{Move: st.Move, Trial: math.NaN()}
	var snap *mm.Snapshot
	if relax {
		snap = s.Snapshot()
	}
	if err := m.Propose(s, M.Rand); err != nil {
		return out, mm.ErrDecorate(err, "MonteCarlo.Step")
	}
	m.Apply(s)
	kT := mm.KT(M.temperature())
	if M.filtered(s) {
		out.Filtered = true
	} else {
		e, err := M.Evaluator.Potential(ctx)
		var derr *mm.DivergenceError
		switch {
		case errors.As(err, &derr):
			M.logger().Debug("trial diverged", zap.Int("step", M.step), zap.String("move", st.Move), zap.Error(err))
		case err != nil:
			return out, atStep(err, M.step, "MonteCarlo.Step")
		default:
			out.Trial = e
			out.Accepted = mm.Metropolis(e-M.epot, kT, M.Rand)
		}
	}
	st.Attempts++
	if out.Accepted {
		st.Accepted++
		M.epot = out.Trial
		if M.epot < M.lowest {
			M.lowest = M.epot
			M.lowSnap = s.Snapshot()
		}
	} else {
		if M.keep {
			M.trial = s.Snapshot()
		}
		if relax {
			s.Restore(snap)
		} else {
			m.Revert(s)
		}
	}
	out.Energy = M.epot
	M.step++
	M.Metrics.MCMove(m.Name(), out.Accepted)
	M.Metrics.Step("montecarlo")
	return out, M.report(out, s)
}

func (M *MonteCarlo) report(out Outcome, s *mm.State) error {
	scr, tra := M.UpdateScrRej, M.UpdateTraRej
	if out.Accepted {
		scr, tra = M.UpdateScrAcc, M.UpdateTraAcc
	}
	if scr && every(M.step, M.UpdateScr) {
		M.logger().Info("montecarlo", zap.Int("step", M.step), zap.String("move", out.Move),
			zap.Bool("accepted", out.Accepted), zap.Float64("trial", out.Trial),
			zap.Float64("epot", out.Energy), zap.Float64("rate", M.Rate()))
	}
	if tra && every(M.step, M.UpdateTra) {
		if err := M.writeFrame(s); err != nil {
			return err
		}
	}
	if every(M.step, M.UpdateMon) {
		M.Monitors.Run(M.step, s)
	}
	return nil
}

//Run performs Steps Monte Carlo steps and then sets the state chosen by FinalState.
func (M *MonteCarlo) Run(ctx context.Context) error {
	M.ready = false
	M.step = 0
	M.trial = nil
	if err := M.init(ctx); err != nil {
		return err
	}
	var last Outcome
	for i := 0; i < M.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		M.keep = M.FinalState == Last && i == M.Steps-1
		out, err := M.Step(ctx)
		if err != nil {
			return err
		}
		last = out
	}
	s := M.state()
	switch {
	case M.FinalState == LowestEnergy && M.lowest < M.epot:
		s.Restore(M.lowSnap)
		M.epot = M.lowest
	case M.FinalState == Last && M.trial != nil:
		s.Restore(M.trial)
		if !math.IsNaN(last.Trial) {
			M.epot = last.Trial
		}
	}
	M.logger().Info("montecarlo finished", zap.Int("steps", M.step), zap.Float64("epot", M.epot),
		zap.Float64("lowest", M.lowest), zap.Float64("rate", M.Rate()))
	return nil
}

//Summary writes the acceptance of each move as a text table.
func (M *MonteCarlo) Summary(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%-24s %10s %10s %8s\n", "move", "attempts", "accepted", "rate"); err != nil {
		return err
	}
	for _, s := range M.stats {
		if _, err := fmt.Fprintf(w, "%-24s %10d %10d %8.3f\n", s.Move, s.Attempts, s.Accepted, s.Rate()); err != nil {
			return err
		}
	}
	return nil
}
