/*
 * run.go, part of gomm.
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

package hclconf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	mm "github.com/rmera/gomm"
	"github.com/rmera/gomm/ff"
	"github.com/rmera/gomm/metrics"
	"github.com/rmera/gomm/monitor"
	"github.com/rmera/gomm/move"
	"github.com/rmera/gomm/protocol"
	"github.com/rmera/gomm/rex"
	"go.uber.org/zap"
)

//BuildOptions are the settings that come from outside the configuration file.
type BuildOptions struct {
	Seed    *uint64 //overrides the seed of the file
	Log     *zap.Logger
	Metrics *metrics.Collector
}

//Run is a simulation ready to execute.
type Run struct {
	Protocol string
	Seed     uint64
	State    *mm.State
	FF       *ff.Forcefield
	Monitors *monitor.Set
	Log      *zap.Logger

	exec     func(ctx context.Context) error
	trajs    []mm.TrajWriter
	monitors []monitorSpec
	kT       float64
	energy   *ff.Result
	energies []float64
}

func (f *File) protocolName() (string, error) {
	var names []string
	for name, set := range map[string]bool{
		"energy":           f.Energy != nil,
		"minimise":         f.Minimise != nil,
		"md":               f.MD != nil,
		"montecarlo":       f.MonteCarlo != nil,
		"replica_exchange": f.Rex != nil,
		"rerun":            f.Rerun != nil,
	} {
		if set {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	if len(names) != 1 {
		return "", mm.NewConfigError("protocol", "exactly one protocol block is needed, found %d %v", len(names), names)
	}
	return names[0], nil
}

//Build validates f and creates the objects of the run. Any validation failure is
//returned as a *mm.ConfigError.
func Build(f *File, opts BuildOptions) (*Run, error) {
	B := &opts
	if B.Log == nil {
		B.Log = zap.NewNop()
	}
	name, err := f.protocolName()
	if err != nil {
		return nil, err
	}
	if f.Output == nil {
		f.Output = &Output{}
	}
	R := &Run{Protocol: name, Log: B.Log.With(zap.String("protocol", name)), Seed: 1}
	if f.Seed != nil {
		R.Seed = uint64(*f.Seed)
	}
	if B.Seed != nil {
		R.Seed = *B.Seed
	}
	if name == "replica_exchange" {
		if err := f.buildRex(R, B); err != nil {
			R.Close()
			return nil, err
		}
		return R, nil
	}
	if R.State, err = f.buildState(); err != nil {
		return nil, err
	}
	if R.FF, err = f.buildForcefield(R.State, B); err != nil {
		return nil, err
	}
	momentum := f.MD != nil && f.MD.RemoveTotalMomentum && !R.State.Box.Periodic()
	if R.Monitors, R.monitors, err = f.buildMonitors(R.FF, momentum); err != nil {
		return nil, err
	}
	if f.Output.Trajectory != "" {
		w, err := f.buildTraj(f.path(f.Output.Trajectory), R.State, R.Seed)
		if err != nil {
			return nil, err
		}
		R.trajs = append(R.trajs, w)
	}
	base := f.base(R, B)
	switch name {
	case "energy":
		E := protocol.NewEnergy(R.FF)
		E.Base = base
		byAtom := f.Energy.ByAtom
		R.exec = func(ctx context.Context) error {
			var err error
			if byAtom {
				R.energy, err = R.FF.EvaluateByAtom()
			} else {
				R.energy, err = E.Run(ctx)
			}
			return err
		}
	case "minimise":
		m, err := f.Minimise.build(R.FF, base, f, B)
		if err != nil {
			R.Close()
			return nil, err
		}
		R.exec = m.Run
	case "md":
		md, err := f.MD.build(R.FF, base, R.Seed)
		if err != nil {
			R.Close()
			return nil, err
		}
		R.kT = mm.KT(md.TargetTemp)
		R.exec = md.Run
	case "montecarlo":
		mc, err := f.MonteCarlo.build(R.FF, base, f, B, R.Seed)
		if err != nil {
			R.Close()
			return nil, err
		}
		R.kT = mm.KT(mc.Temperature)
		R.exec = func(ctx context.Context) error {
			if err := mc.Run(ctx); err != nil {
				return err
			}
			var sb strings.Builder
			if err := mc.Summary(&sb); err != nil {
				return err
			}
			R.Log.Info("montecarlo finished\n" + sb.String())
			return nil
		}
	case "rerun":
		if err := f.buildRerun(R, base, B); err != nil {
			R.Close()
			return nil, err
		}
	}
	if R.kT == 0 {
		R.kT = mm.KT(300)
	}
	return R, nil
}

//base returns the common protocol options given by the output block.
func (f *File) base(R *Run, B *BuildOptions) protocol.Base {
	b := protocol.Base{UpdateScr: 10, UpdateMon: 1, Log: R.Log, Metrics: B.Metrics, Monitors: R.Monitors, Trajs: R.trajs}
	o := f.Output
	set(&b.UpdateScr, o.UpdateScr)
	set(&b.UpdateMon, o.UpdateMon)
	set(&b.UpdateNList, o.UpdateNList)
	if o.Trajectory != "" {
		b.UpdateTra = 100
	}
	set(&b.UpdateTra, o.UpdateTra)
	return b
}

func (m *MinimiseBlock) build(F *ff.Forcefield, base protocol.Base, f *File, B *BuildOptions) (runner, error) {
	base.Steps = m.Steps
	var M *protocol.Minimisation
	var ev runner
	if m.SDPreMinSteps > 0 || m.StericMinSteps > 0 {
		steric, err := f.stericForcefield(F.State(), B)
		if err != nil {
			return nil, err
		}
		D, err := protocol.NewDualMinimisation(F, steric)
		if err != nil {
			return nil, err
		}
		D.SDPreMinSteps, D.StericMinSteps = m.SDPreMinSteps, m.StericMinSteps
		set(&D.StericStepSize, m.StericStepSize)
		D.StericSlopeCutoff = m.StericSlopeCutoff
		set(&D.StericKillFull, m.StericKillFull)
		M, ev = &D.Minimisation, D
	} else {
		M = protocol.NewMinimisation(F)
		ev = M
	}
	M.Base = base
	switch strings.ToLower(m.Algorithm) {
	case "", "sd", "steepest_descent":
		M.Algorithm = protocol.SteepestDescent
	case "cg", "conjugate_gradients":
		M.Algorithm = protocol.ConjugateGradients
	default:
		return nil, mm.NewConfigError("minimise", "unknown algorithm %q", m.Algorithm)
	}
	set(&M.StepSize, m.StepSize)
	set(&M.InitialCapFactor, m.InitialCapFactor)
	M.SlopeCutoff = m.SlopeCutoff
	M.Atoms = m.Atoms
	if !(M.StepSize > 0) {
		return nil, mm.NewConfigError("minimise", "step_size must be positive")
	}
	return ev, nil
}

//runner is an Evaluator that can also run by itself.
type runner interface {
	protocol.Evaluator
	Run(ctx context.Context) error
}

func (m *MDBlock) build(F *ff.Forcefield, base protocol.Base, seed uint64) (*protocol.MD, error) {
	md := protocol.NewMD(F)
	md.Base = base
	md.Steps = m.Steps
	switch strings.ToLower(m.Integrator) {
	case "", "langevin":
		md.Integrator = protocol.Langevin
	case "verlet":
		md.Integrator = protocol.Verlet
	default:
		return nil, mm.NewConfigError("md", "unknown integrator %q", m.Integrator)
	}
	switch strings.ToLower(m.Thermostat) {
	case "", "none":
		md.Thermostat = protocol.NoThermostat
	case "berendsen":
		md.Thermostat = protocol.Berendsen
	default:
		return nil, mm.NewConfigError("md", "unknown thermostat %q", m.Thermostat)
	}
	set(&md.Timestep, m.Timestep)
	set(&md.FricCoeff, m.FricCoeff)
	set(&md.LangevinOnHydrogens, m.LangevinOnHydrogens)
	set(&md.TargetTemp, m.TargetTemp)
	set(&md.BerendsenTau, m.BerendsenTau)
	set(&md.UpdateRemoveTotalMomentum, m.UpdateRemoveTotalMomentum)
	md.InitialTemp = m.InitialTemp
	md.RemoveTotalMomentum = m.RemoveTotalMomentum
	md.Rand = mm.NewRand(seed)
	if !(md.Timestep > 0) {
		return nil, mm.NewConfigError("md", "timestep must be positive")
	}
	return md, nil
}

func (m *MoveBlock) build() (move.Move, float64, error) {
	w := 1.0
	set(&w, m.Weight)
	dist := move.Uniform
	switch strings.ToLower(m.Dist) {
	case "", "uniform":
	case "gaussian":
		dist = move.Gaussian
	default:
		return nil, 0, mm.NewConfigError("move", "unknown distribution %q", m.Dist)
	}
	switch m.Kind {
	case "torsion":
		t := move.NewTorsionMove()
		t.Step.Dist = dist
		if m.Step != nil {
			t.Step.Size = *m.Step * mm.Deg2Rad
		}
		for _, b := range m.Bonds {
			if err := indexes("torsion move", b, 2); err != nil {
				return nil, 0, err
			}
			t.Bonds = append(t.Bonds, [2]int{b[0], b[1]})
		}
		t.Atoms = m.Atoms
		if m.NMoves > 0 {
			t.NMoves = m.NMoves
		}
		return t, w, nil
	case "backbone":
		b := move.NewBackboneMove()
		b.Step.Dist = dist
		if m.Step != nil {
			b.Step.Size = *m.Step * mm.Deg2Rad
		}
		set(&b.Correlation, m.Correlation)
		return b, w, nil
	case "rigid":
		r := move.NewRigidDisplacement()
		r.TransStep.Dist, r.RotStep.Dist = dist, dist
		set(&r.TransStep.Size, m.TransStep)
		if m.RotStep != nil {
			r.RotStep.Size = *m.RotStep * mm.Deg2Rad
		}
		r.Molecules = m.Molecules
		return r, w, nil
	}
	return nil, 0, mm.NewConfigError("move", "unknown move kind %q", m.Kind)
}

func (m *MCBlock) build(F *ff.Forcefield, base protocol.Base, f *File, B *BuildOptions, seed uint64) (*protocol.MonteCarlo, error) {
	moves := &move.Set{}
	for _, mb := range m.Moves {
		mv, w, err := mb.build()
		if err != nil {
			return nil, err
		}
		if err := moves.Add(mv, w); err != nil {
			return nil, err
		}
	}
	var ev protocol.Evaluator = protocol.NewEnergy(F)
	if m.Minimise != nil {
		inner := base
		inner.Trajs, inner.Monitors, inner.UpdateScr = nil, nil, 0
		var err error
		if ev, err = m.Minimise.build(F, inner, f, B); err != nil {
			return nil, err
		}
	}
	mc := protocol.NewMonteCarlo(ev, moves)
	mc.Base = base
	mc.Steps = m.Steps
	set(&mc.Temperature, m.Temperature)
	if m.FinalTemp != nil {
		mc.Schedule = protocol.LinearAnnealing(mc.Temperature, *m.FinalTemp)
	}
	switch strings.ToLower(m.FinalState) {
	case "", "last_accepted":
		mc.FinalState = protocol.LastAccepted
	case "lowest_energy":
		mc.FinalState = protocol.LowestEnergy
	case "last":
		mc.FinalState = protocol.Last
	default:
		return nil, mm.NewConfigError("montecarlo", "unknown final state %q", m.FinalState)
	}
	set(&mc.UpdateScrAcc, m.UpdateScrAcc)
	mc.UpdateScrRej, mc.UpdateTraAcc, mc.UpdateTraRej = m.UpdateScrRej, m.UpdateTraAcc, m.UpdateTraRej
	mc.Rand = mm.NewRand(seed)
	if moves.Len() == 0 {
		return nil, mm.NewConfigError("montecarlo", "no moves given")
	}
	return mc, nil
}

func (f *File) buildRerun(R *Run, base protocol.Base, B *BuildOptions) error {
	src, err := openTraj(f.path(f.Rerun.Trajectory))
	if err != nil {
		return fmt.Errorf("opening rerun trajectory: %w", err)
	}
	if src.Len() != R.State.Len() {
		src.Close()
		return mm.NewConfigError("rerun", "trajectory has %d atoms, the system %d", src.Len(), R.State.Len())
	}
	var ev protocol.Evaluator = protocol.NewEnergy(R.FF)
	if f.Rerun.Minimise != nil {
		inner := base
		inner.Trajs, inner.Monitors, inner.UpdateScr = nil, nil, 0
		if ev, err = f.Rerun.Minimise.build(R.FF, inner, f, B); err != nil {
			src.Close()
			return err
		}
	}
	rr := protocol.NewRerun(ev, src)
	rr.Base = base
	rr.Steps = f.Rerun.Frames
	R.exec = func(ctx context.Context) error {
		defer src.Close()
		var err error
		R.energies, err = rr.Run(ctx)
		return err
	}
	return nil
}

func (f *File) buildRex(R *Run, B *BuildOptions) error {
	rb := f.Rex
	if rb.MD == nil {
		return mm.NewConfigError("replica_exchange", "no md block")
	}
	var first *protocol.MD
	factory := func(i int, t float64) (rex.Propagator, error) {
		s, err := f.buildState()
		if err != nil {
			return nil, err
		}
		F, err := f.buildForcefield(s, B)
		if err != nil {
			return nil, err
		}
		log := R.Log.With(zap.Int("replica", i), zap.Float64("temp", t))
		base := protocol.Base{Log: log, Metrics: B.Metrics, UpdateMon: 1}
		set(&base.UpdateScr, f.Output.UpdateScr)
		set(&base.UpdateMon, f.Output.UpdateMon)
		set(&base.UpdateNList, f.Output.UpdateNList)
		if f.Output.Trajectory != "" {
			base.UpdateTra = 100
			set(&base.UpdateTra, f.Output.UpdateTra)
			w, err := f.buildTraj(trajName(f.path(f.Output.Trajectory), i), s, R.Seed+uint64(i))
			if err != nil {
				return nil, err
			}
			R.trajs = append(R.trajs, w)
			base.Trajs = []mm.TrajWriter{w}
		}
		if i == 0 {
			momentum := rb.MD.RemoveTotalMomentum && !s.Box.Periodic()
			if R.Monitors, R.monitors, err = f.buildMonitors(F, momentum); err != nil {
				return nil, err
			}
			base.Monitors = R.Monitors
			R.State, R.FF = s, F
		}
		md, err := rb.MD.build(F, base, R.Seed+uint64(i))
		if err != nil {
			return nil, err
		}
		md.TargetTemp = t
		if md.InitialTemp > 0 {
			md.InitialTemp = t
		}
		if i == 0 {
			first = md
		}
		return md, nil
	}
	E, err := rex.New(rb.Temperatures, factory)
	if err != nil {
		return err
	}
	E.Rounds, E.StepsPerRound, E.Workers = rb.Rounds, rb.StepsPerRound, rb.Workers
	E.Rand, E.Log, E.Metrics = mm.NewRand(R.Seed^0x5deece66d), R.Log, B.Metrics
	if !(E.Rounds > 0) || !(E.StepsPerRound > 0) {
		return mm.NewConfigError("replica_exchange", "rounds and steps_per_round must be positive")
	}
	R.kT = mm.KT(first.TargetTemp)
	R.exec = func(ctx context.Context) error {
		if err := E.Run(ctx); err != nil {
			return err
		}
		var sb strings.Builder
		if err := E.Summary(&sb); err != nil {
			return err
		}
		R.Log.Info("replica exchange finished\n" + sb.String())
		return nil
	}
	return nil
}

//Energy returns the result of an energy run, or nil.
func (R *Run) Energy() *ff.Result { return R.energy }

//Energies returns the frame energies of a rerun, or nil.
func (R *Run) Energies() []float64 { return R.energies }

//Execute performs the run, writes the monitor outputs and closes the trajectories.
func (R *Run) Execute(ctx context.Context) error {
	R.Log.Info("run started", zap.Uint64("seed", R.Seed))
	err := R.exec(ctx)
	if err == nil {
		err = R.writeMonitors()
	}
	if cerr := R.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if R.FF != nil && R.FF.Last() != nil {
		var sb strings.Builder
		if err := R.FF.Summary(&sb); err != nil {
			return err
		}
		R.Log.Info("run finished\n"+sb.String(), R.FF.Last().Fields()...)
	}
	return nil
}

func (R *Run) writeMonitors() error {
	for _, m := range R.monitors {
		if m.Plot != "" {
			if err := m.series.Plot(m.Plot, m.Width); err != nil {
				return err
			}
		}
		if m.SeriesPlot != "" {
			if err := m.series.PlotSeries(m.SeriesPlot); err != nil {
				return err
			}
		}
		if m.Profile != "" && m.restraint != nil {
			p, err := monitor.UmbrellaProfile(m.series, m.restraint, m.Width, R.kT)
			if err != nil {
				return err
			}
			p.Shift()
			out, err := os.Create(m.Profile)
			if err != nil {
				return err
			}
			_, err = p.WriteTo(out)
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
		}
	}
	if R.Monitors.Len() > 0 {
		var sb strings.Builder
		if err := R.Monitors.Summary(&sb); err != nil {
			return err
		}
		R.Log.Info("monitors\n" + sb.String())
	}
	return nil
}

//Close closes the trajectories of the run. It is called by Execute.
func (R *Run) Close() error {
	var errs []error
	for _, t := range R.trajs {
		errs = append(errs, t.Close())
	}
	R.trajs = nil
	return errors.Join(errs...)
}
