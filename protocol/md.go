/*
 * md.go, part of gomm.
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
	"math/rand/v2"

	mm "github.com/rmera/gomm"
	"github.com/rmera/gomm/ff"
	v3 "github.com/rmera/gomm/v3"
	"go.uber.org/zap"
)

//Integrator selects the equations of motion of an MD run.
type Integrator int

const (
	Verlet Integrator = iota
	Langevin
)

func (I Integrator) String() string {
	if I == Langevin {
		return "langevin"
	}
	return "verlet"
}

//Thermostat is a velocity-rescaling thermostat for Verlet runs.
type Thermostat int

const (
	NoThermostat Thermostat = iota
	Berendsen
)

//MD is a molecular dynamics run. Langevin runs use the BAOAB splitting, where
//the friction and noise step is the exact solution of the Ornstein-Uhlenbeck process, so
//they sample the canonical ensemble at TargetTemp without any other thermostat.
//Verlet runs use velocity Verlet, optionally with a Berendsen thermostat.
//
//Timestep, FricCoeff and BerendsenTau are in SI units (s, 1/s and s).
type MD struct {
	Base
	FF                        *ff.Forcefield
	Integrator                Integrator
	Timestep                  float64
	FricCoeff                 float64
	LangevinOnHydrogens       bool
	TargetTemp                float64
	InitialTemp               float64 //if >0, velocities are drawn at this temperature when the run starts
	Thermostat                Thermostat
	BerendsenTau              float64
	RemoveTotalMomentum       bool //ignored under periodic boundaries
	UpdateRemoveTotalMomentum int
	Rand                      *rand.Rand

	step    int
	epot    float64
	started bool
	ready   bool
}

//NewMD returns a Langevin run of F at 300 K with a 2 fs timestep.
func NewMD(F *ff.Forcefield) *MD {
	return &MD{
		Base:                      defaultBase(1000),
		FF:                        F,
		Integrator:                Langevin,
		Timestep:                  2e-15,
		FricCoeff:                 5e12,
		LangevinOnHydrogens:       true,
		TargetTemp:                300,
		BerendsenTau:              1e-13,
		UpdateRemoveTotalMomentum: 100,
		Rand:                      mm.NewRand(1),
	}
}

func (M *MD) check() error {
	switch {
	case M.Timestep <= 0:
		return mm.NewConfigError("md", "Timestep must be positive, got %g", M.Timestep)
	case M.Integrator == Langevin && M.FricCoeff < 0:
		return mm.NewConfigError("md", "FricCoeff must not be negative, got %g", M.FricCoeff)
	case M.TargetTemp < 0:
		return mm.NewConfigError("md", "negative target temperature %g", M.TargetTemp)
	case M.Thermostat == Berendsen && M.BerendsenTau <= 0:
		return mm.NewConfigError("md", "BerendsenTau must be positive, got %g", M.BerendsenTau)
	}
	if M.Rand == nil {
		M.Rand = mm.NewRand(1)
	}
	for i := 0; i < M.FF.State().Len(); i++ {
		if M.FF.State().Mass(i) <= 0 {
			return mm.NewConfigError("md", "atom %d has non-positive mass", i)
		}
	}
	return nil
}

func (M *MD) removeMomentum() bool {
	return M.RemoveTotalMomentum && !M.FF.State().Box.Periodic()
}

//StepCount returns the number of steps performed so far over all runs.
func (M *MD) StepCount() int { return M.step }

//Time returns the simulated time so far, in ps.
func (M *MD) Time() float64 { return float64(M.step) * M.Timestep * mm.SecondsToPs }

//SetTemperature sets the target temperature.
func (M *MD) SetTemperature(t float64) { M.TargetTemp = t }

//Temperature returns the target temperature.
func (M *MD) Temperature() float64 { return M.TargetTemp }

//State returns the state the run propagates.
func (M *MD) State() *mm.State { return M.FF.State() }

//Potential returns the potential energy of the current state.
func (M *MD) Potential() (float64, error) {
	return M.FF.Energy()
}

//InstantTemperature returns the temperature estimated from the kinetic energy.
func (M *MD) InstantTemperature() float64 {
	s := M.FF.State()
	return s.Temperature(s.DegreesOfFreedom(M.removeMomentum()))
}

func (M *MD) kick(s *mm.State, h float64) {
	for i := 0; i < s.Len(); i++ {
		if s.Top.Atom(i).Fixed {
			continue
		}
		s.Vel.AddToVec(i, s.Forces.Vec(i).Scale(h*mm.ForceToAccel/s.Mass(i)))
	}
}

func (M *MD) drift(s *mm.State, h float64) {
	for i := 0; i < s.Len(); i++ {
		if s.Top.Atom(i).Fixed {
			continue
		}
		s.Coords.AddToVec(i, s.Vel.Vec(i).Scale(h))
	}
}

//ou is the friction and noise step over h.
func (M *MD) ou(s *mm.State, h float64) {
	gamma := M.FricCoeff / mm.SecondsToPs
	c1 := math.Exp(-gamma * h)
	c2 := math.Sqrt(1 - c1*c1)
	kT := mm.KT(M.TargetTemp) * mm.ForceToAccel
	for i := 0; i < s.Len(); i++ {
		at := s.Top.Atom(i)
		if at.Fixed || (!M.LangevinOnHydrogens && at.IsHydrogen()) {
			continue
		}
		sigma := math.Sqrt(kT / s.Mass(i))
		noise := v3.Vec{M.Rand.NormFloat64(), M.Rand.NormFloat64(), M.Rand.NormFloat64()}
		s.Vel.SetVec(i, s.Vel.Vec(i).Scale(c1).Add(noise.Scale(c2*sigma)))
	}
}

func (M *MD) berendsen(s *mm.State, dt float64) {
	t := M.InstantTemperature()
	if t <= 0 {
		return
	}
	tau := M.BerendsenTau * mm.SecondsToPs
	lambda := math.Sqrt(1 + dt/tau*(M.TargetTemp/t-1))
	s.ScaleVelocities(lambda)
}

func (M *MD) checkFinite(s *mm.State) error {
	for i := 0; i < s.Len(); i++ {
		if c := s.Coords.Vec(i); !c.IsFinite() {
			return mm.NewDivergenceError(M.step, i, "position", c.Norm())
		}
		if v := s.Vel.Vec(i); !v.IsFinite() {
			return mm.NewDivergenceError(M.step, i, "velocity", v.Norm())
		}
	}
	return nil
}

func (M *MD) evaluate() error {
	r, err := M.FF.Evaluate()
	if err != nil {
		return atStep(err, M.step, "MD")
	}
	M.epot = r.Total
	return nil
}

//Step advances the state by one timestep. The forces of the state must be those of its
//current positions, as Run leaves them.
func (M *MD) Step() error {
	if !M.ready {
		if err := M.evaluate(); err != nil {
			return err
		}
		M.ready = true
	}
	s := M.FF.State()
	dt := M.Timestep * mm.SecondsToPs
	M.step++
	tick(M.FF)
	M.kick(s, 0.5*dt)
	if M.Integrator == Langevin {
		M.drift(s, 0.5*dt)
		M.ou(s, dt)
		M.drift(s, 0.5*dt)
	} else {
		M.drift(s, dt)
	}
	if err := M.checkFinite(s); err != nil {
		return err
	}
	if err := M.evaluate(); err != nil {
		return err
	}
	M.kick(s, 0.5*dt)
	if M.Integrator == Verlet && M.Thermostat == Berendsen {
		M.berendsen(s, dt)
	}
	if M.removeMomentum() && every(M.step, M.UpdateRemoveTotalMomentum) {
		s.RemoveNetMomentum()
	}
	return M.checkFinite(s)
}

//Run performs Steps steps. The forces are evaluated first, so the state may have been
//changed since the last run. On the first run, if InitialTemp is set, velocities are drawn from
//the Maxwell-Boltzmann distribution.
func (M *MD) Run(ctx context.Context) error {
	if err := M.check(); err != nil {
		return err
	}
	s := M.FF.State()
	if !M.started {
		M.started = true
		M.setup(M.FF)
		if M.InitialTemp > 0 {
			s.MaxwellBoltzmann(M.InitialTemp, M.Rand)
		}
		if M.removeMomentum() {
			s.RemoveNetMomentum()
		}
	}
	M.ready = false
	log := M.logger()
	for i := 1; i <= M.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := M.Step(); err != nil {
			return err
		}
		M.Metrics.Step("md")
		if every(M.step, M.UpdateScr) {
			ekin := s.KineticEnergy()
			log.Info("md", zap.Int("step", M.step), zap.Float64("time_ps", M.Time()),
				zap.Float64("epot", M.epot), zap.Float64("ekin", ekin),
				zap.Float64("etot", M.epot+ekin), zap.Float64("temp", M.InstantTemperature()))
		}
		if err := M.output(M.step, s); err != nil {
			return err
		}
	}
	return nil
}

//Epot returns the potential energy after the last step.
func (M *MD) Epot() float64 { return M.epot }
