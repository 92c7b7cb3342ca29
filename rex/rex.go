/*
 * rex.go, part of gomm.
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

//Package rex implements temperature replica exchange. A set of replicas, each propagated at
//its own temperature, run concurrently for a number of steps; then the coordinator attempts to
//swap the states of neighboring replicas in the temperature ladder with the Metropolis
//criterion, and the cycle repeats.
package rex

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	mm "github.com/rmera/gomm"
	"github.com/rmera/gomm/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//Propagator advances the state of one replica. *protocol.MD implements it.
type Propagator interface {
	Run(ctx context.Context) error
	State() *mm.State
	Potential() (float64, error)
	SetTemperature(t float64)
	Temperature() float64
	SetSteps(n int)
}

//Factory builds the propagator for replica i at temperature temp. Each propagator
//must own its state, forcefield and random generator.
type Factory func(i int, temp float64) (Propagator, error)

//PairStats counts the exchange attempts between replicas I and J=I+1.
type PairStats struct {
	I, J     int
	Attempts int
	Accepted int
}

//Rate returns the acceptance ratio of the pair.
func (P PairStats) Rate() float64 {
	if P.Attempts == 0 {
		return 0
	}
	return float64(P.Accepted) / float64(P.Attempts)
}

func (P PairStats) String() string { return fmt.Sprintf("%d-%d", P.I, P.J) }

//Exchange coordinates a replica exchange run. Replicas must be ordered by non-decreasing
//temperature. Even rounds attempt the pairs (0,1), (2,3)..., odd rounds (1,2), (3,4)...
//With only two replicas, the pair (0,1) is attempted every round, and a single replica
//never exchanges.
type Exchange struct {
	Replicas      []Propagator
	Rounds        int
	StepsPerRound int //if >0, set as the steps of each replica before the run
	Workers       int //replicas propagated at the same time. 0 means all.
	Rand          *rand.Rand
	Log           *zap.Logger
	Metrics       *metrics.Collector
	stats         []PairStats
	energies      []float64
	round         int
}

//New builds one replica per temperature with factory.
func New(temps []float64, factory Factory) (*Exchange, error) {
	if len(temps) == 0 {
		return nil, mm.NewConfigError("rex", "no temperatures given")
	}
	E := &Exchange{Rounds: 1, Rand: mm.NewRand(1)}
	for i, t := range temps {
		if !(t > 0) {
			return nil, mm.NewConfigError("rex", "non-positive temperature %g for replica %d", t, i)
		}
		if i > 0 && t < temps[i-1] {
			return nil, mm.NewConfigError("rex", "temperatures must not decrease, got %g after %g", t, temps[i-1])
		}
		p, err := factory(i, t)
		if err != nil {
			return nil, fmt.Errorf("building replica %d: %w", i, err)
		}
		p.SetTemperature(t)
		E.Replicas = append(E.Replicas, p)
	}
	return E, nil
}

func (E *Exchange) logger() *zap.Logger {
	if E.Log == nil {
		return zap.NewNop()
	}
	return E.Log
}

//Temperatures returns the temperature of each replica.
func (E *Exchange) Temperatures() []float64 {
	r := make([]float64, len(E.Replicas))
	for i, p := range E.Replicas {
		r[i] = p.Temperature()
	}
	return r
}

//Stats returns the exchange statistics of each adjacent pair.
func (E *Exchange) Stats() []PairStats { return E.stats }

//Energies returns the potential energy of each replica at the last exchange attempt.
func (E *Exchange) Energies() []float64 { return E.energies }

func (E *Exchange) init() error {
	n := len(E.Replicas)
	if n == 0 {
		return mm.NewConfigError("rex", "no replicas")
	}
	for i, p := range E.Replicas {
		if i > 0 && p.State() == E.Replicas[i-1].State() {
			return mm.NewConfigError("rex", "replicas %d and %d share a state", i-1, i)
		}
		if E.StepsPerRound > 0 {
			p.SetSteps(E.StepsPerRound)
		}
	}
	if E.Rand == nil {
		E.Rand = mm.NewRand(1)
	}
	if len(E.stats) != n-1 {
		E.stats = make([]PairStats, max(n-1, 0))
		for i := range E.stats {
			E.stats[i] = PairStats{I: i, J: i + 1}
		}
	}
	E.energies = make([]float64, n)
	return nil
}

//propagate runs every replica and collects their energies. It returns when all of them
//have finished or one has failed.
func (E *Exchange) propagate(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if E.Workers > 0 {
		g.SetLimit(E.Workers)
	}
	for i, p := range E.Replicas {
		g.Go(func() error {
			if err := p.Run(gctx); err != nil {
				return fmt.Errorf("replica %d, round %d: %w", i, E.round, err)
			}
			e, err := p.Potential()
			if err != nil {
				return fmt.Errorf("replica %d, round %d: %w", i, E.round, err)
			}
			E.energies[i] = e
			return nil
		})
	}
	return g.Wait()
}

//attempt tries to exchange the states of replicas i and i+1.
func (E *Exchange) attempt(i int) (bool, error) {
	j := i + 1
	pi, pj := E.Replicas[i], E.Replicas[j]
	ti, tj := pi.Temperature(), pj.Temperature()
	delta := (1/mm.KT(ti) - 1/mm.KT(tj)) * (E.energies[i] - E.energies[j])
	acc := mm.Metropolis(-delta, 1, E.Rand)
	st := &E.stats[i]
	st.Attempts++
	E.Metrics.Exchange(st.String(), acc)
	E.logger().Debug("exchange attempt", zap.Int("round", E.round), zap.Stringer("pair", st),
		zap.Float64("delta", delta), zap.Bool("accepted", acc))
	if !acc {
		return false, nil
	}
	st.Accepted++
	if err := pi.State().SwapBuffers(pj.State()); err != nil {
		return false, err
	}
	pi.State().ScaleVelocities(math.Sqrt(ti / tj))
	pj.State().ScaleVelocities(math.Sqrt(tj / ti))
	E.energies[i], E.energies[j] = E.energies[j], E.energies[i]
	return true, nil
}

//exchange attempts the exchanges of the current round.
func (E *Exchange) exchange() (int, error) {
	n := len(E.Replicas)
	if n < 2 {
		return 0, nil
	}
	start := E.round % 2
	if n == 2 {
		start = 0
	}
	accepted := 0
	for i := start; i+1 < n; i += 2 {
		ok, err := E.attempt(i)
		if err != nil {
			return accepted, err
		}
		if ok {
			accepted++
		}
	}
	return accepted, nil
}

//Run performs Rounds rounds of propagation and exchange. The first error of any replica
//aborts the whole run.
func (E *Exchange) Run(ctx context.Context) error {
	if err := E.init(); err != nil {
		return err
	}
	log := E.logger()
	for r := 0; r < E.Rounds; r++ {
		E.round = r
		if err := E.propagate(ctx); err != nil {
			return err
		}
		acc, err := E.exchange()
		if err != nil {
			return err
		}
		log.Info("replica exchange round", zap.Int("round", r), zap.Int("accepted", acc),
			zap.Float64s("epot", E.energies))
	}
	return nil
}

//Summary writes the acceptance of each pair as a text table.
func (E *Exchange) Summary(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%-8s %10s %10s %10s %8s\n", "pair", "T_low", "T_high", "attempts", "rate"); err != nil {
		return err
	}
	for _, s := range E.stats {
		_, err := fmt.Fprintf(w, "%-8s %10.2f %10.2f %10d %8.3f\n", s, E.Replicas[s.I].Temperature(),
			E.Replicas[s.J].Temperature(), s.Attempts, s.Rate())
		if err != nil {
			return err
		}
	}
	return nil
}
