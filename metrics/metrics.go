/*
 * metrics.go, part of gomm.
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

//Package metrics exposes counters and gauges for the simulation protocols through
//the prometheus client. Every method is safe to call on a nil *Collector, so
//components can be used without metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gomm"

//Collector groups the prometheus collectors used by gomm.
type Collector struct {
	steps    *prometheus.CounterVec
	mcMoves  *prometheus.CounterVec
	exchange *prometheus.CounterVec
	rebuilds prometheus.Counter
	energy   *prometheus.GaugeVec
}

//New creates a Collector and registers it in reg. If reg is nil, the collectors are
//created but not registered.
func New(reg prometheus.Registerer) (*Collector, error) {
	C := &Collector{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Steps performed, by protocol.",
		}, []string{"protocol"}),
		mcMoves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mc_moves_total",
			Help:      "Monte Carlo moves attempted, by move and outcome.",
		}, []string{"move", "outcome"}),
		exchange: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rex_exchanges_total",
			Help:      "Replica exchange attempts, by replica pair and outcome.",
		}, []string{"pair", "outcome"}),
		rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nlist_rebuilds_total",
			Help:      "Neighbor list rebuilds.",
		}),
		energy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "potential_energy",
			Help:      "Last evaluated potential energy in kcal/mol, by term.",
		}, []string{"term"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{C.steps, C.mcMoves, C.exchange, C.rebuilds, C.energy} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return C, nil
}

func outcome(accepted bool) string {
	if accepted {
		return "accepted"
	}
	return "rejected"
}

//Step counts one step of the given protocol.
func (C *Collector) Step(protocol string) {
	if C == nil {
		return
	}
	C.steps.WithLabelValues(protocol).Inc()
}

//MCMove counts one Monte Carlo move attempt.
func (C *Collector) MCMove(move string, accepted bool) {
	if C == nil {
		return
	}
	C.mcMoves.WithLabelValues(move, outcome(accepted)).Inc()
}

//Exchange counts one replica exchange attempt between the replicas in pair.
func (C *Collector) Exchange(pair string, accepted bool) {
	if C == nil {
		return
	}
	C.exchange.WithLabelValues(pair, outcome(accepted)).Inc()
}

//NListRebuild counts a neighbor list rebuild.
func (C *Collector) NListRebuild() {
	if C == nil {
		return
	}
	C.rebuilds.Inc()
}

//Energy sets the last energy for a term. The total is reported with the "total" term name.
func (C *Collector) Energy(term string, e float64) {
	if C == nil {
		return
	}
	C.energy.WithLabelValues(term).Set(e)
}
