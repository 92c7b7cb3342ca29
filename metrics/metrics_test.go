/*
 * metrics_test.go, part of gomm.
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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(Te *testing.T) {
	reg := prometheus.NewRegistry()
	C, err := New(reg)
	require.NoError(Te, err)
	C.Step("md")
	C.Step("md")
	C.MCMove("torsion", true)
	C.MCMove("torsion", false)
	C.MCMove("torsion", false)
	C.Exchange("0-1", true)
	C.NListRebuild()
	C.Energy("total", -12.5)
	assert.Equal(Te, 2.0, testutil.ToFloat64(C.steps.WithLabelValues("md")))
	assert.Equal(Te, 2.0, testutil.ToFloat64(C.mcMoves.WithLabelValues("torsion", "rejected")))
	assert.Equal(Te, 1.0, testutil.ToFloat64(C.exchange.WithLabelValues("0-1", "accepted")))
	assert.Equal(Te, 1.0, testutil.ToFloat64(C.rebuilds))
	assert.Equal(Te, -12.5, testutil.ToFloat64(C.energy.WithLabelValues("total")))
	//a second registration on the same registry must fail
	_, err = New(reg)
	assert.Error(Te, err)
}

func TestNilCollector(Te *testing.T) {
	var C *Collector
	assert.NotPanics(Te, func() {
		C.Step("md")
		C.MCMove("x", true)
		C.Exchange("0-1", false)
		C.NListRebuild()
		C.Energy("total", 1)
	})
}
