/*
 * hclconf_test.go, part of gomm.
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
	"math"
	"os"
	"path/filepath"
	"testing"

	mm "github.com/rmera/gomm"
	v3 "github.com/rmera/gomm/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//butane is a stretched 4-carbon chain with harmonic bonds, generated angles and non-bonded
//interactions. The protocol block is appended by each test.
const butane = `
seed = 7

system {
  atom "C1" {
    symbol = "C"
    pos    = [0, 0, 0]
    mol_id = 1
  }
  atom "C2" {
    symbol = "C"
    pos    = [1.8, 0.2, 0]
    mol_id = 1
  }
  atom "C3" {
    symbol = "C"
    pos    = [2.5, 1.9, 0.3]
    mol_id = 1
  }
  atom "C4" {
    symbol = "C"
    pos    = [4.2, 2.1, 0.1]
    mol_id = 1
  }
  bonds = [[0, 1], [1, 2], [2, 3]]
}

forcefield {
  nlist {
    cutoff = 8
    buffer = 1
  }
  bonded {
    kangle = 50
    bond {
      atoms = [0, 1]
      k     = 300
      r0    = 1.53
    }
    bond {
      atoms = [1, 2]
      k     = 300
      r0    = 1.53
    }
    bond {
      atoms = [2, 3]
      k     = 300
      r0    = 1.53
    }
    dihedral {
      atoms = [0, 1, 2, 3]
      k     = 1.4
      n     = 3
    }
  }
  nonbonded {
    cutoff       = 8
    inner_cutoff = 6
  }
}
`

func build(Te *testing.T, dir, protocol string) *Run {
	path := filepath.Join(dir, "run.hcl")
	require.NoError(Te, os.WriteFile(path, []byte(butane+protocol), 0o644))
	f, err := Load(path)
	require.NoError(Te, err)
	R, err := Build(f, BuildOptions{})
	require.NoError(Te, err)
	return R
}

func countFrames(Te *testing.T, path string) int {
	r, err := openTraj(path)
	require.NoError(Te, err)
	defer r.Close()
	c := v3.Zeros(r.Len())
	n := 0
	for {
		err := r.Next(c)
		if mm.IsLastFrame(err) {
			return n
		}
		require.NoError(Te, err)
		n++
	}
}

func TestDecodeExpressions(Te *testing.T) {
	f, err := Decode([]byte(butane+`
replica_exchange {
  temperatures    = [for i in range(4) : 300 * pow(1.05, i)]
  rounds          = 2
  steps_per_round = max(5, 10)
  md {
    steps       = 0
    fric_coeff  = 1 / kb
  }
}
`), "ladder.hcl")
	require.NoError(Te, err)
	require.NotNil(Te, f.Rex)
	require.Len(Te, f.Rex.Temperatures, 4)
	for i, t := range f.Rex.Temperatures {
		assert.InDelta(Te, 300*math.Pow(1.05, float64(i)), t, 1e-9)
	}
	assert.Equal(Te, 10, f.Rex.StepsPerRound)
	assert.InDelta(Te, 1/mm.KB, *f.Rex.MD.FricCoeff, 1e-6)
	assert.Len(Te, f.System.Atoms, 4)
	assert.Equal(Te, "C3", f.System.Atoms[2].Name)
}

func TestDecodeErrors(Te *testing.T) {
	_, err := Decode([]byte(`system {`), "broken.hcl")
	assert.Error(Te, err)
	_, err = Decode([]byte(`frobnicate = 1`), "unknown.hcl")
	assert.Error(Te, err)
}

func TestEnergy(Te *testing.T) {
	R := build(Te, Te.TempDir(), `
energy {
  by_atom = true
}
`)
	require.NoError(Te, R.Execute(context.Background()))
	E := R.Energy()
	require.NotNil(Te, E)
	require.Len(Te, E.ByAtom, 4)
	sum := 0.0
	for _, v := range E.ByAtom {
		sum += v
	}
	assert.InDelta(Te, E.Total, sum, 1e-6*math.Max(1, math.Abs(E.Total)))
	_, ok := E.Term("bonded")
	assert.True(Te, ok)
}

func TestMinimise(Te *testing.T) {
	dir := Te.TempDir()
	R := build(Te, dir, `
output {
  trajectory = "min.stf"
  update_tra = 10
}

minimise {
  steps     = 100
  algorithm = "cg"
}
`)
	e0, err := R.FF.Energy()
	require.NoError(Te, err)
	require.NoError(Te, R.Execute(context.Background()))
	e1, err := R.FF.Energy()
	require.NoError(Te, err)
	assert.Less(Te, e1, e0)
	assert.InDelta(Te, 1.53, R.State.Distance(0, 1), 0.1)
	assert.Positive(Te, countFrames(Te, filepath.Join(dir, "min.stf")))
}

func TestDualMinimise(Te *testing.T) {
	R := build(Te, Te.TempDir(), `
minimise {
  steps            = 50
  sd_pre_min_steps = 10
  steric_min_steps = 20
}
`)
	e0, err := R.FF.Energy()
	require.NoError(Te, err)
	require.NoError(Te, R.Execute(context.Background()))
	e1, err := R.FF.Energy()
	require.NoError(Te, err)
	assert.Less(Te, e1, e0)
}

func TestMDAndRerun(Te *testing.T) {
	dir := Te.TempDir()
	R := build(Te, dir, `
output {
  trajectory = "md.stf"
  update_tra = 10
  velocities = true
}

monitor "distance" {
  atoms       = [0, 3]
  series_plot = "d03.png"
}

monitor "temperature" {}

md {
  steps        = 100
  timestep     = 1e-15
  target_temp  = 300
  initial_temp = 300
}
`)
	require.NoError(Te, R.Execute(context.Background()))
	assert.Equal(Te, 100, R.Monitors.Get("distance_0_3").Len())
	assert.FileExists(Te, filepath.Join(dir, "d03.png"))
	frames := countFrames(Te, filepath.Join(dir, "md.stf"))
	require.Positive(Te, frames)

	rr := build(Te, dir, `
rerun {
  trajectory = "md.stf"
}
`)
	require.NoError(Te, rr.Execute(context.Background()))
	assert.Len(Te, rr.Energies(), frames)
	for _, e := range rr.Energies() {
		assert.False(Te, math.IsNaN(e))
	}
}

func TestDCD(Te *testing.T) {
	dir := Te.TempDir()
	R := build(Te, dir, `
output {
  trajectory = "md.dcd"
  update_tra = 5
}

md {
  steps    = 20
  timestep = 1e-15
}
`)
	require.NoError(Te, R.Execute(context.Background()))
	assert.Equal(Te, 4, countFrames(Te, filepath.Join(dir, "md.dcd")))

	rr := build(Te, dir, `
rerun {
  trajectory = "md.dcd"
  frames     = 2
}
`)
	require.NoError(Te, rr.Execute(context.Background()))
	assert.Len(Te, rr.Energies(), 2)

	f, err := Decode([]byte(butane+`
output {
  trajectory = "v.dcd"
  velocities = true
}
energy {}
`), "vel.hcl")
	require.NoError(Te, err)
	_, err = Build(f, BuildOptions{})
	var ce *mm.ConfigError
	assert.ErrorAs(Te, err, &ce)
}

func TestMonteCarlo(Te *testing.T) {
	dir := Te.TempDir()
	R := build(Te, dir, `
output {
  update_scr = 0
}

montecarlo {
  steps       = 200
  temperature = 600
  final_temp  = 100
  final_state = "lowest_energy"
  move "torsion" {
    step = 90
  }
  move "rigid" {
    weight     = 0.5
    trans_step = 0.2
  }
}
`)
	require.NoError(Te, R.Execute(context.Background()))
	e, err := R.FF.Energy()
	require.NoError(Te, err)
	assert.False(Te, math.IsNaN(e))
}

func TestReplicaExchange(Te *testing.T) {
	dir := Te.TempDir()
	R := build(Te, dir, `
output {
  trajectory = "rex.stf"
  update_tra = 5
}

replica_exchange {
  temperatures    = [300, 330]
  rounds          = 3
  steps_per_round = 10
  md {
    steps    = 0
    timestep = 1e-15
  }
}
`)
	require.NoError(Te, R.Execute(context.Background()))
	for _, name := range []string{"rex_0.stf", "rex_1.stf"} {
		assert.Equal(Te, 6, countFrames(Te, filepath.Join(dir, name)), name)
	}
}

func TestTrajName(Te *testing.T) {
	assert.Equal(Te, "a/b_3.stf", trajName("a/b.stf", 3))
	assert.Equal(Te, "traj_0", trajName("traj", 0))
}

func TestConfigErrors(Te *testing.T) {
	cases := map[string]string{
		"no protocol": ``,
		"two protocols": `
energy {}
md {
  steps = 1
}
`,
		"algorithm": `
minimise {
  steps     = 1
  algorithm = "newton"
}
`,
		"integrator": `
md {
  steps      = 1
  integrator = "leapfrog"
}
`,
		"move kind": `
montecarlo {
  steps = 1
  move "swap" {}
}
`,
		"no moves": `
montecarlo {
  steps = 1
}
`,
		"monitor": `
monitor "umbrella" {
  restraint = "missing"
}
energy {}
`,
		"temperatures": `
replica_exchange {
  temperatures    = [330, 300]
  rounds          = 1
  steps_per_round = 1
  md {
    steps = 0
  }
}
`,
	}
	for name, protocol := range cases {
		f, err := Decode([]byte(butane+protocol), name+".hcl")
		require.NoError(Te, err, name)
		_, err = Build(f, BuildOptions{})
		var ce *mm.ConfigError
		assert.True(Te, errors.As(err, &ce), "%s: %v", name, err)
	}
}
