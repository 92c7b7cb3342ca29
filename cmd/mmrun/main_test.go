/*
 * main_test.go, part of gomm.
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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const argon = `
system {
  atom "Ar1" {
    symbol = "Ar"
    pos    = [0, 0, 0]
  }
  atom "Ar2" {
    symbol = "Ar"
    pos    = [4, 0, 0]
  }
}

forcefield {
  nonbonded {
    cutoff       = 10
    inner_cutoff = 8
  }
}

md {
  steps        = 50
  timestep     = 1e-15
  initial_temp = 100
}
`

func TestRun(Te *testing.T) {
	dir := Te.TempDir()
	path := filepath.Join(dir, "argon.hcl")
	require.NoError(Te, os.WriteFile(path, []byte(argon), 0o644))
	prom := filepath.Join(dir, "metrics.prom")

	cmd := newRootCommand(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--seed", "3", "--log-level", "warn", "--metrics-out", prom, path})
	require.NoError(Te, cmd.ExecuteContext(context.Background()))

	b, err := os.ReadFile(prom)
	require.NoError(Te, err)
	assert.Contains(Te, string(b), `gomm_steps_total{protocol="md"} 50`)
	assert.True(Te, strings.Contains(string(b), "gomm_potential_energy"))
}

func TestRunEnv(Te *testing.T) {
	Te.Setenv("GOMM_LOG_FORMAT", "yaml")
	dir := Te.TempDir()
	path := filepath.Join(dir, "argon.hcl")
	require.NoError(Te, os.WriteFile(path, []byte(argon), 0o644))
	cmd := newRootCommand(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", path})
	err := cmd.ExecuteContext(context.Background())
	require.Error(Te, err)
	assert.Contains(Te, err.Error(), "yaml")
}

func TestRunErrors(Te *testing.T) {
	cmd := newRootCommand(&bytes.Buffer{})
	cmd.SetArgs([]string{"run"})
	assert.Error(Te, cmd.ExecuteContext(context.Background()))

	cmd = newRootCommand(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", filepath.Join(Te.TempDir(), "missing.hcl")})
	assert.Error(Te, cmd.ExecuteContext(context.Background()))
}
