/*
 * dcd_test.go, part of gomm.
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

package dcd

import (
	"compress/lzw"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	mm "github.com/rmera/gomm"
	v3 "github.com/rmera/gomm/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(n int, shift float64) *v3.Matrix {
	c := v3.Zeros(n)
	for i := range n {
		c.SetVec(i, v3.Vec{float64(i) + shift, -2.5 * float64(i), 0.125 + shift})
	}
	return c
}

func writeTraj(Te *testing.T, name string, cell bool, nframes int) {
	w, err := NewWriter(name, 5, cell)
	require.NoError(Te, err)
	for i := range nframes {
		require.NoError(Te, w.WNext(frame(5, float64(i)), []float64{20, 0, 0, 0, 21, 0, 0, 0, 22}))
	}
	assert.Equal(Te, nframes, w.Frames())
	require.NoError(Te, w.Close())
	require.NoError(Te, w.Close())
}

func readAll(Te *testing.T, name string, nframes int, cell bool) {
	r, err := New(name)
	require.NoError(Te, err)
	assert.Equal(Te, 5, r.Len())
	c := v3.Zeros(5)
	box := make([]float64, 9)
	for i := range nframes {
		require.NoError(Te, r.Next(c, box))
		want := frame(5, float64(i))
		for j := range 5 {
			w, g := want.Vec(j), c.Vec(j)
			assert.InDeltaSlice(Te, w[:], g[:], 1e-4)
		}
		if cell {
			assert.Equal(Te, []float64{20, 0, 0, 0, 21, 0, 0, 0, 22}, box)
		}
	}
	err = r.Next(c)
	assert.True(Te, mm.IsLastFrame(err), "%v", err)
	assert.False(Te, r.Readable())
}

func TestRoundTrip(Te *testing.T) {
	dir := Te.TempDir()
	for _, cell := range []bool{false, true} {
		name := filepath.Join(dir, "plain.dcd")
		writeTraj(Te, name, cell, 3)
		readAll(Te, name, 3, cell)
	}
}

func TestEmpty(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "empty.dcd")
	writeTraj(Te, name, false, 0)
	r, err := New(name)
	require.NoError(Te, err)
	assert.True(Te, mm.IsLastFrame(r.Next(nil)))
}

func compress(Te *testing.T, src, dst string, wrap func(io.Writer) io.WriteCloser) {
	b, err := os.ReadFile(src)
	require.NoError(Te, err)
	f, err := os.Create(dst)
	require.NoError(Te, err)
	w := wrap(f)
	_, err = w.Write(b)
	require.NoError(Te, err)
	require.NoError(Te, w.Close())
	require.NoError(Te, f.Close())
}

func TestCompressed(Te *testing.T) {
	dir := Te.TempDir()
	name := filepath.Join(dir, "traj.dcd")
	writeTraj(Te, name, true, 4)
	compress(Te, name, name+".gz", func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) })
	compress(Te, name, name+".lzw", func(w io.Writer) io.WriteCloser { return lzw.NewWriter(w, lzw.MSB, lzwLitwidth) })
	readAll(Te, name+".gz", 4, true)
	readAll(Te, name+".lzw", 4, true)
}

func TestWriteFrame(Te *testing.T) {
	atoms := []*mm.Atom{{Name: "Ar", Symbol: "Ar"}, {Name: "Ar", Symbol: "Ar"}}
	top, err := mm.NewTopology(atoms)
	require.NoError(Te, err)
	box, err := mm.NewPeriodicBox(10, 11, 12)
	require.NoError(Te, err)
	s, err := mm.NewState(top, frame(2, 1), box)
	require.NoError(Te, err)
	name := filepath.Join(Te.TempDir(), "state.dcd")
	w, err := NewWriter(name, 2, true)
	require.NoError(Te, err)
	require.NoError(Te, w.WriteFrame(s))
	require.NoError(Te, w.Close())

	r, err := New(name)
	require.NoError(Te, err)
	defer r.Close()
	c := v3.Zeros(2)
	b := make([]float64, 9)
	require.NoError(Te, r.Next(c, b))
	assert.Equal(Te, []float64{10, 0, 0, 0, 11, 0, 0, 0, 12}, b)
}

func TestErrors(Te *testing.T) {
	dir := Te.TempDir()
	_, err := New(filepath.Join(dir, "missing.dcd"))
	assert.Error(Te, err)

	bad := filepath.Join(dir, "bad.dcd")
	require.NoError(Te, os.WriteFile(bad, []byte("this is not a trajectory at all"), 0o644))
	_, err = New(bad)
	var derr Error
	assert.ErrorAs(Te, err, &derr)

	_, err = NewWriter(filepath.Join(dir, "none.dcd"), 0, false)
	assert.Error(Te, err)

	w, err := NewWriter(filepath.Join(dir, "w.dcd"), 3, false)
	require.NoError(Te, err)
	assert.Error(Te, w.WNext(v3.Zeros(2), nil))
	require.NoError(Te, w.Close())
	assert.Error(Te, w.WNext(v3.Zeros(3), nil))
}
