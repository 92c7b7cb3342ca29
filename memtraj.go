/*
 * memtraj.go, part of gomm.
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

package mm

import (
	v3 "github.com/rmera/gomm/v3"
)

//MemTraj is an in-memory trajectory. It implements both TrajWriter and,
//through Reader, FrameReader.
type MemTraj struct {
	Frames  []*v3.Matrix
	Vels    []*v3.Matrix //only filled if SaveVel is true
	SaveVel bool
	closed  bool
}

//WriteFrame stores a copy of the positions (and velocities, if requested) of s.
func (M *MemTraj) WriteFrame(s *State) error {
	if M.closed {
		return NewConfigError("memtraj", "write to closed trajectory")
	}
	M.Frames = append(M.Frames, s.Coords.Clone())
	if M.SaveVel {
		M.Vels = append(M.Vels, s.Vel.Clone())
	}
	return nil
}

//Close marks the trajectory as closed. Frames can still be read.
func (M *MemTraj) Close() error {
	M.closed = true
	return nil
}

//Len returns the number of stored frames.
func (M *MemTraj) Len() int { return len(M.Frames) }

//Reader returns a FrameReader over the stored frames.
func (M *MemTraj) Reader() *MemTrajReader {
	return &MemTrajReader{t: M}
}

//MemTrajReader reads frames sequentially from a MemTraj.
type MemTrajReader struct {
	t    *MemTraj
	next int
}

//Next copies the next frame into coords. If coords is nil the frame is skipped.
func (R *MemTrajReader) Next(coords *v3.Matrix, box ...[]float64) error {
	if R.next >= len(R.t.Frames) {
		return lastFrame{}
	}
	if coords != nil {
		coords.CopyFrom(R.t.Frames[R.next])
	}
	R.next++
	return nil
}

type lastFrame struct{}

func (lastFrame) Error() string                { return "EOF" }
func (lastFrame) NormalLastFrameTermination() {}
