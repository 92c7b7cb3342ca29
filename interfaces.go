/*
 * interfaces.go, part of gomm.
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
	"errors"

	v3 "github.com/rmera/gomm/v3"
)

//TrajWriter is a sink for trajectory frames. Integrators and samplers call WriteFrame
//at their configured intervals; the format is up to the implementation.
type TrajWriter interface {
	WriteFrame(s *State) error
	Close() error
}

//FrameReader is a source of coordinate frames, such as a trajectory file.
//When no more frames are left, Next returns an error implementing LastFrameError.
//If box is given and the frame carries box information, the 9 box-vector components
//are put in box[0].
type FrameReader interface {
	Next(coords *v3.Matrix, box ...[]float64) error
}

//LastFrameError has a useless function to distinguish the harmless errors (i.e. last frame)
//so they can be filtered in a type switch that looks for this interface.
type LastFrameError interface {
	error
	NormalLastFrameTermination()
}

//IsLastFrame returns true if err, or any error it wraps, signals the normal end of a trajectory.
func IsLastFrame(err error) bool {
	var lf LastFrameError
	return errors.As(err, &lf)
}
