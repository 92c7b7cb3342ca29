/*
 * dcd_write.go, part of gomm.
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
	"bufio"
	"encoding/binary"
	"math"
	"os"

	mm "github.com/rmera/gomm"
	v3 "github.com/rmera/gomm/v3"
)

//charmmVersion is written in the header so readers take the file as CHARMM, not X-plor.
const charmmVersion = 24

//Writer is a DCD trajectory open for writing. It implements mm.TrajWriter.
//The frame count in the header is updated after every frame, so the file is
//valid even if the writer is never closed.
type Writer struct {
	natoms   int32
	cell     bool
	frames   int32
	writable bool
	filename string
	f        *os.File
	w        *bufio.Writer
	endian   binary.ByteOrder
	fields   [3][]float32
}

//NewWriter creates the file name for a trajectory of natoms atoms. If cell is true, every
//frame carries a unit cell block. Compressed output is not supported, since the header
//has to be rewritten after each frame.
func NewWriter(name string, natoms int, cell bool) (*Writer, error) {
	if natoms <= 0 {
		return nil, Error{"the number of atoms must be positive", name, []string{"NewWriter"}, true}
	}
	D := &Writer{natoms: int32(natoms), cell: cell, filename: name, endian: binary.LittleEndian}
	var err error
	D.f, err = os.Create(name)
	if err != nil {
		return nil, Error{err.Error(), name, []string{"os.Create", "NewWriter"}, true}
	}
	D.w = bufio.NewWriter(D.f)
	if err := D.writeHeader(); err != nil {
		D.f.Close()
		return nil, err
	}
	for i := range D.fields {
		D.fields[i] = make([]float32, natoms)
	}
	D.writable = true
	return D, nil
}

func (D *Writer) write(data ...any) error {
	for _, v := range data {
		if err := binary.Write(D.w, D.endian, v); err != nil {
			return Error{err.Error(), D.filename, []string{"binary.Write"}, true}
		}
	}
	return nil
}

func (D *Writer) writeHeader() error {
	var icntrl [20]int32
	icntrl[2] = 1                          //save frequency
	icntrl[9] = int32(math.Float32bits(1)) //timestep
	icntrl[19] = charmmVersion
	if D.cell {
		icntrl[10] = 1
	}
	title := make([]byte, 2*titleLen)
	copy(title, "Created by gomm")
	for i := 15; i < len(title); i++ {
		title[i] = ' '
	}
	titleBlock := int32(4 + len(title))
	err := D.write(int32(84), []byte("CORD"), icntrl, int32(84),
		titleBlock, int32(2), title, titleBlock,
		int32(4), D.natoms, int32(4))
	return mm.ErrDecorate(err, "writeHeader")
}

//WNext writes a frame with the coordinates c. If the writer has a unit cell, the box
//vectors (9 components, only the diagonal is used) are taken from box; nil gives a zero cell.
func (D *Writer) WNext(c *v3.Matrix, box []float64) error {
	if !D.writable {
		return Error{TrajUnIniWrite, D.filename, []string{"WNext"}, true}
	}
	if c == nil || c.NVecs() != int(D.natoms) {
		return Error{"coordinates don't match the trajectory size", D.filename, []string{"WNext"}, true}
	}
	for i := range int(D.natoms) {
		for k := range D.fields {
			v := c.At(i, k)
			if math.IsNaN(v) || math.Abs(v) > math.MaxFloat32 {
				return Error{"coordinate out of the float32 range", D.filename, []string{"WNext"}, true}
			}
			D.fields[k][i] = float32(v)
		}
	}
	if D.cell {
		var cell [6]float64
		cell[1], cell[3], cell[4] = 90, 90, 90 //gamma, beta, alpha
		if len(box) >= 9 {
			cell[0], cell[2], cell[5] = box[0], box[4], box[8]
		}
		if err := D.write(int32(cellBytes), cell, int32(cellBytes)); err != nil {
			return mm.ErrDecorate(err, "WNext")
		}
	}
	size := D.natoms * 4
	for _, f := range D.fields {
		if err := D.write(size, f, size); err != nil {
			return mm.ErrDecorate(err, "WNext")
		}
	}
	D.frames++
	return mm.ErrDecorate(D.updateFrames(), "WNext")
}

//updateFrames flushes the data and writes the frame count, the first control integer.
func (D *Writer) updateFrames() error {
	if err := D.w.Flush(); err != nil {
		return Error{err.Error(), D.filename, []string{"Flush", "updateFrames"}, true}
	}
	b := make([]byte, 4)
	D.endian.PutUint32(b, uint32(D.frames))
	if _, err := D.f.WriteAt(b, 8); err != nil {
		return Error{err.Error(), D.filename, []string{"WriteAt", "updateFrames"}, true}
	}
	return nil
}

//WriteFrame writes the coordinates of s, and its box if it is periodic and the writer has
//a unit cell.
func (D *Writer) WriteFrame(s *mm.State) error {
	var box []float64
	if s.Box.Periodic() {
		box = mm.BoxVectors(s.Box)
	}
	return mm.ErrDecorate(D.WNext(s.Coords, box), "WriteFrame")
}

//Frames returns the number of frames written.
func (D *Writer) Frames() int { return int(D.frames) }

//Close flushes the data and closes the file. The writer can't be used afterwards.
func (D *Writer) Close() error {
	if D == nil || !D.writable {
		return nil
	}
	D.writable = false
	err := D.w.Flush()
	if cerr := D.f.Close(); err == nil {
		err = cerr
	}
	return err
}
