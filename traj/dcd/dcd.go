/*
 * dcd.go, part of gomm.
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

//Package dcd reads and writes CHARMM/NAMD binary (DCD) trajectories. Coordinates are
//stored as float32. Orthorhombic boxes are kept in the CHARMM unit cell block.
//Files ending in .gz or .lzw are decompressed on the fly when reading.
package dcd

import (
	"bufio"
	"compress/lzw"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	v3 "github.com/rmera/gomm/v3"
)

const (
	titleLen    = 80
	cellBytes   = 48 //6 float64
	lzwLitwidth = 8
)

//Reader is a DCD trajectory open for reading.
type Reader struct {
	natoms   int32
	readable bool
	filename string
	cell     bool //frames may carry a unit cell block
	fourdim  bool
	f        *os.File
	dec      io.ReadCloser
	r        *bufio.Reader
	endian   binary.ByteOrder
	fields   [3][]float32
}

//New opens the DCD file name for reading. Both endiannesses are supported. X-plor files and
//files with fixed atoms are not.
func New(name string) (*Reader, error) {
	D := &Reader{filename: name, endian: binary.LittleEndian}
	if err := D.open(name); err != nil {
		return nil, err
	}
	if err := D.readHeader(); err != nil {
		D.Close()
		return nil, err
	}
	for i := range D.fields {
		D.fields[i] = make([]float32, D.natoms)
	}
	D.readable = true
	return D, nil
}

func (D *Reader) open(name string) error {
	var err error
	D.f, err = os.Open(name)
	if err != nil {
		return Error{err.Error(), name, []string{"os.Open", "New"}, true}
	}
	buf := bufio.NewReader(D.f)
	switch {
	case strings.HasSuffix(name, ".gz"):
		z, err := gzip.NewReader(buf)
		if err != nil {
			D.f.Close()
			return Error{err.Error(), name, []string{"gzip.NewReader", "New"}, true}
		}
		D.dec = z
	case strings.HasSuffix(name, ".lzw"):
		D.dec = lzw.NewReader(buf, lzw.MSB, lzwLitwidth)
	default:
		D.dec = io.NopCloser(buf)
	}
	D.r = bufio.NewReader(D.dec)
	return nil
}

func (D *Reader) read(data any) error {
	return binary.Read(D.r, D.endian, data)
}

//expect reads an int32 and fails if it is not want.
func (D *Reader) expect(want int32, what string) error {
	var v int32
	if err := D.read(&v); err != nil {
		return err
	}
	if v != want {
		return fmt.Errorf("%s: expected %d, got %d", what, want, v)
	}
	return nil
}

func (D *Reader) readHeader() error {
	wrap := func(err error) error {
		return Error{WrongFormat + ": " + err.Error(), D.filename, []string{"readHeader"}, true}
	}
	//the header block always has 84 bytes, so its record length gives the endianness.
	first := make([]byte, 4)
	if _, err := io.ReadFull(D.r, first); err != nil {
		return wrap(err)
	}
	switch {
	case binary.LittleEndian.Uint32(first) == 84:
	case binary.BigEndian.Uint32(first) == 84:
		D.endian = binary.BigEndian
	default:
		return wrap(fmt.Errorf("bad first record %v", first))
	}
	magic := make([]byte, 4)
	if err := D.read(magic); err != nil {
		return wrap(err)
	}
	if string(magic) != "CORD" {
		return wrap(fmt.Errorf("wrong magic number %q", magic))
	}
	var icntrl [20]int32
	if err := D.read(&icntrl); err != nil {
		return wrap(err)
	}
	//X-plor sets the last control integer to zero, CHARMM to its version.
	if icntrl[19] == 0 {
		return Error{"X-plor DCD files are not supported", D.filename, []string{"readHeader"}, true}
	}
	if icntrl[8] != 0 {
		return Error{"DCD files with fixed atoms are not supported", D.filename, []string{"readHeader"}, true}
	}
	D.cell = icntrl[10] != 0
	D.fourdim = icntrl[11] == 1
	if err := D.expect(84, "header end"); err != nil {
		return wrap(err)
	}
	var size, ntitle int32
	if err := D.read(&size); err != nil {
		return wrap(err)
	}
	if err := D.read(&ntitle); err != nil {
		return wrap(err)
	}
	if ntitle < 0 || size != 4+ntitle*titleLen {
		return wrap(fmt.Errorf("title block of %d bytes with %d lines", size, ntitle))
	}
	if _, err := D.r.Discard(int(ntitle * titleLen)); err != nil {
		return wrap(err)
	}
	if err := D.expect(size, "title end"); err != nil {
		return wrap(err)
	}
	if err := D.expect(4, "atom count"); err != nil {
		return wrap(err)
	}
	if err := D.read(&D.natoms); err != nil {
		return wrap(err)
	}
	if D.natoms <= 0 {
		return wrap(fmt.Errorf("%d atoms", D.natoms))
	}
	if err := D.expect(4, "atom count end"); err != nil {
		return wrap(err)
	}
	return nil
}

//Readable returns true if frames can still be read from D.
func (D *Reader) Readable() bool { return D.readable }

//Len returns the number of atoms per frame.
func (D *Reader) Len() int { return int(D.natoms) }

//Next reads the next frame into c and, if given and the frame has a unit cell, the box
//vectors into box[0]. c can be nil, in which case the frame is skipped. At the end of
//the trajectory, an error for which mm.IsLastFrame returns true is returned.
func (D *Reader) Next(c *v3.Matrix, box ...[]float64) error {
	if !D.readable {
		return Error{TrajUnIniRead, D.filename, []string{"Next"}, true}
	}
	var b []float64
	if len(box) > 0 {
		b = box[0]
	}
	if err := D.nextRaw(b); err != nil {
		if errors.Is(err, io.EOF) {
			D.Close()
			return newLastFrameError(D.filename, "Next")
		}
		return Error{ReadError + ": " + err.Error(), D.filename, []string{"Next"}, true}
	}
	if c == nil {
		return nil
	}
	if c.NVecs() < int(D.natoms) {
		return Error{NotEnoughSpace, D.filename, []string{"Next"}, true}
	}
	for i := range int(D.natoms) {
		c.SetVec(i, v3.Vec{float64(D.fields[0][i]), float64(D.fields[1][i]), float64(D.fields[2][i])})
	}
	return nil
}

//nextRaw reads one frame into D.fields. A clean end of file before the frame gives io.EOF,
//a truncated frame io.ErrUnexpectedEOF.
func (D *Reader) nextRaw(box []float64) error {
	var size int32
	if err := D.read(&size); err != nil {
		return err
	}
	//some writers only put the cell block in some frames, so it is recognized by its size.
	if D.cell && size == cellBytes && D.natoms*4 != cellBytes {
		var cell [6]float64
		if err := D.read(&cell); err != nil {
			return unexpected(err)
		}
		if err := D.expect(size, "unit cell end"); err != nil {
			return unexpected(err)
		}
		if len(box) >= 9 {
			clear(box[:9])
			box[0], box[4], box[8] = cell[0], cell[2], cell[5]
		}
		if err := D.read(&size); err != nil {
			return unexpected(err)
		}
	}
	for k := range D.fields {
		if k > 0 {
			if err := D.read(&size); err != nil {
				return unexpected(err)
			}
		}
		if size != D.natoms*4 {
			return fmt.Errorf("coordinate block of %d bytes for %d atoms", size, D.natoms)
		}
		if err := D.read(D.fields[k]); err != nil {
			return unexpected(err)
		}
		if err := D.expect(size, "coordinate block end"); err != nil {
			return unexpected(err)
		}
	}
	if !D.fourdim {
		return nil
	}
	//the 4th dimension block is absent in the last frame of some files.
	if err := D.read(&size); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if _, err := D.r.Discard(int(size)); err != nil {
		return unexpected(err)
	}
	return unexpected(D.expect(size, "4th dimension end"))
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

//Close closes the file. The reader can't be used afterwards.
func (D *Reader) Close() error {
	D.readable = false
	if D.f == nil {
		return nil
	}
	var err error
	if D.dec != nil {
		err = D.dec.Close()
	}
	if cerr := D.f.Close(); err == nil {
		err = cerr
	}
	D.f = nil
	return err
}

//Error is an error reading or writing a DCD file. It implements mm.Error.
type Error struct {
	message  string
	filename string
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("dcd file %s error: %s", err.filename, err.message)
}

//Decorate adds the name of a caller to the error.
func (err Error) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

func (err Error) FileName() string { return err.filename }

func (err Error) Critical() bool { return err.critical }

const (
	TrajUnIniRead  = "trajectory not open for reading"
	TrajUnIniWrite = "trajectory not open for writing"
	ReadError      = "error reading frame"
	NotEnoughSpace = "not enough space in the coordinates matrix"
	WrongFormat    = "wrong format in the DCD file"
)

type lastFrameError struct {
	deco     []string
	fileName string
}

func (E *lastFrameError) NormalLastFrameTermination() {}
func (E *lastFrameError) FileName() string            { return E.fileName }
func (E *lastFrameError) Error() string               { return "EOF" }
func (E *lastFrameError) Critical() bool              { return false }

func (E *lastFrameError) Decorate(deco string) []string {
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

func newLastFrameError(filename string, caller string) *lastFrameError {
	return &lastFrameError{fileName: filename, deco: []string{caller}}
}
