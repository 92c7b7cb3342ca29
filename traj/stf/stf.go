/*
 * stf.go, part of gomm.
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

package stf

import (
	"bufio"
	"compress/lzw"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	mm "github.com/rmera/gomm"
	v3 "github.com/rmera/gomm/v3"
	"go.uber.org/zap"
)

const (
	lzwLitwidth = 8
	defaultPrec = 2
)

//Options control the output of a Writer. The zero value writes coordinates only, with
//a precision of 2 decimals and the default compression level.
type Options struct {
	Prec       int
	Velocities bool
	Level      int //deflate/gzip level. Z-standard always uses its best compression.
}

//Writer writes an STF trajectory. It implements mm.TrajWriter.
type Writer struct {
	f         *os.File
	h         io.WriteCloser
	w         *bufio.Writer
	natoms    int
	filename  string
	writeable bool
	prec      int
	vel       bool
	run       string
	frames    int
	line      []byte
}

//NewWriter creates the file name and writes the header to it. The keys in header are written
//in alphabetical order, after which the precision, velocity flag and run identifier are added
//unless header already gives them. opts may be nil.
func NewWriter(name string, natoms int, header map[string]string, opts *Options) (*Writer, error) {
	if opts == nil {
		opts = &Options{}
	}
	if natoms <= 0 {
		return nil, Error{fmt.Sprintf("invalid number of atoms %d", natoms), name, []string{"NewWriter"}, true}
	}
	S := &Writer{natoms: natoms, filename: name, prec: defaultPrec, vel: opts.Velocities}
	if opts.Prec > 0 {
		S.prec = opts.Prec
	}
	level := opts.Level
	if level == 0 {
		level = flate.DefaultCompression
	}
	h := make(map[string]string, len(header)+3)
	maps.Copy(h, header)
	if p, ok := h["prec"]; ok {
		prec, err := strconv.Atoi(p)
		if err != nil || prec <= 0 {
			return nil, Error{fmt.Sprintf("invalid precision %q", p), name, []string{"NewWriter"}, true}
		}
		S.prec = prec
	}
	h["prec"] = strconv.Itoa(S.prec)
	h["vel"] = strconv.FormatBool(S.vel)
	if _, ok := h["run"]; !ok {
		h["run"] = uuid.NewString()
	}
	S.run = h["run"]
	keys := slices.Sorted(maps.Keys(h))
	for _, k := range keys {
		if k == "" || strings.ContainsAny(k, "=\n") || strings.Contains(h[k], "\n") || strings.Contains(k+h[k], "**") {
			return nil, Error{fmt.Sprintf("invalid header entry %q", k), name, []string{"NewWriter"}, true}
		}
	}
	var err error
	S.f, err = os.Create(name)
	if err != nil {
		return nil, err
	}
	switch suffix(name) {
	case 'l':
		S.h = lzw.NewWriter(S.f, lzw.MSB, lzwLitwidth)
	case 'z':
		S.h, err = gzip.NewWriterLevel(S.f, level)
	case 'r':
		S.h, err = flate.NewWriter(S.f, level)
	default:
		S.h, err = zstd.NewWriter(S.f, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	}
	if err != nil {
		S.f.Close()
		return nil, Error{"can't create compressor: " + err.Error(), name, []string{"NewWriter"}, true}
	}
	S.w = bufio.NewWriter(S.h)
	for _, k := range keys {
		fmt.Fprintf(S.w, "%s=%s\n", k, h[k])
	}
	fmt.Fprintf(S.w, "** %d\n", S.natoms)
	S.writeable = true
	return S, nil
}

func suffix(name string) byte {
	if name == "" {
		return 0
	}
	return strings.ToLower(name)[len(name)-1]
}

//Len returns the number of atoms per frame.
func (S *Writer) Len() int { return S.natoms }

//Frames returns the number of frames written so far.
func (S *Writer) Frames() int { return S.frames }

//RunID returns the run identifier written in the header.
func (S *Writer) RunID() string { return S.run }

func (S *Writer) encode(v float64) {
	p := math.Pow(10, float64(S.prec))
	S.line = strconv.AppendInt(S.line, int64(math.RoundToEven(v*p)), 10)
}

//WNext writes a frame with the coordinates in coord and, if given, the velocities in vel and the
//9 box-vector components in box. vel must be given if, and only if, the writer stores velocities.
func (S *Writer) WNext(coord, vel *v3.Matrix, box []float64) error {
	if !S.writeable {
		return Error{TrajUnIniWrite, S.filename, []string{"WNext"}, true}
	}
	if coord == nil || (S.vel && vel == nil) {
		return Error{NilCoordinates, S.filename, []string{"WNext"}, true}
	}
	if n := coord.NVecs(); n != S.natoms || (S.vel && vel.NVecs() != n) {
		return Error{fmt.Sprintf("%d coordinates given, but %d expected", n, S.natoms), S.filename, []string{"WNext"}, true}
	}
	for i := 0; i < S.natoms; i++ {
		S.line = S.line[:0]
		c := coord.Vec(i)
		for j, x := range c {
			if j > 0 {
				S.line = append(S.line, ' ')
			}
			S.encode(x)
		}
		if S.vel {
			for _, x := range vel.Vec(i) {
				S.line = append(S.line, ' ')
				S.encode(x)
			}
		}
		S.line = append(S.line, '\n')
		if _, err := S.w.Write(S.line); err != nil {
			return Error{err.Error(), S.filename, []string{"WNext"}, true}
		}
	}
	var err error
	if len(box) >= 9 {
		_, err = fmt.Fprintf(S.w, "* %.4f %.4f %.4f %.4f %.4f %.4f %.4f %.4f %.4f\n", box[0],
			box[1], box[2], box[3], box[4], box[5], box[6], box[7], box[8])
	} else {
		_, err = S.w.WriteString("*\n")
	}
	if err != nil {
		return Error{err.Error(), S.filename, []string{"WNext"}, true}
	}
	S.frames++
	return nil
}

//WriteFrame writes the positions (and velocities, if requested) of s. The box is written
//for periodic systems.
func (S *Writer) WriteFrame(s *mm.State) error {
	var box []float64
	if s.Box.Periodic() {
		box = mm.BoxVectors(s.Box)
	}
	var vel *v3.Matrix
	if S.vel {
		vel = s.Vel
	}
	return mm.ErrDecorate(S.WNext(s.Coords, vel, box), "WriteFrame")
}

//Close flushes the data and closes the file. The writer can't be used afterwards.
func (S *Writer) Close() error {
	if S == nil || !S.writeable {
		return nil
	}
	S.writeable = false
	err := S.w.Flush()
	if cerr := S.h.Close(); err == nil {
		err = cerr
	}
	if cerr := S.f.Close(); err == nil {
		err = cerr
	}
	return err
}

//Reader reads an STF trajectory. It implements mm.FrameReader.
type Reader struct {
	f        *os.File
	dec      io.ReadCloser
	h        *bufio.Reader
	natoms   int
	filename string
	prec     int
	vel      bool
	header   map[string]string
	readable bool
	Log      *zap.Logger
}

type zstdCloser struct {
	*zstd.Decoder
}

func (z zstdCloser) Close() error {
	z.Decoder.Close()
	return nil
}

//New opens an STF trajectory for reading and parses its header.
func New(name string) (*Reader, error) {
	S := &Reader{filename: name, natoms: -1, prec: defaultPrec, header: make(map[string]string), Log: zap.NewNop()}
	var err error
	S.f, err = os.Open(name)
	if err != nil {
		return nil, err
	}
	in := bufio.NewReader(S.f)
	switch suffix(name) {
	case 'l':
		S.dec = lzw.NewReader(in, lzw.MSB, lzwLitwidth)
	case 'z':
		S.dec, err = gzip.NewReader(in)
	case 'r':
		S.dec = flate.NewReader(in)
	default:
		var d *zstd.Decoder
		d, err = zstd.NewReader(in)
		if err == nil {
			S.dec = zstdCloser{d}
		}
	}
	if err != nil {
		S.f.Close()
		return nil, Error{"can't read header: " + err.Error(), name, []string{"New"}, true}
	}
	S.h = bufio.NewReader(S.dec)
	if err := S.readHeader(); err != nil {
		S.dec.Close()
		S.f.Close()
		return nil, mm.ErrDecorate(err, "New")
	}
	S.readable = true
	return S, nil
}

func (S *Reader) readHeader() error {
	for {
		str, err := S.h.ReadString('\n')
		if err != nil {
			return Error{"can't read header: " + err.Error(), S.filename, []string{"readHeader"}, true}
		}
		str = strings.TrimSuffix(str, "\n")
		if strings.HasPrefix(str, "**") {
			nat := strings.Fields(str)
			if len(nat) < 2 {
				return Error{fmt.Sprintf("can't read atom number from '%s'", str), S.filename, []string{"readHeader"}, true}
			}
			S.natoms, err = strconv.Atoi(nat[1])
			if err != nil || S.natoms <= 0 {
				return Error{fmt.Sprintf("can't read atom number from '%s'", nat[1]), S.filename, []string{"readHeader"}, true}
			}
			break
		}
		k, v, ok := strings.Cut(str, "=")
		if !ok {
			return Error{"malformed header line: " + str, S.filename, []string{"readHeader"}, true}
		}
		S.header[k] = v
	}
	if p, ok := S.header["prec"]; ok {
		prec, err := strconv.Atoi(p)
		if err != nil || prec <= 0 {
			return Error{fmt.Sprintf("invalid precision %q", p), S.filename, []string{"readHeader"}, true}
		}
		S.prec = prec
	}
	S.vel = S.header["vel"] == "true"
	return nil
}

//Header returns the key=value pairs of the header.
func (S *Reader) Header() map[string]string { return S.header }

//RunID returns the run identifier in the header, or an empty string.
func (S *Reader) RunID() string { return S.header["run"] }

//HasVelocities returns true if the frames contain velocities.
func (S *Reader) HasVelocities() bool { return S.vel }

//Readable returns true if Next can be called.
func (S *Reader) Readable() bool { return S.readable }

//Len returns the number of atoms in each frame.
func (S *Reader) Len() int { return S.natoms }

func (S *Reader) decode(str string, temp []float64) error {
	p := math.Pow(10, float64(S.prec))
	fields := strings.Fields(str)
	if len(fields) != len(temp) {
		return fmt.Errorf("expected %d fields in line %q, found %d", len(temp), str, len(fields))
	}
	for i, v := range fields {
		f, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("can't parse field %d (%s): %w", i, v, err)
		}
		temp[i] = float64(f) / p
	}
	return nil
}

//ReadFrame reads the next frame. Any of coords, vel and box can be nil, in which case the
//corresponding data is read and checked, but not stored. vel is left untouched if the file
//has no velocities. At the end of the trajectory, an error for which mm.IsLastFrame
//returns true is returned.
func (S *Reader) ReadFrame(coords, vel *v3.Matrix, box []float64) error {
	if !S.readable {
		return Error{TrajUnIniRead, S.filename, []string{"ReadFrame"}, true}
	}
	n := 3
	if S.vel {
		n = 6
	}
	temp := make([]float64, n)
	for i := 0; i < S.natoms; i++ {
		b, err := S.h.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && i == 0 && b == "" {
				S.Close()
				return newLastFrameError(S.filename, "ReadFrame")
			}
			return Error{ReadError + ": " + err.Error(), S.filename, []string{"ReadFrame"}, true}
		}
		if err := S.decode(strings.TrimSuffix(b, "\n"), temp); err != nil {
			return Error{err.Error(), S.filename, []string{"ReadFrame"}, true}
		}
		if coords != nil {
			coords.SetVec(i, v3.Vec{temp[0], temp[1], temp[2]})
		}
		if vel != nil && S.vel {
			vel.SetVec(i, v3.Vec{temp[3], temp[4], temp[5]})
		}
	}
	s, err := S.h.ReadString('\n')
	if err != nil {
		return Error{"can't read the frame termination mark: " + err.Error(), S.filename, []string{"ReadFrame"}, true}
	}
	if s == "" || s[0] != '*' {
		return Error{WrongFormat + ": wrong number of atoms in frame", S.filename, []string{"ReadFrame"}, true}
	}
	if len(box) < 9 {
		return nil
	}
	fields := strings.Fields(s)
	if len(fields) < 10 {
		S.Log.Debug("frame without box information", zap.String("file", S.filename))
		return nil
	}
	for j, v := range fields[1:10] {
		box[j], err = strconv.ParseFloat(v, 64)
		if err != nil {
			clear(box[:9])
			S.Log.Warn("failed to read box", zap.String("file", S.filename), zap.Error(err))
			return nil
		}
	}
	return nil
}

//Next reads the coordinates of the next frame into c and, if given and present, the box vectors
//into box[0].
func (S *Reader) Next(c *v3.Matrix, box ...[]float64) error {
	var b []float64
	if len(box) > 0 {
		b = box[0]
	}
	return S.ReadFrame(c, nil, b)
}

//Close closes the file. The reader can't be used afterwards.
func (S *Reader) Close() error {
	if !S.readable {
		return nil
	}
	S.readable = false
	err := S.dec.Close()
	if cerr := S.f.Close(); err == nil {
		err = cerr
	}
	return err
}

//Error is an error reading or writing an STF file. It implements mm.Error.
type Error struct {
	message  string
	filename string
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("stf file %s error: %s", err.filename, err.message)
}

//Decorate adds the name of a caller to the error.
func (err Error) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//FileName returns the file the error is associated with.
func (err Error) FileName() string { return err.filename }

func (err Error) Critical() bool { return err.critical }

const (
	TrajUnIniRead  = "trajectory not open for reading"
	TrajUnIniWrite = "trajectory not open for writing"
	ReadError      = "error reading frame"
	NilCoordinates = "nil coordinates or velocities given"
	WrongFormat    = "wrong format in the STF file or frame"
)

//lastFrameError signals the normal end of a trajectory.
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
