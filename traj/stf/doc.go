/*
 * doc.go, part of gomm.
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

//Package stf reads and writes trajectories in the simple trajectory format (STF). STF aims to
//produce reasonably small files that are very easy to read and write from any language.
//
//An STF file is a compressed ASCII stream. The compression is chosen by the last letter of the
//file name: 'l' for LZW, 'z' for gzip, 'r' for raw deflate, and z-standard otherwise (the
//usual extension is .stf).
//
//The file starts with a header of key=value lines, ended by a line "** N", where N is the
//number of atoms per frame. The header always contains the precision (prec=P, a positive
//integer) and, in files written by this package, the key vel (true or false) and the run
//identifier (run=UUID).
//
//After the header, each frame has one line per atom. Each line holds the x, y and z
//coordinates in Angstrom multiplied by 10^P and rounded to an integer. If vel=true, three more
//integers follow with the velocity in A/ps, encoded the same way. A frame ends with a line
//starting with '*', optionally followed by the 9 components of the box vectors, in Angstrom.
//The "**" sequence can only appear at the end of the header.
package stf
