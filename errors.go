/*
 * errors.go, part of gomm.
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

import "fmt"

//Error is the interface for errors that all packages in this library implement.
//The Decorate method allows to add and retrieve info from the error, without changing
//its type or wrapping it around something else. If passed an empty string, it just returns
//the current decoration.
type Error interface {
	Error() string
	Decorate(string) []string
	Critical() bool
}

//ConfigError signals an invalid setup: an impossible cutoff/box relationship, an atom index out
//of range, a non-positive mass or force constant. It is returned when a component is built or
//attached, before anything runs.
type ConfigError struct {
	Component string
	Message   string
	deco      []string
}

//NewConfigError returns a new ConfigError for the given component, with a message formatted
//as in fmt.Sprintf.
func NewConfigError(component, format string, args ...any) *ConfigError {
	return &ConfigError{Component: component, Message: fmt.Sprintf(format, args...)}
}

func (err *ConfigError) Error() string {
	return fmt.Sprintf("gomm: invalid configuration for %s: %s", err.Component, err.Message)
}

//Decorate adds dec to the decoration slice of the error, and returns the slice.
func (err *ConfigError) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

//Critical always returns true: a configuration error aborts the setup.
func (err *ConfigError) Critical() bool { return true }

//DivergenceError signals that an energy, force, position or velocity became non-finite
//during a run. Step is -1 when the error was produced outside of a stepping protocol, and
//Atom is -1 when the offending value is not associated with a single atom.
type DivergenceError struct {
	Step     int
	Atom     int
	Quantity string
	Value    float64
	deco     []string
}

//NewDivergenceError returns a DivergenceError for the given quantity.
func NewDivergenceError(step, atom int, quantity string, value float64) *DivergenceError {
	return &DivergenceError{Step: step, Atom: atom, Quantity: quantity, Value: value}
}

func (err *DivergenceError) Error() string {
	return fmt.Sprintf("gomm: numerical divergence at step %d: %s is %v (atom %d)", err.Step, err.Quantity, err.Value, err.Atom)
}

//Decorate adds dec to the decoration slice of the error, and returns the slice.
func (err *DivergenceError) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

//Critical always returns true: runs are aborted on divergence.
func (err *DivergenceError) Critical() bool { return true }

//ErrDecorate decorates err with the caller's name if err implements Error,
//and returns it.
func ErrDecorate(err error, caller string) error {
	if e, ok := err.(Error); ok {
		e.Decorate(caller)
	}
	return err
}
