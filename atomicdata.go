/*
 * atomicdata.go, part of gomm.
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

//A map for assigning mass to elements.
//Note that just common "bio-elements" are present
var symbolMass = map[string]float64{
	"H":  1.008,
	"C":  12.01,
	"O":  16.00,
	"N":  14.01,
	"P":  30.97,
	"S":  32.06,
	"Se": 78.96,
	"K":  39.1,
	"Ca": 40.08,
	"Mg": 24.30,
	"Cl": 35.45,
	"Na": 22.99,
	"Cu": 63.55,
	"Zn": 65.38,
	"Fe": 55.84,
	"F":  18.998,
	"Br": 79.904,
	"I":  126.90,
}

//A map for assigning van der Waals radii to elements
//Values from 10.1021/j100785a001 and 10.1021/jp8111556
//metal radii from 10.1023/A:1011625728803
var symbolVdwrad = map[string]float64{
	"H":  1.10,
	"C":  1.70,
	"O":  1.52,
	"N":  1.55,
	"P":  1.80,
	"S":  1.80,
	"Se": 1.90,
	"K":  2.75,
	"Ca": 2.31,
	"Mg": 1.73,
	"Cl": 1.75,
	"Na": 2.27,
	"Cu": 2.00,
	"Zn": 2.02,
	"Fe": 1.96,
	"F":  1.47,
	"Br": 1.83,
	"I":  1.98,
}

//Intrinsic Born radii (mbondi-like) and Hawkins-Cramer-Truhlar
//descreening scale factors.
var symbolGBRadius = map[string]float64{
	"H": 1.20,
	"C": 1.70,
	"N": 1.55,
	"O": 1.50,
	"S": 1.80,
	"P": 1.85,
	"F": 1.50,
}

var symbolGBScale = map[string]float64{
	"H": 0.85,
	"C": 0.72,
	"N": 0.79,
	"O": 0.85,
	"S": 0.96,
	"P": 0.86,
	"F": 0.88,
}

//Hasel, Hendrickson and Still (1988) atomic SASA
//parameters, collapsed to one value per element.
var symbolSASAP = map[string]float64{
	"H": 1.128,
	"C": 1.554,
	"N": 1.028,
	"O": 0.926,
	"S": 1.121,
	"P": 1.121,
}

const (
	defaultVdwRadius = 1.6
	defaultGBRadius  = 1.5
	defaultGBScale   = 0.8
	defaultSASAP     = 1.0
)

//ElementMass returns the mass of the element with the given symbol, and false
//if the element is not known.
func ElementMass(symbol string) (float64, bool) {
	m, ok := symbolMass[symbol]
	return m, ok
}

//ElementVdwRadius returns the van der Waals radius of an element, or a generic value.
func ElementVdwRadius(symbol string) float64 {
	if r, ok := symbolVdwrad[symbol]; ok {
		return r
	}
	return defaultVdwRadius
}

//ElementSASAP returns the Hasel SASA overlap parameter for an element.
func ElementSASAP(symbol string) float64 {
	if p, ok := symbolSASAP[symbol]; ok {
		return p
	}
	return defaultSASAP
}
