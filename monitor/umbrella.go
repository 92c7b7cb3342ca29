/*
 * umbrella.go, part of gomm.
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

package monitor

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/rmera/gomm/ff"
)

//ProfileBin is one bin of an umbrella profile.
type ProfileBin struct {
	Q     float64 //bin center
	Count int
	P     float64 //probability
	FE    float64 //biased free energy, -kT ln P
	PMF   float64 //unbiased estimate, FE - bias(Q)
}

//Profile is the potential of mean force along the coordinate of a restraint, estimated from
//a single umbrella window. Empty bins are omitted.
type Profile struct {
	Name string
	Bins []ProfileBin
}

//UmbrellaProfile histograms the values recorded by m, which must sample the coordinate of
//the restraint r, and removes the bias that r applies at each bin center.
func UmbrellaProfile(m *Series, r ff.Restraint, width, kT float64) (*Profile, error) {
	if !(kT > 0) {
		return nil, fmt.Errorf("gomm/monitor: non-positive kT %g", kT)
	}
	h, err := m.Histogram(width)
	if err != nil {
		return nil, err
	}
	counts := h.Copy()
	h.Normalize()
	centers := h.Centers()
	P := &Profile{Name: m.Name()}
	for i, p := range h.View() {
		if counts[i] == 0 {
			continue
		}
		fe := -kT * math.Log(p)
		P.Bins = append(P.Bins, ProfileBin{
			Q:     centers[i],
			Count: int(counts[i]),
			P:     p,
			FE:    fe,
			PMF:   fe - r.EnergyAtQ(centers[i]),
		})
	}
	return P, nil
}

//Shift subtracts the minimum PMF from all the bins, so the profile starts at zero.
func (P *Profile) Shift() {
	min := math.Inf(1)
	for _, b := range P.Bins {
		min = math.Min(min, b.PMF)
	}
	for i := range P.Bins {
		P.Bins[i].PMF -= min
	}
}

//WriteTo writes the profile as a text table.
func (P *Profile) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#umbrella profile for %s\n", P.Name)
	fmt.Fprintf(&sb, "#%11s %8s %12s %12s %12s\n", "Q", "count", "P", "-kTlnP", "PMF")
	for _, b := range P.Bins {
		fmt.Fprintf(&sb, "%12.4f %8d %12.6f %12.4f %12.4f\n", b.Q, b.Count, b.P, b.FE, b.PMF)
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}
