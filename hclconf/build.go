/*
 * build.go, part of gomm.
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

package hclconf

import (
	"fmt"
	"path/filepath"
	"strings"

	mm "github.com/rmera/gomm"
	"github.com/rmera/gomm/ff"
	"github.com/rmera/gomm/monitor"
	"github.com/rmera/gomm/nlist"
	"github.com/rmera/gomm/traj/dcd"
	"github.com/rmera/gomm/traj/stf"
	v3 "github.com/rmera/gomm/v3"
)

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func indexes(comp string, idx []int, n int) error {
	if len(idx) != n {
		return mm.NewConfigError(comp, "expected %d atom indexes, got %d", n, len(idx))
	}
	return nil
}

//buildState returns a new state for the system block. Each call gives an independent state.
func (f *File) buildState() (*mm.State, error) {
	sys := f.System
	if sys == nil || len(sys.Atoms) == 0 {
		return nil, mm.NewConfigError("system", "no atoms given")
	}
	atoms := make([]*mm.Atom, len(sys.Atoms))
	coords := v3.Zeros(len(sys.Atoms))
	for i, a := range sys.Atoms {
		if len(a.Pos) != 3 {
			return nil, mm.NewConfigError("system", "atom %d (%s): pos needs 3 components, got %d", i, a.Name, len(a.Pos))
		}
		coords.SetVec(i, v3.Vec{a.Pos[0], a.Pos[1], a.Pos[2]})
		atoms[i] = &mm.Atom{
			Name:     a.Name,
			ID:       i + 1,
			Symbol:   a.Symbol,
			MolName:  a.MolName,
			MolID:    a.MolID,
			Chain:    a.Chain,
			Mass:     a.Mass,
			Charge:   a.Charge,
			Vdw:      a.Vdw,
			VdwEps:   a.VdwEps,
			GBRadius: a.GBRadius,
			GBScale:  a.GBScale,
			SASAP:    a.SASAP,
			Fixed:    a.Fixed,
		}
	}
	top, err := mm.NewTopology(atoms)
	if err != nil {
		return nil, err
	}
	for _, b := range sys.Bonds {
		if err := indexes("bonds", b, 2); err != nil {
			return nil, err
		}
		if err := top.AddBond(b[0], b[1]); err != nil {
			return nil, err
		}
	}
	for _, a := range sys.Angles {
		if err := indexes("angles", a, 3); err != nil {
			return nil, err
		}
		if err := top.AddAngle(a[0], a[1], a[2]); err != nil {
			return nil, err
		}
	}
	for _, d := range sys.Dihedrals {
		if err := indexes("dihedrals", d, 4); err != nil {
			return nil, err
		}
		if err := top.AddDihedral(d[0], d[1], d[2], d[3]); err != nil {
			return nil, err
		}
	}
	for _, d := range sys.Impropers {
		if err := indexes("impropers", d, 4); err != nil {
			return nil, err
		}
		if err := top.AddImproper(d[0], d[1], d[2], d[3]); err != nil {
			return nil, err
		}
	}
	if sys.Coordinates != "" {
		if err := readFirstFrame(f.path(sys.Coordinates), coords); err != nil {
			return nil, err
		}
	}
	var box mm.Boundary
	switch len(sys.Box) {
	case 0:
	case 3:
		box, err = mm.NewPeriodicBox(sys.Box[0], sys.Box[1], sys.Box[2])
		if err != nil {
			return nil, err
		}
	default:
		return nil, mm.NewConfigError("system", "box needs 3 edge lengths, got %d", len(sys.Box))
	}
	return mm.NewState(top, coords, box)
}

//trajReader is a trajectory open for reading.
type trajReader interface {
	mm.FrameReader
	Len() int
	Close() error
}

//isDCD returns true for DCD files, possibly compressed.
func isDCD(name string) bool {
	name = strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), ".lzw")
	return strings.EqualFold(filepath.Ext(name), ".dcd")
}

//openTraj opens a DCD or STF trajectory, depending on the file extension.
func openTraj(path string) (trajReader, error) {
	if isDCD(path) {
		r, err := dcd.New(path)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	r, err := stf.New(path)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func readFirstFrame(path string, coords *v3.Matrix) error {
	r, err := openTraj(path)
	if err != nil {
		return fmt.Errorf("reading coordinates: %w", err)
	}
	defer r.Close()
	if r.Len() != coords.NVecs() {
		return mm.NewConfigError("system", "%s has %d atoms, the system %d", path, r.Len(), coords.NVecs())
	}
	return r.Next(coords)
}

//buildForcefield returns a forcefield for s with the terms of the forcefield block.
func (f *File) buildForcefield(s *mm.State, B *BuildOptions) (*ff.Forcefield, error) {
	fb := f.Forcefield
	if fb == nil {
		return nil, mm.NewConfigError("forcefield", "no forcefield block")
	}
	var nl *nlist.List
	if fb.NonBonded != nil || fb.SoftVDW != nil || fb.GB != nil || fb.SASA != nil || fb.NList != nil {
		cutoff, buffer := 12.0, 2.0
		interval := 0
		if fb.NList != nil {
			set(&cutoff, fb.NList.Cutoff)
			set(&buffer, fb.NList.Buffer)
			interval = fb.NList.Interval
		}
		var err error
		if nl, err = nlist.New(cutoff, buffer, s.Box); err != nil {
			return nil, err
		}
		nl.Interval = interval
		nl.Log = B.Log
		nl.Metrics = B.Metrics
	}
	F := ff.New(s, nl)
	F.Log, F.Metrics = B.Log, B.Metrics
	terms, err := fb.terms(s)
	if err != nil {
		return nil, err
	}
	for _, t := range terms {
		if err := F.Add(t); err != nil {
			return nil, err
		}
	}
	return F, nil
}

func (fb *Forcefield) terms(s *mm.State) ([]ff.Term, error) {
	var terms []ff.Term
	if b := fb.Bonded; b != nil {
		t, err := b.build(s)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	if b := fb.NonBonded; b != nil {
		t := ff.NewNonBonded()
		set(&t.Cutoff, b.Cutoff)
		set(&t.InnerCutoff, b.InnerCutoff)
		set(&t.VdwCutoff, b.VdwCutoff)
		set(&t.VdwInnerCutoff, b.VdwInnerCutoff)
		set(&t.Dielectric, b.Dielectric)
		set(&t.Elec14Scaling, b.Elec14Scaling)
		set(&t.Vdw14Scaling, b.Vdw14Scaling)
		t.DDDielectric, t.NoElec, t.NoVdw = b.DDDielectric, b.NoElec, b.NoVdw
		terms = append(terms, t)
	}
	if b := fb.SoftVDW; b != nil {
		terms = append(terms, b.build())
	}
	if b := fb.GB; b != nil {
		t := ff.NewGB()
		set(&t.Cutoff, b.Cutoff)
		set(&t.InnerCutoff, b.InnerCutoff)
		set(&t.SoluteDielectric, b.SoluteDielectric)
		set(&t.SolventDielectric, b.SolventDielectric)
		set(&t.RadiusOffset, b.RadiusOffset)
		set(&t.MaxBornRadius, b.MaxBornRadius)
		terms = append(terms, t)
	}
	if b := fb.SASA; b != nil {
		t := ff.NewSASA()
		set(&t.ProbeRadius, b.ProbeRadius)
		set(&t.GlobalASP, b.GlobalASP)
		t.ASP = b.ASP
		terms = append(terms, t)
	}
	for _, r := range fb.Restraints {
		t, err := r.build()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, nil
}

func (b *SoftVDWBlock) build() *ff.SoftVDW {
	t := ff.NewSoftVDW()
	if b != nil {
		set(&t.OlapOffset, b.OlapOffset)
		set(&t.Hardness, b.Hardness)
		set(&t.Cutoff, b.Cutoff)
	}
	return t
}

func (b *BondedBlock) build(s *mm.State) (*ff.Bonded, error) {
	t := ff.NewBonded()
	t.BreakStrain = b.BreakStrain
	t.FromGeometry(s, b.KBond, b.KAngle)
	for _, v := range b.Bonds {
		if err := indexes("bond", v.Atoms, 2); err != nil {
			return nil, err
		}
		t.Bonds = append(t.Bonds, ff.Bond{I: v.Atoms[0], J: v.Atoms[1], K: v.K, R0: v.R0})
	}
	for _, v := range b.Angles {
		if err := indexes("angle", v.Atoms, 3); err != nil {
			return nil, err
		}
		a := v.Atoms
		t.Angles = append(t.Angles, ff.Angle{I: a[0], J: a[1], K: a[2], Ktheta: v.K, Theta0: v.Theta0 * mm.Deg2Rad})
	}
	for _, v := range b.Dihedrals {
		if err := indexes("dihedral", v.Atoms, 4); err != nil {
			return nil, err
		}
		a := v.Atoms
		t.Dihedrals = append(t.Dihedrals, ff.Dihedral{I: a[0], J: a[1], K: a[2], L: a[3], Kphi: v.K, N: v.N, Phase: v.Phase * mm.Deg2Rad})
	}
	for _, v := range b.Impropers {
		if err := indexes("improper", v.Atoms, 4); err != nil {
			return nil, err
		}
		a := v.Atoms
		t.Impropers = append(t.Impropers, ff.Improper{I: a[0], J: a[1], K: a[2], L: a[3], Kpsi: v.K, Psi0: v.Psi0 * mm.Deg2Rad})
	}
	return t, nil
}

func (r *RestraintBlock) build() (ff.Term, error) {
	switch r.Kind {
	case "positional":
		t := ff.NewPositional(r.Atoms, r.K)
		set(&t.Power, r.Power)
		t.Label, t.Passive = r.Name, r.Passive
		return t, nil
	case "internal":
		t := ff.NewInternal(r.Atoms, r.K)
		set(&t.RestCutoff, r.RestCutoff)
		t.Label, t.Passive, t.DivByNumber = r.Name, r.Passive, r.DivByNumber
		return t, nil
	case "native_contact":
		t := ff.NewNativeContact(r.Atoms, r.K)
		set(&t.ContactCutoff, r.ContactCutoff)
		set(&t.MinResidueSeparation, r.MinResSep)
		t.Label, t.Passive = r.Name, r.Passive
		return t, nil
	case "atom_distance":
		if err := indexes("atom_distance restraint", r.Atoms, 2); err != nil {
			return nil, err
		}
		return &ff.AtomDistance{Label: r.Name, I: r.Atoms[0], J: r.Atoms[1], Dist: r.Dist, K: r.K, Passive: r.Passive}, nil
	case "torsional":
		t := ff.NewTorsional(r.Atoms, r.K)
		t.Label, t.Passive, t.OneRestraintPerBond = r.Name, r.Passive, r.OnePerBond
		return t, nil
	}
	return nil, mm.NewConfigError("restraint", "unknown restraint kind %q", r.Kind)
}

//stericForcefield returns the forcefield used by the steric stages of a dual minimisation:
//the bonded term of the file plus a soft repulsion.
func (f *File) stericForcefield(s *mm.State, B *BuildOptions) (*ff.Forcefield, error) {
	soft := f.Forcefield.SoftVDW.build()
	buffer := 1.0
	nl, err := nlist.New(soft.Cutoff, buffer, s.Box)
	if err != nil {
		return nil, err
	}
	nl.Log, nl.Metrics = B.Log, B.Metrics
	F := ff.New(s, nl)
	F.Log = B.Log
	if b := f.Forcefield.Bonded; b != nil {
		t, err := b.build(s)
		if err != nil {
			return nil, err
		}
		if err := F.Add(t); err != nil {
			return nil, err
		}
	}
	if err := F.Add(soft); err != nil {
		return nil, err
	}
	return F, nil
}

//monitorSpec is a built monitor with its outputs.
type monitorSpec struct {
	*Monitor
	series    *monitor.Series
	restraint ff.Restraint
}

func (f *File) buildMonitors(F *ff.Forcefield, momentumRemoved bool) (*monitor.Set, []monitorSpec, error) {
	set := &monitor.Set{}
	var specs []monitorSpec
	for _, mb := range f.Monitors {
		m := *mb
		m.Plot, m.SeriesPlot, m.Profile = f.path(m.Plot), f.path(m.SeriesPlot), f.path(m.Profile)
		spec := monitorSpec{Monitor: &m}
		switch m.Kind {
		case "distance":
			if err := indexes("distance monitor", m.Atoms, 2); err != nil {
				return nil, nil, err
			}
			n := F.State().Len()
			if m.Atoms[0] < 0 || m.Atoms[1] < 0 || m.Atoms[0] >= n || m.Atoms[1] >= n {
				return nil, nil, mm.NewConfigError("distance monitor", "atom indexes %v out of range", m.Atoms)
			}
			spec.series = monitor.AtomDistance(m.Atoms[0], m.Atoms[1])
		case "temperature":
			spec.series = monitor.Temperature(momentumRemoved)
		case "umbrella":
			r, ok := F.Term(m.Restraint).(ff.Restraint)
			if !ok {
				return nil, nil, mm.NewConfigError("umbrella monitor", "no restraint named %q", m.Restraint)
			}
			spec.restraint = r
			spec.series = monitor.Umbrella(r)
		default:
			return nil, nil, mm.NewConfigError("monitor", "unknown monitor kind %q", m.Kind)
		}
		if (m.Plot != "" || m.Profile != "") && !(m.Width > 0) {
			return nil, nil, mm.NewConfigError("monitor", "%s: histogram outputs need a positive width", spec.series.Name())
		}
		if err := set.Add(spec.series); err != nil {
			return nil, nil, err
		}
		specs = append(specs, spec)
	}
	return set, specs, nil
}

//trajName returns the trajectory file for replica i.
func trajName(name string, i int) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), i, ext)
}

//buildTraj creates a trajectory for s. DCD files have a unit cell if s is periodic, and
//no velocities.
func (f *File) buildTraj(name string, s *mm.State, seed uint64) (mm.TrajWriter, error) {
	o := f.Output
	if isDCD(name) {
		if o.Velocities {
			return nil, mm.NewConfigError("output", "DCD trajectories can't store velocities")
		}
		w, err := dcd.NewWriter(name, s.Len(), s.Box.Periodic())
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	w, err := stf.NewWriter(name, s.Len(), map[string]string{"seed": fmt.Sprint(seed)},
		&stf.Options{Prec: o.Prec, Velocities: o.Velocities})
	if err != nil {
		return nil, err
	}
	return w, nil
}
