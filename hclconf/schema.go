/*
 * schema.go, part of gomm.
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

//Package hclconf describes complete simulations in HCL. A file holds a system block (atoms,
//bonds and box), a forcefield block, optional output and monitor blocks, and exactly one
//protocol block: energy, minimise, md, montecarlo, replica_exchange or rerun.
//
//Expressions can use the functions abs, ceil, floor, log, pow, max, min, range, concat,
//flatten, length and format, and the variables kb (kcal/mol/K) and deg (radians per degree),
//so, for instance, a temperature ladder can be written as
//
//	temperatures = [for i in range(4) : 300 * pow(1.05, i)]
package hclconf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	mm "github.com/rmera/gomm"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

//File is a decoded configuration file.
type File struct {
	Seed       *int64         `hcl:"seed,optional"`
	System     *System        `hcl:"system,block"`
	Forcefield *Forcefield    `hcl:"forcefield,block"`
	Output     *Output        `hcl:"output,block"`
	Monitors   []*Monitor     `hcl:"monitor,block"`
	Energy     *EnergyBlock   `hcl:"energy,block"`
	Minimise   *MinimiseBlock `hcl:"minimise,block"`
	MD         *MDBlock       `hcl:"md,block"`
	MonteCarlo *MCBlock       `hcl:"montecarlo,block"`
	Rex        *RexBlock      `hcl:"replica_exchange,block"`
	Rerun      *RerunBlock    `hcl:"rerun,block"`

	dir string
}

//System describes the atoms, their connectivity and the boundary.
type System struct {
	Atoms       []*AtomBlock `hcl:"atom,block"`
	Bonds       [][]int      `hcl:"bonds,optional"`
	Angles      [][]int      `hcl:"angles,optional"`
	Dihedrals   [][]int      `hcl:"dihedrals,optional"`
	Impropers   [][]int      `hcl:"impropers,optional"`
	Box         []float64    `hcl:"box,optional"`
	Coordinates string       `hcl:"coordinates,optional"` //STF file whose first frame replaces the positions
}

type AtomBlock struct {
	Name     string    `hcl:"name,label"`
	Symbol   string    `hcl:"symbol,optional"`
	Pos      []float64 `hcl:"pos"`
	Charge   float64   `hcl:"charge,optional"`
	Mass     float64   `hcl:"mass,optional"`
	Vdw      float64   `hcl:"vdw,optional"`
	VdwEps   float64   `hcl:"vdw_eps,optional"`
	GBRadius float64   `hcl:"gb_radius,optional"`
	GBScale  float64   `hcl:"gb_scale,optional"`
	SASAP    float64   `hcl:"sasa_p,optional"`
	MolName  string    `hcl:"mol_name,optional"`
	MolID    int       `hcl:"mol_id,optional"`
	Chain    string    `hcl:"chain,optional"`
	Fixed    bool      `hcl:"fixed,optional"`
}

//Forcefield lists the terms of the forcefield. Unset numbers keep the defaults of each term.
type Forcefield struct {
	NList      *NListBlock       `hcl:"nlist,block"`
	Bonded     *BondedBlock      `hcl:"bonded,block"`
	NonBonded  *NonBondedBlock   `hcl:"nonbonded,block"`
	SoftVDW    *SoftVDWBlock     `hcl:"softvdw,block"`
	GB         *GBBlock          `hcl:"gb,block"`
	SASA       *SASABlock        `hcl:"sasa,block"`
	Restraints []*RestraintBlock `hcl:"restraint,block"`
}

type NListBlock struct {
	Cutoff   *float64 `hcl:"cutoff,optional"`
	Buffer   *float64 `hcl:"buffer,optional"`
	Interval int      `hcl:"interval,optional"`
}

//BondedBlock gives explicit bonded terms. If kbond or kangle are set, harmonic bonds and
//angles are also added for the topology, with the starting geometry as equilibrium.
type BondedBlock struct {
	KBond       float64         `hcl:"kbond,optional"`
	KAngle      float64         `hcl:"kangle,optional"`
	BreakStrain float64         `hcl:"break_strain,optional"`
	Bonds       []*BondSpec     `hcl:"bond,block"`
	Angles      []*AngleSpec    `hcl:"angle,block"`
	Dihedrals   []*DihedralSpec `hcl:"dihedral,block"`
	Impropers   []*ImproperSpec `hcl:"improper,block"`
}

type BondSpec struct {
	Atoms []int   `hcl:"atoms"`
	K     float64 `hcl:"k"`
	R0    float64 `hcl:"r0"`
}

//AngleSpec and the other angular terms take their equilibrium values in degrees.
type AngleSpec struct {
	Atoms  []int   `hcl:"atoms"`
	K      float64 `hcl:"k"`
	Theta0 float64 `hcl:"theta0"`
}

type DihedralSpec struct {
	Atoms []int   `hcl:"atoms"`
	K     float64 `hcl:"k"`
	N     int     `hcl:"n"`
	Phase float64 `hcl:"phase,optional"`
}

type ImproperSpec struct {
	Atoms []int   `hcl:"atoms"`
	K     float64 `hcl:"k"`
	Psi0  float64 `hcl:"psi0,optional"`
}

type NonBondedBlock struct {
	Cutoff         *float64 `hcl:"cutoff,optional"`
	InnerCutoff    *float64 `hcl:"inner_cutoff,optional"`
	VdwCutoff      *float64 `hcl:"vdw_cutoff,optional"`
	VdwInnerCutoff *float64 `hcl:"vdw_inner_cutoff,optional"`
	Dielectric     *float64 `hcl:"dielectric,optional"`
	DDDielectric   bool     `hcl:"distance_dependent,optional"`
	Elec14Scaling  *float64 `hcl:"elec14_scaling,optional"`
	Vdw14Scaling   *float64 `hcl:"vdw14_scaling,optional"`
	NoElec         bool     `hcl:"no_elec,optional"`
	NoVdw          bool     `hcl:"no_vdw,optional"`
}

type SoftVDWBlock struct {
	OlapOffset *float64 `hcl:"olap_offset,optional"`
	Hardness   *float64 `hcl:"hardness,optional"`
	Cutoff     *float64 `hcl:"cutoff,optional"`
}

type GBBlock struct {
	Cutoff            *float64 `hcl:"cutoff,optional"`
	InnerCutoff       *float64 `hcl:"inner_cutoff,optional"`
	SoluteDielectric  *float64 `hcl:"solute_dielectric,optional"`
	SolventDielectric *float64 `hcl:"solvent_dielectric,optional"`
	RadiusOffset      *float64 `hcl:"radius_offset,optional"`
	MaxBornRadius     *float64 `hcl:"max_born_radius,optional"`
}

type SASABlock struct {
	ProbeRadius *float64  `hcl:"probe_radius,optional"`
	GlobalASP   *float64  `hcl:"global_asp,optional"`
	ASP         []float64 `hcl:"asp,optional"`
}

//RestraintBlock is a restraint. The label gives the kind: positional, internal,
//native_contact, atom_distance or torsional.
type RestraintBlock struct {
	Kind          string   `hcl:"kind,label"`
	Name          string   `hcl:"name,optional"`
	Atoms         []int    `hcl:"atoms,optional"`
	K             float64  `hcl:"k"`
	Power         *float64 `hcl:"power,optional"`
	Dist          float64  `hcl:"dist,optional"`
	RestCutoff    *float64 `hcl:"rest_cutoff,optional"`
	DivByNumber   bool     `hcl:"div_by_number,optional"`
	ContactCutoff *float64 `hcl:"contact_cutoff,optional"`
	MinResSep     *int     `hcl:"min_residue_separation,optional"`
	OnePerBond    bool     `hcl:"one_restraint_per_bond,optional"`
	Passive       bool     `hcl:"passive,optional"`
}

//Output sets the output intervals of the protocol and its trajectory file.
type Output struct {
	UpdateScr   *int   `hcl:"update_scr,optional"`
	UpdateTra   *int   `hcl:"update_tra,optional"`
	UpdateMon   *int   `hcl:"update_mon,optional"`
	UpdateNList *int   `hcl:"update_nlist,optional"`
	Trajectory  string `hcl:"trajectory,optional"`
	Prec        int    `hcl:"prec,optional"`
	Velocities  bool   `hcl:"velocities,optional"`
}

//Monitor is a monitor. The label gives the kind: distance, temperature or umbrella.
type Monitor struct {
	Kind       string  `hcl:"kind,label"`
	Atoms      []int   `hcl:"atoms,optional"`
	Restraint  string  `hcl:"restraint,optional"`
	Width      float64 `hcl:"width,optional"`
	Plot       string  `hcl:"plot,optional"`        //histogram PNG
	SeriesPlot string  `hcl:"series_plot,optional"` //time series PNG
	Profile    string  `hcl:"profile,optional"`     //umbrella PMF table
}

type EnergyBlock struct {
	ByAtom bool `hcl:"by_atom,optional"`
}

type MinimiseBlock struct {
	Steps             int      `hcl:"steps"`
	Algorithm         string   `hcl:"algorithm,optional"`
	StepSize          *float64 `hcl:"step_size,optional"`
	InitialCapFactor  *float64 `hcl:"initial_cap_factor,optional"`
	SlopeCutoff       float64  `hcl:"slope_cutoff,optional"`
	Atoms             []int    `hcl:"atoms,optional"`
	SDPreMinSteps     int      `hcl:"sd_pre_min_steps,optional"`
	StericMinSteps    int      `hcl:"steric_min_steps,optional"`
	StericStepSize    *float64 `hcl:"steric_step_size,optional"`
	StericSlopeCutoff float64  `hcl:"steric_slope_cutoff,optional"`
	StericKillFull    *float64 `hcl:"steric_kill_full,optional"`
}

//MDBlock takes the timestep and the Berendsen coupling time in seconds, and the
//friction coefficient in 1/s.
type MDBlock struct {
	Steps                     int      `hcl:"steps"`
	Integrator                string   `hcl:"integrator,optional"`
	Timestep                  *float64 `hcl:"timestep,optional"`
	FricCoeff                 *float64 `hcl:"fric_coeff,optional"`
	LangevinOnHydrogens       *bool    `hcl:"langevin_on_hydrogens,optional"`
	TargetTemp                *float64 `hcl:"target_temp,optional"`
	InitialTemp               float64  `hcl:"initial_temp,optional"`
	Thermostat                string   `hcl:"thermostat,optional"`
	BerendsenTau              *float64 `hcl:"berendsen_tau,optional"`
	RemoveTotalMomentum       bool     `hcl:"remove_total_momentum,optional"`
	UpdateRemoveTotalMomentum *int     `hcl:"update_remove_total_momentum,optional"`
}

type MCBlock struct {
	Steps        int            `hcl:"steps"`
	Temperature  *float64       `hcl:"temperature,optional"`
	FinalTemp    *float64       `hcl:"final_temp,optional"`
	FinalState   string         `hcl:"final_state,optional"`
	UpdateScrAcc *bool          `hcl:"update_scr_acc,optional"`
	UpdateScrRej bool           `hcl:"update_scr_rej,optional"`
	UpdateTraAcc bool           `hcl:"update_tra_acc,optional"`
	UpdateTraRej bool           `hcl:"update_tra_rej,optional"`
	Moves        []*MoveBlock   `hcl:"move,block"`
	Minimise     *MinimiseBlock `hcl:"minimise,block"`
}

//MoveBlock is a Monte Carlo move. The label gives the kind: torsion, backbone or rigid.
//Angles are in degrees.
type MoveBlock struct {
	Kind        string   `hcl:"kind,label"`
	Weight      *float64 `hcl:"weight,optional"`
	Dist        string   `hcl:"dist,optional"`
	Step        *float64 `hcl:"step,optional"`
	NMoves      int      `hcl:"nmoves,optional"`
	Bonds       [][]int  `hcl:"bonds,optional"`
	Atoms       []int    `hcl:"atoms,optional"`
	Correlation *float64 `hcl:"correlation,optional"`
	TransStep   *float64 `hcl:"trans_step,optional"`
	RotStep     *float64 `hcl:"rot_step,optional"`
	Molecules   [][]int  `hcl:"molecules,optional"`
}

type RexBlock struct {
	Temperatures  []float64 `hcl:"temperatures"`
	Rounds        int       `hcl:"rounds"`
	StepsPerRound int       `hcl:"steps_per_round"`
	Workers       int       `hcl:"workers,optional"`
	MD            *MDBlock  `hcl:"md,block"`
}

type RerunBlock struct {
	Trajectory string         `hcl:"trajectory"`
	Frames     int            `hcl:"frames,optional"`
	Minimise   *MinimiseBlock `hcl:"minimise,block"`
}

func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"kb":  cty.NumberFloatVal(mm.KB),
			"deg": cty.NumberFloatVal(mm.Deg2Rad),
		},
		Functions: map[string]function.Function{
			"abs":     stdlib.AbsoluteFunc,
			"ceil":    stdlib.CeilFunc,
			"floor":   stdlib.FloorFunc,
			"log":     stdlib.LogFunc,
			"pow":     stdlib.PowFunc,
			"max":     stdlib.MaxFunc,
			"min":     stdlib.MinFunc,
			"range":   stdlib.RangeFunc,
			"concat":  stdlib.ConcatFunc,
			"flatten": stdlib.FlattenFunc,
			"length":  stdlib.LengthFunc,
			"format":  stdlib.FormatFunc,
		},
	}
}

//Decode parses and decodes the configuration in src. name is used in diagnostics.
func Decode(src []byte, name string) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, name)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", name, diags)
	}
	var f File
	diags = gohcl.DecodeBody(file.Body, evalContext(), &f)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", name, diags)
	}
	return &f, nil
}

//Load reads and decodes the configuration file path. Relative file names in the
//configuration are taken from the directory of path.
func Load(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Decode(src, path)
	if err != nil {
		return nil, err
	}
	f.dir = filepath.Dir(path)
	return f, nil
}

func (f *File) path(name string) string {
	if name == "" || filepath.IsAbs(name) || f.dir == "" {
		return name
	}
	return filepath.Join(f.dir, name)
}
