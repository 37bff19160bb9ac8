// Package domain defines the geological model entities, value types, error
// types, and rule evaluation primitives used by geomodel.
package domain

import (
	"math"
	"time"
)

// EntityType identifies the kind of record touched by a model mutation.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntitySeries identifies the series catalog.
	EntitySeries EntityType = "series"
	// EntityFormation identifies the formation registry.
	EntityFormation EntityType = "formation"
	// EntityFault identifies the fault relation matrix.
	EntityFault EntityType = "fault"
	// EntityInterface identifies interface point rows.
	EntityInterface EntityType = "interface"
	// EntityOrientation identifies orientation rows.
	EntityOrientation EntityType = "orientation"
	// EntityGrid identifies the evaluation grid.
	EntityGrid EntityType = "grid"
	// EntityAdditionalData identifies rescaling, kriging and option settings.
	EntityAdditionalData EntityType = "additional_data"
	// EntitySolution identifies a computed solution.
	EntitySolution EntityType = "solution"
)

// Relation describes how a series interacts with the series below it.
type Relation string

const (
	// RelationErosion cuts the older series.
	RelationErosion Relation = "erosion"
	// RelationOnlap rests on the older series without cutting it.
	RelationOnlap Relation = "onlap"
)

// Basement naming shared by the registry and the cascade.
const (
	BasementFormation = "basement"
	BasementSeries    = "Basement"
	DefaultSeries     = "Default series"
)

// Series is an ordered stratigraphic group of formations.
type Series struct {
	Name     string   `json:"name"`
	Order    int      `json:"order_series"`
	Relation Relation `json:"relation"`
}

// SeriesDefinition maps a series to the formations it contains, in order.
type SeriesDefinition struct {
	Name       string   `json:"name" yaml:"name"`
	Relation   Relation `json:"relation,omitempty" yaml:"relation,omitempty"`
	Formations []string `json:"formations" yaml:"formations"`
}

// Formation is a named rock unit.
type Formation struct {
	Name    string             `json:"name"`
	ID      int                `json:"id"`
	Series  string             `json:"series"`
	IsFault bool               `json:"is_fault"`
	Values  map[string]float64 `json:"values,omitempty"`
}

// IsBasement reports whether f is the basement sentinel.
func (f Formation) IsBasement() bool { return f.Name == BasementFormation }

// FaultRelations holds the series-by-series offset matrix. Matrix[i][j] is
// true when series Series[i] offsets series Series[j].
type FaultRelations struct {
	Series []string `json:"series"`
	Matrix [][]bool `json:"matrix"`
}

// Offsets reports whether series a offsets series b.
func (f FaultRelations) Offsets(a, b string) bool {
	i, j := -1, -1
	for idx, name := range f.Series {
		if name == a {
			i = idx
		}
		if name == b {
			j = idx
		}
	}
	if i < 0 || j < 0 {
		return false
	}
	return f.Matrix[i][j]
}

// Keys holds the derived foreign-key columns of an observation row. They are
// recomputed from the registry on every committed mutation.
type Keys struct {
	ID          int    `json:"id"`
	Series      string `json:"series"`
	OrderSeries int    `json:"order_series"`
	IsFault     bool   `json:"is_fault"`
}

// Rescaled holds the normalised coordinates of a row.
type Rescaled struct {
	XR float64 `json:"X_r"`
	YR float64 `json:"Y_r"`
	ZR float64 `json:"Z_r"`
}

// InterfacePoint is an observation marking a formation boundary.
type InterfacePoint struct {
	Index     int     `json:"index"`
	X         float64 `json:"X"`
	Y         float64 `json:"Y"`
	Z         float64 `json:"Z"`
	Formation string  `json:"formation"`
	Keys
	Rescaled
}

// Orientation is an observation of a surface's dip, azimuth and gradient.
type Orientation struct {
	Index     int     `json:"index"`
	X         float64 `json:"X"`
	Y         float64 `json:"Y"`
	Z         float64 `json:"Z"`
	Dip       float64 `json:"dip"`
	Azimuth   float64 `json:"azimuth"`
	Polarity  float64 `json:"polarity"`
	Gx        float64 `json:"G_x"`
	Gy        float64 `json:"G_y"`
	Gz        float64 `json:"G_z"`
	Formation string  `json:"formation"`
	Keys
	Rescaled
}

// HasGradient reports whether the gradient columns carry a value.
func (o Orientation) HasGradient() bool {
	return o.Gx != 0 || o.Gy != 0 || o.Gz != 0
}

// GridKind distinguishes regular lattices from arbitrary point sets.
type GridKind string

const (
	GridRegular GridKind = "regular"
	GridCustom  GridKind = "custom"
)

// Grid holds the evaluation coordinates.
type Grid struct {
	Kind       GridKind     `json:"kind"`
	Extent     [6]float64   `json:"extent"`
	Resolution [3]int       `json:"resolution"`
	Points     [][3]float64 `json:"points"`
}

// Len returns the number of evaluation points.
func (g Grid) Len() int { return len(g.Points) }

// Bounds returns the bounding box of the grid as [xmin,xmax,ymin,ymax,zmin,zmax].
// Regular grids report their declared extent.
func (g Grid) Bounds() ([6]float64, bool) {
	if g.Kind == GridRegular {
		return g.Extent, true
	}
	if len(g.Points) == 0 {
		return [6]float64{}, false
	}
	b := [6]float64{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	for _, p := range g.Points {
		for axis := 0; axis < 3; axis++ {
			b[2*axis] = math.Min(b[2*axis], p[axis])
			b[2*axis+1] = math.Max(b[2*axis+1], p[axis])
		}
	}
	return b, true
}

// Structure summarises point counts per formation and series.
type Structure struct {
	LenFormationsI      map[string]int `json:"len_formations_i"`
	LenFormationsO      map[string]int `json:"len_formations_o"`
	LenSeriesI          []int          `json:"len_series_i"`
	LenSeriesO          []int          `json:"len_series_o"`
	FormationsPerSeries []int          `json:"number_formations_per_series"`
	IsFaultSeries       []bool         `json:"is_fault_series"`
	NumberOfSeries      int            `json:"number_series"`
	NumberOfFormations  int            `json:"number_formations"`
	NumberOfFaults      int            `json:"number_faults"`
}

// Rescaling holds the normalisation applied to every coordinate.
type Rescaling struct {
	Factor   float64    `json:"rescaling_factor"`
	Centers  [3]float64 `json:"centers"`
	Explicit bool       `json:"explicit"`
}

// RescaleOffset keeps normalised coordinates strictly inside (0, 1].
const RescaleOffset = 0.5001

// Apply normalises a raw coordinate.
func (r Rescaling) Apply(p [3]float64) [3]float64 {
	if r.Factor == 0 {
		return p
	}
	return [3]float64{
		(p[0]-r.Centers[0])/r.Factor + RescaleOffset,
		(p[1]-r.Centers[1])/r.Factor + RescaleOffset,
		(p[2]-r.Centers[2])/r.Factor + RescaleOffset,
	}
}

// Restore maps a normalised coordinate back to model space.
func (r Rescaling) Restore(p [3]float64) [3]float64 {
	if r.Factor == 0 {
		return p
	}
	return [3]float64{
		(p[0]-RescaleOffset)*r.Factor + r.Centers[0],
		(p[1]-RescaleOffset)*r.Factor + r.Centers[1],
		(p[2]-RescaleOffset)*r.Factor + r.Centers[2],
	}
}

// Kriging holds the covariance parameters consumed by the solver.
type Kriging struct {
	Range            float64 `json:"range"`
	CovarianceAtZero float64 `json:"c_o"`
	NuggetScalar     float64 `json:"nugget_effect_scalar"`
	NuggetGradient   float64 `json:"nugget_effect_gradient"`
	DriftEquations   []int   `json:"drift_equations"`
}

// KrigingOverrides carries user supplied kriging values; nil fields use defaults.
type KrigingOverrides struct {
	Range            *float64 `json:"range,omitempty" yaml:"range,omitempty"`
	CovarianceAtZero *float64 `json:"c_o,omitempty" yaml:"c_o,omitempty"`
	NuggetScalar     *float64 `json:"nugget_effect_scalar,omitempty" yaml:"nugget_effect_scalar,omitempty"`
	NuggetGradient   *float64 `json:"nugget_effect_gradient,omitempty" yaml:"nugget_effect_gradient,omitempty"`
	DriftEquations   []int    `json:"drift_equations,omitempty" yaml:"drift_equations,omitempty"`
}

// Output modes understood by solvers.
const (
	OutputGeology   = "geology"
	OutputGradients = "gradients"
)

// Optimizer modes understood by solvers.
const (
	OptimizerFastCompile = "fast_compile"
	OptimizerFastRun     = "fast_run"
)

// Options configures solver construction.
type Options struct {
	Output    string   `json:"output" yaml:"output"`
	Optimizer string   `json:"optimizer" yaml:"optimizer"`
	Verbosity []string `json:"verbosity,omitempty" yaml:"verbosity,omitempty"`
}

// DefaultOptions returns the options used by a fresh model.
func DefaultOptions() Options {
	return Options{Output: OutputGeology, Optimizer: OptimizerFastCompile}
}

// AdditionalData aggregates derived solver settings.
type AdditionalData struct {
	Structure        Structure        `json:"structure"`
	Rescaling        Rescaling        `json:"rescaling"`
	Kriging          Kriging          `json:"kriging"`
	KrigingOverrides KrigingOverrides `json:"kriging_overrides"`
	Options          Options          `json:"options"`
}

// SurfaceMesh is the extracted geometry of one surface.
type SurfaceMesh struct {
	Formation string       `json:"formation"`
	Vertices  [][3]float64 `json:"vertices"`
	Simplices [][3]int     `json:"simplices"`
}

// Solution is the immutable output of one solve.
type Solution struct {
	ID           string        `json:"id"`
	Revision     uint64        `json:"revision"`
	CreatedAt    time.Time     `json:"created_at"`
	GridKind     GridKind      `json:"grid_kind"`
	Lithology    []float64     `json:"lithology"`
	ScalarField  []float64     `json:"scalar_field"`
	SeriesFields [][]float64   `json:"series_fields,omitempty"`
	Meshes       []SurfaceMesh `json:"meshes,omitempty"`
}

// Change captures a mutation recorded inside a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Detail string
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported operations captured in the audit trail.
const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionReplace Action = "replace"
)
