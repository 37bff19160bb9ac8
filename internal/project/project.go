// Package project reads YAML model definitions and applies them to a core
// service. A project names the stratigraphic pile, points at the observation
// tables and sets up the grid and interpolation parameters.
package project

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"geomodel/internal/core"
	"geomodel/internal/dataio"
	"geomodel/pkg/domain"
)

// File is the on-disk project definition.
type File struct {
	Name           string                    `yaml:"name"`
	Series         []domain.SeriesDefinition `yaml:"series"`
	Basement       bool                      `yaml:"basement"`
	Faults         []string                  `yaml:"faults,omitempty"`
	FaultRelations [][]bool                  `yaml:"fault_relations,omitempty"`
	Values         *Values                   `yaml:"values,omitempty"`
	Data           Data                      `yaml:"data"`
	Grid           Grid                      `yaml:"grid"`
	Rescaling      *Rescaling                `yaml:"rescaling,omitempty"`
	Kriging        *domain.KrigingOverrides  `yaml:"kriging,omitempty"`
	Options        *domain.Options           `yaml:"options,omitempty"`

	// dir resolves relative table paths.
	dir string
}

// Values assigns named properties to formations in id order, basement excluded.
type Values struct {
	Properties []string    `yaml:"properties"`
	Rows       [][]float64 `yaml:"rows"`
}

// Data locates the observation tables. CSV paths are relative to the
// project file.
type Data struct {
	Interfaces             string                  `yaml:"interfaces,omitempty"`
	Orientations           string                  `yaml:"orientations,omitempty"`
	InterfacePoints        []InterfaceRow   `yaml:"interface_points,omitempty"`
	OrientationPoints      []OrientationRow `yaml:"orientation_points,omitempty"`
	OrientationsFromPoints [][]int          `yaml:"orientations_from_points,omitempty"`
}

// InterfaceRow is an inline surface point.
type InterfaceRow struct {
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	Z         float64 `yaml:"z"`
	Formation string  `yaml:"formation"`
}

// OrientationRow is an inline orientation. Either the angles or the
// gradient is given; a non-zero gradient wins.
type OrientationRow struct {
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	Z         float64 `yaml:"z"`
	Dip       float64 `yaml:"dip,omitempty"`
	Azimuth   float64 `yaml:"azimuth,omitempty"`
	Polarity  float64 `yaml:"polarity,omitempty"`
	Gx        float64 `yaml:"g_x,omitempty"`
	Gy        float64 `yaml:"g_y,omitempty"`
	Gz        float64 `yaml:"g_z,omitempty"`
	Formation string  `yaml:"formation"`
}

// Grid is either a regular lattice (extent and resolution) or a custom
// point set.
type Grid struct {
	Extent     []float64    `yaml:"extent,omitempty"`
	Resolution []int        `yaml:"resolution,omitempty"`
	Points     [][3]float64 `yaml:"points,omitempty"`
}

// Rescaling pins the normalisation. Omitted fields keep their defaults.
type Rescaling struct {
	Factor  *float64    `yaml:"factor,omitempty"`
	Centers *[3]float64 `yaml:"centers,omitempty"`
}

// FieldError reports an invalid project entry.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("project field %s: %s", e.Field, e.Reason)
}

// Load reads and validates the project at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is chosen by the operator
	if err != nil {
		return File{}, fmt.Errorf("read project: %w", err)
	}
	return Parse(bytes.NewReader(data), filepath.Dir(path))
}

// Parse decodes a project from r. dir resolves relative table paths.
// Unknown keys are rejected.
func Parse(r io.Reader, dir string) (File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, errors.New("decode project: empty document")
		}
		return File{}, fmt.Errorf("decode project: %w", err)
	}
	f.dir = dir
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks the parts of a project that do not need a model.
func (f File) Validate() error {
	if len(f.Series) == 0 {
		return FieldError{Field: "series", Reason: "at least one series is required"}
	}
	if f.Data.Interfaces == "" && len(f.Data.InterfacePoints) == 0 {
		return FieldError{Field: "data", Reason: "interfaces or interface_points is required"}
	}
	regular := len(f.Grid.Extent) > 0 || len(f.Grid.Resolution) > 0
	switch {
	case regular && len(f.Grid.Points) > 0:
		return FieldError{Field: "grid", Reason: "use either extent and resolution or points"}
	case regular && (len(f.Grid.Extent) != 6 || len(f.Grid.Resolution) != 3):
		return FieldError{Field: "grid", Reason: "extent needs 6 values and resolution 3"}
	case !regular && len(f.Grid.Points) == 0:
		return FieldError{Field: "grid", Reason: "a grid is required"}
	}
	if f.Values != nil && len(f.Values.Properties) == 0 {
		return FieldError{Field: "values", Reason: "properties must not be empty"}
	}
	return nil
}

// Path resolves a table path against the project directory.
func (f File) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || f.dir == "" {
		return p
	}
	return filepath.Join(f.dir, p)
}

// Apply builds the model described by f on svc. It stops at the first
// failing operation; operations already applied stay committed.
func Apply(ctx context.Context, svc *core.Service, f File) error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"series", func() error { return discard(svc.SetSeries(ctx, f.Series)) }},
		{"basement", func() error {
			if !f.Basement {
				return nil
			}
			return discard(svc.AddBasement(ctx))
		}},
		{"faults", func() error {
			if len(f.Faults) == 0 {
				return nil
			}
			return discard(svc.SetIsFault(ctx, f.Faults))
		}},
		{"fault_relations", func() error {
			if f.FaultRelations == nil {
				return nil
			}
			return discard(svc.SetFaultRelations(ctx, f.FaultRelations))
		}},
		{"values", func() error {
			if f.Values == nil {
				return nil
			}
			return discard(svc.SetFormationValues(ctx, f.Values.Properties, f.Values.Rows))
		}},
		{"interfaces", func() error { return f.applyInterfaces(ctx, svc) }},
		{"orientations", func() error { return f.applyOrientations(ctx, svc) }},
		{"grid", func() error { return f.applyGrid(ctx, svc) }},
		{"rescaling", func() error {
			if f.Rescaling == nil {
				return nil
			}
			_, res, err := svc.UpdateRescaling(ctx, f.Rescaling.Factor, f.Rescaling.Centers)
			return discard(res, err)
		}},
		{"kriging", func() error {
			if f.Kriging == nil {
				return nil
			}
			return discard(svc.SetKrigingParameters(ctx, *f.Kriging))
		}},
		{"options", func() error {
			if f.Options == nil {
				return nil
			}
			return discard(svc.SetInterpolationOptions(ctx, *f.Options))
		}},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("apply %s: %w", step.name, err)
		}
	}
	return nil
}

func discard(_ core.Result, err error) error {
	return err
}

func (f File) applyInterfaces(ctx context.Context, svc *core.Service) error {
	rows := make([]domain.InterfacePoint, 0, len(f.Data.InterfacePoints))
	for _, r := range f.Data.InterfacePoints {
		rows = append(rows, domain.InterfacePoint{X: r.X, Y: r.Y, Z: r.Z, Formation: r.Formation})
	}
	if f.Data.Interfaces != "" {
		table, err := readTable(f.Path(f.Data.Interfaces), dataio.ReadInterfaces)
		if err != nil {
			return err
		}
		rows = append(rows, table...)
	}
	return discard(svc.SetInterfaces(ctx, rows, false))
}

func (f File) applyOrientations(ctx context.Context, svc *core.Service) error {
	rows := make([]domain.Orientation, 0, len(f.Data.OrientationPoints))
	for _, r := range f.Data.OrientationPoints {
		rows = append(rows, domain.Orientation{
			X: r.X, Y: r.Y, Z: r.Z,
			Dip: r.Dip, Azimuth: r.Azimuth, Polarity: r.Polarity,
			Gx: r.Gx, Gy: r.Gy, Gz: r.Gz,
			Formation: r.Formation,
		})
	}
	if f.Data.Orientations != "" {
		table, err := readTable(f.Path(f.Data.Orientations), dataio.ReadOrientations)
		if err != nil {
			return err
		}
		rows = append(rows, table...)
	}
	if len(rows) > 0 {
		if err := discard(svc.SetOrientations(ctx, rows, false)); err != nil {
			return err
		}
	}
	if len(f.Data.OrientationsFromPoints) == 0 {
		return nil
	}
	_, res, err := svc.CreateOrientationsFromPoints(ctx, f.Data.OrientationsFromPoints)
	return discard(res, err)
}

func (f File) applyGrid(ctx context.Context, svc *core.Service) error {
	if len(f.Grid.Points) > 0 {
		return discard(svc.SetCustomGrid(ctx, f.Grid.Points))
	}
	var extent [6]float64
	var resolution [3]int
	copy(extent[:], f.Grid.Extent)
	copy(resolution[:], f.Grid.Resolution)
	return discard(svc.SetRegularGrid(ctx, extent, resolution))
}

func readTable[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	file, err := os.Open(path) // #nosec G304 -- path comes from the project file
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()
	rows, err := read(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}
