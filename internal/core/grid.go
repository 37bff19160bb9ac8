package core

import (
	"fmt"
	"math"

	"geomodel/pkg/domain"
)

// RegularGrid builds the cell-centre lattice of extent
// [xmin,xmax,ymin,ymax,zmin,zmax] at resolution [nx,ny,nz]. Points are
// ordered with x varying slowest and z fastest.
func RegularGrid(extent [6]float64, resolution [3]int) (domain.Grid, error) {
	for axis := 0; axis < 3; axis++ {
		lo, hi := extent[2*axis], extent[2*axis+1]
		if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
			return domain.Grid{}, domain.InvalidInputError{Field: "extent", Reason: "must be finite"}
		}
		if lo >= hi {
			return domain.Grid{}, domain.InvalidInputError{Field: "extent", Reason: fmt.Sprintf("axis %d minimum %g is not below maximum %g", axis, lo, hi)}
		}
		if resolution[axis] < 1 {
			return domain.Grid{}, domain.InvalidInputError{Field: "resolution", Reason: fmt.Sprintf("axis %d resolution %d below 1", axis, resolution[axis])}
		}
	}
	var step [3]float64
	for axis := 0; axis < 3; axis++ {
		step[axis] = (extent[2*axis+1] - extent[2*axis]) / float64(resolution[axis])
	}
	points := make([][3]float64, 0, resolution[0]*resolution[1]*resolution[2])
	for i := 0; i < resolution[0]; i++ {
		x := extent[0] + (float64(i)+0.5)*step[0]
		for j := 0; j < resolution[1]; j++ {
			y := extent[2] + (float64(j)+0.5)*step[1]
			for k := 0; k < resolution[2]; k++ {
				z := extent[4] + (float64(k)+0.5)*step[2]
				points = append(points, [3]float64{x, y, z})
			}
		}
	}
	return domain.Grid{Kind: domain.GridRegular, Extent: extent, Resolution: resolution, Points: points}, nil
}

// CustomGrid adopts an arbitrary point set.
func CustomGrid(points [][3]float64) (domain.Grid, error) {
	if len(points) == 0 {
		return domain.Grid{}, domain.InvalidInputError{Field: "points", Reason: "no points given"}
	}
	for i, p := range points {
		for _, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return domain.Grid{}, domain.InvalidInputError{Field: "points", Reason: fmt.Sprintf("point %d is not finite", i)}
			}
		}
	}
	return domain.Grid{Kind: domain.GridCustom, Points: append([][3]float64(nil), points...)}, nil
}

// SetGrid replaces the evaluation grid.
func (tx *Transaction) SetGrid(grid domain.Grid) {
	tx.state.grid = cloneGrid(grid)
	tx.recordChange(Change{Entity: EntityGrid, Action: ActionReplace, Detail: fmt.Sprintf("%s %d points", grid.Kind, grid.Len())})
}

// SetRescaling pins the rescaling factor and, optionally, the centers.
func (tx *Transaction) SetRescaling(factor float64, centers *[3]float64) error {
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor <= 0 {
		return domain.InvalidInputError{Field: "rescaling factor", Reason: "must be a positive finite number"}
	}
	tx.state.setRescaling(factor, centers)
	tx.recordChange(Change{Entity: EntityAdditionalData, Action: ActionUpdate, Detail: "rescaling"})
	return nil
}

// ResetRescaling drops explicit rescaling values so defaults are derived again.
func (tx *Transaction) ResetRescaling() {
	tx.state.additional.Rescaling.Explicit = false
	tx.recordChange(Change{Entity: EntityAdditionalData, Action: ActionUpdate, Detail: "rescaling"})
}

// SetKrigingParameters replaces the user kriging overrides.
func (tx *Transaction) SetKrigingParameters(overrides domain.KrigingOverrides) error {
	if err := validateOverrides(overrides); err != nil {
		return err
	}
	tx.state.additional.KrigingOverrides = cloneOverrides(overrides)
	tx.recordChange(Change{Entity: EntityAdditionalData, Action: ActionUpdate, Detail: "kriging"})
	return nil
}

// SetInterpolationOptions replaces the solver options.
func (tx *Transaction) SetInterpolationOptions(opts domain.Options) error {
	switch opts.Output {
	case "":
		opts.Output = domain.OutputGeology
	case domain.OutputGeology, domain.OutputGradients:
	default:
		return domain.InvalidInputError{Field: "output", Reason: fmt.Sprintf("unknown output %q", opts.Output)}
	}
	switch opts.Optimizer {
	case "":
		opts.Optimizer = domain.OptimizerFastCompile
	case domain.OptimizerFastCompile, domain.OptimizerFastRun:
	default:
		return domain.InvalidInputError{Field: "optimizer", Reason: fmt.Sprintf("unknown optimizer %q", opts.Optimizer)}
	}
	opts.Verbosity = append([]string(nil), opts.Verbosity...)
	tx.state.additional.Options = opts
	tx.recordChange(Change{Entity: EntityAdditionalData, Action: ActionUpdate, Detail: "options"})
	return nil
}
