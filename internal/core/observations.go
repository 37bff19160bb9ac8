package core

import (
	"fmt"
	"math"
	"strconv"

	"geomodel/internal/geometry"
	"geomodel/pkg/domain"
)

// SetInterfaces replaces (or extends, when appendRows is set) the interface
// table. Rows receive fresh indices; derived columns are filled by the
// cascade.
func (tx *Transaction) SetInterfaces(rows []domain.InterfacePoint, appendRows bool) error {
	for i, row := range rows {
		if err := validateLocation(row.X, row.Y, row.Z, row.Formation); err != nil {
			return rowError(EntityInterface, i, err)
		}
	}
	if !appendRows {
		tx.state.interfaces = nil
		tx.state.nextInterface = 0
	}
	for _, row := range rows {
		row.Index = tx.state.nextInterface
		tx.state.nextInterface++
		row.Keys = domain.Keys{}
		row.Rescaled = domain.Rescaled{}
		tx.state.interfaces = append(tx.state.interfaces, row)
	}
	action := ActionReplace
	if appendRows {
		action = ActionCreate
	}
	tx.recordChange(Change{Entity: EntityInterface, Action: action, Detail: strconv.Itoa(len(rows)) + " rows"})
	return nil
}

// SetOrientations replaces (or extends) the orientation table. Each row
// carries either a gradient or dip, azimuth and polarity; the missing
// representation is derived.
func (tx *Transaction) SetOrientations(rows []domain.Orientation, appendRows bool) error {
	prepared := make([]domain.Orientation, len(rows))
	for i, row := range rows {
		if err := validateLocation(row.X, row.Y, row.Z, row.Formation); err != nil {
			return rowError(EntityOrientation, i, err)
		}
		normalized, err := normalizeOrientation(row)
		if err != nil {
			return rowError(EntityOrientation, i, err)
		}
		prepared[i] = normalized
	}
	if !appendRows {
		tx.state.orientations = nil
		tx.state.nextOrientation = 0
	}
	for _, row := range prepared {
		tx.appendOrientation(row)
	}
	action := ActionReplace
	if appendRows {
		action = ActionCreate
	}
	tx.recordChange(Change{Entity: EntityOrientation, Action: action, Detail: strconv.Itoa(len(rows)) + " rows"})
	return nil
}

func (tx *Transaction) appendOrientation(row domain.Orientation) domain.Orientation {
	row.Index = tx.state.nextOrientation
	tx.state.nextOrientation++
	row.Keys = domain.Keys{}
	row.Rescaled = domain.Rescaled{}
	tx.state.orientations = append(tx.state.orientations, row)
	return row
}

// DeleteInterfaces removes rows by index.
func (tx *Transaction) DeleteInterfaces(indices []int) error {
	drop, err := indexSet(indices, func(idx int) bool {
		for _, p := range tx.state.interfaces {
			if p.Index == idx {
				return true
			}
		}
		return false
	})
	if err != nil {
		return err
	}
	kept := tx.state.interfaces[:0]
	for _, p := range tx.state.interfaces {
		if !drop[p.Index] {
			kept = append(kept, p)
		}
	}
	tx.state.interfaces = kept
	tx.recordChange(Change{Entity: EntityInterface, Action: ActionDelete, Detail: strconv.Itoa(len(drop)) + " rows"})
	return nil
}

// DeleteOrientations removes rows by index.
func (tx *Transaction) DeleteOrientations(indices []int) error {
	drop, err := indexSet(indices, func(idx int) bool {
		for _, o := range tx.state.orientations {
			if o.Index == idx {
				return true
			}
		}
		return false
	})
	if err != nil {
		return err
	}
	kept := tx.state.orientations[:0]
	for _, o := range tx.state.orientations {
		if !drop[o.Index] {
			kept = append(kept, o)
		}
	}
	tx.state.orientations = kept
	tx.recordChange(Change{Entity: EntityOrientation, Action: ActionDelete, Detail: strconv.Itoa(len(drop)) + " rows"})
	return nil
}

func indexSet(indices []int, exists func(int) bool) (map[int]bool, error) {
	if len(indices) == 0 {
		return nil, domain.InvalidInputError{Field: "indices", Reason: "no indices given"}
	}
	set := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if !exists(idx) {
			return nil, domain.InvalidInputError{Field: "indices", Reason: fmt.Sprintf("no row with index %d", idx)}
		}
		set[idx] = true
	}
	return set, nil
}

func validateLocation(x, y, z float64, formation string) error {
	for _, v := range [3]float64{x, y, z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.InvalidInputError{Field: "coordinates", Reason: "must be finite"}
		}
	}
	if formation == "" {
		return domain.InvalidInputError{Field: "formation", Reason: "must not be empty"}
	}
	return nil
}

func normalizeOrientation(row domain.Orientation) (domain.Orientation, error) {
	if row.HasGradient() {
		for _, v := range [3]float64{row.Gx, row.Gy, row.Gz} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return row, domain.InvalidInputError{Field: "gradient", Reason: "must be finite"}
			}
		}
		dip, az, pol, err := geometry.Angles([3]float64{row.Gx, row.Gy, row.Gz})
		if err != nil {
			return row, domain.InvalidInputError{Field: "gradient", Reason: err.Error()}
		}
		row.Dip, row.Azimuth, row.Polarity = dip, az, pol
		g := geometry.Gradient(dip, az, pol)
		row.Gx, row.Gy, row.Gz = g[0], g[1], g[2]
		return row, nil
	}
	if math.IsNaN(row.Dip) || row.Dip < 0 || row.Dip > 180 {
		return row, domain.InvalidInputError{Field: "dip", Reason: "must be within [0, 180]"}
	}
	if math.IsNaN(row.Azimuth) || row.Azimuth < 0 || row.Azimuth > 360 {
		return row, domain.InvalidInputError{Field: "azimuth", Reason: "must be within [0, 360]"}
	}
	switch row.Polarity {
	case 0:
		row.Polarity = 1
	case 1, -1:
	default:
		return row, domain.InvalidInputError{Field: "polarity", Reason: "must be 1 or -1"}
	}
	g := geometry.Gradient(row.Dip, row.Azimuth, row.Polarity)
	row.Gx, row.Gy, row.Gz = g[0], g[1], g[2]
	return row, nil
}

func rowError(table EntityType, row int, err error) error {
	return fmt.Errorf("%s row %d: %w", table, row, err)
}
