package core

import (
	"errors"
	"fmt"
	"sort"

	"geomodel/internal/geometry"
	"geomodel/pkg/domain"
)

// CreateOrientationFromPoints fits a plane through the referenced interface
// points and appends the resulting orientation. All points must belong to one
// formation.
func (tx *Transaction) CreateOrientationFromPoints(indices []int) (domain.Orientation, error) {
	if len(indices) < 3 {
		return domain.Orientation{}, domain.InvalidInputError{Field: "indices", Reason: fmt.Sprintf("%d points given, at least 3 required", len(indices))}
	}
	byIndex := make(map[int]domain.InterfacePoint, len(tx.state.interfaces))
	for _, p := range tx.state.interfaces {
		byIndex[p.Index] = p
	}
	seen := make(map[int]bool, len(indices))
	formations := make(map[string]bool)
	points := make([][3]float64, 0, len(indices))
	for _, idx := range indices {
		if seen[idx] {
			return domain.Orientation{}, domain.InvalidInputError{Field: "indices", Reason: fmt.Sprintf("index %d listed twice", idx)}
		}
		seen[idx] = true
		p, ok := byIndex[idx]
		if !ok {
			return domain.Orientation{}, domain.InvalidInputError{Field: "indices", Reason: fmt.Sprintf("no interface point with index %d", idx)}
		}
		formations[p.Formation] = true
		points = append(points, [3]float64{p.X, p.Y, p.Z})
	}
	if len(formations) > 1 {
		names := make([]string, 0, len(formations))
		for name := range formations {
			names = append(names, name)
		}
		sort.Strings(names)
		return domain.Orientation{}, domain.MixedFormationError{Formations: names}
	}

	plane, err := geometry.FitPlane(points)
	if err != nil {
		if errors.Is(err, geometry.ErrDegenerate) {
			return domain.Orientation{}, domain.InvalidInputError{Field: "indices", Reason: err.Error()}
		}
		return domain.Orientation{}, fmt.Errorf("fit plane: %w", err)
	}
	row := tx.appendOrientation(domain.Orientation{
		X:         plane.Center[0],
		Y:         plane.Center[1],
		Z:         plane.Center[2],
		Dip:       plane.Dip,
		Azimuth:   plane.Azimuth,
		Polarity:  plane.Polarity,
		Gx:        plane.Normal[0],
		Gy:        plane.Normal[1],
		Gz:        plane.Normal[2],
		Formation: byIndex[indices[0]].Formation,
	})
	tx.recordChange(Change{Entity: EntityOrientation, Action: ActionCreate, Detail: fmt.Sprintf("from %d points", len(indices))})
	return row, nil
}

// CreateOrientationsFromPoints runs CreateOrientationFromPoints for every
// group. Either every group produces an orientation or none does.
func (tx *Transaction) CreateOrientationsFromPoints(groups [][]int) ([]domain.Orientation, error) {
	if len(groups) == 0 {
		return nil, domain.InvalidInputError{Field: "groups", Reason: "no point groups given"}
	}
	out := make([]domain.Orientation, 0, len(groups))
	for i, group := range groups {
		row, err := tx.CreateOrientationFromPoints(group)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		out = append(out, row)
	}
	return out, nil
}
