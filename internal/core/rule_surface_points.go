package core

import (
	"context"
	"fmt"

	"geomodel/pkg/domain"
)

// SurfacePointsRule warns about formations holding a single interface point.
// Such a model commits but cannot be solved until more points arrive.
func SurfacePointsRule() domain.Rule {
	return surfacePointsRule{}
}

type surfacePointsRule struct{}

func (surfacePointsRule) Name() string { return "surface_points" }

func (surfacePointsRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	if !touches(changes, domain.EntityInterface, domain.EntityFormation) {
		return res, nil
	}
	counts := view.AdditionalData().Structure.LenFormationsI
	for _, f := range view.ListFormations() {
		if n := counts[f.Name]; n > 0 && n < minSurfacePoints {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "surface_points",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("formation %q has %d interface point, at least %d required to solve", f.Name, n, minSurfacePoints),
				Entity:   domain.EntityFormation,
				Name:     f.Name,
			})
		}
	}
	return res, nil
}
