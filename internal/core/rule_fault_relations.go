package core

import (
	"context"
	"fmt"

	"geomodel/pkg/domain"
)

// FaultRelationRule warns when a series without fault formations is marked
// as offsetting another series.
func FaultRelationRule() domain.Rule {
	return faultRelationRule{}
}

type faultRelationRule struct{}

func (faultRelationRule) Name() string { return "fault_relations" }

func (faultRelationRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	if !touches(changes, domain.EntityFault, domain.EntitySeries, domain.EntityFormation) {
		return res, nil
	}
	faulted := make(map[string]bool)
	for _, f := range view.ListFormations() {
		if f.IsFault {
			faulted[f.Series] = true
		}
	}
	rel := view.FaultRelations()
	for i, row := range rel.Matrix {
		if faulted[rel.Series[i]] {
			continue
		}
		for j, offsets := range row {
			if !offsets {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "fault_relations",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("series %q has no fault formations but offsets %q", rel.Series[i], rel.Series[j]),
				Entity:   domain.EntityFault,
				Name:     rel.Series[i],
			})
		}
	}
	return res, nil
}

func touches(changes []domain.Change, entities ...domain.EntityType) bool {
	for _, c := range changes {
		for _, e := range entities {
			if c.Entity == e {
				return true
			}
		}
	}
	return false
}
