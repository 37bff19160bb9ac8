package core

import (
	"context"
	"fmt"

	"geomodel/pkg/domain"
)

// ForeignKeyRule blocks commits whose observation rows disagree with the
// formation registry.
func ForeignKeyRule() domain.Rule {
	return foreignKeyRule{}
}

type foreignKeyRule struct{}

func (foreignKeyRule) Name() string { return "foreign_keys" }

func (foreignKeyRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	orders := make(map[string]int)
	for _, sr := range view.ListSeries() {
		orders[sr.Name] = sr.Order
	}
	check := func(table domain.EntityType, index int, formation string, keys domain.Keys) {
		f, ok := view.FindFormation(formation)
		if !ok {
			res.Violations = append(res.Violations, foreignKeyViolation(table, formation, fmt.Sprintf("%s row %d references unknown formation %q", table, index, formation)))
			return
		}
		want := domain.Keys{ID: f.ID, Series: f.Series, OrderSeries: orders[f.Series], IsFault: f.IsFault}
		if keys != want {
			res.Violations = append(res.Violations, foreignKeyViolation(table, formation, fmt.Sprintf("%s row %d has stale keys %+v, registry says %+v", table, index, keys, want)))
		}
	}
	for _, p := range view.ListInterfaces() {
		check(domain.EntityInterface, p.Index, p.Formation, p.Keys)
	}
	for _, o := range view.ListOrientations() {
		check(domain.EntityOrientation, o.Index, o.Formation, o.Keys)
	}
	return res, nil
}

func foreignKeyViolation(table domain.EntityType, formation, message string) domain.Violation {
	return domain.Violation{
		Rule:     "foreign_keys",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   table,
		Name:     formation,
	}
}
