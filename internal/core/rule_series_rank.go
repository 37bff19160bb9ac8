package core

import (
	"context"
	"fmt"

	"geomodel/pkg/domain"
)

// SeriesRankRule blocks commits whose series ranks are not 1..n with the
// basement series last.
func SeriesRankRule() domain.Rule {
	return seriesRankRule{}
}

type seriesRankRule struct{}

func (seriesRankRule) Name() string { return "series_rank" }

func (seriesRankRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	series := view.ListSeries()
	for i, sr := range series {
		if sr.Order != i+1 {
			res.Violations = append(res.Violations, seriesRankViolation(sr.Name, fmt.Sprintf("series %q has rank %d at position %d", sr.Name, sr.Order, i+1)))
		}
		if sr.Name == domain.BasementSeries && i != len(series)-1 {
			res.Violations = append(res.Violations, seriesRankViolation(sr.Name, "basement series must be the oldest"))
		}
	}
	return res, nil
}

func seriesRankViolation(name, message string) domain.Violation {
	return domain.Violation{
		Rule:     "series_rank",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntitySeries,
		Name:     name,
	}
}
