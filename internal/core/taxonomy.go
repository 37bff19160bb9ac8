package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"geomodel/pkg/domain"
)

// SetSeriesOrder replaces the series catalog. order[i] is the rank of
// names[i] and must form a permutation of 1..len(names). Relations of
// surviving series are kept; an existing basement series stays last.
func (tx *Transaction) SetSeriesOrder(names []string, order []int) error {
	if len(names) == 0 {
		return domain.InvalidOrderError{Reason: "at least one series is required"}
	}
	if len(order) != len(names) {
		return domain.InvalidOrderError{Reason: fmt.Sprintf("%d ranks for %d series", len(order), len(names))}
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return domain.InvalidOrderError{Reason: "series name must not be empty"}
		}
		if seen[name] {
			return domain.InvalidOrderError{Reason: fmt.Sprintf("series %q listed twice", name)}
		}
		seen[name] = true
	}
	ranks := make([]bool, len(order)+1)
	for _, r := range order {
		if r < 1 || r > len(order) || ranks[r] {
			return domain.InvalidOrderError{Reason: fmt.Sprintf("ranks must be a permutation of 1..%d", len(order))}
		}
		ranks[r] = true
	}

	catalog := make([]domain.Series, len(names))
	for i, name := range names {
		relation := domain.RelationErosion
		if prev, ok := tx.state.findSeries(name); ok && prev.Relation != "" {
			relation = prev.Relation
		}
		catalog[i] = domain.Series{Name: name, Order: order[i], Relation: relation}
	}
	sort.Slice(catalog, func(i, j int) bool { return catalog[i].Order < catalog[j].Order })
	if basement, ok := tx.state.findSeries(domain.BasementSeries); ok && !seen[domain.BasementSeries] {
		basement.Order = len(catalog) + 1
		catalog = append(catalog, basement)
	}
	tx.state.series = catalog
	tx.recordChange(Change{Entity: EntitySeries, Action: ActionReplace, Detail: strings.Join(names, ",")})
	return nil
}

// SetSeries replaces the catalog from ordered definitions and assigns every
// listed formation to its series, registering unknown formations.
func (tx *Transaction) SetSeries(defs []domain.SeriesDefinition) error {
	names := make([]string, len(defs))
	order := make([]int, len(defs))
	owner := make(map[string]string)
	for i, def := range defs {
		names[i] = def.Name
		order[i] = i + 1
		for _, f := range def.Formations {
			if f == "" {
				return domain.InvalidInputError{Field: "formations", Reason: "formation name must not be empty"}
			}
			if prev, ok := owner[f]; ok {
				return domain.InvalidInputError{Field: "formations", Reason: fmt.Sprintf("formation %q listed in series %q and %q", f, prev, def.Name)}
			}
			owner[f] = def.Name
		}
	}
	if err := tx.SetSeriesOrder(names, order); err != nil {
		return err
	}
	for i, def := range defs {
		if def.Relation != "" {
			if def.Relation != domain.RelationErosion && def.Relation != domain.RelationOnlap {
				return domain.InvalidInputError{Field: "relation", Reason: fmt.Sprintf("unknown relation %q", def.Relation)}
			}
			for j := range tx.state.series {
				if tx.state.series[j].Name == names[i] {
					tx.state.series[j].Relation = def.Relation
				}
			}
		}
		for _, name := range def.Formations {
			tx.assignFormation(name, def.Name)
		}
	}
	tx.recordChange(Change{Entity: EntityFormation, Action: ActionUpdate, Detail: "series mapping"})
	return nil
}

// assignFormation maps name to series, registering it ahead of the basement
// when unknown.
func (tx *Transaction) assignFormation(name, series string) {
	for i := range tx.state.formations {
		if tx.state.formations[i].Name == name {
			tx.state.formations[i].Series = series
			return
		}
	}
	tx.insertFormation(domain.Formation{Name: name, Series: series})
}

// insertFormation appends f before the basement and renumbers ids.
func (tx *Transaction) insertFormation(f domain.Formation) {
	formations := tx.state.formations
	n := len(formations)
	if n > 0 && formations[n-1].IsBasement() {
		basement := formations[n-1]
		formations = append(formations[:n-1:n-1], f, basement)
	} else {
		formations = append(formations, f)
	}
	for i := range formations {
		formations[i].ID = i + 1
	}
	tx.state.formations = formations
}

// SetFormationNames registers formations that are not yet known. New
// formations join the first non-basement series, or a default series created
// on demand.
func (tx *Transaction) SetFormationNames(names []string) error {
	var added []string
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return domain.InvalidInputError{Field: "formations", Reason: "formation name must not be empty"}
		}
		if _, ok := tx.state.findFormation(name); ok {
			continue
		}
		if name == domain.BasementFormation {
			if err := tx.AddBasement(); err != nil {
				return err
			}
			continue
		}
		tx.insertFormation(domain.Formation{Name: name, Series: tx.defaultSeries()})
		added = append(added, name)
	}
	if len(added) > 0 {
		tx.recordChange(Change{Entity: EntityFormation, Action: ActionCreate, Detail: strings.Join(added, ",")})
	}
	return nil
}

func (tx *Transaction) defaultSeries() string {
	for _, sr := range tx.state.series {
		if sr.Name != domain.BasementSeries {
			return sr.Name
		}
	}
	catalog := []domain.Series{{Name: domain.DefaultSeries, Order: 1, Relation: domain.RelationErosion}}
	for _, sr := range tx.state.series {
		sr.Order = len(catalog) + 1
		catalog = append(catalog, sr)
	}
	tx.state.series = catalog
	tx.recordChange(Change{Entity: EntitySeries, Action: ActionCreate, Detail: domain.DefaultSeries})
	return domain.DefaultSeries
}

// SetFormationOrder assigns dense ids following orderedNames. Formations not
// listed keep their relative order after the listed ones; the basement keeps
// the highest id.
func (tx *Transaction) SetFormationOrder(orderedNames []string) error {
	listed := make(map[string]bool, len(orderedNames))
	for _, name := range orderedNames {
		if _, ok := tx.state.findFormation(name); !ok {
			return domain.UnknownFormationError{Name: name}
		}
		if listed[name] {
			return domain.InvalidOrderError{Reason: fmt.Sprintf("formation %q listed twice", name)}
		}
		listed[name] = true
	}
	next := make([]domain.Formation, 0, len(tx.state.formations))
	for _, name := range orderedNames {
		if name == domain.BasementFormation {
			continue
		}
		f, _ := tx.state.findFormation(name)
		next = append(next, f)
	}
	var basement *domain.Formation
	for _, f := range tx.state.formations {
		if f.IsBasement() {
			b := f
			basement = &b
			continue
		}
		if !listed[f.Name] {
			next = append(next, f)
		}
	}
	if basement != nil {
		next = append(next, *basement)
	}
	for i := range next {
		next[i].ID = i + 1
	}
	tx.state.formations = next
	tx.recordChange(Change{Entity: EntityFormation, Action: ActionUpdate, Detail: "order"})
	return nil
}

// SetFormationValues stores named properties per formation. values[i] holds
// the properties of the i-th formation by id, basement excluded.
func (tx *Transaction) SetFormationValues(properties []string, values [][]float64) error {
	if len(properties) == 0 {
		return domain.InvalidInputError{Field: "properties", Reason: "at least one property name is required"}
	}
	targets := make([]int, 0, len(tx.state.formations))
	for i, f := range tx.state.formations {
		if !f.IsBasement() {
			targets = append(targets, i)
		}
	}
	if len(values) != len(targets) {
		return domain.InvalidInputError{Field: "values", Reason: fmt.Sprintf("%d rows for %d formations", len(values), len(targets))}
	}
	for row, idx := range targets {
		if len(values[row]) != len(properties) {
			return domain.InvalidInputError{Field: "values", Reason: fmt.Sprintf("row %d has %d values for %d properties", row, len(values[row]), len(properties))}
		}
		f := &tx.state.formations[idx]
		if f.Values == nil {
			f.Values = make(map[string]float64, len(properties))
		}
		for col, name := range properties {
			f.Values[name] = values[row][col]
		}
	}
	tx.recordChange(Change{Entity: EntityFormation, Action: ActionUpdate, Detail: "values " + strings.Join(properties, ",")})
	return nil
}

// AddBasement registers the basement formation and series. It fails with
// AlreadyExistsError when the basement formation exists.
func (tx *Transaction) AddBasement() error {
	if _, ok := tx.state.findFormation(domain.BasementFormation); ok {
		return domain.AlreadyExistsError{Entity: EntityFormation, Name: domain.BasementFormation}
	}
	if _, ok := tx.state.findSeries(domain.BasementSeries); !ok {
		tx.state.series = append(tx.state.series, domain.Series{
			Name:     domain.BasementSeries,
			Order:    len(tx.state.series) + 1,
			Relation: domain.RelationErosion,
		})
		tx.recordChange(Change{Entity: EntitySeries, Action: ActionCreate, Detail: domain.BasementSeries})
	}
	tx.state.formations = append(tx.state.formations, domain.Formation{
		Name:   domain.BasementFormation,
		ID:     len(tx.state.formations) + 1,
		Series: domain.BasementSeries,
	})
	tx.recordChange(Change{Entity: EntityFormation, Action: ActionCreate, Detail: domain.BasementFormation})
	return nil
}

// SetIsFault flags exactly the named formations as faults.
func (tx *Transaction) SetIsFault(names []string) error {
	flagged := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := tx.state.findFormation(name); !ok {
			return domain.UnknownFormationError{Name: name}
		}
		flagged[name] = true
	}
	for i := range tx.state.formations {
		tx.state.formations[i].IsFault = flagged[tx.state.formations[i].Name]
	}
	tx.recordChange(Change{Entity: EntityFault, Action: ActionUpdate, Detail: strings.Join(names, ",")})
	return nil
}

// SetFaultRelations replaces the offset matrix. It must be square and match
// the series catalog order.
func (tx *Transaction) SetFaultRelations(matrix [][]bool) error {
	n := len(tx.state.series)
	if len(matrix) != n {
		return domain.InvalidInputError{Field: "fault relations", Reason: fmt.Sprintf("%d rows for %d series", len(matrix), n)}
	}
	names := make([]string, n)
	rows := make([][]bool, n)
	for i, row := range matrix {
		if len(row) != n {
			return domain.InvalidInputError{Field: "fault relations", Reason: fmt.Sprintf("row %d has %d columns for %d series", i, len(row), n)}
		}
		names[i] = tx.state.series[i].Name
		rows[i] = append([]bool(nil), row...)
	}
	tx.state.faults = domain.FaultRelations{Series: names, Matrix: rows}
	tx.recordChange(Change{Entity: EntityFault, Action: ActionReplace, Detail: "relations"})
	return nil
}

// SetValuesToDefault flags formations whose name mentions a fault, adds the
// basement and leaves the cascade to rebuild everything else. An existing
// basement is reported through the returned flag rather than as an error.
func (tx *Transaction) SetValuesToDefault() (basementExisted bool, err error) {
	var faults []string
	for _, f := range tx.state.formations {
		if f.IsFault || strings.Contains(strings.ToLower(f.Name), "fault") {
			faults = append(faults, f.Name)
		}
	}
	if err := tx.SetIsFault(faults); err != nil {
		return false, err
	}
	if err := tx.AddBasement(); err != nil {
		var exists domain.AlreadyExistsError
		if !errors.As(err, &exists) {
			return false, err
		}
		basementExisted = true
	}
	return basementExisted, nil
}
