package core

import (
	"sort"
	"strconv"

	"geomodel/pkg/domain"
)

// cascade re-derives everything that depends on the registry: the fault
// matrix layout, the foreign-key columns of both observation tables, their
// canonical order, and the additional data block.
func (tx *Transaction) cascade() error {
	st := &tx.state
	if err := st.checkTaxonomy(); err != nil {
		return err
	}
	st.reindexFaults()
	if err := st.mapForeignKeys(); err != nil {
		return err
	}
	st.sortTables()
	st.updateAdditionalData()
	return nil
}

// checkTaxonomy verifies that every formation belongs to a catalogued series
// and that the basement, when present, is last in both catalogs.
func (s *modelState) checkTaxonomy() error {
	orders := make(map[string]int, len(s.series))
	for _, sr := range s.series {
		orders[sr.Name] = sr.Order
	}
	for _, f := range s.formations {
		if _, ok := orders[f.Series]; !ok {
			return domain.UnknownSeriesError{Name: f.Series, Formation: f.Name}
		}
	}
	if n := len(s.formations); n > 0 {
		for i, f := range s.formations[:n-1] {
			if f.IsBasement() {
				return domain.InvalidOrderError{Reason: "basement formation must be last, found at position " + strconv.Itoa(i+1)}
			}
		}
	}
	if n := len(s.series); n > 0 {
		for _, sr := range s.series[:n-1] {
			if sr.Name == domain.BasementSeries {
				return domain.InvalidOrderError{Reason: "basement series must be last"}
			}
		}
	}
	return nil
}

// reindexFaults lays the fault matrix out over the current series order,
// keeping relations between series that survive and leaving new entries
// unset.
func (s *modelState) reindexFaults() {
	names := make([]string, len(s.series))
	for i, sr := range s.series {
		names[i] = sr.Name
	}
	matrix := make([][]bool, len(names))
	for i, a := range names {
		matrix[i] = make([]bool, len(names))
		for j, b := range names {
			matrix[i][j] = s.faults.Offsets(a, b)
		}
	}
	s.faults = domain.FaultRelations{Series: names, Matrix: matrix}
}

func (s *modelState) mapForeignKeys() error {
	orders := make(map[string]int, len(s.series))
	for _, sr := range s.series {
		orders[sr.Name] = sr.Order
	}
	registry := make(map[string]domain.Formation, len(s.formations))
	for _, f := range s.formations {
		registry[f.Name] = f
	}
	keysFor := func(name string) (domain.Keys, bool) {
		f, ok := registry[name]
		if !ok {
			return domain.Keys{}, false
		}
		return domain.Keys{ID: f.ID, Series: f.Series, OrderSeries: orders[f.Series], IsFault: f.IsFault}, true
	}
	for i := range s.interfaces {
		keys, ok := keysFor(s.interfaces[i].Formation)
		if !ok {
			return domain.DanglingReferenceError{Table: EntityInterface, Index: s.interfaces[i].Index, Formation: s.interfaces[i].Formation}
		}
		s.interfaces[i].Keys = keys
	}
	for i := range s.orientations {
		keys, ok := keysFor(s.orientations[i].Formation)
		if !ok {
			return domain.DanglingReferenceError{Table: EntityOrientation, Index: s.orientations[i].Index, Formation: s.orientations[i].Formation}
		}
		s.orientations[i].Keys = keys
	}
	return nil
}

// sortTables orders both tables by (series rank, formation id, insertion
// index).
func (s *modelState) sortTables() {
	sort.SliceStable(s.interfaces, func(i, j int) bool {
		return rowLess(s.interfaces[i].Keys, s.interfaces[i].Index, s.interfaces[j].Keys, s.interfaces[j].Index)
	})
	sort.SliceStable(s.orientations, func(i, j int) bool {
		return rowLess(s.orientations[i].Keys, s.orientations[i].Index, s.orientations[j].Keys, s.orientations[j].Index)
	})
}

func rowLess(a domain.Keys, ai int, b domain.Keys, bi int) bool {
	if a.OrderSeries != b.OrderSeries {
		return a.OrderSeries < b.OrderSeries
	}
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	return ai < bi
}

func (s *modelState) updateAdditionalData() {
	s.updateStructure()
	s.updateRescaling()
	s.updateDefaultKriging()
}
