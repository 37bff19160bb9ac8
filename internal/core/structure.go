package core

import "geomodel/pkg/domain"

// minSurfacePoints is the number of interface points a formation needs
// before a surface can be interpolated through it.
const minSurfacePoints = 2

// updateStructure recounts interface and orientation points per formation
// and per series. Series arrays follow catalog order.
func (s *modelState) updateStructure() {
	st := domain.Structure{
		LenFormationsI:      make(map[string]int),
		LenFormationsO:      make(map[string]int),
		LenSeriesI:          make([]int, len(s.series)),
		LenSeriesO:          make([]int, len(s.series)),
		FormationsPerSeries: make([]int, len(s.series)),
		IsFaultSeries:       make([]bool, len(s.series)),
	}
	position := make(map[string]int, len(s.series))
	for i, sr := range s.series {
		position[sr.Name] = i
		if sr.Name != domain.BasementSeries {
			st.NumberOfSeries++
		}
	}
	for _, p := range s.interfaces {
		st.LenFormationsI[p.Formation]++
		if i, ok := position[p.Series]; ok {
			st.LenSeriesI[i]++
		}
	}
	for _, o := range s.orientations {
		st.LenFormationsO[o.Formation]++
		if i, ok := position[o.Series]; ok {
			st.LenSeriesO[i]++
		}
	}
	for _, f := range s.formations {
		if f.IsBasement() {
			continue
		}
		st.NumberOfFormations++
		i, ok := position[f.Series]
		if !ok {
			continue
		}
		st.FormationsPerSeries[i]++
		if f.IsFault {
			st.IsFaultSeries[i] = true
		}
	}
	for _, fault := range st.IsFaultSeries {
		if fault {
			st.NumberOfFaults++
		}
	}
	s.additional.Structure = st
}

// validateStructure fails with InsufficientDataError for the first
// formation, in id order, holding interface points but fewer than needed.
func (s *modelState) validateStructure() error {
	counts := s.additional.Structure.LenFormationsI
	for _, f := range s.formations {
		n := counts[f.Name]
		if n > 0 && n < minSurfacePoints {
			return domain.InsufficientDataError{Formation: f.Name, Count: n, Required: minSurfacePoints}
		}
	}
	return nil
}
