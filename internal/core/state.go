package core

import (
	"geomodel/pkg/domain"
)

const defaultProject = "default_project"

type modelState struct {
	project         string
	revision        uint64
	pipeline        PipelineState
	series          []domain.Series
	formations      []domain.Formation
	faults          domain.FaultRelations
	interfaces      []domain.InterfacePoint
	orientations    []domain.Orientation
	nextInterface   int
	nextOrientation int
	grid            domain.Grid
	additional      domain.AdditionalData
	solution        *domain.Solution
}

func newModelState(project string) modelState {
	if project == "" {
		project = defaultProject
	}
	return modelState{
		project:    project,
		pipeline:   domain.StateUninitialized,
		additional: domain.AdditionalData{Options: domain.DefaultOptions()},
	}
}

func (s modelState) clone() modelState {
	cp := s
	cp.series = append([]domain.Series(nil), s.series...)
	cp.formations = make([]domain.Formation, len(s.formations))
	for i, f := range s.formations {
		cp.formations[i] = cloneFormation(f)
	}
	cp.faults = cloneFaults(s.faults)
	cp.interfaces = append([]domain.InterfacePoint(nil), s.interfaces...)
	cp.orientations = append([]domain.Orientation(nil), s.orientations...)
	cp.grid = cloneGrid(s.grid)
	cp.additional = cloneAdditional(s.additional)
	if s.solution != nil {
		sol := cloneSolution(*s.solution)
		cp.solution = &sol
	}
	return cp
}

func cloneFormation(f domain.Formation) domain.Formation {
	cp := f
	if f.Values != nil {
		cp.Values = make(map[string]float64, len(f.Values))
		for k, v := range f.Values {
			cp.Values[k] = v
		}
	}
	return cp
}

func cloneFaults(f domain.FaultRelations) domain.FaultRelations {
	cp := domain.FaultRelations{Series: append([]string(nil), f.Series...)}
	if f.Matrix != nil {
		cp.Matrix = make([][]bool, len(f.Matrix))
		for i, row := range f.Matrix {
			cp.Matrix[i] = append([]bool(nil), row...)
		}
	}
	return cp
}

func cloneGrid(g domain.Grid) domain.Grid {
	cp := g
	cp.Points = append([][3]float64(nil), g.Points...)
	return cp
}

func cloneStructure(s domain.Structure) domain.Structure {
	cp := s
	cp.LenFormationsI = cloneCounts(s.LenFormationsI)
	cp.LenFormationsO = cloneCounts(s.LenFormationsO)
	cp.LenSeriesI = append([]int(nil), s.LenSeriesI...)
	cp.LenSeriesO = append([]int(nil), s.LenSeriesO...)
	cp.FormationsPerSeries = append([]int(nil), s.FormationsPerSeries...)
	cp.IsFaultSeries = append([]bool(nil), s.IsFaultSeries...)
	return cp
}

func cloneCounts(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	cp := make(map[string]int, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func cloneAdditional(a domain.AdditionalData) domain.AdditionalData {
	cp := a
	cp.Structure = cloneStructure(a.Structure)
	cp.Kriging.DriftEquations = append([]int(nil), a.Kriging.DriftEquations...)
	cp.KrigingOverrides = cloneOverrides(a.KrigingOverrides)
	cp.Options.Verbosity = append([]string(nil), a.Options.Verbosity...)
	return cp
}

func cloneOverrides(o domain.KrigingOverrides) domain.KrigingOverrides {
	cp := domain.KrigingOverrides{DriftEquations: append([]int(nil), o.DriftEquations...)}
	cp.Range = cloneFloat(o.Range)
	cp.CovarianceAtZero = cloneFloat(o.CovarianceAtZero)
	cp.NuggetScalar = cloneFloat(o.NuggetScalar)
	cp.NuggetGradient = cloneFloat(o.NuggetGradient)
	return cp
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func cloneSolution(s domain.Solution) domain.Solution {
	cp := s
	cp.Lithology = append([]float64(nil), s.Lithology...)
	cp.ScalarField = append([]float64(nil), s.ScalarField...)
	if s.SeriesFields != nil {
		cp.SeriesFields = make([][]float64, len(s.SeriesFields))
		for i, field := range s.SeriesFields {
			cp.SeriesFields[i] = append([]float64(nil), field...)
		}
	}
	if s.Meshes != nil {
		cp.Meshes = make([]domain.SurfaceMesh, len(s.Meshes))
		for i, m := range s.Meshes {
			cp.Meshes[i] = domain.SurfaceMesh{
				Formation: m.Formation,
				Vertices:  append([][3]float64(nil), m.Vertices...),
				Simplices: append([][3]int(nil), m.Simplices...),
			}
		}
	}
	return cp
}

func (s modelState) hasData() bool {
	return len(s.interfaces) > 0 || len(s.orientations) > 0 || len(s.formations) > 0 || s.grid.Len() > 0
}

func (s modelState) findFormation(name string) (domain.Formation, bool) {
	for _, f := range s.formations {
		if f.Name == name {
			return f, true
		}
	}
	return domain.Formation{}, false
}

func (s modelState) findSeries(name string) (domain.Series, bool) {
	for _, sr := range s.series {
		if sr.Name == name {
			return sr, true
		}
	}
	return domain.Series{}, false
}

func snapshotFromState(s modelState) domain.Snapshot {
	cp := s.clone()
	return domain.Snapshot{
		SchemaVersion:  domain.SnapshotSchemaVersion,
		Project:        cp.project,
		Revision:       cp.revision,
		Pipeline:       cp.pipeline,
		Series:         cp.series,
		Formations:     cp.formations,
		Faults:         cp.faults,
		Interfaces:     cp.interfaces,
		Orientations:   cp.orientations,
		NextInterface:  cp.nextInterface,
		NextOrient:     cp.nextOrientation,
		Grid:           cp.grid,
		AdditionalData: cp.additional,
		Solution:       cp.solution,
	}
}

func stateFromSnapshot(snap domain.Snapshot) modelState {
	st := modelState{
		project:         snap.Project,
		revision:        snap.Revision,
		pipeline:        snap.Pipeline,
		series:          snap.Series,
		formations:      snap.Formations,
		faults:          snap.Faults,
		interfaces:      snap.Interfaces,
		orientations:    snap.Orientations,
		nextInterface:   snap.NextInterface,
		nextOrientation: snap.NextOrient,
		grid:            snap.Grid,
		additional:      snap.AdditionalData,
		solution:        snap.Solution,
	}
	if st.project == "" {
		st.project = defaultProject
	}
	if st.pipeline == "" {
		st.pipeline = domain.StateUninitialized
	}
	if st.additional.Options.Output == "" {
		st.additional.Options = domain.DefaultOptions()
	}
	return st.clone()
}
