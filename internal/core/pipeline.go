package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"geomodel/pkg/domain"
)

// ComputeOptions tunes a pipeline run.
type ComputeOptions struct {
	// Mesh requests surface extraction. Only regular grids are meshed.
	Mesh bool
}

// pipelineRun drives one pass through the pipeline states on a private copy
// of the model taken at a fixed revision.
type pipelineRun struct {
	svc      *Service
	work     modelState
	revision uint64
	persist  bool
}

// ComputeModel runs the full pipeline on the stored grid and commits the
// solution. Each reached state is recorded on the model; a failure leaves the
// model at the last state reached. If the model changes while solving, the
// result is discarded with ErrStaleModel.
func (s *Service) ComputeModel(ctx context.Context, opts ComputeOptions) (domain.Solution, error) {
	var sol domain.Solution
	_, err := s.run(ctx, "compute_model", EntitySolution, ActionReplace, func(ctx context.Context) (Result, error) {
		work := s.store.snapshotState()
		p := &pipelineRun{svc: s, work: work, revision: work.revision, persist: true}
		out, err := p.execute(ctx, work.grid, opts.Mesh)
		if err != nil {
			return Result{}, err
		}
		res, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
			return tx.commitSolution(p.revision, out)
		})
		if err != nil {
			return res, err
		}
		sol = out
		s.logger.Info("pipeline transition", "state", domain.StateSolved, "revision", p.revision)
		return res, nil
	})
	return sol, err
}

// ComputeModelAt evaluates the model at points without touching the stored
// grid, solution or pipeline state. Points are rescaled with the model's
// current rescaling.
func (s *Service) ComputeModelAt(ctx context.Context, points [][3]float64) (domain.Solution, error) {
	var sol domain.Solution
	_, err := s.run(ctx, "compute_model_at", EntitySolution, ActionCreate, func(ctx context.Context) (Result, error) {
		grid, err := CustomGrid(points)
		if err != nil {
			return Result{}, err
		}
		work := s.store.snapshotState()
		p := &pipelineRun{svc: s, work: work, revision: work.revision}
		out, err := p.execute(ctx, grid, false)
		if err != nil {
			return Result{}, err
		}
		sol = out
		return Result{}, nil
	})
	return sol, err
}

func (p *pipelineRun) execute(ctx context.Context, grid domain.Grid, wantMesh bool) (domain.Solution, error) {
	if len(p.work.interfaces) == 0 {
		return domain.Solution{}, domain.InvalidInputError{Field: "interfaces", Reason: "model has no interface points"}
	}
	if grid.Len() == 0 {
		return domain.Solution{}, domain.ErrNoGrid
	}
	work := &p.work

	if err := p.stage(ctx, domain.StateNormalized, func(context.Context) error {
		work.updateRescaling()
		work.sortTables()
		return nil
	}); err != nil {
		return domain.Solution{}, err
	}

	if err := p.stage(ctx, domain.StateStructureValid, func(context.Context) error {
		work.updateStructure()
		if err := work.validateStructure(); err != nil {
			return err
		}
		work.updateDefaultKriging()
		return nil
	}); err != nil {
		return domain.Solution{}, err
	}

	layout := solverLayout(work)
	input := assembleInput(work, grid)

	compiled, err := p.svc.buildAndCompile(ctx, layout, p.stage)
	if err != nil {
		return domain.Solution{}, err
	}

	var sol domain.Solution
	err = p.stage(ctx, domain.StateSolved, func(ctx context.Context) error {
		out, err := compiled.Solve(ctx, input)
		if err != nil {
			return domain.SolverError{Stage: domain.StateSolved, Err: err}
		}
		if len(out.Lithology) != grid.Len() {
			return domain.SolverError{Stage: domain.StateSolved, Err: fmt.Errorf("lithology has %d values for %d grid points", len(out.Lithology), grid.Len())}
		}
		if len(out.ScalarField) != 0 && len(out.ScalarField) != grid.Len() {
			return domain.SolverError{Stage: domain.StateSolved, Err: fmt.Errorf("scalar field has %d values for %d grid points", len(out.ScalarField), grid.Len())}
		}
		sol = domain.Solution{
			ID:           uuid.NewString(),
			Revision:     p.revision,
			CreatedAt:    p.svc.clock.Now(),
			GridKind:     grid.Kind,
			Lithology:    out.Lithology,
			ScalarField:  out.ScalarField,
			SeriesFields: out.SeriesFields,
		}
		if !wantMesh || p.svc.extractor == nil {
			return nil
		}
		if grid.Kind != domain.GridRegular {
			p.svc.logger.Warn("mesh extraction skipped", "grid", grid.Kind)
			return nil
		}
		meshes, err := p.svc.extractor.Extract(ctx, grid, out.Lithology, work.formations)
		if err != nil {
			return fmt.Errorf("extract meshes: %w", err)
		}
		sol.Meshes = meshes
		return nil
	})
	if err != nil {
		return domain.Solution{}, err
	}
	return sol, nil
}

// stage runs fn as the transition into state, tracing it and recording the
// new state on the model when the run is persistent. The final Solved state
// is committed together with the solution instead.
func (p *pipelineRun) stage(ctx context.Context, state PipelineState, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := p.svc.tracer.Start(ctx, "pipeline."+string(state))
	err := fn(ctx)
	span.End(err)
	if err != nil {
		var solverErr domain.SolverError
		if errors.As(err, &solverErr) {
			p.svc.logger.Error("solver failed", "state", state, "revision", p.revision, "error", err)
		}
		return err
	}
	if !p.persist || state == domain.StateSolved {
		return nil
	}
	if _, err := p.svc.store.RunInTransaction(ctx, func(tx *Transaction) error {
		return tx.advancePipeline(p.revision, state)
	}); err != nil {
		return err
	}
	p.svc.logger.Info("pipeline transition", "state", state, "revision", p.revision)
	return nil
}

func solverLayout(st *modelState) domain.SolverLayout {
	structure := st.additional.Structure
	return domain.SolverLayout{
		Options:             st.additional.Options,
		NumberOfSeries:      structure.NumberOfSeries,
		FormationsPerSeries: append([]int(nil), structure.FormationsPerSeries...),
		IsFaultSeries:       append([]bool(nil), structure.IsFaultSeries...),
		DriftEquations:      append([]int(nil), st.additional.Kriging.DriftEquations...),
		NumberOfProperties:  len(propertyNames(st.formations)),
	}
}

// assembleInput lays the normalised model out in solver order. Interface
// rows are already grouped by series rank and formation id; the first row of
// each formation is its reference point.
func assembleInput(st *modelState, grid domain.Grid) domain.SolverInput {
	r := st.additional.Rescaling
	in := domain.SolverInput{
		Kriging:     st.additional.Kriging,
		FaultMatrix: cloneFaults(st.faults).Matrix,
		LenSeriesI:  append([]int(nil), st.additional.Structure.LenSeriesI...),
		LenSeriesO:  append([]int(nil), st.additional.Structure.LenSeriesO...),
	}
	in.Kriging.DriftEquations = append([]int(nil), st.additional.Kriging.DriftEquations...)

	refs := make(map[int][3]float64)
	for _, p := range st.interfaces {
		pt := [3]float64{p.XR, p.YR, p.ZR}
		in.SurfacePoints = append(in.SurfacePoints, pt)
		in.SurfaceFormationIDs = append(in.SurfaceFormationIDs, p.ID)
		in.SurfaceSeriesOrders = append(in.SurfaceSeriesOrders, p.OrderSeries)
		ref, ok := refs[p.ID]
		if !ok {
			refs[p.ID] = pt
			continue
		}
		in.RefPoints = append(in.RefPoints, ref)
		in.RestPoints = append(in.RestPoints, pt)
	}
	for _, o := range st.orientations {
		in.OrientationPositions = append(in.OrientationPositions, [3]float64{o.XR, o.YR, o.ZR})
		in.Gradients = append(in.Gradients, [3]float64{o.Gx, o.Gy, o.Gz})
		in.Dips = append(in.Dips, o.Dip)
		in.Azimuths = append(in.Azimuths, o.Azimuth)
		in.Polarities = append(in.Polarities, o.Polarity)
		in.OrientationSeries = append(in.OrientationSeries, o.OrderSeries)
	}

	orders := make(map[string]int, len(st.series))
	for _, sr := range st.series {
		orders[sr.Name] = sr.Order
	}
	for _, f := range st.formations {
		if f.IsBasement() {
			in.BasementID = f.ID
		}
		in.FormationIDs = append(in.FormationIDs, f.ID)
		in.FormationSeries = append(in.FormationSeries, orders[f.Series])
		if !f.IsBasement() {
			in.LenFormationsI = append(in.LenFormationsI, st.additional.Structure.LenFormationsI[f.Name])
		}
	}
	if in.BasementID == 0 {
		in.BasementID = len(st.formations) + 1
	}

	for _, name := range propertyNames(st.formations) {
		row := make([]float64, len(st.formations))
		for i, f := range st.formations {
			row[i] = f.Values[name]
		}
		in.Values = append(in.Values, row)
	}

	in.Grid = make([][3]float64, len(grid.Points))
	for i, pt := range grid.Points {
		in.Grid[i] = r.Apply(pt)
	}
	return in
}

func propertyNames(formations []domain.Formation) []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range formations {
		for name := range f.Values {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}
