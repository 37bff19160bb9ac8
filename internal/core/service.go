package core

import (
	"context"
	"fmt"

	"geomodel/internal/mesh"
	"geomodel/internal/solver"
	"geomodel/internal/solver/covariance"
	"geomodel/pkg/domain"
)

// Service is the model composition root. Every mutation runs as one store
// transaction, so readers only observe fully cascaded state.
type Service struct {
	store     *MemoryStore
	builder   solver.GraphBuilder
	extractor mesh.Extractor
	cache     *solverCache
	cacheSize int
	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer
	audit     AuditRecorder
	clock     Clock
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(a AuditRecorder) Option {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithGraphBuilder sets the solver collaborator.
func WithGraphBuilder(b solver.GraphBuilder) Option {
	return func(s *Service) {
		if b != nil {
			s.builder = b
		}
	}
}

// WithMeshExtractor sets the mesh collaborator. A nil extractor disables
// mesh extraction.
func WithMeshExtractor(e mesh.Extractor) Option {
	return func(s *Service) {
		s.extractor = e
	}
}

// WithSolverCacheSize bounds the number of compiled solvers kept.
func WithSolverCacheSize(n int) Option {
	return func(s *Service) {
		s.cacheSize = n
	}
}

// WithProject names the model. It is a construction option: the rename
// happens outside any transaction and is persisted with the next commit.
func WithProject(name string) Option {
	return func(s *Service) {
		s.store.setProject(name)
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store *MemoryStore, opts ...Option) *Service {
	if store == nil {
		store = NewMemoryStore(NewDefaultRulesEngine())
	}
	s := &Service{
		store:     store,
		builder:   covariance.Builder{},
		extractor: mesh.VoxelExtractor{},
		cacheSize: defaultSolverCacheSize,
		logger:    noopLogger{},
		metrics:   noopMetrics{},
		tracer:    noopTracer{},
		audit:     noopAudit{},
		clock:     systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = newSolverCache(s.cacheSize)
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(NewMemoryStore(engine), opts...)
}

// Store returns the underlying store.
func (s *Service) Store() *MemoryStore {
	return s.store
}

func (s *Service) run(ctx context.Context, op string, entity EntityType, action Action, fn func(ctx context.Context) (Result, error)) (Result, error) {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	res, err := fn(ctx)
	span.End(err)
	duration := s.clock.Now().Sub(start)
	s.metrics.Observe(ctx, op, err == nil, duration)

	entry := AuditEntry{
		Operation: op,
		Entity:    entity,
		Action:    action,
		Revision:  s.store.Revision(),
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.logger.Error("geomodel operation failed", "operation", op, "error", err)
	} else {
		s.logger.Debug("geomodel operation completed", "operation", op, "duration", duration)
	}
	for _, v := range res.Violations {
		if v.Severity == SeverityWarn {
			s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "message", v.Message)
		}
	}
	s.audit.Record(ctx, entry)
	return res, err
}

func (s *Service) mutate(ctx context.Context, op string, entity EntityType, action Action, fn func(tx *Transaction) error) (Result, error) {
	return s.run(ctx, op, entity, action, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, fn)
	})
}

// SetSeries replaces the series catalog and formation mapping from ordered
// definitions.
func (s *Service) SetSeries(ctx context.Context, defs []domain.SeriesDefinition) (Result, error) {
	return s.mutate(ctx, "set_series", EntitySeries, ActionReplace, func(tx *Transaction) error {
		return tx.SetSeries(defs)
	})
}

// SetSeriesOrder replaces the series catalog; order[i] is the rank of names[i].
func (s *Service) SetSeriesOrder(ctx context.Context, names []string, order []int) (Result, error) {
	return s.mutate(ctx, "set_series_order", EntitySeries, ActionReplace, func(tx *Transaction) error {
		return tx.SetSeriesOrder(names, order)
	})
}

// SetFormationNames registers unknown formations.
func (s *Service) SetFormationNames(ctx context.Context, names []string) (Result, error) {
	return s.mutate(ctx, "set_formation_names", EntityFormation, ActionCreate, func(tx *Transaction) error {
		return tx.SetFormationNames(names)
	})
}

// SetFormationOrder assigns formation ids following orderedNames.
func (s *Service) SetFormationOrder(ctx context.Context, orderedNames []string) (Result, error) {
	return s.mutate(ctx, "set_formation_order", EntityFormation, ActionUpdate, func(tx *Transaction) error {
		return tx.SetFormationOrder(orderedNames)
	})
}

// SetFormationValues stores property values per formation in id order.
func (s *Service) SetFormationValues(ctx context.Context, properties []string, values [][]float64) (Result, error) {
	return s.mutate(ctx, "set_formation_values", EntityFormation, ActionUpdate, func(tx *Transaction) error {
		return tx.SetFormationValues(properties, values)
	})
}

// AddBasement registers the basement formation and series.
func (s *Service) AddBasement(ctx context.Context) (Result, error) {
	return s.mutate(ctx, "add_basement", EntityFormation, ActionCreate, func(tx *Transaction) error {
		return tx.AddBasement()
	})
}

// SetIsFault flags exactly the named formations as faults.
func (s *Service) SetIsFault(ctx context.Context, names []string) (Result, error) {
	return s.mutate(ctx, "set_is_fault", EntityFault, ActionUpdate, func(tx *Transaction) error {
		return tx.SetIsFault(names)
	})
}

// SetFaultRelations replaces the series offset matrix.
func (s *Service) SetFaultRelations(ctx context.Context, matrix [][]bool) (Result, error) {
	return s.mutate(ctx, "set_fault_relations", EntityFault, ActionReplace, func(tx *Transaction) error {
		return tx.SetFaultRelations(matrix)
	})
}

// SetValuesToDefault flags fault formations by name and adds the basement.
// An existing basement is logged and ignored.
func (s *Service) SetValuesToDefault(ctx context.Context) (Result, error) {
	var existed bool
	res, err := s.mutate(ctx, "set_values_to_default", EntityFormation, ActionUpdate, func(tx *Transaction) error {
		var err error
		existed, err = tx.SetValuesToDefault()
		return err
	})
	if err == nil && existed {
		s.logger.Warn("basement already registered; ignoring", "formation", domain.BasementFormation)
	}
	return res, err
}

// SetInterfaces replaces, or appends to, the interface table.
func (s *Service) SetInterfaces(ctx context.Context, rows []domain.InterfacePoint, appendRows bool) (Result, error) {
	return s.mutate(ctx, "set_interfaces", EntityInterface, ActionReplace, func(tx *Transaction) error {
		return tx.SetInterfaces(rows, appendRows)
	})
}

// SetOrientations replaces, or appends to, the orientation table.
func (s *Service) SetOrientations(ctx context.Context, rows []domain.Orientation, appendRows bool) (Result, error) {
	return s.mutate(ctx, "set_orientations", EntityOrientation, ActionReplace, func(tx *Transaction) error {
		return tx.SetOrientations(rows, appendRows)
	})
}

// DeleteInterfaces removes interface rows by index.
func (s *Service) DeleteInterfaces(ctx context.Context, indices []int) (Result, error) {
	return s.mutate(ctx, "delete_interfaces", EntityInterface, ActionDelete, func(tx *Transaction) error {
		return tx.DeleteInterfaces(indices)
	})
}

// DeleteOrientations removes orientation rows by index.
func (s *Service) DeleteOrientations(ctx context.Context, indices []int) (Result, error) {
	return s.mutate(ctx, "delete_orientations", EntityOrientation, ActionDelete, func(tx *Transaction) error {
		return tx.DeleteOrientations(indices)
	})
}

// CreateOrientationFromPoints appends the orientation of the plane fitted
// through the referenced interface points and returns the committed row.
func (s *Service) CreateOrientationFromPoints(ctx context.Context, indices []int) (domain.Orientation, Result, error) {
	var index int
	res, err := s.mutate(ctx, "create_orientation_from_points", EntityOrientation, ActionCreate, func(tx *Transaction) error {
		row, err := tx.CreateOrientationFromPoints(indices)
		index = row.Index
		return err
	})
	if err != nil {
		return domain.Orientation{}, res, err
	}
	rows := s.orientationsByIndex(ctx, []int{index})
	return rows[0], res, nil
}

// CreateOrientationsFromPoints creates one orientation per group, all or none.
func (s *Service) CreateOrientationsFromPoints(ctx context.Context, groups [][]int) ([]domain.Orientation, Result, error) {
	var indices []int
	res, err := s.mutate(ctx, "create_orientations_from_points", EntityOrientation, ActionCreate, func(tx *Transaction) error {
		rows, err := tx.CreateOrientationsFromPoints(groups)
		for _, row := range rows {
			indices = append(indices, row.Index)
		}
		return err
	})
	if err != nil {
		return nil, res, err
	}
	return s.orientationsByIndex(ctx, indices), res, nil
}

func (s *Service) orientationsByIndex(ctx context.Context, indices []int) []domain.Orientation {
	out := make([]domain.Orientation, len(indices))
	_ = s.store.View(ctx, func(v TransactionView) error {
		byIndex := make(map[int]domain.Orientation, len(v.state.orientations))
		for _, o := range v.state.orientations {
			byIndex[o.Index] = o
		}
		for i, idx := range indices {
			out[i] = byIndex[idx]
		}
		return nil
	})
	return out
}

// UpdateStructure returns the point counts and fails with
// InsufficientDataError when a formation cannot support a surface.
func (s *Service) UpdateStructure(ctx context.Context) (domain.Structure, error) {
	var st domain.Structure
	_, err := s.run(ctx, "update_structure", EntityAdditionalData, ActionUpdate, func(ctx context.Context) (Result, error) {
		return Result{}, s.store.View(ctx, func(v TransactionView) error {
			v.state.updateStructure()
			st = cloneStructure(v.state.additional.Structure)
			return v.state.validateStructure()
		})
	})
	return st, err
}

// UpdateRescaling pins the rescaling factor and centers. With both nil the
// defaults derived from the data are restored. A nil factor with explicit
// centers keeps the default factor.
func (s *Service) UpdateRescaling(ctx context.Context, factor *float64, centers *[3]float64) (domain.Rescaling, Result, error) {
	var out domain.Rescaling
	res, err := s.mutate(ctx, "update_rescaling", EntityAdditionalData, ActionUpdate, func(tx *Transaction) error {
		if factor == nil && centers == nil {
			tx.ResetRescaling()
			return nil
		}
		f := tx.state.defaultRescaling().Factor
		if factor != nil {
			f = *factor
		}
		return tx.SetRescaling(f, centers)
	})
	if err == nil {
		out = s.AdditionalData(ctx).Rescaling
	}
	return out, res, err
}

// UpdateDefaultKriging returns the kriging parameters derived for the
// current data, with user overrides applied.
func (s *Service) UpdateDefaultKriging(ctx context.Context) (domain.Kriging, error) {
	var k domain.Kriging
	_, err := s.run(ctx, "update_default_kriging", EntityAdditionalData, ActionUpdate, func(ctx context.Context) (Result, error) {
		return Result{}, s.store.View(ctx, func(v TransactionView) error {
			v.state.updateAdditionalData()
			k = v.state.additional.Kriging
			return nil
		})
	})
	return k, err
}

// SetKrigingParameters replaces the kriging overrides.
func (s *Service) SetKrigingParameters(ctx context.Context, overrides domain.KrigingOverrides) (Result, error) {
	return s.mutate(ctx, "set_kriging_parameters", EntityAdditionalData, ActionUpdate, func(tx *Transaction) error {
		return tx.SetKrigingParameters(overrides)
	})
}

// SetInterpolationOptions replaces the solver options.
func (s *Service) SetInterpolationOptions(ctx context.Context, opts domain.Options) (Result, error) {
	return s.mutate(ctx, "set_interpolation_options", EntityAdditionalData, ActionUpdate, func(tx *Transaction) error {
		return tx.SetInterpolationOptions(opts)
	})
}

// SetRegularGrid replaces the grid with a regular lattice.
func (s *Service) SetRegularGrid(ctx context.Context, extent [6]float64, resolution [3]int) (Result, error) {
	return s.mutate(ctx, "set_regular_grid", EntityGrid, ActionReplace, func(tx *Transaction) error {
		grid, err := RegularGrid(extent, resolution)
		if err != nil {
			return err
		}
		tx.SetGrid(grid)
		return nil
	})
}

// SetCustomGrid replaces the grid with an arbitrary point set.
func (s *Service) SetCustomGrid(ctx context.Context, points [][3]float64) (Result, error) {
	return s.mutate(ctx, "set_custom_grid", EntityGrid, ActionReplace, func(tx *Transaction) error {
		grid, err := CustomGrid(points)
		if err != nil {
			return err
		}
		tx.SetGrid(grid)
		return nil
	})
}

// SelectSeries returns a detached in-memory service holding only the named
// series, their formations and observations. The basement is carried over
// when present.
func (s *Service) SelectSeries(ctx context.Context, names []string) (*Service, error) {
	var selected domain.Snapshot
	_, err := s.run(ctx, "select_series", EntitySeries, ActionUpdate, func(ctx context.Context) (Result, error) {
		return Result{}, s.store.View(ctx, func(v TransactionView) error {
			snap, err := selectSeries(*v.state, names)
			selected = snap
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	state, err := restoreState(selected)
	if err != nil {
		return nil, err
	}
	store := NewMemoryStore(s.store.RulesEngine())
	store.state = state
	return NewService(store,
		WithLogger(s.logger),
		WithMetricsRecorder(s.metrics),
		WithTracer(s.tracer),
		WithAuditRecorder(s.audit),
		WithClock(s.clock),
		WithGraphBuilder(s.builder),
		WithMeshExtractor(s.extractor),
		WithSolverCacheSize(s.cacheSize),
	), nil
}

func selectSeries(st modelState, names []string) (domain.Snapshot, error) {
	keep := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := st.findSeries(name); !ok {
			return domain.Snapshot{}, domain.UnknownSeriesError{Name: name}
		}
		keep[name] = true
	}
	keep[domain.BasementSeries] = true

	snap := snapshotFromState(st)
	snap.Revision = 0
	snap.Solution = nil
	snap.Series = nil
	for _, sr := range st.series {
		if keep[sr.Name] {
			sr.Order = len(snap.Series) + 1
			snap.Series = append(snap.Series, sr)
		}
	}
	snap.Formations = nil
	formations := make(map[string]bool)
	for _, f := range st.formations {
		if keep[f.Series] {
			f.ID = len(snap.Formations) + 1
			snap.Formations = append(snap.Formations, cloneFormation(f))
			formations[f.Name] = true
		}
	}
	snap.Interfaces = nil
	for _, p := range st.interfaces {
		if formations[p.Formation] {
			snap.Interfaces = append(snap.Interfaces, p)
		}
	}
	snap.Orientations = nil
	for _, o := range st.orientations {
		if formations[o.Formation] {
			snap.Orientations = append(snap.Orientations, o)
		}
	}
	snap.AdditionalData.KrigingOverrides.DriftEquations = nil
	return snap, nil
}

// restoreState rebuilds a committed state from a snapshot and re-derives
// everything the cascade owns.
func restoreState(snap domain.Snapshot) (modelState, error) {
	if snap.SchemaVersion > domain.SnapshotSchemaVersion {
		return modelState{}, fmt.Errorf("snapshot schema %d is newer than supported %d", snap.SchemaVersion, domain.SnapshotSchemaVersion)
	}
	st := stateFromSnapshot(snap)
	if err := st.checkTaxonomy(); err != nil {
		return modelState{}, err
	}
	st.reindexFaults()
	if err := st.mapForeignKeys(); err != nil {
		return modelState{}, err
	}
	st.sortTables()
	st.updateAdditionalData()
	switch {
	case !st.hasData():
		st.pipeline = domain.StateUninitialized
	case st.pipeline == domain.StateSolved && st.solution != nil:
	default:
		st.pipeline = domain.StateDataLoaded
	}
	return st, nil
}

// Project returns the model name.
func (s *Service) Project(ctx context.Context) string {
	var name string
	_ = s.store.View(ctx, func(v TransactionView) error {
		name = v.Project()
		return nil
	})
	return name
}

// Series returns the series catalog in rank order.
func (s *Service) Series(ctx context.Context) []domain.Series {
	var out []domain.Series
	_ = s.store.View(ctx, func(v TransactionView) error {
		out = v.ListSeries()
		return nil
	})
	return out
}

// Formations returns the formation registry in id order.
func (s *Service) Formations(ctx context.Context) []domain.Formation {
	var out []domain.Formation
	_ = s.store.View(ctx, func(v TransactionView) error {
		out = v.ListFormations()
		return nil
	})
	return out
}

// Faults returns the fault relation matrix.
func (s *Service) Faults(ctx context.Context) domain.FaultRelations {
	var out domain.FaultRelations
	_ = s.store.View(ctx, func(v TransactionView) error {
		out = v.FaultRelations()
		return nil
	})
	return out
}

// Interfaces returns the interface table in canonical order.
func (s *Service) Interfaces(ctx context.Context) []domain.InterfacePoint {
	var out []domain.InterfacePoint
	_ = s.store.View(ctx, func(v TransactionView) error {
		out = v.ListInterfaces()
		return nil
	})
	return out
}

// Orientations returns the orientation table in canonical order.
func (s *Service) Orientations(ctx context.Context) []domain.Orientation {
	var out []domain.Orientation
	_ = s.store.View(ctx, func(v TransactionView) error {
		out = v.ListOrientations()
		return nil
	})
	return out
}

// Grid returns the evaluation grid.
func (s *Service) Grid(ctx context.Context) domain.Grid {
	var out domain.Grid
	_ = s.store.View(ctx, func(v TransactionView) error {
		out = v.Grid()
		return nil
	})
	return out
}

// AdditionalData returns structure, rescaling, kriging and options.
func (s *Service) AdditionalData(ctx context.Context) domain.AdditionalData {
	var out domain.AdditionalData
	_ = s.store.View(ctx, func(v TransactionView) error {
		out = v.AdditionalData()
		return nil
	})
	return out
}

// Solution returns the last committed solution.
func (s *Service) Solution(ctx context.Context) (domain.Solution, bool) {
	var (
		out domain.Solution
		ok  bool
	)
	_ = s.store.View(ctx, func(v TransactionView) error {
		out, ok = v.Solution()
		return nil
	})
	return out, ok
}

// Surfaces returns the meshes of the last committed solution.
func (s *Service) Surfaces(ctx context.Context) []domain.SurfaceMesh {
	sol, ok := s.Solution(ctx)
	if !ok {
		return nil
	}
	return sol.Meshes
}

// PipelineState returns how far the model has progressed.
func (s *Service) PipelineState(ctx context.Context) PipelineState {
	var out PipelineState
	_ = s.store.View(ctx, func(v TransactionView) error {
		out = v.Pipeline()
		return nil
	})
	return out
}

// Revision returns the committed data revision.
func (s *Service) Revision() uint64 {
	return s.store.Revision()
}
