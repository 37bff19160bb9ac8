package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"geomodel/pkg/domain"
)

// MemoryStore provides an in-memory transactional store for a single model.
// When a persister is attached every committed transaction is written through.
type MemoryStore struct {
	mu        sync.RWMutex
	state     modelState
	engine    *RulesEngine
	nowFn     func() time.Time
	persister domain.SnapshotPersister
}

// NewMemoryStore constructs an in-memory store backed by the provided rules engine.
func NewMemoryStore(engine *RulesEngine) *MemoryStore {
	if engine == nil {
		engine = NewRulesEngine()
	}
	return &MemoryStore{
		state:  newModelState(""),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// NewPersistentStore constructs a store hydrated from persister. Subsequent
// commits are saved through it.
func NewPersistentStore(ctx context.Context, engine *RulesEngine, persister domain.SnapshotPersister) (*MemoryStore, error) {
	s := NewMemoryStore(engine)
	if persister == nil {
		return s, nil
	}
	snap, ok, err := persister.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if ok {
		state, err := restoreState(snap)
		if err != nil {
			return nil, fmt.Errorf("restore snapshot: %w", err)
		}
		s.state = state
	}
	s.persister = persister
	return s, nil
}

// Close releases the attached persister, if any.
func (s *MemoryStore) Close() error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Close()
}

// RulesEngine exposes the engine evaluated on commit.
func (s *MemoryStore) RulesEngine() *RulesEngine {
	return s.engine
}

// Revision returns the committed data revision.
func (s *MemoryStore) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.revision
}

// ExportState returns a deep copy of the committed state as a snapshot.
func (s *MemoryStore) ExportState() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromState(s.state)
}

func (s *MemoryStore) snapshotState() modelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// setProject renames the model. The name is not model data: it does not
// advance the revision and reaches the persister with the next commit.
func (s *MemoryStore) setProject(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" {
		s.state.project = name
	}
}

// Transaction represents a mutation set applied to a copy of the store state.
type Transaction struct {
	store    *MemoryStore
	state    modelState
	changes  []Change
	now      time.Time
	pipeline PipelineState
}

// TransactionView exposes a read-only snapshot of model state.
type TransactionView struct {
	state *modelState
}

func newTransactionView(state *modelState) TransactionView {
	return TransactionView{state: state}
}

// ListSeries returns the series catalog ordered by rank.
func (v TransactionView) ListSeries() []domain.Series {
	return append([]domain.Series(nil), v.state.series...)
}

// ListFormations returns the formation registry ordered by id.
func (v TransactionView) ListFormations() []domain.Formation {
	out := make([]domain.Formation, len(v.state.formations))
	for i, f := range v.state.formations {
		out[i] = cloneFormation(f)
	}
	return out
}

// ListInterfaces returns interface rows in canonical order.
func (v TransactionView) ListInterfaces() []domain.InterfacePoint {
	return append([]domain.InterfacePoint(nil), v.state.interfaces...)
}

// ListOrientations returns orientation rows in canonical order.
func (v TransactionView) ListOrientations() []domain.Orientation {
	return append([]domain.Orientation(nil), v.state.orientations...)
}

// FindFormation retrieves a formation by name.
func (v TransactionView) FindFormation(name string) (domain.Formation, bool) {
	f, ok := v.state.findFormation(name)
	if !ok {
		return domain.Formation{}, false
	}
	return cloneFormation(f), true
}

// FaultRelations returns the offset matrix.
func (v TransactionView) FaultRelations() domain.FaultRelations {
	return cloneFaults(v.state.faults)
}

// AdditionalData returns the derived solver settings.
func (v TransactionView) AdditionalData() domain.AdditionalData {
	return cloneAdditional(v.state.additional)
}

// Grid returns the evaluation grid.
func (v TransactionView) Grid() domain.Grid {
	return cloneGrid(v.state.grid)
}

// Solution returns the last committed solution.
func (v TransactionView) Solution() (domain.Solution, bool) {
	if v.state.solution == nil {
		return domain.Solution{}, false
	}
	return cloneSolution(*v.state.solution), true
}

// Pipeline returns the current pipeline state.
func (v TransactionView) Pipeline() PipelineState {
	return v.state.pipeline
}

// Revision returns the data revision.
func (v TransactionView) Revision() uint64 {
	return v.state.revision
}

// Project returns the model name.
func (v TransactionView) Project() string {
	return v.state.project
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Data mutations are followed by the cascade that re-derives foreign keys,
// canonical row order and additional data before rules are evaluated. Nothing
// is committed when fn, the cascade or a blocking rule fails.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx *Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	mutated := tx.dataChanged()
	if mutated {
		if err := tx.cascade(); err != nil {
			return Result{}, err
		}
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, RuleViolationError{Result: res}
		}
	}

	switch {
	case mutated:
		tx.state.revision++
		if tx.state.hasData() {
			tx.state.pipeline = domain.StateDataLoaded
		} else {
			tx.state.pipeline = domain.StateUninitialized
		}
	case tx.pipeline != "":
		tx.state.pipeline = tx.pipeline
	}

	if s.persister != nil && (mutated || tx.pipeline != "") {
		if err := s.persister.SaveSnapshot(ctx, snapshotFromState(tx.state)); err != nil {
			return Result{}, fmt.Errorf("persist snapshot: %w", err)
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *MemoryStore) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *Transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Changes returns the changes recorded so far.
func (tx *Transaction) Changes() []Change {
	return append([]Change(nil), tx.changes...)
}

// View exposes the in-flight state.
func (tx *Transaction) View() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *Transaction) dataChanged() bool {
	for _, c := range tx.changes {
		if c.Entity != EntitySolution {
			return true
		}
	}
	return false
}

// advancePipeline records a pipeline transition without touching model data.
// It fails with ErrStaleModel when the data revision moved on.
func (tx *Transaction) advancePipeline(revision uint64, state PipelineState) error {
	if tx.state.revision != revision {
		return domain.ErrStaleModel
	}
	tx.pipeline = state
	return nil
}

// commitSolution stores sol as the current solution of revision.
func (tx *Transaction) commitSolution(revision uint64, sol domain.Solution) error {
	if err := tx.advancePipeline(revision, domain.StateSolved); err != nil {
		return err
	}
	stored := cloneSolution(sol)
	tx.state.solution = &stored
	tx.recordChange(Change{Entity: EntitySolution, Action: ActionReplace, Detail: sol.ID})
	return nil
}
