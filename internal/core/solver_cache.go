package core

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"geomodel/internal/solver"
	"geomodel/pkg/domain"
)

const defaultSolverCacheSize = 8

// solverCache keeps compiled solvers keyed by layout signature so repeated
// solves of an unchanged layout skip graph construction and compilation.
type solverCache struct {
	entries *lru.Cache[string, solver.Solver]
}

func newSolverCache(size int) *solverCache {
	if size <= 0 {
		return &solverCache{}
	}
	entries, err := lru.New[string, solver.Solver](size)
	if err != nil {
		return &solverCache{}
	}
	return &solverCache{entries: entries}
}

func (c *solverCache) get(layout domain.SolverLayout) (solver.Solver, string, bool) {
	key, err := solver.Signature(layout)
	if err != nil || c.entries == nil {
		return nil, key, false
	}
	s, ok := c.entries.Get(key)
	return s, key, ok
}

func (c *solverCache) put(key string, s solver.Solver) {
	if c.entries == nil || key == "" {
		return
	}
	c.entries.Add(key, s)
}

// Len reports the number of cached solvers.
func (c *solverCache) Len() int {
	if c.entries == nil {
		return 0
	}
	return c.entries.Len()
}

// buildAndCompile returns a compiled solver for layout, reusing a cached one.
// The stage callbacks fire for both transitions even on a cache hit.
func (s *Service) buildAndCompile(ctx context.Context, layout domain.SolverLayout, stage func(ctx context.Context, state PipelineState, fn func(ctx context.Context) error) error) (solver.Solver, error) {
	cached, key, hit := s.cache.get(layout)
	var graph solver.Graph
	if err := stage(ctx, domain.StateGraphBuilt, func(ctx context.Context) error {
		if hit {
			return nil
		}
		g, err := s.builder.BuildGraph(ctx, layout)
		if err != nil {
			return domain.SolverError{Stage: domain.StateGraphBuilt, Err: err}
		}
		if g == nil {
			return domain.SolverError{Stage: domain.StateGraphBuilt, Err: fmt.Errorf("builder returned no graph")}
		}
		graph = g
		return nil
	}); err != nil {
		return nil, err
	}
	compiled := cached
	if err := stage(ctx, domain.StateCompiled, func(ctx context.Context) error {
		if hit {
			return nil
		}
		c, err := graph.Compile(ctx)
		if err != nil {
			return domain.SolverError{Stage: domain.StateCompiled, Err: err}
		}
		if c == nil {
			return domain.SolverError{Stage: domain.StateCompiled, Err: fmt.Errorf("graph compiled to no solver")}
		}
		compiled = c
		s.cache.put(key, c)
		return nil
	}); err != nil {
		return nil, err
	}
	return compiled, nil
}
