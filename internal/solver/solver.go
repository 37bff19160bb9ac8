// Package solver defines the collaborator contract used by the computation
// pipeline: a layout is built into a graph, the graph is compiled into a
// solver, and the solver maps assembled input to lithology and scalar fields.
package solver

import (
	"context"
	"encoding/json"

	"geomodel/pkg/domain"
)

// GraphBuilder constructs the computation graph for a layout.
type GraphBuilder interface {
	BuildGraph(ctx context.Context, layout domain.SolverLayout) (Graph, error)
}

// Graph is an uncompiled computation.
type Graph interface {
	Compile(ctx context.Context) (Solver, error)
}

// Solver evaluates assembled input. Implementations must be deterministic
// and safe for concurrent use once compiled.
type Solver interface {
	Solve(ctx context.Context, in domain.SolverInput) (domain.SolverOutput, error)
}

// BuilderFunc adapts a function to GraphBuilder.
type BuilderFunc func(ctx context.Context, layout domain.SolverLayout) (Graph, error)

// BuildGraph implements GraphBuilder.
func (f BuilderFunc) BuildGraph(ctx context.Context, layout domain.SolverLayout) (Graph, error) {
	return f(ctx, layout)
}

// SolveFunc adapts a function to Solver.
type SolveFunc func(ctx context.Context, in domain.SolverInput) (domain.SolverOutput, error)

// Solve implements Solver.
func (f SolveFunc) Solve(ctx context.Context, in domain.SolverInput) (domain.SolverOutput, error) {
	return f(ctx, in)
}

// Static returns a builder whose graphs always compile to s.
func Static(s Solver) GraphBuilder {
	return BuilderFunc(func(context.Context, domain.SolverLayout) (Graph, error) {
		return staticGraph{solver: s}, nil
	})
}

type staticGraph struct {
	solver Solver
}

func (g staticGraph) Compile(context.Context) (Solver, error) {
	return g.solver, nil
}

// Signature returns a stable key for layout. Equal layouts share a compiled
// solver.
func Signature(layout domain.SolverLayout) (string, error) {
	data, err := json.Marshal(layout)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
