// Package covariance is a reference solver that interpolates one scalar
// field per series by dual kriging of increment constraints with the cubic
// covariance model.
//
// Interface points of the k-th surface of a series (formations ordered by
// id) are constrained to the value k, so the field grows with depth. Each
// orientation contributes two tangent constraints, plus a unit normal slope
// when the series has a single surface. Fault offsets are not modelled.
package covariance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"geomodel/internal/solver"
	"geomodel/pkg/domain"
)

// ErrSingular is returned when a series' kriging system has no unique solution.
var ErrSingular = errors.New("kriging system is singular")

// Builder builds covariance graphs. The zero value is ready to use.
type Builder struct{}

// BuildGraph implements solver.GraphBuilder.
func (Builder) BuildGraph(ctx context.Context, layout domain.SolverLayout) (solver.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if layout.NumberOfSeries < 0 || len(layout.FormationsPerSeries) != len(layout.IsFaultSeries) {
		return nil, fmt.Errorf("layout has %d formation counts for %d fault flags", len(layout.FormationsPerSeries), len(layout.IsFaultSeries))
	}
	return graph{layout: layout}, nil
}

type graph struct {
	layout domain.SolverLayout
}

func (g graph) Compile(ctx context.Context) (solver.Solver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Solver{layout: g.layout}, nil
}

// Solver evaluates series fields and lithology on a grid.
type Solver struct {
	layout domain.SolverLayout
}

// constraint is the linear functional f(a) - f(b) = value, or f(a) = value
// when anchor is set.
type constraint struct {
	a, b   [3]float64
	anchor bool
	value  float64
	nugget float64
}

type seriesField struct {
	order    int
	position int
	surfaces []int
	values   []float64
}

// Solve implements solver.Solver.
func (s *Solver) Solve(ctx context.Context, in domain.SolverInput) (domain.SolverOutput, error) {
	if in.Kriging.Range <= 0 {
		return domain.SolverOutput{}, fmt.Errorf("kriging range must be positive, got %g", in.Kriging.Range)
	}
	orders := seriesOrders(in)
	fields := make([]seriesField, 0, len(orders))
	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			return domain.SolverOutput{}, err
		}
		// Ranks are contiguous from 1, so rank-1 indexes the per-series arrays.
		field, err := s.solveSeries(in, order, order-1)
		if err != nil {
			return domain.SolverOutput{}, fmt.Errorf("series %d: %w", order, err)
		}
		fields = append(fields, field)
	}

	out := domain.SolverOutput{
		Lithology:    make([]float64, len(in.Grid)),
		ScalarField:  make([]float64, len(in.Grid)),
		SeriesFields: make([][]float64, len(fields)),
	}
	for i, f := range fields {
		out.SeriesFields[i] = f.values
	}
	for p := range in.Grid {
		out.Lithology[p] = float64(in.BasementID)
		for _, f := range fields {
			if len(f.surfaces) == 0 || s.isFault(f.position) {
				continue
			}
			v := f.values[p]
			out.ScalarField[p] = v
			if v <= float64(len(f.surfaces)) {
				k := int(math.Ceil(v))
				if k < 1 {
					k = 1
				}
				out.Lithology[p] = float64(f.surfaces[k-1])
				break
			}
		}
	}
	return out, nil
}

func (s *Solver) isFault(position int) bool {
	return position < len(s.layout.IsFaultSeries) && s.layout.IsFaultSeries[position]
}

// seriesOrders lists the distinct series ranks in ascending order.
func seriesOrders(in domain.SolverInput) []int {
	seen := make(map[int]bool)
	for _, o := range in.FormationSeries {
		seen[o] = true
	}
	for _, o := range in.SurfaceSeriesOrders {
		seen[o] = true
	}
	orders := make([]int, 0, len(seen))
	for o := range seen {
		orders = append(orders, o)
	}
	sort.Ints(orders)
	return orders
}

func (s *Solver) solveSeries(in domain.SolverInput, order, position int) (seriesField, error) {
	field := seriesField{order: order, position: position, values: make([]float64, len(in.Grid))}

	refs := make(map[int][3]float64)
	var rest []struct {
		id int
		p  [3]float64
	}
	for i, p := range in.SurfacePoints {
		if in.SurfaceSeriesOrders[i] != order {
			continue
		}
		id := in.SurfaceFormationIDs[i]
		if _, ok := refs[id]; !ok {
			refs[id] = p
			field.surfaces = append(field.surfaces, id)
			continue
		}
		rest = append(rest, struct {
			id int
			p  [3]float64
		}{id, p})
	}
	if len(field.surfaces) == 0 {
		return field, nil
	}
	sort.Ints(field.surfaces)
	value := make(map[int]float64, len(field.surfaces))
	for k, id := range field.surfaces {
		value[id] = float64(k + 1)
	}

	a := in.Kriging.Range
	delta := a / 100
	first := refs[field.surfaces[0]]
	constraints := []constraint{{a: first, anchor: true, value: 1, nugget: in.Kriging.NuggetScalar}}
	for _, id := range field.surfaces[1:] {
		constraints = append(constraints, constraint{a: refs[id], b: first, value: value[id] - 1, nugget: in.Kriging.NuggetScalar})
	}
	for _, r := range rest {
		constraints = append(constraints, constraint{a: r.p, b: refs[r.id], nugget: in.Kriging.NuggetScalar})
	}
	for i, pos := range in.OrientationPositions {
		if in.OrientationSeries[i] != order {
			continue
		}
		g := in.Gradients[i]
		if floats.Norm(g[:], 2) == 0 {
			continue
		}
		t1, t2 := tangents(g)
		constraints = append(constraints,
			constraint{a: offset(pos, t1, delta), b: offset(pos, t1, -delta), nugget: in.Kriging.NuggetGradient},
			constraint{a: offset(pos, t2, delta), b: offset(pos, t2, -delta), nugget: in.Kriging.NuggetGradient},
		)
		if len(field.surfaces) == 1 {
			constraints = append(constraints, constraint{a: offset(pos, g, -delta), b: offset(pos, g, delta), value: 2 * delta, nugget: in.Kriging.NuggetGradient})
		}
	}

	var axes []int
	if position < len(in.Kriging.DriftEquations) && in.Kriging.DriftEquations[position] >= 3 {
		axes = driftAxes(constraints)
	}
	weights, err := solveSystem(constraints, axes, in.Kriging)
	if err != nil {
		return field, err
	}
	n := len(constraints)
	for p, x := range in.Grid {
		var v float64
		for i, c := range constraints {
			cov := covariance(distance(x, c.a), in.Kriging)
			if !c.anchor {
				cov -= covariance(distance(x, c.b), in.Kriging)
			}
			v += weights[i] * cov
		}
		v += weights[n]
		for d, axis := range axes {
			v += weights[n+1+d] * x[axis]
		}
		field.values[p] = v
	}
	return field, nil
}

// driftAxes returns the coordinate axes along which at least one increment
// varies. A linear drift term on any other axis would make the system singular.
func driftAxes(cs []constraint) []int {
	var axes []int
	for axis := 0; axis < 3; axis++ {
		for _, c := range cs {
			if !c.anchor && c.a[axis] != c.b[axis] {
				axes = append(axes, axis)
				break
			}
		}
	}
	return axes
}

// solveSystem assembles and solves the dual kriging system. The unknowns are
// one weight per constraint, a constant drift term and drift linear terms.
func solveSystem(cs []constraint, axes []int, k domain.Kriging) ([]float64, error) {
	n := len(cs)
	size := n + 1 + len(axes)
	A := mat.NewDense(size, size, nil)
	b := mat.NewVecDense(size, nil)
	for i, ci := range cs {
		for j := i; j < n; j++ {
			v := gram(ci, cs[j], k)
			A.Set(i, j, v)
			A.Set(j, i, v)
		}
		A.Set(i, i, A.At(i, i)+ci.nugget)
		b.SetVec(i, ci.value)

		var constant float64
		if ci.anchor {
			constant = 1
		}
		A.Set(i, n, constant)
		A.Set(n, i, constant)
		for d, axis := range axes {
			v := ci.a[axis]
			if !ci.anchor {
				v -= ci.b[axis]
			}
			A.Set(i, n+1+d, v)
			A.Set(n+1+d, i, v)
		}
	}

	var qr mat.QR
	qr.Factorize(A)
	x := mat.NewDense(size, 1, nil)
	if err := qr.SolveTo(x, false, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 0) {
			return nil, ErrSingular
		}
	}
	out := make([]float64, size)
	for i := range out {
		out[i] = x.At(i, 0)
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			return nil, ErrSingular
		}
	}
	return out, nil
}

// gram is the covariance between two constraint functionals.
func gram(p, q constraint, k domain.Kriging) float64 {
	c := func(x, y [3]float64) float64 { return covariance(distance(x, y), k) }
	v := c(p.a, q.a)
	if !q.anchor {
		v -= c(p.a, q.b)
	}
	if !p.anchor {
		v -= c(p.b, q.a)
		if !q.anchor {
			v += c(p.b, q.b)
		}
	}
	return v
}

// covariance is the cubic model with range a and sill c_o.
func covariance(r float64, k domain.Kriging) float64 {
	a := k.Range
	if r >= a {
		return 0
	}
	h := r / a
	h2 := h * h
	h3 := h2 * h
	h5 := h3 * h2
	h7 := h5 * h2
	return k.CovarianceAtZero * (1 - 7*h2 + 35.0/4*h3 - 7.0/2*h5 + 3.0/4*h7)
}

func distance(a, b [3]float64) float64 {
	return floats.Distance(a[:], b[:], 2)
}

func offset(p, dir [3]float64, d float64) [3]float64 {
	return [3]float64{p[0] + d*dir[0], p[1] + d*dir[1], p[2] + d*dir[2]}
}

// tangents returns two unit vectors orthogonal to g and to each other.
func tangents(g [3]float64) ([3]float64, [3]float64) {
	n := g
	norm := floats.Norm(n[:], 2)
	for i := range n {
		n[i] /= norm
	}
	helper := [3]float64{0, 0, 1}
	if math.Abs(n[2]) > 0.9 {
		helper = [3]float64{1, 0, 0}
	}
	t1 := cross(n, helper)
	l := floats.Norm(t1[:], 2)
	for i := range t1 {
		t1[i] /= l
	}
	t2 := cross(n, t1)
	return t1, t2
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
