package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"geomodel/internal/solver"
	"geomodel/pkg/domain"
)

type captureAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	mu      sync.Mutex
	started []string
	ended   []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

type logRecord struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	records []logRecord
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, logRecord{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.records {
		if r.level == level && r.msg == msg {
			n++
		}
	}
	return n
}

func floatPtr(v float64) *float64 {
	return &v
}

// fixedSolver returns a solver assigning value to every grid point and
// counting its invocations.
func fixedSolver(value float64, calls *int) solver.Solver {
	return solver.SolveFunc(func(_ context.Context, in domain.SolverInput) (domain.SolverOutput, error) {
		if calls != nil {
			*calls++
		}
		lith := make([]float64, len(in.Grid))
		field := make([]float64, len(in.Grid))
		for i := range lith {
			lith[i] = value
			field[i] = in.Grid[i][2]
		}
		return domain.SolverOutput{Lithology: lith, ScalarField: field}, nil
	})
}

func fixedBuilder() solver.GraphBuilder {
	return solver.Static(fixedSolver(1, nil))
}

func mustOK(t *testing.T, op string, _ Result, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", op, err)
	}
}

// corners returns four points at height z spanning the model footprint.
func corners(formation string, z float64) []domain.InterfacePoint {
	out := make([]domain.InterfacePoint, 0, 4)
	for _, xy := range [][2]float64{{100, 100}, {900, 100}, {100, 900}, {900, 900}} {
		out = append(out, domain.InterfacePoint{X: xy[0], Y: xy[1], Z: z, Formation: formation})
	}
	return out
}

// newLayeredService builds a model of two flat layers, sand over shale, over
// the basement inside a 1000 m cube sampled by a single vertical column.
func newLayeredService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	ctx := context.Background()
	svc := NewInMemoryService(NewDefaultRulesEngine(), opts...)
	res, err := svc.SetSeries(ctx, []domain.SeriesDefinition{{Name: "strat", Formations: []string{"sand", "shale"}}})
	mustOK(t, "set series", res, err)
	res, err = svc.AddBasement(ctx)
	mustOK(t, "add basement", res, err)
	rows := append(corners("sand", 700), corners("shale", 400)...)
	res, err = svc.SetInterfaces(ctx, rows, false)
	mustOK(t, "set interfaces", res, err)
	res, err = svc.SetRegularGrid(ctx, [6]float64{0, 1000, 0, 1000, 0, 1000}, [3]int{1, 1, 3})
	mustOK(t, "set grid", res, err)
	return svc
}

// newTwoSeriesService builds series young[f1, f2] over old[f3] above the
// basement, sampled by a 2x2x2 grid over a 1000 m cube.
func newTwoSeriesService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	ctx := context.Background()
	svc := NewInMemoryService(NewDefaultRulesEngine(), opts...)
	res, err := svc.SetSeries(ctx, []domain.SeriesDefinition{
		{Name: "young", Formations: []string{"f1", "f2"}},
		{Name: "old", Formations: []string{"f3"}},
	})
	mustOK(t, "set series", res, err)
	res, err = svc.AddBasement(ctx)
	mustOK(t, "add basement", res, err)
	rows := append(corners("f1", 800), corners("f2", 600)...)
	rows = append(rows, corners("f3", 300)...)
	res, err = svc.SetInterfaces(ctx, rows, false)
	mustOK(t, "set interfaces", res, err)
	res, err = svc.SetRegularGrid(ctx, [6]float64{0, 1000, 0, 1000, 0, 1000}, [3]int{2, 2, 2})
	mustOK(t, "set grid", res, err)
	return svc
}
