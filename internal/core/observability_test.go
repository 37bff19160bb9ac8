package core

import (
	"bytes"
	"context"
	"encoding/json"
	"expvar"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"geomodel/pkg/domain"
)

func TestServiceObservability(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := ClockFunc(func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	})
	svc := NewInMemoryService(NewDefaultRulesEngine(),
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithClock(clock),
	)

	if _, err := svc.SetSeries(ctx, []domain.SeriesDefinition{{Name: "strat", Formations: []string{"sand"}}}); err != nil {
		t.Fatalf("set series: %v", err)
	}
	if !audit.has("set_series", AuditStatusSuccess, func(e AuditEntry) bool {
		return e.Entity == EntitySeries && e.Action == ActionReplace && e.Revision == 1 && e.Duration > 0
	}) {
		t.Fatalf("expected audit entry for set_series, got %+v", audit.entries)
	}
	if !metrics.has("set_series", true) || !tracer.has("set_series", true) {
		t.Fatalf("expected metrics and span for set_series")
	}

	if _, err := svc.AddBasement(ctx); err != nil {
		t.Fatalf("add basement: %v", err)
	}
	if _, err := svc.AddBasement(ctx); err == nil {
		t.Fatalf("expected duplicate basement error")
	}
	if !audit.has("add_basement", AuditStatusError, func(e AuditEntry) bool { return e.Error != "" }) {
		t.Fatalf("expected error audit entry for add_basement")
	}
	if !metrics.has("add_basement", false) || !tracer.has("add_basement", false) {
		t.Fatalf("expected failed metrics and span for add_basement")
	}
}

func TestServiceLogsFailures(t *testing.T) {
	logger := &captureLogger{}
	svc := NewInMemoryService(NewDefaultRulesEngine(), WithLogger(logger))
	if _, err := svc.SetFormationOrder(context.Background(), []string{"ghost"}); err == nil {
		t.Fatalf("expected error")
	}
	if logger.count("error", "geomodel operation failed") != 1 {
		t.Fatalf("expected failure to be logged")
	}
	if _, err := svc.SetFormationNames(context.Background(), []string{"sand"}); err != nil {
		t.Fatalf("set names: %v", err)
	}
	if logger.count("debug", "geomodel operation completed") != 1 {
		t.Fatalf("expected completion debug log")
	}
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if !strings.HasPrefix(rec.Name(), "geomodel_service_metrics_") {
		t.Fatalf("unexpected generated name %q", rec.Name())
	}
	ctx := context.Background()
	rec.Observe(ctx, "compute_model", true, 20*time.Millisecond)
	rec.Observe(ctx, "compute_model", false, 40*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second)

	snap := rec.Snapshot()
	stats := snap.Operations["compute_model"]
	if stats.Calls != 2 || stats.Errors != 1 || stats.MaxMS != 40 || stats.TotalMS != 60 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(snap.Operations) != 1 {
		t.Fatalf("empty operations must be ignored")
	}

	published := expvar.Get(rec.Name())
	if published == nil {
		t.Fatalf("recorder not published")
	}
	var decoded ExpvarMetricsSnapshot
	if err := json.Unmarshal([]byte(published.String()), &decoded); err != nil {
		t.Fatalf("decode published value: %v", err)
	}
	if decoded.Operations["compute_model"].Calls != 2 {
		t.Fatalf("published value out of date: %+v", decoded)
	}
}

func TestJSONTracerRecordsStageParents(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	svc := newLayeredService(t, WithTracer(tracer), WithGraphBuilder(fixedBuilder()))
	if _, err := svc.ComputeModel(context.Background(), ComputeOptions{}); err != nil {
		t.Fatalf("compute: %v", err)
	}

	var stages int
	for _, e := range tracer.Entries() {
		if strings.HasPrefix(e.Operation, "pipeline.") {
			stages++
			if e.Parent != "compute_model" {
				t.Fatalf("stage %s has parent %q", e.Operation, e.Parent)
			}
		}
		if e.Status != string(AuditStatusSuccess) {
			t.Fatalf("unexpected failed span %+v", e)
		}
	}
	if stages != 5 {
		t.Fatalf("expected 5 stage spans, got %d", stages)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(tracer.Entries()) {
		t.Fatalf("expected one JSON line per span, got %d lines", len(lines))
	}
	var first JSONTraceEntry
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode span: %v", err)
	}
}

func TestJSONTracerEndsOnce(t *testing.T) {
	tracer := NewJSONTracer(nil)
	_, span := tracer.Start(context.Background(), "export")
	span.End(nil)
	span.End(context.Canceled)
	entries := tracer.Entries()
	if len(entries) != 1 || entries[0].Status != string(AuditStatusSuccess) {
		t.Fatalf("expected a single successful span, got %+v", entries)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	svc := NewInMemoryService(NewDefaultRulesEngine(), WithMetricsRecorder(rec))
	ctx := context.Background()
	if _, err := svc.SetFormationNames(ctx, []string{"sand"}); err != nil {
		t.Fatalf("set names: %v", err)
	}
	if _, err := svc.SetFormationOrder(ctx, []string{"ghost"}); err == nil {
		t.Fatalf("expected error")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := make(map[string]float64)
	var histograms int
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch mf.GetName() {
			case "geomodel_operations_total":
				var op, status string
				for _, l := range m.GetLabel() {
					switch l.GetName() {
					case "operation":
						op = l.GetValue()
					case "status":
						status = l.GetValue()
					}
				}
				counts[op+"/"+status] = m.GetCounter().GetValue()
			case "geomodel_operation_duration_seconds":
				histograms++
			}
		}
	}
	if counts["set_formation_names/success"] != 1 || counts["set_formation_order/error"] != 1 {
		t.Fatalf("unexpected counters %v", counts)
	}
	if histograms != 2 {
		t.Fatalf("expected 2 histogram series, got %d", histograms)
	}

	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestOTelTracerWithGlobalProvider(t *testing.T) {
	tracer := NewOTelTracer(nil)
	svc := newLayeredService(t, WithTracer(tracer), WithGraphBuilder(fixedBuilder()))
	if _, err := svc.ComputeModel(context.Background(), ComputeOptions{}); err != nil {
		t.Fatalf("compute with otel tracer: %v", err)
	}
	_, span := tracer.Start(context.Background(), "export")
	span.End(context.DeadlineExceeded)
}
