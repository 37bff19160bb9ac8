package core

import (
	"context"
	"errors"
	"math"
	"testing"

	"geomodel/pkg/domain"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSetInterfacesAppendKeepsIndices(t *testing.T) {
	ctx := context.Background()
	svc := newLayeredService(t)
	if _, err := svc.SetInterfaces(ctx, []domain.InterfacePoint{{X: 500, Y: 500, Z: 700, Formation: "sand"}}, true); err != nil {
		t.Fatalf("append: %v", err)
	}
	rows := svc.Interfaces(ctx)
	if len(rows) != 9 {
		t.Fatalf("expected 9 rows, got %d", len(rows))
	}
	found := false
	for _, p := range rows {
		if p.Index == 8 {
			found = p.Formation == "sand" && p.ID == 1
		}
	}
	if !found {
		t.Fatalf("appended row must receive the next index")
	}

	if _, err := svc.SetInterfaces(ctx, corners("shale", 300), false); err != nil {
		t.Fatalf("replace: %v", err)
	}
	rows = svc.Interfaces(ctx)
	if len(rows) != 4 || rows[0].Index != 0 {
		t.Fatalf("replace must restart indexing, got %+v", rows)
	}
}

func TestSetInterfacesRejectsInvalidRows(t *testing.T) {
	cases := []struct {
		name string
		row  domain.InterfacePoint
	}{
		{"nan", domain.InterfacePoint{X: math.NaN(), Formation: "sand"}},
		{"inf", domain.InterfacePoint{Z: math.Inf(1), Formation: "sand"}},
		{"no formation", domain.InterfacePoint{X: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newLayeredService(t)
			_, err := svc.SetInterfaces(context.Background(), []domain.InterfacePoint{tc.row}, true)
			var invalid domain.InvalidInputError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidInputError, got %v", err)
			}
		})
	}
}

func TestDeleteRejectsUnknownIndex(t *testing.T) {
	ctx := context.Background()
	svc := newLayeredService(t)
	var invalid domain.InvalidInputError
	if _, err := svc.DeleteInterfaces(ctx, []int{42}); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
	if _, err := svc.DeleteOrientations(ctx, nil); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError for empty selection, got %v", err)
	}
	if len(svc.Interfaces(ctx)) != 8 {
		t.Fatalf("rows must survive a failed delete")
	}
}

func TestSetOrientationsDerivesMissingRepresentation(t *testing.T) {
	ctx := context.Background()
	svc := newLayeredService(t)
	rows := []domain.Orientation{
		{X: 500, Y: 500, Z: 700, Dip: 0, Azimuth: 0, Formation: "sand"},
		{X: 500, Y: 500, Z: 400, Gx: 1, Gy: 0, Gz: 1, Formation: "shale"},
	}
	if _, err := svc.SetOrientations(ctx, rows, false); err != nil {
		t.Fatalf("set orientations: %v", err)
	}
	got := svc.Orientations(ctx)
	if len(got) != 2 {
		t.Fatalf("expected 2 orientations, got %d", len(got))
	}
	flat := got[0]
	if flat.Polarity != 1 || !approx(flat.Gz, 1) || !approx(flat.Gx, 0) {
		t.Fatalf("expected upward unit gradient, got %+v", flat)
	}
	tilted := got[1]
	if !approx(tilted.Dip, 45) || !approx(tilted.Azimuth, 90) || tilted.Polarity != 1 {
		t.Fatalf("expected dip 45 azimuth 90, got %+v", tilted)
	}
	if !approx(tilted.Gx, math.Sqrt2/2) || !approx(tilted.Gz, math.Sqrt2/2) {
		t.Fatalf("gradient must be normalised, got %+v", tilted)
	}
	if got := svc.AdditionalData(ctx).Structure.LenFormationsO["shale"]; got != 1 {
		t.Fatalf("expected orientation count 1, got %d", got)
	}
}

func TestSetOrientationsRejectsInvalidAngles(t *testing.T) {
	cases := []struct {
		name string
		row  domain.Orientation
	}{
		{"dip", domain.Orientation{Dip: 200, Formation: "sand"}},
		{"azimuth", domain.Orientation{Dip: 10, Azimuth: -5, Formation: "sand"}},
		{"polarity", domain.Orientation{Dip: 10, Polarity: 2, Formation: "sand"}},
		{"gradient", domain.Orientation{Gx: math.NaN(), Gz: 1, Formation: "sand"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newLayeredService(t)
			_, err := svc.SetOrientations(context.Background(), []domain.Orientation{tc.row}, false)
			var invalid domain.InvalidInputError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidInputError, got %v", err)
			}
			if len(svc.Orientations(context.Background())) != 0 {
				t.Fatalf("invalid rows must not be committed")
			}
		})
	}
}

func TestCreateOrientationFromPoints(t *testing.T) {
	ctx := context.Background()
	svc := newLayeredService(t)
	o, _, err := svc.CreateOrientationFromPoints(ctx, []int{0, 1, 2, 3})
	if err != nil {
		t.Fatalf("create orientation: %v", err)
	}
	if o.Formation != "sand" || o.ID != 1 {
		t.Fatalf("unexpected formation keys %+v", o)
	}
	if !approx(o.X, 500) || !approx(o.Y, 500) || !approx(o.Z, 700) {
		t.Fatalf("orientation must sit at the centroid, got %+v", o)
	}
	if !approx(o.Dip, 0) || !approx(o.Gz, 1) || o.Polarity != 1 {
		t.Fatalf("expected horizontal plane, got %+v", o)
	}
	if len(svc.Orientations(ctx)) != 1 {
		t.Fatalf("orientation must be committed")
	}
}

func TestCreateOrientationFromPointsErrors(t *testing.T) {
	ctx := context.Background()
	svc := newLayeredService(t)
	line := []domain.InterfacePoint{
		{X: 0, Y: 0, Z: 700, Formation: "sand"},
		{X: 10, Y: 10, Z: 700, Formation: "sand"},
		{X: 20, Y: 20, Z: 700, Formation: "sand"},
	}
	if _, err := svc.SetInterfaces(ctx, line, true); err != nil {
		t.Fatalf("append: %v", err)
	}

	var mixed domain.MixedFormationError
	if _, _, err := svc.CreateOrientationFromPoints(ctx, []int{0, 1, 4}); !errors.As(err, &mixed) {
		t.Fatalf("expected MixedFormationError, got %v", err)
	}
	if len(mixed.Formations) != 2 || mixed.Formations[0] != "sand" || mixed.Formations[1] != "shale" {
		t.Fatalf("unexpected formations %v", mixed.Formations)
	}

	var invalid domain.InvalidInputError
	if _, _, err := svc.CreateOrientationFromPoints(ctx, []int{0, 1}); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError for two points, got %v", err)
	}
	if _, _, err := svc.CreateOrientationFromPoints(ctx, []int{8, 9, 10}); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError for collinear points, got %v", err)
	}
	if _, _, err := svc.CreateOrientationFromPoints(ctx, []int{0, 1, 99}); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError for unknown index, got %v", err)
	}
	if _, _, err := svc.CreateOrientationFromPoints(ctx, []int{0, 0, 1}); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError for repeated index, got %v", err)
	}
	if len(svc.Orientations(ctx)) != 0 {
		t.Fatalf("failed derivations must not add orientations")
	}
}

func TestCreateOrientationsFromPointsIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	svc := newLayeredService(t)
	_, _, err := svc.CreateOrientationsFromPoints(ctx, [][]int{{0, 1, 2}, {0, 4, 5}})
	var mixed domain.MixedFormationError
	if !errors.As(err, &mixed) {
		t.Fatalf("expected MixedFormationError from second group, got %v", err)
	}
	if len(svc.Orientations(ctx)) != 0 {
		t.Fatalf("batch must not commit partially")
	}

	rows, _, err := svc.CreateOrientationsFromPoints(ctx, [][]int{{0, 1, 2}, {4, 5, 6}})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if len(rows) != 2 || rows[0].Formation != "sand" || rows[1].Formation != "shale" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if rows[0].Index == rows[1].Index {
		t.Fatalf("rows must receive distinct indices")
	}
}
