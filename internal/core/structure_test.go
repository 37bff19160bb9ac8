package core

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"geomodel/pkg/domain"
)

func TestUpdateStructureInsufficientData(t *testing.T) {
	cases := []struct {
		name    string
		points  int
		wantErr bool
	}{
		{"single point", 1, true},
		{"two points", 2, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			svc := NewInMemoryService(NewDefaultRulesEngine())
			if _, err := svc.SetSeries(ctx, []domain.SeriesDefinition{{Name: "strat", Formations: []string{"sand"}}}); err != nil {
				t.Fatalf("set series: %v", err)
			}
			rows := corners("sand", 10)[:tc.points]
			res, err := svc.SetInterfaces(ctx, rows, false)
			if err != nil {
				t.Fatalf("a sparse formation must still commit, got %v", err)
			}
			warned := false
			for _, v := range res.Violations {
				if v.Rule == "surface_points" && v.Severity == SeverityWarn {
					warned = true
				}
			}
			if warned != tc.wantErr {
				t.Fatalf("surface_points warning = %v, want %v", warned, tc.wantErr)
			}

			st, err := svc.UpdateStructure(ctx)
			var insufficient domain.InsufficientDataError
			if tc.wantErr {
				if !errors.As(err, &insufficient) {
					t.Fatalf("expected InsufficientDataError, got %v", err)
				}
				if insufficient.Formation != "sand" || insufficient.Count != 1 || insufficient.Required != 2 {
					t.Fatalf("unexpected detail %+v", insufficient)
				}
			} else if err != nil {
				t.Fatalf("update structure: %v", err)
			}
			if st.LenFormationsI["sand"] != tc.points {
				t.Fatalf("expected %d points counted, got %d", tc.points, st.LenFormationsI["sand"])
			}
		})
	}
}

func TestDefaultRescalingCoversDataAndGrid(t *testing.T) {
	ctx := context.Background()
	svc := newLayeredService(t)
	r := svc.AdditionalData(ctx).Rescaling
	if r.Factor != 1000 || r.Centers != [3]float64{500, 500, 500} || r.Explicit {
		t.Fatalf("unexpected default rescaling %+v", r)
	}
	for _, p := range svc.Interfaces(ctx) {
		back := r.Restore([3]float64{p.XR, p.YR, p.ZR})
		if !approx(back[0], p.X) || !approx(back[2], p.Z) {
			t.Fatalf("rescaled row %d does not round trip: %v", p.Index, back)
		}
		if p.XR <= 0 || p.XR > 1 || p.ZR <= 0 || p.ZR > 1 {
			t.Fatalf("rescaled row %d outside unit cube: %+v", p.Index, p.Rescaled)
		}
	}
}

func TestUpdateRescalingExplicitAndReset(t *testing.T) {
	ctx := context.Background()
	svc := newLayeredService(t)
	r, _, err := svc.UpdateRescaling(ctx, floatPtr(2000), nil)
	if err != nil {
		t.Fatalf("update rescaling: %v", err)
	}
	if r.Factor != 2000 || !r.Explicit || r.Centers != [3]float64{500, 500, 500} {
		t.Fatalf("unexpected explicit rescaling %+v", r)
	}
	// Explicit values survive later data mutations.
	if _, err := svc.SetInterfaces(ctx, corners("sand", 750), true); err != nil {
		t.Fatalf("append: %v", err)
	}
	if got := svc.AdditionalData(ctx).Rescaling.Factor; got != 2000 {
		t.Fatalf("explicit factor overwritten: %v", got)
	}

	centers := [3]float64{0, 0, 0}
	r, _, err = svc.UpdateRescaling(ctx, nil, &centers)
	if err != nil {
		t.Fatalf("update centers: %v", err)
	}
	if r.Factor != 1000 || r.Centers != centers {
		t.Fatalf("nil factor must keep the default factor, got %+v", r)
	}

	r, _, err = svc.UpdateRescaling(ctx, nil, nil)
	if err != nil {
		t.Fatalf("reset rescaling: %v", err)
	}
	if r.Explicit || r.Factor != 1000 || r.Centers != [3]float64{500, 500, 500} {
		t.Fatalf("expected defaults after reset, got %+v", r)
	}

	var invalid domain.InvalidInputError
	if _, _, err := svc.UpdateRescaling(ctx, floatPtr(-1), nil); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
}

func TestUpdateDefaultKriging(t *testing.T) {
	ctx := context.Background()
	svc := newLayeredService(t)
	k, err := svc.UpdateDefaultKriging(ctx)
	if err != nil {
		t.Fatalf("update kriging: %v", err)
	}
	if !approx(k.Range, math.Sqrt(3)) {
		t.Fatalf("expected range sqrt(3), got %v", k.Range)
	}
	if !approx(k.CovarianceAtZero, 3.0/42) {
		t.Fatalf("expected c_o range^2/14/3, got %v", k.CovarianceAtZero)
	}
	if k.NuggetScalar != DefaultNuggetScalar || k.NuggetGradient != DefaultNuggetGradient {
		t.Fatalf("unexpected nuggets %+v", k)
	}
	if !reflect.DeepEqual(k.DriftEquations, []int{3, 0}) {
		t.Fatalf("unexpected drift %v", k.DriftEquations)
	}

	if _, err := svc.SetKrigingParameters(ctx, domain.KrigingOverrides{Range: floatPtr(2), DriftEquations: []int{9}}); err != nil {
		t.Fatalf("set overrides: %v", err)
	}
	k = svc.AdditionalData(ctx).Kriging
	if k.Range != 2 || !approx(k.CovarianceAtZero, 4.0/42) {
		t.Fatalf("range override must drive c_o, got %+v", k)
	}
	if !reflect.DeepEqual(k.DriftEquations, []int{9, 0}) {
		t.Fatalf("drift override not applied: %v", k.DriftEquations)
	}
}

func TestSetKrigingParametersValidation(t *testing.T) {
	cases := []struct {
		name      string
		overrides domain.KrigingOverrides
	}{
		{"zero range", domain.KrigingOverrides{Range: floatPtr(0)}},
		{"negative c_o", domain.KrigingOverrides{CovarianceAtZero: floatPtr(-1)}},
		{"nan nugget", domain.KrigingOverrides{NuggetScalar: floatPtr(math.NaN())}},
		{"drift degree", domain.KrigingOverrides{DriftEquations: []int{5}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newLayeredService(t)
			var invalid domain.InvalidInputError
			if _, err := svc.SetKrigingParameters(context.Background(), tc.overrides); !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidInputError, got %v", err)
			}
		})
	}
	svc := newLayeredService(t)
	if _, err := svc.SetKrigingParameters(context.Background(), domain.KrigingOverrides{NuggetGradient: floatPtr(0)}); err != nil {
		t.Fatalf("zero nugget must be accepted: %v", err)
	}
}

func TestDriftEquations(t *testing.T) {
	for points, want := range map[int]int{0: 0, 3: 0, 4: 3, 9: 3, 10: 9, 40: 9} {
		if got := driftEquations(points); got != want {
			t.Fatalf("driftEquations(%d) = %d, want %d", points, got, want)
		}
	}
}

func TestSetInterpolationOptions(t *testing.T) {
	ctx := context.Background()
	svc := newLayeredService(t)
	if _, err := svc.SetInterpolationOptions(ctx, domain.Options{Output: domain.OutputGradients, Verbosity: []string{"solve"}}); err != nil {
		t.Fatalf("set options: %v", err)
	}
	opts := svc.AdditionalData(ctx).Options
	if opts.Output != domain.OutputGradients || opts.Optimizer != domain.OptimizerFastCompile {
		t.Fatalf("unexpected options %+v", opts)
	}
	var invalid domain.InvalidInputError
	if _, err := svc.SetInterpolationOptions(ctx, domain.Options{Output: "voxels"}); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError for output, got %v", err)
	}
	if _, err := svc.SetInterpolationOptions(ctx, domain.Options{Optimizer: "turbo"}); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError for optimizer, got %v", err)
	}
}

func TestRegularGrid(t *testing.T) {
	grid, err := RegularGrid([6]float64{0, 10, 0, 20, 0, 30}, [3]int{2, 1, 3})
	if err != nil {
		t.Fatalf("regular grid: %v", err)
	}
	if grid.Len() != 6 || grid.Kind != domain.GridRegular {
		t.Fatalf("unexpected grid %+v", grid)
	}
	want := [][3]float64{{2.5, 10, 5}, {2.5, 10, 15}, {2.5, 10, 25}, {7.5, 10, 5}}
	for i, p := range want {
		if grid.Points[i] != p {
			t.Fatalf("point %d = %v, want %v", i, grid.Points[i], p)
		}
	}

	bad := []struct {
		name       string
		extent     [6]float64
		resolution [3]int
	}{
		{"inverted", [6]float64{10, 0, 0, 1, 0, 1}, [3]int{1, 1, 1}},
		{"nan", [6]float64{0, math.NaN(), 0, 1, 0, 1}, [3]int{1, 1, 1}},
		{"zero resolution", [6]float64{0, 1, 0, 1, 0, 1}, [3]int{1, 0, 1}},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			var invalid domain.InvalidInputError
			if _, err := RegularGrid(tc.extent, tc.resolution); !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidInputError, got %v", err)
			}
		})
	}
}

func TestSetCustomGrid(t *testing.T) {
	ctx := context.Background()
	svc := newLayeredService(t)
	if _, err := svc.SetCustomGrid(ctx, [][3]float64{{1, 2, 3}, {4, 5, 6}}); err != nil {
		t.Fatalf("custom grid: %v", err)
	}
	grid := svc.Grid(ctx)
	if grid.Kind != domain.GridCustom || grid.Len() != 2 {
		t.Fatalf("unexpected grid %+v", grid)
	}
	var invalid domain.InvalidInputError
	if _, err := svc.SetCustomGrid(ctx, nil); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError for empty grid, got %v", err)
	}
	if _, err := svc.SetCustomGrid(ctx, [][3]float64{{math.Inf(-1), 0, 0}}); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError for infinite point, got %v", err)
	}
}

func TestRescalingNormalisesLongestAxis(t *testing.T) {
	cases := []struct {
		name    string
		points  [][3]float64
		factor  float64
		centers [3]float64
		axis    int
	}{
		{"200 m along x", [][3]float64{{0, 0, 0}, {200, 50, 20}, {100, 25, 10}}, 200, [3]float64{100, 25, 10}, 0},
		{"200 m along z", [][3]float64{{10, 10, 300}, {110, 60, 500}, {60, 30, 400}}, 200, [3]float64{60, 35, 400}, 2},
		{"degenerate", [][3]float64{{5, 5, 5}, {5, 5, 5}}, 1, [3]float64{5, 5, 5}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			svc := NewInMemoryService(NewDefaultRulesEngine())
			if _, err := svc.SetFormationNames(ctx, []string{"sand"}); err != nil {
				t.Fatalf("set names: %v", err)
			}
			rows := make([]domain.InterfacePoint, 0, len(tc.points))
			for _, p := range tc.points {
				rows = append(rows, domain.InterfacePoint{X: p[0], Y: p[1], Z: p[2], Formation: "sand"})
			}
			if _, err := svc.SetInterfaces(ctx, rows, false); err != nil {
				t.Fatalf("set interfaces: %v", err)
			}
			r := svc.AdditionalData(ctx).Rescaling
			if r.Factor != tc.factor || r.Centers != tc.centers {
				t.Fatalf("expected factor %v centres %v, got %+v", tc.factor, tc.centers, r)
			}

			once := svc.Interfaces(ctx)
			lo, hi := 2.0, -1.0
			for _, p := range once {
				v := [3]float64{p.XR, p.YR, p.ZR}[tc.axis]
				lo, hi = min(lo, v), max(hi, v)
			}
			if tc.factor != 1 && !approx(hi-lo, 1) {
				t.Fatalf("longest axis must span 1 after rescaling, got %v", hi-lo)
			}

			// Re-applying the stored parameters leaves the rescaled columns unchanged.
			for i := 0; i < 2; i++ {
				if _, _, err := svc.UpdateRescaling(ctx, &r.Factor, &r.Centers); err != nil {
					t.Fatalf("reapply: %v", err)
				}
			}
			for i, p := range svc.Interfaces(ctx) {
				if p.Rescaled != once[i].Rescaled {
					t.Fatalf("row %d rescaled twice differs: %+v vs %+v", p.Index, p.Rescaled, once[i].Rescaled)
				}
			}
		})
	}
}
