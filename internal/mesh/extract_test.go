package mesh

import (
	"context"
	"errors"
	"testing"

	"geomodel/pkg/domain"
)

func regular(nx, ny, nz int) domain.Grid {
	g := domain.Grid{
		Kind:       domain.GridRegular,
		Extent:     [6]float64{0, float64(nx), 0, float64(ny), 0, float64(nz)},
		Resolution: [3]int{nx, ny, nz},
	}
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			for k := 0; k < nz; k++ {
				g.Points = append(g.Points, [3]float64{float64(i) + 0.5, float64(j) + 0.5, float64(k) + 0.5})
			}
		}
	}
	return g
}

func TestExtractHorizontalContact(t *testing.T) {
	grid := regular(2, 2, 2)
	// z fastest: k=0 is the lower cell (basement, id 2), k=1 the upper (id 1).
	lith := make([]float64, 8)
	for idx := range lith {
		if idx%2 == 0 {
			lith[idx] = 2
		} else {
			lith[idx] = 1
		}
	}
	formations := []domain.Formation{{Name: "sand", ID: 1}, {Name: "basement", ID: 2}}
	meshes, err := VoxelExtractor{}.Extract(context.Background(), grid, lith, formations)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("expected one surface, got %d", len(meshes))
	}
	m := meshes[0]
	if m.Formation != "sand" {
		t.Fatalf("expected surface of sand, got %q", m.Formation)
	}
	if len(m.Simplices) != 8 {
		t.Fatalf("expected 4 quads (8 triangles), got %d", len(m.Simplices))
	}
	if len(m.Vertices) != 9 {
		t.Fatalf("expected 9 shared vertices, got %d", len(m.Vertices))
	}
	for _, v := range m.Vertices {
		if v[2] != 1 {
			t.Fatalf("expected contact at z=1, got %v", v)
		}
	}
}

func TestExtractUniformBlockHasNoSurfaces(t *testing.T) {
	grid := regular(2, 1, 2)
	meshes, err := VoxelExtractor{}.Extract(context.Background(), grid, []float64{1, 1, 1, 1}, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(meshes) != 0 {
		t.Fatalf("expected no surfaces, got %d", len(meshes))
	}
}

func TestExtractErrors(t *testing.T) {
	cases := []struct {
		name string
		grid domain.Grid
		lith []float64
		want error
	}{
		{name: "custom grid", grid: domain.Grid{Kind: domain.GridCustom, Points: [][3]float64{{0, 0, 0}}}, lith: []float64{1}, want: ErrNotRegular},
		{name: "length mismatch", grid: regular(1, 1, 2), lith: []float64{1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := VoxelExtractor{}.Extract(context.Background(), tc.grid, tc.lith, nil)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
