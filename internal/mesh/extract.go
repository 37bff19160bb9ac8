// Package mesh extracts surface meshes from a lithology block computed on a
// regular grid.
package mesh

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"geomodel/pkg/domain"
)

// ErrNotRegular is returned for grids that are not regular lattices.
var ErrNotRegular = errors.New("mesh extraction requires a regular grid")

// Extractor turns a lithology block into one mesh per surface.
type Extractor interface {
	Extract(ctx context.Context, grid domain.Grid, lithology []float64, formations []domain.Formation) ([]domain.SurfaceMesh, error)
}

// VoxelExtractor emits the cell faces separating different lithologies. The
// face between two cells belongs to the surface of the formation with the
// lower id, which is the base of that formation.
type VoxelExtractor struct{}

type vertexKey [3]int64

type builder struct {
	mesh  domain.SurfaceMesh
	index map[vertexKey]int
}

func (b *builder) vertex(p [3]float64) int {
	key := vertexKey{quantize(p[0]), quantize(p[1]), quantize(p[2])}
	if idx, ok := b.index[key]; ok {
		return idx
	}
	idx := len(b.mesh.Vertices)
	b.mesh.Vertices = append(b.mesh.Vertices, p)
	b.index[key] = idx
	return idx
}

func quantize(v float64) int64 {
	return int64(math.Round(v * 1e6))
}

// Extract implements Extractor.
func (VoxelExtractor) Extract(ctx context.Context, grid domain.Grid, lithology []float64, formations []domain.Formation) ([]domain.SurfaceMesh, error) {
	if grid.Kind != domain.GridRegular {
		return nil, ErrNotRegular
	}
	nx, ny, nz := grid.Resolution[0], grid.Resolution[1], grid.Resolution[2]
	if len(lithology) != nx*ny*nz {
		return nil, fmt.Errorf("lithology has %d values for a %dx%dx%d grid", len(lithology), nx, ny, nz)
	}
	names := make(map[int]string, len(formations))
	for _, f := range formations {
		names[f.ID] = f.Name
	}
	var step [3]float64
	for axis := 0; axis < 3; axis++ {
		step[axis] = (grid.Extent[2*axis+1] - grid.Extent[2*axis]) / float64(grid.Resolution[axis])
	}
	at := func(i, j, k int) int { return (i*ny+j)*nz + k }

	builders := make(map[int]*builder)
	emit := func(idA, idB int, center [3]float64, axis int) {
		id := idA
		if idB < id {
			id = idB
		}
		b, ok := builders[id]
		if !ok {
			b = &builder{mesh: domain.SurfaceMesh{Formation: names[id]}, index: make(map[vertexKey]int)}
			if b.mesh.Formation == "" {
				b.mesh.Formation = fmt.Sprintf("formation %d", id)
			}
			builders[id] = b
		}
		u, v := (axis+1)%3, (axis+2)%3
		corner := func(su, sv float64) int {
			p := center
			p[u] += su * step[u] / 2
			p[v] += sv * step[v] / 2
			return b.vertex(p)
		}
		c0, c1, c2, c3 := corner(-1, -1), corner(1, -1), corner(1, 1), corner(-1, 1)
		b.mesh.Simplices = append(b.mesh.Simplices, [3]int{c0, c1, c2}, [3]int{c0, c2, c3})
	}

	for i := 0; i < nx; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := 0; j < ny; j++ {
			for k := 0; k < nz; k++ {
				here := int(math.Round(lithology[at(i, j, k)]))
				p := grid.Points[at(i, j, k)]
				neighbours := [3][3]int{{i + 1, j, k}, {i, j + 1, k}, {i, j, k + 1}}
				for axis, n := range neighbours {
					if n[0] >= nx || n[1] >= ny || n[2] >= nz {
						continue
					}
					there := int(math.Round(lithology[at(n[0], n[1], n[2])]))
					if there == here {
						continue
					}
					center := p
					center[axis] += step[axis] / 2
					emit(here, there, center, axis)
				}
			}
		}
	}

	ids := make([]int, 0, len(builders))
	for id := range builders {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]domain.SurfaceMesh, 0, len(ids))
	for _, id := range ids {
		out = append(out, builders[id].mesh)
	}
	return out, nil
}
