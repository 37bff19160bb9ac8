package core

import (
	"math"

	"geomodel/pkg/domain"
)

// updateRescaling recomputes the default rescaling unless explicit values
// were supplied, then refreshes the rescaled columns of both tables.
func (s *modelState) updateRescaling() {
	if !s.additional.Rescaling.Explicit {
		s.additional.Rescaling = s.defaultRescaling()
	}
	s.applyRescaling(s.additional.Rescaling)
}

// setRescaling stores explicit values. A nil centers uses the centre of the
// data bounding box.
func (s *modelState) setRescaling(factor float64, centers *[3]float64) {
	r := domain.Rescaling{Factor: factor, Explicit: true}
	if centers != nil {
		r.Centers = *centers
	} else {
		r.Centers = s.defaultRescaling().Centers
	}
	s.additional.Rescaling = r
	s.applyRescaling(r)
}

func (s *modelState) applyRescaling(r domain.Rescaling) {
	for i := range s.interfaces {
		p := r.Apply([3]float64{s.interfaces[i].X, s.interfaces[i].Y, s.interfaces[i].Z})
		s.interfaces[i].Rescaled = domain.Rescaled{XR: p[0], YR: p[1], ZR: p[2]}
	}
	for i := range s.orientations {
		p := r.Apply([3]float64{s.orientations[i].X, s.orientations[i].Y, s.orientations[i].Z})
		s.orientations[i].Rescaled = domain.Rescaled{XR: p[0], YR: p[1], ZR: p[2]}
	}
}

// bounds returns the bounding box of every coordinate the model knows:
// interface points, orientations and the grid.
func (s *modelState) bounds() ([6]float64, bool) {
	b := [6]float64{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	found := false
	extend := func(p [3]float64) {
		found = true
		for axis := 0; axis < 3; axis++ {
			b[2*axis] = math.Min(b[2*axis], p[axis])
			b[2*axis+1] = math.Max(b[2*axis+1], p[axis])
		}
	}
	for _, p := range s.interfaces {
		extend([3]float64{p.X, p.Y, p.Z})
	}
	for _, o := range s.orientations {
		extend([3]float64{o.X, o.Y, o.Z})
	}
	if gb, ok := s.grid.Bounds(); ok {
		extend([3]float64{gb[0], gb[2], gb[4]})
		extend([3]float64{gb[1], gb[3], gb[5]})
	}
	return b, found
}

func (s *modelState) defaultRescaling() domain.Rescaling {
	b, ok := s.bounds()
	if !ok {
		return domain.Rescaling{}
	}
	var r domain.Rescaling
	for axis := 0; axis < 3; axis++ {
		lo, hi := b[2*axis], b[2*axis+1]
		r.Centers[axis] = (lo + hi) / 2
		r.Factor = math.Max(r.Factor, hi-lo)
	}
	if r.Factor == 0 {
		r.Factor = 1
	}
	return r
}
