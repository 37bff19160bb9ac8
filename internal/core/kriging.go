package core

import (
	"math"

	"geomodel/pkg/domain"
)

// Default nugget effects applied before user overrides.
const (
	DefaultNuggetScalar   = 1e-6
	DefaultNuggetGradient = 0.01
)

// updateDefaultKriging derives kriging parameters from the rescaled extent
// and the structure, then applies user overrides.
func (s *modelState) updateDefaultKriging() {
	k := domain.Kriging{
		Range:          1,
		NuggetScalar:   DefaultNuggetScalar,
		NuggetGradient: DefaultNuggetGradient,
	}
	if b, ok := s.bounds(); ok && s.additional.Rescaling.Factor != 0 {
		var sum float64
		for axis := 0; axis < 3; axis++ {
			span := (b[2*axis+1] - b[2*axis]) / s.additional.Rescaling.Factor
			sum += span * span
		}
		if sum > 0 {
			k.Range = math.Sqrt(sum)
		}
	}
	k.CovarianceAtZero = k.Range * k.Range / 14 / 3

	counts := s.additional.Structure.LenSeriesI
	k.DriftEquations = make([]int, len(counts))
	for i, n := range counts {
		k.DriftEquations[i] = driftEquations(n)
	}

	o := s.additional.KrigingOverrides
	if o.Range != nil {
		k.Range = *o.Range
		if o.CovarianceAtZero == nil {
			k.CovarianceAtZero = k.Range * k.Range / 14 / 3
		}
	}
	if o.CovarianceAtZero != nil {
		k.CovarianceAtZero = *o.CovarianceAtZero
	}
	if o.NuggetScalar != nil {
		k.NuggetScalar = *o.NuggetScalar
	}
	if o.NuggetGradient != nil {
		k.NuggetGradient = *o.NuggetGradient
	}
	for i, d := range o.DriftEquations {
		if i < len(k.DriftEquations) {
			k.DriftEquations[i] = d
		}
	}
	s.additional.Kriging = k
}

// driftEquations picks the universal drift degree a series can support.
func driftEquations(points int) int {
	switch {
	case points < 4:
		return 0
	case points < 10:
		return 3
	default:
		return 9
	}
}

func validateOverrides(o domain.KrigingOverrides) error {
	check := func(field string, v *float64, allowZero bool) error {
		if v == nil {
			return nil
		}
		if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 || (!allowZero && *v == 0) {
			if allowZero {
				return domain.InvalidInputError{Field: field, Reason: "must be a non-negative finite number"}
			}
			return domain.InvalidInputError{Field: field, Reason: "must be a positive finite number"}
		}
		return nil
	}
	if err := check("range", o.Range, false); err != nil {
		return err
	}
	if err := check("c_o", o.CovarianceAtZero, false); err != nil {
		return err
	}
	if err := check("nugget_effect_scalar", o.NuggetScalar, true); err != nil {
		return err
	}
	if err := check("nugget_effect_gradient", o.NuggetGradient, true); err != nil {
		return err
	}
	for _, d := range o.DriftEquations {
		if d != 0 && d != 3 && d != 9 {
			return domain.InvalidInputError{Field: "drift_equations", Reason: "each entry must be 0, 3 or 9"}
		}
	}
	return nil
}
