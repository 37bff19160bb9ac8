// Package geometry converts between point sets, planes and orientation
// measurements (dip, azimuth, polarity, gradient).
package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerate is returned when points do not span a plane.
var ErrDegenerate = errors.New("points are collinear or coincident")

// ErrTooFewPoints is returned when fewer than three points are supplied.
var ErrTooFewPoints = errors.New("at least 3 points are required to fit a plane")

// degenerateRatio bounds the second singular value relative to the first.
const degenerateRatio = 1e-9

// Plane is a least-squares plane through a point set, expressed as an
// orientation measurement located at the centroid.
type Plane struct {
	Center   [3]float64
	Normal   [3]float64
	Dip      float64
	Azimuth  float64
	Polarity float64
}

// FitPlane estimates the plane through points using the right singular vector
// of the centred coordinates with the smallest singular value. The normal is
// oriented upwards (non-negative z) and reported with polarity 1.
func FitPlane(points [][3]float64) (Plane, error) {
	n := len(points)
	if n < 3 {
		return Plane{}, ErrTooFewPoints
	}
	var center [3]float64
	for _, p := range points {
		for axis := 0; axis < 3; axis++ {
			center[axis] += p[axis]
		}
	}
	for axis := range center {
		center[axis] /= float64(n)
	}

	data := make([]float64, 0, n*3)
	for _, p := range points {
		data = append(data, p[0]-center[0], p[1]-center[1], p[2]-center[2])
	}
	a := mat.NewDense(n, 3, data)

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThinV); !ok {
		return Plane{}, errors.New("svd factorisation failed")
	}
	values := svd.Values(nil)
	if values[0] == 0 || values[1] <= degenerateRatio*values[0] {
		return Plane{}, ErrDegenerate
	}
	var v mat.Dense
	svd.VTo(&v)
	normal := [3]float64{v.At(0, 2), v.At(1, 2), v.At(2, 2)}
	if normal[2] < 0 {
		normal = [3]float64{-normal[0], -normal[1], -normal[2]}
	}
	normal = unit(normal)

	dip, azimuth := anglesFromUnit(normal)
	return Plane{
		Center:   center,
		Normal:   normal,
		Dip:      dip,
		Azimuth:  azimuth,
		Polarity: 1,
	}, nil
}

// Gradient converts dip and azimuth (degrees) with polarity to a unit gradient.
func Gradient(dip, azimuth, polarity float64) [3]float64 {
	if polarity == 0 {
		polarity = 1
	}
	d := dip * math.Pi / 180
	a := azimuth * math.Pi / 180
	return [3]float64{
		math.Sin(d) * math.Sin(a) * polarity,
		math.Sin(d) * math.Cos(a) * polarity,
		math.Cos(d) * polarity,
	}
}

// Angles converts a gradient vector to dip, azimuth (degrees) and polarity.
// Downward pointing gradients are reported with polarity -1.
func Angles(g [3]float64) (dip, azimuth, polarity float64, err error) {
	if floats.Norm(g[:], 2) == 0 {
		return 0, 0, 0, ErrDegenerate
	}
	u := unit(g)
	polarity = 1
	if u[2] < 0 {
		polarity = -1
		u = [3]float64{-u[0], -u[1], -u[2]}
	}
	dip, azimuth = anglesFromUnit(u)
	return dip, azimuth, polarity, nil
}

func anglesFromUnit(u [3]float64) (dip, azimuth float64) {
	dip = math.Acos(clamp(u[2], -1, 1)) * 180 / math.Pi
	azimuth = math.Atan2(u[0], u[1]) * 180 / math.Pi
	if azimuth < 0 {
		azimuth += 360
	}
	if dip == 0 {
		azimuth = 0
	}
	return dip, azimuth
}

func unit(v [3]float64) [3]float64 {
	norm := floats.Norm(v[:], 2)
	if norm == 0 {
		return v
	}
	return [3]float64{v[0] / norm, v[1] / norm, v[2] / norm}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
