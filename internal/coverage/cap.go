// Package coverage computes the ground region visible from satellites on a
// spherical Earth and estimates the area covered by the union of many such
// regions.
//
// A satellite at distance d from the centre sees a spherical cap whose
// half-angle ψ, measured at the centre, shrinks as the minimum elevation
// angle e required at the ground rises:
//
//	ψ = max(0, arccos((R/d)·cos e) − e)
//
// Everything in this package is a pure function of its inputs except
// GridCache, which memoizes quadrature grids by resolution.
package coverage

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// EarthRadiusKm is the reference sphere radius (WGS-84 equatorial).
	EarthRadiusKm = 6378.137

	// SphereAreaKm2 is the total area of the reference sphere, 4πR².
	SphereAreaKm2 = 4 * math.Pi * EarthRadiusKm * EarthRadiusKm

	// surfaceTolerance is the relative distance above R still treated as
	// on the surface.
	surfaceTolerance = 1e-12
)

// Cap is a spherical cap on the reference sphere. Axis is a unit vector
// from the centre toward the satellite; CentralAngle is the half-angle ψ in
// radians. The zero Cap covers nothing.
type Cap struct {
	Axis         r3.Vec
	CentralAngle float64
}

// Valid reports whether the cap has a finite positive angle and a usable
// axis. Invalid caps contribute nothing to a union.
func (c Cap) Valid() bool {
	if !(c.CentralAngle > 0) || math.IsInf(c.CentralAngle, 0) {
		return false
	}
	n := r3.Norm(c.Axis)
	return n > 0 && !math.IsNaN(n) && !math.IsInf(n, 0)
}

// AreaKm2 returns the exact cap area 2πR²(1 − cos ψ).
func (c Cap) AreaKm2() float64 {
	if !(c.CentralAngle > 0) {
		return 0
	}
	return 2 * math.Pi * EarthRadiusKm * EarthRadiusKm * (1 - math.Cos(c.CentralAngle))
}

// Percent returns the cap area as a percentage of the sphere.
func (c Cap) Percent() float64 {
	return c.AreaKm2() / SphereAreaKm2 * 100
}

// CentralAngleDeg returns ψ in degrees.
func (c Cap) CentralAngleDeg() float64 {
	return c.CentralAngle * 180 / math.Pi
}

// FromPosition returns the cap visible from a satellite at pos (km, any
// Earth-centred frame) for a minimum elevation angle in degrees. The angle
// is clamped to [0, 90]; NaN is treated as 0.
//
// A satellite at or below the surface, or a non-finite position, yields
// the zero Cap rather than an error.
func FromPosition(pos r3.Vec, minElevationDeg float64) Cap {
	d := r3.Norm(pos)
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= EarthRadiusKm*(1+surfaceTolerance) {
		return Cap{}
	}

	e := clampElevation(minElevationDeg) * math.Pi / 180
	psi := math.Acos(EarthRadiusKm/d*math.Cos(e)) - e
	if !(psi > 0) {
		psi = 0
	}
	return Cap{Axis: r3.Scale(1/d, pos), CentralAngle: psi}
}

func clampElevation(deg float64) float64 {
	switch {
	case math.IsNaN(deg), deg < 0:
		return 0
	case deg > 90:
		return 90
	}
	return deg
}
