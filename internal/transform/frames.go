// Package transform provides the frame conversions around the propagator's
// inertial output: the GMST rotation into an Earth-fixed frame, the spherical
// sub-satellite point, and the renderer scene remap.
//
// Method: GMST-only rotation about Z (inertial → PEF ≈ Earth-fixed). Polar
// motion and the equation of the equinoxes are ignored, which is well below
// the accuracy of a two-body propagator.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// EarthFixed holds a position and velocity in the Earth-fixed frame (km, km/s).
type EarthFixed struct {
	Position r3.Vec
	Velocity r3.Vec
}

// InertialToEarthFixed rotates an inertial state into the Earth-fixed frame
// at the given UTC time.
func InertialToEarthFixed(pos, vel r3.Vec, t time.Time) EarthFixed {
	return InertialToEarthFixedWithGMST(pos, vel, GMST(t))
}

// InertialToEarthFixedWithGMST rotates using a precomputed GMST angle (radians).
// Useful when converting many satellites at the same instant.
//
// Position transform: r_EF = R3(θ) * r_I
// Velocity transform: v_EF = R3(θ) * v_I - ω × r_EF
func InertialToEarthFixedWithGMST(pos, vel r3.Vec, gmst float64) EarthFixed {
	sinG, cosG := math.Sincos(gmst)

	p := r3.Vec{
		X: pos.X*cosG + pos.Y*sinG,
		Y: -pos.X*sinG + pos.Y*cosG,
		Z: pos.Z,
	}
	v := r3.Vec{
		X: vel.X*cosG + vel.Y*sinG + OmegaEarth*p.Y,
		Y: -vel.X*sinG + vel.Y*cosG - OmegaEarth*p.X,
		Z: vel.Z,
	}
	return EarthFixed{Position: p, Velocity: v}
}

// Subpoint is the point on a spherical Earth directly below a satellite.
type Subpoint struct {
	LatDeg float64 `json:"lat_deg" yaml:"lat_deg"`
	LonDeg float64 `json:"lon_deg" yaml:"lon_deg"` // [-180, 180]
}

// SubpointOf returns the spherical latitude/longitude of an Earth-fixed
// position. The zero vector maps to (0, 0).
func SubpointOf(ef r3.Vec) Subpoint {
	rho := math.Hypot(ef.X, ef.Y)
	if rho == 0 && ef.Z == 0 {
		return Subpoint{}
	}
	return Subpoint{
		LatDeg: math.Atan2(ef.Z, rho) * 180 / math.Pi,
		LonDeg: math.Atan2(ef.Y, ef.X) * 180 / math.Pi,
	}
}

// ValidPosition checks that a position (km) is physically reasonable for an
// Earth-orbiting satellite: finite, and between 6200 km and 50000 km from
// the centre.
func ValidPosition(pos r3.Vec) bool {
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
		return false
	}
	if math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return false
	}
	mag := r3.Norm(pos)
	return mag >= 6200.0 && mag <= 50000.0
}
