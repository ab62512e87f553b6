package propagation

import (
	"math"
	"time"

	"github.com/escapeSeq/spacecore-orbits/internal/tle"
	"gonum.org/v1/gonum/spatial/r3"
)

// Propagate returns the inertial state of el at the given time using
// two-body motion with a first-order mean-motion correction:
//
//	n' = n + ṅ·Δt,  M = M₀ + n'·Δt
//
// where ṅ is the TLE mean-motion-derivative field (already halved in the
// element set) and Δt is in minutes since epoch. Drag, J2 and deep-space
// terms are not modelled, so states drift from real ephemerides over days.
//
// Propagate never fails. Degenerate elements produce non-finite values and
// a solver that did not converge is reported through StateVector.Converged.
func Propagate(el *tle.OrbitalElements, at time.Time) StateVector {
	dt := at.Sub(el.Epoch).Minutes()

	n := el.MeanMotionRadPerMin() + el.MeanMotionDot*2*math.Pi/(tle.MinutesPerDay*tle.MinutesPerDay)*dt
	m := math.Mod(el.MeanAnomalyRad()+n*dt, 2*math.Pi)
	if m < 0 {
		m += 2 * math.Pi
	}

	e := el.Eccentricity
	E, iterations, converged := SolveKepler(m, e)

	sinHalf, cosHalf := math.Sincos(E / 2)
	nu := 2 * math.Atan2(math.Sqrt(1+e)*sinHalf, math.Sqrt(1-e)*cosHalf)
	sinNu, cosNu := math.Sincos(nu)

	a := el.SemiMajorAxisKm
	r := a * (1 - e*math.Cos(E))
	p := a * (1 - e*e)
	vScale := math.Sqrt(tle.MuEarth / p)

	// Perifocal frame: x toward perigee, z along the angular momentum.
	pos := r3.Vec{X: r * cosNu, Y: r * sinNu}
	vel := r3.Vec{X: -vScale * sinNu, Y: vScale * (e + cosNu)}

	rot := perifocalToInertial(el.RAANRad(), el.InclinationRad(), el.ArgOfPerigeeRad())
	pos = rot.apply(pos)
	vel = rot.apply(vel)

	radius := r3.Norm(pos)
	return StateVector{
		Position:   pos,
		Velocity:   vel,
		RadiusKm:   radius,
		AltitudeKm: radius - tle.EarthRadiusKm,
		Converged:  converged,
		Iterations: iterations,
	}
}

// rotation is a row-major 3×3 matrix.
type rotation [3]r3.Vec

func (m rotation) apply(v r3.Vec) r3.Vec {
	return r3.Vec{X: r3.Dot(m[0], v), Y: r3.Dot(m[1], v), Z: r3.Dot(m[2], v)}
}

// perifocalToInertial builds Rz(Ω)·Rx(i)·Rz(ω), the 3-1-3 Euler sequence.
func perifocalToInertial(raan, inc, argp float64) rotation {
	sO, cO := math.Sincos(raan)
	si, ci := math.Sincos(inc)
	sw, cw := math.Sincos(argp)

	return rotation{
		{X: cO*cw - sO*sw*ci, Y: -cO*sw - sO*cw*ci, Z: sO * si},
		{X: sO*cw + cO*sw*ci, Y: -sO*sw + cO*cw*ci, Z: -cO * si},
		{X: sw * si, Y: cw * si, Z: ci},
	}
}
