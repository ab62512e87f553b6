package coverage

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// containmentEpsilon is the numerical slack for cap containment and the
// per-sample coverage test.
const containmentEpsilon = 1e-12

// Grid steps chosen by Resolution, in degrees.
const (
	FineStepDeg   = 0.25
	MediumStepDeg = 0.5
	CoarseStepDeg = 1.0
)

// Separation returns the angle in radians between two unit vectors. The
// atan2 form stays accurate for nearly parallel and antiparallel axes.
func Separation(a, b r3.Vec) float64 {
	return math.Atan2(r3.Norm(r3.Cross(a, b)), r3.Dot(a, b))
}

// contains reports whether outer covers all of inner.
func contains(outer, inner Cap) bool {
	return outer.CentralAngle >= inner.CentralAngle+Separation(outer.Axis, inner.Axis)-containmentEpsilon
}

// Prune drops invalid caps and every cap entirely contained in another.
// Of two caps that contain each other, the one earlier in the input is
// kept. The union of the result equals the union of the input.
func Prune(caps []Cap) []Cap {
	valid := make([]Cap, 0, len(caps))
	for _, c := range caps {
		if c.Valid() {
			c.Axis = r3.Unit(c.Axis)
			valid = append(valid, c)
		}
	}

	out := make([]Cap, 0, len(valid))
	for i, ci := range valid {
		dominated := false
		for j, cj := range valid {
			if i == j || !contains(cj, ci) {
				continue
			}
			if j < i || !contains(ci, cj) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, ci)
		}
	}
	return out
}

// Resolution picks the grid step in degrees from the number of caps and
// the smallest central angle among them. Small caps and dense
// constellations need finer sampling.
func Resolution(caps []Cap) float64 {
	if len(caps) == 0 {
		return CoarseStepDeg
	}
	minDeg := math.Inf(1)
	for _, c := range caps {
		minDeg = math.Min(minDeg, c.CentralAngleDeg())
	}

	switch {
	case len(caps) > 40 || minDeg < 3:
		return FineStepDeg
	case len(caps) > 20 || minDeg < 6:
		return MediumStepDeg
	}
	return CoarseStepDeg
}

// Result is the union coverage estimate.
type Result struct {
	Percent   float64 `json:"percent" yaml:"percent"`
	AreaKm2   float64 `json:"area_km2" yaml:"area_km2"`
	Caps      int     `json:"caps" yaml:"caps"`
	Surviving int     `json:"surviving_caps" yaml:"surviving_caps"`
	StepDeg   float64 `json:"step_deg" yaml:"step_deg"`
	Samples   int     `json:"samples" yaml:"samples"`
}

// Estimator computes union coverage with grids from a shared cache.
type Estimator struct {
	grids *GridCache
}

// NewEstimator returns an Estimator using grids. A nil cache gets a
// private one.
func NewEstimator(grids *GridCache) *Estimator {
	if grids == nil {
		grids = NewGridCache()
	}
	return &Estimator{grids: grids}
}

// Union estimates the fraction of the sphere covered by at least one cap.
// With no valid caps the result is exactly zero.
func (e *Estimator) Union(caps []Cap) Result {
	surviving := Prune(caps)
	res := Result{Caps: len(caps), Surviving: len(surviving)}
	if len(surviving) == 0 {
		return res
	}

	res.StepDeg = Resolution(surviving)
	g := e.grids.Get(res.StepDeg, res.StepDeg)
	res.Samples = g.Samples()

	type capTest struct {
		axis   r3.Vec
		cosPsi float64
		latRad float64
		psi    float64
	}
	tests := make([]capTest, len(surviving))
	for i, c := range surviving {
		tests[i] = capTest{
			axis:   c.Axis,
			cosPsi: math.Cos(c.CentralAngle) - containmentEpsilon,
			latRad: math.Asin(math.Max(-1, math.Min(1, c.Axis.Z))),
			psi:    c.CentralAngle,
		}
	}

	active := make([]capTest, 0, len(tests))
	var covered float64
	for _, band := range g.Bands {
		// A cap can only reach samples whose latitude is within ψ of its
		// axis latitude. Widening by half a band keeps rounding at the
		// boundary from dropping a cap.
		active = active[:0]
		for _, tc := range tests {
			if math.Abs(band.LatRad-tc.latRad) <= tc.psi+band.HalfWidthRad {
				active = append(active, tc)
			}
		}
		if len(active) == 0 {
			continue
		}

		var n int
		for j := range g.CosLon {
			x := band.CosLat * g.CosLon[j]
			y := band.CosLat * g.SinLon[j]
			z := band.SinLat
			for _, tc := range active {
				if x*tc.axis.X+y*tc.axis.Y+z*tc.axis.Z >= tc.cosPsi {
					n++
					break
				}
			}
		}
		covered += float64(n) * band.Weight
	}

	// Weights sum to 1 only up to rounding.
	res.Percent = math.Max(0, math.Min(100, covered*100))
	res.AreaKm2 = res.Percent / 100 * SphereAreaKm2
	return res
}
