package propagation

import "math"

// Kepler solver limits. The iteration cap bounds the work per call; for
// eccentricities close to 1 Newton's method seeded at M may need more
// steps, in which case the last iterate is returned unconverged.
const (
	KeplerMaxIterations = 10
	KeplerTolerance     = 1e-12
)

// SolveKepler solves M = E - e·sin(E) for the eccentric anomaly E using
// Newton-Raphson seeded at E₀ = M. It returns the last iterate, the number
// of iterations used and whether the step fell below KeplerTolerance.
func SolveKepler(m, e float64) (E float64, iterations int, converged bool) {
	E = m
	for i := 1; i <= KeplerMaxIterations; i++ {
		dE := (E - e*math.Sin(E) - m) / (1 - e*math.Cos(E))
		E -= dE
		if math.Abs(dE) < KeplerTolerance {
			return E, i, true
		}
	}
	return E, KeplerMaxIterations, false
}
