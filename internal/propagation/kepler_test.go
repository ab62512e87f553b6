package propagation

import (
	"math"
	"testing"
)

// TestSolveKeplerConvergence sweeps e ∈ [0, 0.9) and M ∈ [0, 2π) and checks
// the residual of Kepler's equation.
func TestSolveKeplerConvergence(t *testing.T) {
	const samples = 720
	worst := 0.0
	for ei := 0; ei < 90; ei++ {
		e := float64(ei) / 100
		for k := 0; k < samples; k++ {
			m := 2 * math.Pi * float64(k) / samples
			E, iterations, converged := SolveKepler(m, e)
			if !converged {
				t.Errorf("SolveKepler(%v, %v) did not converge after %d iterations", m, e, iterations)
			}
			residual := math.Abs(E - e*math.Sin(E) - m)
			if residual > worst {
				worst = residual
			}
			if residual >= 1e-9 {
				t.Errorf("SolveKepler(%v, %v): residual %g, want < 1e-9", m, e, residual)
			}
		}
	}
	t.Logf("worst residual: %g", worst)
}

func TestSolveKeplerCircular(t *testing.T) {
	for _, m := range []float64{0, 0.5, math.Pi, 6} {
		E, iterations, converged := SolveKepler(m, 0)
		if E != m {
			t.Errorf("SolveKepler(%v, 0) = %v, want %v", m, E, m)
		}
		if iterations != 1 || !converged {
			t.Errorf("SolveKepler(%v, 0): iterations = %d, converged = %v; want 1, true", m, iterations, converged)
		}
	}
}

// TestSolveKeplerIterationCap verifies that a near-parabolic orbit that
// Newton cannot settle within the cap is reported, not masked.
func TestSolveKeplerIterationCap(t *testing.T) {
	E, iterations, converged := SolveKepler(0.1, 0.99)
	if converged {
		t.Fatalf("SolveKepler(0.1, 0.99) reported convergence, E = %v", E)
	}
	if iterations != KeplerMaxIterations {
		t.Errorf("iterations = %d, want %d", iterations, KeplerMaxIterations)
	}
	if math.IsNaN(E) || math.IsInf(E, 0) {
		t.Errorf("E = %v, want a finite best effort", E)
	}
}
