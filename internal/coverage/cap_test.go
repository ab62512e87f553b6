package coverage

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

const deg = math.Pi / 180

// issRadius puts a satellite 420 km above the reference sphere.
const issRadius = EarthRadiusKm + 420

func TestFromPositionISS(t *testing.T) {
	pos := r3.Vec{X: issRadius * 0.6, Y: -issRadius * 0.8}
	c := FromPosition(pos, 10)

	if got := c.CentralAngleDeg(); !scalar.EqualWithinAbs(got, 12.48724, 1e-4) {
		t.Errorf("CentralAngleDeg = %.6f, want 12.48724", got)
	}
	if got := c.Percent(); !scalar.EqualWithinAbs(got, 1.18279, 1e-4) {
		t.Errorf("Percent = %.6f, want 1.18279", got)
	}
	if !scalar.EqualWithinAbs(r3.Norm(c.Axis), 1, 1e-12) {
		t.Errorf("|Axis| = %v, want 1", r3.Norm(c.Axis))
	}
	if want := (r3.Vec{X: 0.6, Y: -0.8}); r3.Norm(r3.Sub(c.Axis, want)) > 1e-12 {
		t.Errorf("Axis = %v, want %v", c.Axis, want)
	}
}

func TestFromPositionHorizon(t *testing.T) {
	c := FromPosition(r3.Vec{Z: issRadius}, 0)
	want := math.Acos(EarthRadiusKm / issRadius)
	if !scalar.EqualWithinAbs(c.CentralAngle, want, 1e-15) {
		t.Errorf("CentralAngle at 0° = %v, want arccos(R/d) = %v", c.CentralAngle, want)
	}
}

// TestCentralAngleMonotonic checks ψ strictly decreases with the minimum
// elevation over [0°, 90°) and vanishes at 90°.
func TestCentralAngleMonotonic(t *testing.T) {
	for _, d := range []float64{EarthRadiusKm + 1, issRadius, 26560, 42164} {
		pos := r3.Vec{X: d}
		prev := math.Inf(1)
		for e := 0.0; e < 90; e += 0.25 {
			psi := FromPosition(pos, e).CentralAngle
			if !(psi < prev) {
				t.Fatalf("d=%v: ψ(%v°) = %v not below ψ at previous step %v", d, e, psi, prev)
			}
			prev = psi
		}
		if psi := FromPosition(pos, 90).CentralAngle; psi != 0 {
			t.Errorf("d=%v: ψ(90°) = %v, want 0", d, psi)
		}
	}
}

func TestElevationClamp(t *testing.T) {
	pos := r3.Vec{Y: issRadius}
	tests := []struct {
		name string
		in   float64
		same float64
	}{
		{"negative", -15, 0},
		{"NaN", math.NaN(), 0},
		{"above 90", 120, 90},
		{"+Inf", math.Inf(1), 90},
		{"-Inf", math.Inf(-1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromPosition(pos, tt.in)
			want := FromPosition(pos, tt.same)
			if got != want {
				t.Errorf("FromPosition(_, %v) = %+v, want %+v", tt.in, got, want)
			}
		})
	}
}

func TestCapAreaIdentity(t *testing.T) {
	for _, psi := range []float64{1e-6, 0.01, 0.1, 0.5, 1, math.Pi / 2, 2.5, math.Pi} {
		c := Cap{Axis: r3.Vec{Z: 1}, CentralAngle: psi}
		want := 2 * math.Pi * EarthRadiusKm * EarthRadiusKm * (1 - math.Cos(psi))
		if got := c.AreaKm2(); !scalar.EqualWithinRel(got, want, 1e-6) {
			t.Errorf("AreaKm2(ψ=%v) = %v, want %v", psi, got, want)
		}
		if got, want := c.Percent(), want/SphereAreaKm2*100; !scalar.EqualWithinRel(got, want, 1e-6) {
			t.Errorf("Percent(ψ=%v) = %v, want %v", psi, got, want)
		}
	}
	if got := (Cap{Axis: r3.Vec{Z: 1}, CentralAngle: math.Pi}).Percent(); !scalar.EqualWithinAbs(got, 100, 1e-9) {
		t.Errorf("full sphere Percent = %v, want 100", got)
	}
}

func TestFromPositionDegenerate(t *testing.T) {
	tests := []struct {
		name string
		pos  r3.Vec
	}{
		{"on the surface", r3.Vec{X: EarthRadiusKm}},
		{"on the surface, off axis", r3.Scale(EarthRadiusKm, r3.Unit(r3.Vec{X: 1, Y: 2, Z: -3}))},
		{"below the surface", r3.Vec{Z: 100}},
		{"origin", r3.Vec{}},
		{"NaN", r3.Vec{X: math.NaN(), Y: 7000}},
		{"Inf", r3.Vec{X: math.Inf(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := FromPosition(tt.pos, 10)
			if c.CentralAngle != 0 || c.AreaKm2() != 0 || c.Percent() != 0 {
				t.Errorf("FromPosition(%v) = %+v (area %v), want zero cap", tt.pos, c, c.AreaKm2())
			}
			if c.Valid() {
				t.Error("degenerate cap reported valid")
			}
		})
	}
}

func TestCapValid(t *testing.T) {
	tests := []struct {
		name string
		c    Cap
		want bool
	}{
		{"normal", Cap{Axis: r3.Vec{X: 1}, CentralAngle: 0.2}, true},
		{"zero angle", Cap{Axis: r3.Vec{X: 1}}, false},
		{"negative angle", Cap{Axis: r3.Vec{X: 1}, CentralAngle: -0.1}, false},
		{"NaN angle", Cap{Axis: r3.Vec{X: 1}, CentralAngle: math.NaN()}, false},
		{"Inf angle", Cap{Axis: r3.Vec{X: 1}, CentralAngle: math.Inf(1)}, false},
		{"zero axis", Cap{CentralAngle: 0.2}, false},
		{"NaN axis", Cap{Axis: r3.Vec{Y: math.NaN()}, CentralAngle: 0.2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewRecord(t *testing.T) {
	pos := r3.Vec{Z: issRadius}
	c := FromPosition(pos, 10)
	rec := NewRecord(pos, c)

	if rec.CentralAngle != c.CentralAngle || rec.CoverageAreaKm2 != c.AreaKm2() || rec.CoveragePercentage != c.Percent() {
		t.Errorf("record %+v does not match cap %+v", rec, c)
	}
	if !scalar.EqualWithinAbs(rec.SatelliteAltitudeKm, 420, 1e-9) {
		t.Errorf("SatelliteAltitudeKm = %v, want 420", rec.SatelliteAltitudeKm)
	}
	if rec.Direction != [3]float64{0, 0, 1} {
		t.Errorf("Direction = %v, want [0 0 1]", rec.Direction)
	}
}
