package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/escapeSeq/spacecore-orbits/internal/tle"
	"github.com/escapeSeq/spacecore-orbits/internal/transform"
	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"
)

// SGP4Reference wraps go-satellite's SGP4 model for one element set. It is
// used to measure how far the two-body model drifts from SGP4, never to
// produce the engine's own states.
//
// Note: Propagate() takes Satellite by value so SGP4 error codes are not visible
// to the caller. We detect propagation failures by checking output for NaN/Inf
// and unreasonable position magnitudes.
type SGP4Reference struct {
	sat           satellite.Satellite
	catalogNumber int
}

// NewSGP4Reference initializes SGP4 from the element set's source cards.
//
// Pre-validates TLE format before passing to the library, because go-satellite
// calls log.Fatal on malformed input (which would kill the process).
func NewSGP4Reference(el *tle.OrbitalElements) (*SGP4Reference, error) {
	if err := validateTLELines(el.Line1, el.Line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", el.CatalogNumber, err)
	}

	sat := satellite.TLEToSat(strings.TrimSpace(el.Line1), strings.TrimSpace(el.Line2), satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", el.CatalogNumber, sat.Error, sat.ErrorStr)
	}
	return &SGP4Reference{sat: sat, catalogNumber: el.CatalogNumber}, nil
}

// validateTLELines performs basic format validation on TLE lines.
// This prevents passing garbage to go-satellite which calls log.Fatal on parse errors.
func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// Propagate returns the SGP4 position and velocity (km, km/s) in the same
// inertial frame as the two-body model. The time is rounded to the nearest
// second, the resolution go-satellite accepts.
func (s *SGP4Reference) Propagate(at time.Time) (pos, vel r3.Vec, err error) {
	t := at.UTC().Round(time.Second)
	p, v := satellite.Propagate(s.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	pos = r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
	vel = r3.Vec{X: v.X, Y: v.Y, Z: v.Z}

	if math.IsNaN(vel.X) || math.IsNaN(vel.Y) || math.IsNaN(vel.Z) {
		return r3.Vec{}, r3.Vec{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: velocity is NaN", s.catalogNumber)
	}
	// Sanity check covers NaN/Inf position and magnitudes outside 6200-50000 km.
	if !transform.ValidPosition(pos) {
		return r3.Vec{}, r3.Vec{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: unreasonable position magnitude %.1f km", s.catalogNumber, r3.Norm(pos))
	}
	return pos, vel, nil
}

// Compare propagates el with both models at the same instant and reports
// the difference.
func (s *SGP4Reference) Compare(el *tle.OrbitalElements, at time.Time) (Drift, error) {
	at = at.UTC().Round(time.Second)
	pos, vel, err := s.Propagate(at)
	if err != nil {
		return Drift{}, err
	}
	sv := Propagate(el, at)
	return Drift{
		CatalogNumber: el.CatalogNumber,
		Name:          el.Name,
		Time:          at,
		PositionKm:    r3.Norm(r3.Sub(sv.Position, pos)),
		VelocityKmS:   r3.Norm(r3.Sub(sv.Velocity, vel)),
		RadiusKm:      sv.RadiusKm - r3.Norm(pos),
	}, nil
}
