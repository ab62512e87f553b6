package propagation

import (
	"time"

	"github.com/escapeSeq/spacecore-orbits/internal/tle"
	"gonum.org/v1/gonum/spatial/r3"
)

// StateVector is the inertial state of one satellite at one instant.
// It is a pure function of (elements, time) and is never mutated.
type StateVector struct {
	Position   r3.Vec  // km
	Velocity   r3.Vec  // km/s
	RadiusKm   float64 // |Position|
	AltitudeKm float64 // RadiusKm above the equatorial radius

	// Converged is false when the Kepler solver hit its iteration cap.
	// The state is still the best available approximation.
	Converged  bool
	Iterations int
}

// Frame holds the states of every catalog satellite at a single instant.
// States is parallel to Catalog.Satellites.
type Frame struct {
	Time    time.Time
	Catalog *tle.Catalog
	States  []StateVector
}

// Drift compares the two-body state of one satellite against SGP4.
type Drift struct {
	CatalogNumber int       `json:"norad_id" yaml:"norad_id"`
	Name          string    `json:"name" yaml:"name"`
	Time          time.Time `json:"time" yaml:"time"`
	PositionKm    float64   `json:"position_km" yaml:"position_km"`
	VelocityKmS   float64   `json:"velocity_km_s" yaml:"velocity_km_s"`
	RadiusKm      float64   `json:"radius_delta_km" yaml:"radius_delta_km"`
}
