package coverage

import (
	"github.com/escapeSeq/spacecore-orbits/internal/transform"
	"gonum.org/v1/gonum/spatial/r3"
)

// Record is the per-satellite coverage output.
type Record struct {
	CatalogNumber       int                `json:"norad_id" yaml:"norad_id"`
	Name                string             `json:"name" yaml:"name"`
	CentralAngle        float64            `json:"central_angle" yaml:"central_angle"` // radians
	CentralAngleDeg     float64            `json:"central_angle_deg" yaml:"central_angle_deg"`
	CoverageAreaKm2     float64            `json:"coverage_area_km2" yaml:"coverage_area_km2"`
	CoveragePercentage  float64            `json:"coverage_percentage" yaml:"coverage_percentage"`
	SatelliteAltitudeKm float64            `json:"satellite_altitude_km" yaml:"satellite_altitude_km"`
	Direction           [3]float64         `json:"direction" yaml:"direction"`
	Subpoint            transform.Subpoint `json:"subpoint" yaml:"subpoint"`
	ScenePosition       [3]float64         `json:"scene_position" yaml:"scene_position"`
}

// NewRecord fills the geometric fields of a Record from an inertial
// position and its cap. Identity, sub-satellite point and scene position
// are left to the caller.
func NewRecord(pos r3.Vec, c Cap) Record {
	return Record{
		CentralAngle:        c.CentralAngle,
		CentralAngleDeg:     c.CentralAngleDeg(),
		CoverageAreaKm2:     c.AreaKm2(),
		CoveragePercentage:  c.Percent(),
		SatelliteAltitudeKm: r3.Norm(pos) - EarthRadiusKm,
		Direction:           [3]float64{c.Axis.X, c.Axis.Y, c.Axis.Z},
	}
}
