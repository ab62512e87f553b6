package tle

import (
	"math"
	"time"
)

// Physical constants used to derive orbit geometry from mean elements.
const (
	MuEarth       = 398600.4418 // km³/s², Earth gravitational parameter
	EarthRadiusKm = 6378.137    // WGS-84 equatorial radius, km
	MinutesPerDay = 1440.0
	secondsPerDay = 86400.0
)

// OrbitalElements is a parsed two-line element set. Angles are stored in
// degrees as they appear in the TLE; use the Rad helpers for computation.
// Values are never mutated after ParseElements returns.
type OrbitalElements struct {
	Name          string
	CatalogNumber int
	Epoch         time.Time

	// Line1 and Line2 keep the source cards for reference propagators.
	Line1, Line2 string

	Inclination   float64 // degrees
	RAAN          float64 // degrees
	Eccentricity  float64
	ArgOfPerigee  float64 // degrees
	MeanAnomaly   float64 // degrees
	MeanMotion    float64 // rev/day
	MeanMotionDot float64 // rev/day², as written in the TLE (ṅ/2)
	BStar         float64 // 1/earth radii

	// Derived at parse time.
	SemiMajorAxisKm float64
	Period          time.Duration
}

// PerigeeAltitudeKm returns the perigee height above the equatorial radius.
func (e *OrbitalElements) PerigeeAltitudeKm() float64 {
	return e.SemiMajorAxisKm*(1-e.Eccentricity) - EarthRadiusKm
}

// ApogeeAltitudeKm returns the apogee height above the equatorial radius.
func (e *OrbitalElements) ApogeeAltitudeKm() float64 {
	return e.SemiMajorAxisKm*(1+e.Eccentricity) - EarthRadiusKm
}

// MeanMotionRadPerMin returns the epoch mean motion in rad/min.
func (e *OrbitalElements) MeanMotionRadPerMin() float64 {
	return e.MeanMotion * 2 * math.Pi / MinutesPerDay
}

// InclinationRad returns the inclination in radians.
func (e *OrbitalElements) InclinationRad() float64 { return e.Inclination * math.Pi / 180 }

// RAANRad returns the right ascension of the ascending node in radians.
func (e *OrbitalElements) RAANRad() float64 { return e.RAAN * math.Pi / 180 }

// ArgOfPerigeeRad returns the argument of perigee in radians.
func (e *OrbitalElements) ArgOfPerigeeRad() float64 { return e.ArgOfPerigee * math.Pi / 180 }

// MeanAnomalyRad returns the epoch mean anomaly in radians.
func (e *OrbitalElements) MeanAnomalyRad() float64 { return e.MeanAnomaly * math.Pi / 180 }

// semiMajorAxis applies Kepler's third law, a = (µ/n²)^(1/3), with n in rad/s.
func semiMajorAxis(revPerDay float64) float64 {
	n := revPerDay * 2 * math.Pi / secondsPerDay
	return math.Cbrt(MuEarth / (n * n))
}

// EpochRange represents the minimum and maximum epoch times in a catalog.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Catalog is a complete set of element records loaded from one source.
type Catalog struct {
	Source     string
	LoadedAt   time.Time
	EpochRange EpochRange
	Satellites []*OrbitalElements

	byNumber map[int]*OrbitalElements
}

// NewCatalog builds a Catalog and computes its epoch range.
func NewCatalog(source string, loadedAt time.Time, sats []*OrbitalElements) *Catalog {
	c := &Catalog{
		Source:     source,
		LoadedAt:   loadedAt,
		Satellites: sats,
		byNumber:   make(map[int]*OrbitalElements, len(sats)),
	}
	for i, s := range sats {
		if _, dup := c.byNumber[s.CatalogNumber]; !dup {
			c.byNumber[s.CatalogNumber] = s
		}
		if i == 0 || s.Epoch.Before(c.EpochRange.Min) {
			c.EpochRange.Min = s.Epoch
		}
		if i == 0 || s.Epoch.After(c.EpochRange.Max) {
			c.EpochRange.Max = s.Epoch
		}
	}
	return c
}

// Lookup returns the element record for a catalog number, or nil. With
// duplicate numbers the first record wins.
func (c *Catalog) Lookup(catalogNumber int) *OrbitalElements {
	return c.byNumber[catalogNumber]
}
