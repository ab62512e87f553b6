package transform

import (
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
)

// OmegaEarth is Earth's rotation rate in rad/s.
const OmegaEarth = 7.292115146706979e-5

// JulianDate returns the Julian date of t, treating UTC as UT1.
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// GMST returns Greenwich mean sidereal time in radians, in [0, 2π), using
// the IAU 1982 expression. UT1-UTC is ignored.
func GMST(t time.Time) float64 {
	return sidereal.Mean(JulianDate(t)).Rad()
}
