package tle

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
)

// ISS fixture bundled with the engine. Its checksum digits are not valid;
// parsing must not depend on them.
const (
	issName  = "ISS (ZARYA)"
	issLine1 = "1 25544U 98067A   24001.00000000  .00020137  00000-0  16538-3 0  9993"
	issLine2 = "2 25544  51.6461 339.2377 0001078  88.2548 271.9142 15.48919103123456"
)

// Real element sets with valid checksums.
var validLines = []string{
	"1 25544U 98067A   25025.00048859  .00033214  00000+0  57704-3 0  9996",
	"2 25544  51.6377 296.2827 0003104 141.8447 313.9175 15.50506992492954",
	"1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927",
	"2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537",
	"1 43744U 18096AB  19115.19815699  .00002003  00000-0  78676-4 0  9994",
	"2 43744  97.4641 185.2907 0018688 163.4737 196.7173 15.26755683 22421",
	"1 33591U 09005A   25074.18988975  .00000419  00000+0  24768-3 0  9991",
	"2 33591  99.0072 138.3781 0012918 245.4492 114.5334 14.13308947829901",
}

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func TestParseElementsISS(t *testing.T) {
	el, err := ParseElements(issLine1, issLine2, issName)
	if err != nil {
		t.Fatalf("ParseElements failed: %v", err)
	}

	if el.Name != issName {
		t.Errorf("Name = %q, want %q", el.Name, issName)
	}
	if el.CatalogNumber != 25544 {
		t.Errorf("CatalogNumber = %d, want 25544", el.CatalogNumber)
	}
	wantEpoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !el.Epoch.Equal(wantEpoch) {
		t.Errorf("Epoch = %v, want %v", el.Epoch, wantEpoch)
	}

	fields := []struct {
		name string
		got  float64
		want float64
	}{
		{"Inclination", el.Inclination, 51.6461},
		{"RAAN", el.RAAN, 339.2377},
		{"Eccentricity", el.Eccentricity, 0.0001078},
		{"ArgOfPerigee", el.ArgOfPerigee, 88.2548},
		{"MeanAnomaly", el.MeanAnomaly, 271.9142},
		{"MeanMotion", el.MeanMotion, 15.48919103},
		{"MeanMotionDot", el.MeanMotionDot, 0.00020137},
		{"BStar", el.BStar, 0.16538e-3},
	}
	for _, f := range fields {
		if !scalar.EqualWithinAbs(f.got, f.want, 1e-10) {
			t.Errorf("%s = %v, want %v", f.name, f.got, f.want)
		}
	}

	// Period ≈ 92.9 min within 0.5%.
	period := el.Period.Minutes()
	if !scalar.EqualWithinRel(period, 92.9, 0.005) {
		t.Errorf("Period = %.3f min, want 92.9 ± 0.5%%", period)
	}

	// a = (µ/n²)^(1/3) ≈ 6798 km for the ISS.
	if !scalar.EqualWithinAbs(el.SemiMajorAxisKm, 6798.02, 0.05) {
		t.Errorf("SemiMajorAxisKm = %.3f, want ~6798.02", el.SemiMajorAxisKm)
	}

	// Perigee ≈ 419.2 km, apogee ≈ 420.6 km above the equatorial radius.
	if p := el.PerigeeAltitudeKm(); p < 400 || p > 420 {
		t.Errorf("PerigeeAltitudeKm = %.2f, want within [400, 420]", p)
	}
	if a := el.ApogeeAltitudeKm(); a < 400 || a > 421 {
		t.Errorf("ApogeeAltitudeKm = %.2f, want within [400, 421]", a)
	}
	if el.ApogeeAltitudeKm() < el.PerigeeAltitudeKm() {
		t.Error("apogee below perigee")
	}
}

func TestParseElementsNegativeFields(t *testing.T) {
	el, err := ParseElements(validLines[2], validLines[3], "")
	if err != nil {
		t.Fatalf("ParseElements failed: %v", err)
	}
	if !scalar.EqualWithinAbs(el.MeanMotionDot, -0.00002182, 1e-12) {
		t.Errorf("MeanMotionDot = %v, want -0.00002182", el.MeanMotionDot)
	}
	if !scalar.EqualWithinAbs(el.BStar, -0.11606e-4, 1e-12) {
		t.Errorf("BStar = %v, want -0.11606e-4", el.BStar)
	}
	wantEpoch := time.Date(2008, 9, 20, 12, 25, 40, 104192000, time.UTC)
	if d := el.Epoch.Sub(wantEpoch); math.Abs(d.Seconds()) > 1e-3 {
		t.Errorf("Epoch = %v, want %v", el.Epoch, wantEpoch)
	}
}

func TestParseElementsY2KPivot(t *testing.T) {
	tests := []struct {
		yy   string
		want int
	}{
		{"00", 2000},
		{"56", 2056},
		{"57", 1957},
		{"98", 1998},
	}
	for _, tt := range tests {
		t.Run(tt.yy, func(t *testing.T) {
			line1 := issLine1[:18] + tt.yy + issLine1[20:]
			el, err := ParseElements(line1, issLine2, issName)
			if err != nil {
				t.Fatalf("ParseElements failed: %v", err)
			}
			if el.Epoch.Year() != tt.want {
				t.Errorf("epoch year = %d, want %d", el.Epoch.Year(), tt.want)
			}
		})
	}
}

func TestParseElementsErrors(t *testing.T) {
	tests := []struct {
		name   string
		line1  string
		line2  string
		reason Reason
		line   int
		field  string
		target error
	}{
		{
			name:   "short line 1",
			line1:  issLine1[:60],
			line2:  issLine2,
			reason: ReasonShortLine, line: 1, target: ErrShortLine,
		},
		{
			name:   "short line 2",
			line1:  issLine1,
			line2:  issLine2[:68],
			reason: ReasonShortLine, line: 2, target: ErrShortLine,
		},
		{
			name:   "line 1 wrong card",
			line1:  "3" + issLine1[1:],
			line2:  issLine2,
			reason: ReasonLineNumber, line: 1, target: ErrLineNumber,
		},
		{
			name:   "lines swapped",
			line1:  issLine2,
			line2:  issLine1,
			reason: ReasonLineNumber, line: 1, target: ErrLineNumber,
		},
		{
			name:   "bad catalog number",
			line1:  issLine1[:2] + "25X44" + issLine1[7:],
			line2:  issLine2,
			reason: ReasonField, line: 1, field: "catalog_number", target: ErrField,
		},
		{
			name:   "bad epoch day",
			line1:  issLine1[:20] + "001.0000X000" + issLine1[32:],
			line2:  issLine2,
			reason: ReasonField, line: 1, field: "epoch_day", target: ErrField,
		},
		{
			name:   "bad inclination",
			line1:  issLine1,
			line2:  issLine2[:8] + " 51.6x61" + issLine2[16:],
			reason: ReasonField, line: 2, field: "inclination", target: ErrField,
		},
		{
			name:   "bad eccentricity",
			line1:  issLine1,
			line2:  issLine2[:26] + "00-1078" + issLine2[33:],
			reason: ReasonField, line: 2, field: "eccentricity", target: ErrField,
		},
		{
			name:   "bad bstar",
			line1:  issLine1[:53] + " 165a8-3" + issLine1[61:],
			line2:  issLine2,
			reason: ReasonField, line: 1, field: "bstar", target: ErrField,
		},
		{
			name:   "zero mean motion",
			line1:  issLine1,
			line2:  issLine2[:52] + " 0.00000000" + issLine2[63:],
			reason: ReasonRange, line: 2, field: "mean_motion", target: ErrRange,
		},
		{
			name:   "NaN mean motion",
			line1:  issLine1,
			line2:  issLine2[:52] + "        NaN" + issLine2[63:],
			reason: ReasonField, line: 2, field: "mean_motion", target: ErrField,
		},
		{
			name:   "Inf mean motion",
			line1:  issLine1,
			line2:  issLine2[:52] + "       +Inf" + issLine2[63:],
			reason: ReasonField, line: 2, field: "mean_motion", target: ErrField,
		},
		{
			name:   "NaN inclination",
			line1:  issLine1,
			line2:  issLine2[:8] + "     NaN" + issLine2[16:],
			reason: ReasonField, line: 2, field: "inclination", target: ErrField,
		},
		{
			name:   "Inf raan",
			line1:  issLine1,
			line2:  issLine2[:17] + "    -Inf" + issLine2[25:],
			reason: ReasonField, line: 2, field: "raan", target: ErrField,
		},
		{
			name:   "NaN epoch day",
			line1:  issLine1[:20] + "         NaN" + issLine1[32:],
			line2:  issLine2,
			reason: ReasonField, line: 1, field: "epoch_day", target: ErrField,
		},
		{
			name:   "signed catalog number",
			line1:  issLine1[:2] + "   -5" + issLine1[7:],
			line2:  issLine2,
			reason: ReasonField, line: 1, field: "catalog_number", target: ErrField,
		},
		{
			name:   "plus-signed catalog number",
			line1:  issLine1[:2] + "   +5" + issLine1[7:],
			line2:  issLine2,
			reason: ReasonField, line: 1, field: "catalog_number", target: ErrField,
		},
		{
			name:   "zero catalog number",
			line1:  issLine1[:2] + "00000" + issLine1[7:],
			line2:  issLine2,
			reason: ReasonRange, line: 1, field: "catalog_number", target: ErrRange,
		},
		{
			name:   "signed epoch year",
			line1:  issLine1[:18] + "-1" + issLine1[20:],
			line2:  issLine2,
			reason: ReasonField, line: 1, field: "epoch_year", target: ErrField,
		},
		{
			name:   "epoch day zero",
			line1:  issLine1[:20] + "000.00000000" + issLine1[32:],
			line2:  issLine2,
			reason: ReasonRange, line: 1, field: "epoch_day", target: ErrRange,
		},
		{
			name:   "epoch day 400",
			line1:  issLine1[:20] + "400.00000000" + issLine1[32:],
			line2:  issLine2,
			reason: ReasonRange, line: 1, field: "epoch_day", target: ErrRange,
		},
		{
			name:   "inclination above 180",
			line1:  issLine1,
			line2:  issLine2[:8] + " 181.000" + issLine2[16:],
			reason: ReasonRange, line: 2, field: "inclination", target: ErrRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := ParseElements(tt.line1, tt.line2, issName)
			if err == nil {
				t.Fatalf("expected error, got elements %+v", el)
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("error %T is not *FormatError: %v", err, err)
			}
			if fe.Reason != tt.reason {
				t.Errorf("Reason = %v, want %v", fe.Reason, tt.reason)
			}
			if fe.Line != tt.line {
				t.Errorf("Line = %d, want %d", fe.Line, tt.line)
			}
			if fe.Field != tt.field {
				t.Errorf("Field = %q, want %q", fe.Field, tt.field)
			}
			if !errors.Is(err, tt.target) {
				t.Errorf("errors.Is(err, %v) = false", tt.target)
			}
		})
	}
}

func TestParseElementsTrailingCR(t *testing.T) {
	if _, err := ParseElements(issLine1+"\r", issLine2+"\r\n", issName); err != nil {
		t.Fatalf("ParseElements with CRLF endings failed: %v", err)
	}
}

func TestParseCatalog(t *testing.T) {
	data := strings.Join([]string{
		issName, issLine1, issLine2,
		"", // blank lines are ignored
		validLines[4], validLines[5], // unnamed two-line entry
		"BROKEN SAT",
		"1 99999U garbage",
		"2 99999 garbage",
		"NOAA 19", validLines[6], validLines[7],
		"ISS DUPLICATE", validLines[0], validLines[1],
	}, "\n")

	entries, err := Parse(strings.NewReader(data), testLogger)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	wantIDs := []int{25544, 43744, 33591}
	if len(entries) != len(wantIDs) {
		t.Fatalf("got %d entries, want %d", len(entries), len(wantIDs))
	}
	for i, id := range wantIDs {
		if entries[i].CatalogNumber != id {
			t.Errorf("entry %d: catalog number = %d, want %d", i, entries[i].CatalogNumber, id)
		}
	}
	if entries[0].Name != issName {
		t.Errorf("first entry name = %q, want %q", entries[0].Name, issName)
	}
	if entries[1].Name != "" {
		t.Errorf("unnamed entry name = %q, want empty", entries[1].Name)
	}
	if entries[2].Name != "NOAA 19" {
		t.Errorf("third entry name = %q, want NOAA 19", entries[2].Name)
	}
}

func TestNewCatalogEpochRange(t *testing.T) {
	a, _ := ParseElements(issLine1, issLine2, issName)
	b, _ := ParseElements(validLines[0], validLines[1], "ISS 2025")
	c, _ := ParseElements(validLines[2], validLines[3], "ISS 2008")

	cat := NewCatalog("test", time.Now(), []*OrbitalElements{a, b, c})
	if !cat.EpochRange.Min.Equal(c.Epoch) {
		t.Errorf("EpochRange.Min = %v, want %v", cat.EpochRange.Min, c.Epoch)
	}
	if !cat.EpochRange.Max.Equal(b.Epoch) {
		t.Errorf("EpochRange.Max = %v, want %v", cat.EpochRange.Max, b.Epoch)
	}
	if cat.Lookup(25544) != a {
		t.Error("Lookup(25544) should return the first matching entry")
	}
	if cat.Lookup(1) != nil {
		t.Error("Lookup of unknown catalog number should return nil")
	}
}

func TestStore(t *testing.T) {
	s := NewStore()
	if s.Get() != nil {
		t.Fatal("new store should be empty")
	}
	if age := s.AgeSeconds(); age != -1 {
		t.Errorf("AgeSeconds on empty store = %v, want -1", age)
	}

	s.Set(NewCatalog("test", time.Now().Add(-10*time.Second), nil))
	if s.Get() == nil {
		t.Fatal("expected catalog after Set")
	}
	if age := s.AgeSeconds(); age < 9 || age > 60 {
		t.Errorf("AgeSeconds = %v, want ~10", age)
	}

	first := s.Get()
	prev := s.Swap(NewCatalog("next", time.Now(), nil))
	if prev != first {
		t.Error("Swap should return the catalog it replaced")
	}
	if got := s.Get().Source; got != "next" {
		t.Errorf("Source after Swap = %q, want next", got)
	}
}

func TestCatalogLookupFirstWins(t *testing.T) {
	a := &OrbitalElements{CatalogNumber: 7, Name: "A"}
	b := &OrbitalElements{CatalogNumber: 7, Name: "B"}
	cat := NewCatalog("dup", time.Now(), []*OrbitalElements{a, b})
	if got := cat.Lookup(7); got != a {
		t.Errorf("Lookup(7) = %v, want the first record", got)
	}
}
