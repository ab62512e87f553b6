package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
)

// minLineLen is the NORAD card width (68 data columns + checksum).
const minLineLen = 69

// ParseElements parses one two-line element set into OrbitalElements.
// Columns follow the NORAD two-card layout. The checksum digit is not
// verified here; see ValidateChecksum.
func ParseElements(line1, line2, name string) (*OrbitalElements, error) {
	line1 = strings.TrimRight(line1, "\r\n")
	line2 = strings.TrimRight(line2, "\r\n")

	if len(line1) < minLineLen {
		return nil, &FormatError{Reason: ReasonShortLine, Line: 1, Err: fmt.Errorf("length %d, need %d", len(line1), minLineLen)}
	}
	if len(line2) < minLineLen {
		return nil, &FormatError{Reason: ReasonShortLine, Line: 2, Err: fmt.Errorf("length %d, need %d", len(line2), minLineLen)}
	}
	if line1[0] != '1' {
		return nil, &FormatError{Reason: ReasonLineNumber, Line: 1, Err: fmt.Errorf("starts with %q", line1[0])}
	}
	if line2[0] != '2' {
		return nil, &FormatError{Reason: ReasonLineNumber, Line: 2, Err: fmt.Errorf("starts with %q", line2[0])}
	}

	el := &OrbitalElements{Name: strings.TrimSpace(name), Line1: line1, Line2: line2}
	var err error

	if el.CatalogNumber, err = intField(line1, 1, "catalog_number", 2, 7); err != nil {
		return nil, err
	}
	if el.CatalogNumber < 1 {
		return nil, &FormatError{Reason: ReasonRange, Line: 1, Field: "catalog_number", Err: fmt.Errorf("%d must be positive", el.CatalogNumber)}
	}

	year, err := intField(line1, 1, "epoch_year", 18, 20)
	if err != nil {
		return nil, err
	}
	day, err := floatField(line1, 1, "epoch_day", 20, 32)
	if err != nil {
		return nil, err
	}
	if !(day >= 1 && day < 367) {
		return nil, &FormatError{Reason: ReasonRange, Line: 1, Field: "epoch_day", Err: fmt.Errorf("%g not in [1,367)", day)}
	}
	el.Epoch = epochTime(year, day)

	if el.MeanMotionDot, err = floatField(line1, 1, "mean_motion_dot", 33, 43); err != nil {
		return nil, err
	}
	if el.BStar, err = exponentField(line1, 1, "bstar", 53, 61); err != nil {
		return nil, err
	}

	if el.Inclination, err = floatField(line2, 2, "inclination", 8, 16); err != nil {
		return nil, err
	}
	if el.RAAN, err = floatField(line2, 2, "raan", 17, 25); err != nil {
		return nil, err
	}
	ecc := strings.TrimSpace(line2[26:33])
	if el.Eccentricity, err = strconv.ParseFloat("0."+ecc, 64); err != nil || ecc == "" {
		return nil, &FormatError{Reason: ReasonField, Line: 2, Field: "eccentricity", Err: fmt.Errorf("invalid value %q", ecc)}
	}
	if el.ArgOfPerigee, err = floatField(line2, 2, "arg_of_perigee", 34, 42); err != nil {
		return nil, err
	}
	if el.MeanAnomaly, err = floatField(line2, 2, "mean_anomaly", 43, 51); err != nil {
		return nil, err
	}
	if el.MeanMotion, err = floatField(line2, 2, "mean_motion", 52, 63); err != nil {
		return nil, err
	}

	// Negated comparisons so NaN never passes a range check.
	if !(el.Eccentricity >= 0 && el.Eccentricity < 1) {
		return nil, &FormatError{Reason: ReasonRange, Line: 2, Field: "eccentricity", Err: fmt.Errorf("%g not in [0,1)", el.Eccentricity)}
	}
	if !(el.MeanMotion > 0) {
		return nil, &FormatError{Reason: ReasonRange, Line: 2, Field: "mean_motion", Err: fmt.Errorf("%g must be positive", el.MeanMotion)}
	}
	if !(el.Inclination >= 0 && el.Inclination <= 180) {
		return nil, &FormatError{Reason: ReasonRange, Line: 2, Field: "inclination", Err: fmt.Errorf("%g not in [0,180]", el.Inclination)}
	}

	el.SemiMajorAxisKm = semiMajorAxis(el.MeanMotion)
	el.Period = time.Duration(MinutesPerDay / el.MeanMotion * float64(time.Minute))

	return el, nil
}

// intField reads an unsigned decimal integer; signs are rejected.
func intField(line string, lineNo int, name string, from, to int) (int, error) {
	s := strings.TrimSpace(line[from:to])
	if s == "" || strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return 0, &FormatError{Reason: ReasonField, Line: lineNo, Field: name, Err: fmt.Errorf("invalid value %q", s)}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &FormatError{Reason: ReasonField, Line: lineNo, Field: name, Err: err}
	}
	return v, nil
}

// floatField reads a finite decimal number. ParseFloat also accepts "NaN"
// and "Inf", which are not valid element values.
func floatField(line string, lineNo int, name string, from, to int) (float64, error) {
	s := strings.TrimSpace(line[from:to])
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &FormatError{Reason: ReasonField, Line: lineNo, Field: name, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &FormatError{Reason: ReasonField, Line: lineNo, Field: name, Err: fmt.Errorf("non-finite value %q", s)}
	}
	return v, nil
}

// exponentField decodes the compact "±MMMMM±E" notation with an assumed
// leading decimal point, e.g. " 16538-3" = 0.16538e-3.
func exponentField(line string, lineNo int, name string, from, to int) (float64, error) {
	s := strings.TrimSpace(line[from:to])
	if len(s) < 3 {
		return 0, &FormatError{Reason: ReasonField, Line: lineNo, Field: name, Err: fmt.Errorf("invalid value %q", s)}
	}

	mantissa, exponent := s[:len(s)-2], s[len(s)-2:]
	sign := 1.0
	switch mantissa[0] {
	case '-':
		sign = -1
		mantissa = mantissa[1:]
	case '+':
		mantissa = mantissa[1:]
	}
	m, err := strconv.ParseFloat("0."+strings.TrimSpace(mantissa), 64)
	if err != nil {
		return 0, &FormatError{Reason: ReasonField, Line: lineNo, Field: name, Err: err}
	}
	exp, err := strconv.Atoi(exponent)
	if err != nil {
		return 0, &FormatError{Reason: ReasonField, Line: lineNo, Field: name, Err: err}
	}
	v := sign * m * math.Pow10(exp)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &FormatError{Reason: ReasonField, Line: lineNo, Field: name, Err: fmt.Errorf("non-finite value %q", s)}
	}
	return v, nil
}

// epochTime converts a two-digit year and fractional day-of-year to UTC.
// Year 00-56 → 2000s, 57-99 → 1900s.
func epochTime(yy int, dayOfYear float64) time.Time {
	year := 1900 + yy
	if yy < 57 {
		year = 2000 + yy
	}
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	// dayOfYear is 1-based: day 1.0 = Jan 1 00:00.
	return t.Add(time.Duration(math.Round((dayOfYear - 1) * float64(24*time.Hour))))
}

// Parse reads a NORAD catalog in 3-line (name + two cards) or bare 2-line
// form and returns the parsed element sets in file order.
// Malformed entries are skipped with a warning log. Duplicate catalog
// numbers keep the first occurrence.
func Parse(r io.Reader, logger *slog.Logger) ([]*OrbitalElements, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	seen := make(map[int]bool)
	var out []*OrbitalElements
	for i := 0; i+1 < len(lines); {
		var name, line1, line2 string
		switch {
		case isCard(lines[i], '1') && isCard(lines[i+1], '2'):
			line1, line2 = lines[i], lines[i+1]
			i += 2
		case i+2 < len(lines) && isCard(lines[i+1], '1') && isCard(lines[i+2], '2'):
			name, line1, line2 = lines[i], lines[i+1], lines[i+2]
			i += 3
		default:
			logger.Warn("skipping malformed TLE entry", "line_index", i, "line", lines[i])
			i++
			continue
		}

		el, err := ParseElements(line1, line2, name)
		if err != nil {
			logger.Warn("skipping TLE entry", "name", strings.TrimSpace(name), "error", err)
			continue
		}
		if seen[el.CatalogNumber] {
			logger.Debug("duplicate TLE entry ignored", "catalog_number", el.CatalogNumber, "name", el.Name)
			continue
		}
		seen[el.CatalogNumber] = true
		out = append(out, el)
	}

	return out, nil
}

func isCard(line string, n byte) bool {
	return len(line) >= 2 && line[0] == n && line[1] == ' '
}
