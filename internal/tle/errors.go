package tle

import (
	"errors"
	"fmt"
)

// Reason classifies why a TLE failed to parse.
type Reason int

const (
	// ReasonShortLine means a line is shorter than 69 characters.
	ReasonShortLine Reason = iota + 1
	// ReasonLineNumber means a line does not start with its card number.
	ReasonLineNumber
	// ReasonField means a fixed-column numeric field is not a number.
	ReasonField
	// ReasonRange means a field parsed but is outside its physical range.
	ReasonRange
)

func (r Reason) String() string {
	switch r {
	case ReasonShortLine:
		return "short_line"
	case ReasonLineNumber:
		return "line_number"
	case ReasonField:
		return "field"
	case ReasonRange:
		return "range"
	default:
		return "unknown"
	}
}

// Sentinels matched by FormatError.Is, one per Reason.
var (
	ErrShortLine  = errors.New("tle: line too short")
	ErrLineNumber = errors.New("tle: wrong line number")
	ErrField      = errors.New("tle: malformed field")
	ErrRange      = errors.New("tle: field out of range")
)

// FormatError reports a malformed TLE. It is the only error kind produced by
// the parser.
type FormatError struct {
	Reason Reason
	Line   int    // 1 or 2
	Field  string // empty for line-level failures
	Err    error  // underlying cause, may be nil
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("tle line %d: %s", e.Line, e.Reason)
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is lets errors.Is match a FormatError against its Reason sentinel.
func (e *FormatError) Is(target error) bool {
	switch target {
	case ErrShortLine:
		return e.Reason == ReasonShortLine
	case ErrLineNumber:
		return e.Reason == ReasonLineNumber
	case ErrField:
		return e.Reason == ReasonField
	case ErrRange:
		return e.Reason == ReasonRange
	}
	return false
}
