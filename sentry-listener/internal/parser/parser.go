package parser

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	TagTemperature = 'T'
	TagHumidity    = 'H'
	TagInfo        = 'I'
	TagError       = 'E'
)

var (
	ErrEmptyLine      = errors.New("empty line")
	ErrUnknownTag     = errors.New("unknown tag")
	ErrMalformedValue = errors.New("malformed numeric value")
)

// ParseError reports a line that could not be classified. The line is dropped.
type ParseError struct {
	Line   string
	Reason error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.Line, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Reason }

// Parse classifies a single trimmed line. It carries no state between calls.
// Numeric payloads must parse to a finite float64; NaN and ±Inf are rejected.
func Parse(line string) (Event, error) {
	if line == "" {
		return nil, &ParseError{Line: line, Reason: ErrEmptyLine}
	}

	payload := line[1:]
	switch line[0] {
	case TagTemperature:
		v, err := parseValue(payload)
		if err != nil {
			return nil, &ParseError{Line: line, Reason: err}
		}
		return Temperature{Value: v}, nil
	case TagHumidity:
		v, err := parseValue(payload)
		if err != nil {
			return nil, &ParseError{Line: line, Reason: err}
		}
		return Humidity{Value: v}, nil
	case TagInfo:
		return Info{Text: payload}, nil
	case TagError:
		return DeviceError{Text: payload}, nil
	default:
		return nil, &ParseError{Line: line, Reason: ErrUnknownTag}
	}
}

func parseValue(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedValue, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite %q", ErrMalformedValue, s)
	}
	return v, nil
}
