// Package framer splits a device byte stream into trimmed text lines.
package framer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxLineLength bounds a single device line, delimiter included.
const DefaultMaxLineLength = 4096

var (
	// ErrReaderStopped is matched by the terminal error of a Framer.
	ErrReaderStopped = errors.New("reader stopped")
	// ErrLineTooLong is returned for one oversized line; the framer keeps going.
	ErrLineTooLong = errors.New("line too long")
)

// StoppedError carries the reason the underlying source ended.
// Cause is io.EOF when the source closed cleanly.
type StoppedError struct {
	Cause error
}

func (e *StoppedError) Error() string {
	return fmt.Sprintf("%v: %v", ErrReaderStopped, e.Cause)
}

func (e *StoppedError) Is(target error) bool { return target == ErrReaderStopped }

func (e *StoppedError) Unwrap() error { return e.Cause }

// Framer yields newline-delimited lines with surrounding whitespace (and any
// trailing \r) removed. Empty lines are skipped. A Framer is not restartable:
// once the source ends every call returns the same *StoppedError.
type Framer struct {
	r   *bufio.Reader
	err error
}

// New wraps r. maxLineLength <= 0 selects DefaultMaxLineLength.
func New(r io.Reader, maxLineLength int) *Framer {
	if maxLineLength <= 0 {
		maxLineLength = DefaultMaxLineLength
	}
	if maxLineLength < 16 {
		maxLineLength = 16
	}
	return &Framer{r: bufio.NewReaderSize(r, maxLineLength)}
}

// Next blocks until a complete non-empty line is available or the source ends.
func (f *Framer) Next() (string, error) {
	for {
		if f.err != nil {
			return "", f.err
		}

		raw, err := f.r.ReadSlice('\n')
		switch {
		case err == nil:
			if line := strings.TrimSpace(string(raw)); line != "" {
				return line, nil
			}
		case errors.Is(err, bufio.ErrBufferFull):
			if derr := f.discardRest(); derr != nil {
				f.stop(derr)
			}
			return "", ErrLineTooLong
		default:
			// a final line without a delimiter is still delivered
			line := strings.TrimSpace(string(raw))
			f.stop(err)
			if line != "" {
				return line, nil
			}
		}
	}
}

// Err returns the terminal error, or nil while the framer is still running.
func (f *Framer) Err() error {
	return f.err
}

func (f *Framer) discardRest() error {
	for {
		_, err := f.r.ReadSlice('\n')
		if err == nil {
			return nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

func (f *Framer) stop(cause error) {
	f.err = &StoppedError{Cause: cause}
}
