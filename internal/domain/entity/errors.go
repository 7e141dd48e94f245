package entity

import (
	"errors"
	"fmt"
)

var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrTransport         = errors.New("transport failure")
	ErrParse             = errors.New("parse failure")
	ErrWrite             = errors.New("write failure")
	ErrConfiguration     = errors.New("configuration error")
	ErrIncomplete        = errors.New("analysis incomplete")
	ErrSessionNotFound   = errors.New("session not found")
)

// FrameError reports why a single frame produced no record.
// It matches both its Kind sentinel and the underlying cause with errors.Is.
type FrameError struct {
	Frame string
	Kind  error
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %s: %v: %v", e.Frame, e.Kind, e.Err)
}

func (e *FrameError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// FailureKind returns a short label for metrics and logs.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrTransport):
		return "transport_failure"
	case errors.Is(err, ErrParse):
		return "parse_failure"
	case errors.Is(err, ErrSourceUnavailable):
		return "source_unavailable"
	default:
		return "unknown"
	}
}
