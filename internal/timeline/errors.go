package timeline

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrMalformedInterval matches every MalformedIntervalError.
	ErrMalformedInterval = errors.New("malformed interval")
	// ErrMissingMainTier matches every MissingMainTierError.
	ErrMissingMainTier = errors.New("missing main tier")
)

// MalformedIntervalError reports a turn or utterance whose interval is
// unusable. Callers may skip the record or abort the run.
type MalformedIntervalError struct {
	Record string
	Index  int
	Start  float64
	End    float64
	Reason string
}

func (e *MalformedIntervalError) Error() string {
	return fmt.Sprintf("%s %d: %s [%s, %s]", e.Record, e.Index, e.Reason, formatBound(e.Start), formatBound(e.End))
}

func (e *MalformedIntervalError) Unwrap() error { return ErrMalformedInterval }

// ErrorKind classifies the error for run status mapping.
func (e *MalformedIntervalError) ErrorKind() string { return "validation" }

// MissingMainTierError reports an utterance without text under its
// participant code.
type MissingMainTierError struct {
	Index       int
	Participant string
}

func (e *MissingMainTierError) Error() string {
	if e.Participant == "" {
		return fmt.Sprintf("utterance %d: no participant", e.Index)
	}
	return fmt.Sprintf("utterance %d: no main tier for participant %q", e.Index, e.Participant)
}

func (e *MissingMainTierError) Unwrap() error { return ErrMissingMainTier }

// ErrorKind classifies the error for run status mapping.
func (e *MissingMainTierError) ErrorKind() string { return "validation" }

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
