package reader

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStaleResponse is returned when an analysis response arrives for an
	// item that is no longer selected. Callers drop it without reporting.
	ErrStaleResponse = errors.New("stale analysis response")

	// ErrAnalysisInFlight is returned when analysis is triggered while a
	// request for the current item is already pending.
	ErrAnalysisInFlight = errors.New("analysis already in flight")

	// ErrNotConfirmed is returned when a bulk operation was declined.
	ErrNotConfirmed = errors.New("operation not confirmed")
)

// ValidationError reports a missing or malformed input caught before any
// network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// TransportError reports a failed backend call. Detail carries the
// backend-supplied human readable message when there was one.
type TransportError struct {
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Detail != "":
		return e.Op + ": " + e.Detail
	case e.Status != 0:
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.Status)
	case e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + ": transport error"
}

func (e *TransportError) Unwrap() error { return e.Err }

// asTransport wraps err as a TransportError for op unless it already is one.
func asTransport(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// BatchError aggregates the failed subset of a concurrent batch.
type BatchError struct {
	Op     string
	Total  int
	Failed []int64
	Errs   []error
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d of %d failed", e.Op, len(e.Failed), e.Total)
	if len(e.Errs) > 0 {
		b.WriteString(" (first error: ")
		b.WriteString(e.Errs[0].Error())
		b.WriteString(")")
	}
	return b.String()
}

func (e *BatchError) Unwrap() []error { return e.Errs }
