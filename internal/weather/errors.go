package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery is returned for an empty or whitespace-only place name.
	ErrInvalidQuery = errors.New("invalid query: place name is empty")

	// ErrNotFound is returned when geocoding yields no match.
	ErrNotFound = errors.New("place not found")

	// ErrCancelled is returned when a resolution was superseded or its
	// aggregator was closed before it completed.
	ErrCancelled = errors.New("resolution cancelled")
)

// UpstreamError reports a service that answered with a non-200 status or
// could not be reached at all. StatusCode is zero for transport failures.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
	Cause      error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s: upstream status %d: %s", e.Op, e.StatusCode, e.Body)
	case e.StatusCode != 0 && e.Cause != nil:
		return fmt.Sprintf("%s: upstream status %d: %v", e.Op, e.StatusCode, e.Cause)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: upstream status %d", e.Op, e.StatusCode)
	case e.Cause != nil:
		return fmt.Sprintf("%s: upstream unreachable: %v", e.Op, e.Cause)
	default:
		return fmt.Sprintf("%s: upstream error", e.Op)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// DecodeError reports a 200 response whose body did not match the expected
// shape.
type DecodeError struct {
	Op      string
	Details string
	Cause   error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: decode: %s: %v", e.Op, e.Details, e.Cause)
	}
	return fmt.Sprintf("%s: decode: %s", e.Op, e.Details)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// PartialFailure is a degraded success: one of summary/detail was fetched,
// the other failed with Reason.
type PartialFailure struct {
	Which  Part
	Reason error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("partial failure: %s fetch failed: %v", e.Which, e.Reason)
}

func (e *PartialFailure) Unwrap() error {
	return e.Reason
}

// IsPartial reports whether err is a PartialFailure.
func IsPartial(err error) bool {
	var pf *PartialFailure
	return errors.As(err, &pf)
}
