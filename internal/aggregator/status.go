package aggregator

import (
	"time"

	"github.com/i474232898/city-weather/internal/weather"
)

// Phase is a step of the per-call state machine:
//
//	Idle -> Resolving -> FetchingSummary -> FetchingDetail -> Complete
//
// with exits to PartialFailure, Failed or Cancelled.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseResolving       Phase = "resolving"
	PhaseFetchingSummary Phase = "fetching_summary"
	PhaseFetchingDetail  Phase = "fetching_detail"
	PhaseComplete        Phase = "complete"
	PhasePartialFailure  Phase = "partial_failure"
	PhaseFailed          Phase = "failed"
	PhaseCancelled       Phase = "cancelled"
)

// Terminal reports whether p ends a call.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseComplete, PhasePartialFailure, PhaseFailed, PhaseCancelled:
		return true
	default:
		return false
	}
}

// Status is the observable state of an Aggregator.
type Status struct {
	Phase      Phase     `json:"phase"`
	Generation uint64    `json:"generation"`
	Query      string    `json:"query,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`

	// Failed names the half that failed on PhasePartialFailure.
	Failed weather.Part `json:"failed,omitempty"`

	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

func (s Status) withErr(err error) Status {
	s.Err = err
	if err != nil {
		s.Error = err.Error()
	}
	return s
}
