package dispatch

import (
	"errors"
	"rostercal/internal/roster"
)

// State is the pipeline stage a row has reached.
type State int

const (
	StatePending State = iota
	StateNormalized
	StateResolved
	StateBuilt
	StateDispatched
	StateFailed
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateNormalized:
		return "normalized"
	case StateResolved:
		return "resolved"
	case StateBuilt:
		return "built"
	case StateDispatched:
		return "dispatched"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome is the final state of one row.
type Outcome struct {
	Line        int
	Week        string
	State       State
	Assignee    string
	Title       string
	Attendees   int
	Receipt     string
	Unaddressed bool // assignee has no entry in the address table
	DryRun      bool
	Err         error
}

func (o Outcome) fail(err error) Outcome {
	o.State = StateFailed
	o.Err = err
	return o
}

// Reason classifies a failed outcome for summaries.
func (o Outcome) Reason() string {
	switch {
	case o.Err == nil:
		return ""
	case errors.Is(o.Err, roster.ErrInvalidDate):
		return "invalid_date"
	case errors.Is(o.Err, roster.ErrMissingAssignee):
		return "missing_assignee"
	default:
		var sinkErr *SinkError
		if errors.As(o.Err, &sinkErr) {
			return "sink"
		}
		return "other"
	}
}

// Report lists the outcomes of a run in row order.
type Report struct {
	Outcomes []Outcome
}

// Summary counts outcomes by state.
type Summary struct {
	Total       int
	Dispatched  int
	Failed      int
	Skipped     int
	Unaddressed int
	ByReason    map[string]int
}

// Summary tallies the report.
func (r *Report) Summary() Summary {
	s := Summary{ByReason: map[string]int{}}
	for _, o := range r.Outcomes {
		s.Total++
		switch o.State {
		case StateDispatched:
			s.Dispatched++
			if o.Unaddressed {
				s.Unaddressed++
			}
		case StateFailed:
			s.Failed++
			s.ByReason[o.Reason()]++
		case StateSkipped:
			s.Skipped++
		}
	}
	return s
}

// LogAttrs returns the summary as slog key/value pairs.
func (s Summary) LogAttrs() []any {
	attrs := []any{
		"total", s.Total,
		"dispatched", s.Dispatched,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"unaddressed", s.Unaddressed,
	}
	for _, reason := range []string{"invalid_date", "missing_assignee", "sink", "other"} {
		if n := s.ByReason[reason]; n > 0 {
			attrs = append(attrs, reason, n)
		}
	}
	return attrs
}
