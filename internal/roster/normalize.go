package roster

import (
	"errors"
	"fmt"
	"rostercal/internal/models"
	"strings"
	"time"
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrMissingAssignee = errors.New("missing assignee")
)

// DefaultLayouts are tried in order. ISO comes first, then day-first forms.
var DefaultLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
}

// RowError reports why a single row could not be normalized.
type RowError struct {
	Line   int
	Value  string
	Reason error
}

func (e *RowError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("row %d: %v: %q", e.Line, e.Reason, e.Value)
	}
	return fmt.Sprintf("row %d: %v", e.Line, e.Reason)
}

func (e *RowError) Unwrap() error { return e.Reason }

// Normalizer turns raw rows into appointments.
type Normalizer struct {
	layouts []string
}

// NewNormalizer returns a Normalizer using DefaultLayouts followed by extra.
func NewNormalizer(extra ...string) *Normalizer {
	layouts := make([]string, 0, len(DefaultLayouts)+len(extra))
	layouts = append(layouts, DefaultLayouts...)
	for _, l := range extra {
		if l = strings.TrimSpace(l); l != "" {
			layouts = append(layouts, l)
		}
	}
	return &Normalizer{layouts: layouts}
}

// Normalize validates row. The date is checked before the assignee.
func (n *Normalizer) Normalize(row models.RawRow) (models.Appointment, error) {
	date, err := n.ParseDate(row.Date)
	if err != nil {
		return models.Appointment{}, &RowError{Line: row.Line, Value: strings.TrimSpace(row.Date), Reason: ErrInvalidDate}
	}

	assignee := strings.TrimSpace(row.Assignee)
	if assignee == "" {
		return models.Appointment{}, &RowError{Line: row.Line, Reason: ErrMissingAssignee}
	}

	return models.Appointment{
		Date:     date,
		Assignee: assignee,
		Note:     strings.TrimSpace(row.Comment),
	}, nil
}

// ParseDate returns the first successful parse of s against the layouts.
func (n *Normalizer) ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range n.layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return models.Date(t.Year(), t.Month(), t.Day()), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}
