package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrSinkUnavailable marks a sink failure that affects every row, such as
	// an unreachable server or rejected credentials. It aborts the run.
	ErrSinkUnavailable = errors.New("invite sink unavailable")

	// ErrAlreadySent is returned by the ledger sink for invites delivered in an earlier run.
	ErrAlreadySent = errors.New("invite already sent")
)

// RawRow is one roster line as read from the row source.
// No field is validated; any of them may be empty or malformed.
type RawRow struct {
	Line     int    // 1-based line in the source; the header is line 1
	Week     string // Week number column, informational only
	Date     string // Date column, free text
	Assignee string // Babysitter name
	Comment  string // Free-text note
}

// ID identifies the row in logs and reports.
func (r RawRow) ID() string {
	if r.Week != "" {
		return fmt.Sprintf("row %d (week %s)", r.Line, r.Week)
	}
	return fmt.Sprintf("row %d", r.Line)
}

// Appointment is a validated roster row.
type Appointment struct {
	Date     time.Time // Calendar date at UTC midnight
	Assignee string    // Non-empty display name
	Note     string    // Possibly empty
}

// Date returns the calendar date y-m-d at UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// RecipientSet is an ordered list of distinct addresses.
type RecipientSet []string

// Contains reports whether addr is in the set, ignoring case.
func (s RecipientSet) Contains(addr string) bool {
	for _, a := range s {
		if strings.EqualFold(a, addr) {
			return true
		}
	}
	return false
}

// Add appends addr unless it is empty or already present.
func (s RecipientSet) Add(addr string) RecipientSet {
	addr = strings.TrimSpace(addr)
	if addr == "" || s.Contains(addr) {
		return s
	}
	return append(s, addr)
}

// Invite is an all-day calendar event ready to hand to a sink.
// End is exclusive and always one day after Start.
type Invite struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   RecipientSet
}

// DateLayout is the wire format for all-day dates.
const DateLayout = "2006-01-02"

// StartDate returns Start formatted as YYYY-MM-DD.
func (i *Invite) StartDate() string { return i.Start.Format(DateLayout) }

// EndDate returns End formatted as YYYY-MM-DD.
func (i *Invite) EndDate() string { return i.End.Format(DateLayout) }
