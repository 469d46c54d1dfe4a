package ics

import (
	"fmt"
	"io"
	"rostercal/internal/models"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

const ProductID = "-//rostercal//EN"

// Method values for the VCALENDAR METHOD property.
const (
	MethodPublish = "PUBLISH"
	MethodRequest = "REQUEST"
)

// Options controls the calendar wrapped around an invite.
type Options struct {
	UID       string    // Generated when empty
	Method    string    // Omitted when empty
	Organizer string    // Organizer address, optional
	Stamp     time.Time // DTSTAMP, defaults to now
}

// Calendar wraps inv in a VCALENDAR holding a single all-day VEVENT.
func Calendar(inv *models.Invite, opts Options) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	if opts.Method != "" {
		cal.Props.SetText(ical.PropMethod, opts.Method)
	}
	cal.Children = append(cal.Children, Event(inv, opts))
	return cal
}

// Event converts inv to a VEVENT component.
func Event(inv *models.Invite, opts Options) *ical.Component {
	uid := opts.UID
	if uid == "" {
		uid = GenerateUID()
	}
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, inv.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDate(ical.PropDateTimeStart, inv.Start)
	ve.Props.SetDate(ical.PropDateTimeEnd, inv.End)
	ve.Props.SetText(ical.PropTransparency, "TRANSPARENT")

	if inv.Description != "" {
		ve.Props.SetText(ical.PropDescription, inv.Description)
	}
	if opts.Organizer != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.Value = "mailto:" + opts.Organizer
		ve.Props.Add(p)
	}
	for _, attendee := range inv.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.Value = "mailto:" + attendee
		p.Params.Set(ical.ParamRole, "REQ-PARTICIPANT")
		p.Params.Set(ical.ParamParticipationStatus, "NEEDS-ACTION")
		p.Params.Set(ical.ParamRSVP, "TRUE")
		ve.Props.Add(p)
	}
	return ve
}

// Encode writes inv as an iCalendar document.
func Encode(w io.Writer, inv *models.Invite, opts Options) error {
	if err := ical.NewEncoder(w).Encode(Calendar(inv, opts)); err != nil {
		return fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	return nil
}

// GenerateUID creates a new unique identifier for an event.
func GenerateUID() string {
	return uuid.New().String() + "@rostercal"
}
