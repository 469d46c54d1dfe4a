package invite

import (
	"fmt"
	"rostercal/internal/models"
)

const (
	DefaultTitlePrefix = "Oppas"
	DefaultTimeZone    = "Europe/Amsterdam"
)

// Builder turns appointments into all-day invites.
type Builder struct {
	TitlePrefix string
	TimeZone    string
}

// NewBuilder returns a Builder, falling back to the defaults for empty values.
func NewBuilder(prefix, tz string) *Builder {
	if prefix == "" {
		prefix = DefaultTitlePrefix
	}
	if tz == "" {
		tz = DefaultTimeZone
	}
	return &Builder{TitlePrefix: prefix, TimeZone: tz}
}

// Build creates the invite for appt. The end date is exclusive.
func (b *Builder) Build(appt models.Appointment, to models.RecipientSet) *models.Invite {
	start := models.Date(appt.Date.Year(), appt.Date.Month(), appt.Date.Day())
	attendees := make(models.RecipientSet, len(to))
	copy(attendees, to)

	return &models.Invite{
		Title:       fmt.Sprintf("%s – %s (%s)", b.TitlePrefix, appt.Assignee, start.Format(models.DateLayout)),
		Description: appt.Note,
		Start:       start,
		End:         start.AddDate(0, 0, 1),
		TimeZone:    b.TimeZone,
		Attendees:   attendees,
	}
}
