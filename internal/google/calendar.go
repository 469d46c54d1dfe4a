package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"rostercal/internal/models"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// CalendarSink inserts invites as all-day events through the Google Calendar API.
type CalendarSink struct {
	service    *calendar.Service
	calendarID string
	logger     *slog.Logger
}

// NewCalendarSink creates a sink writing to calendarID. Extra options are
// passed to the API client after the HTTP client.
func NewCalendarSink(ctx context.Context, logger *slog.Logger, httpClient *http.Client, calendarID string, opts ...option.ClientOption) (*CalendarSink, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &CalendarSink{service: service, calendarID: calendarID, logger: logger}, nil
}

// Send inserts the event with sendUpdates=all so attendees get an invitation.
// The receipt is the created event ID.
func (c *CalendarSink) Send(ctx context.Context, inv *models.Invite) (string, error) {
	c.logger.Debug("Inserting calendar event", "calendarID", c.calendarID, "title", inv.Title)

	created, err := c.service.Events.Insert(c.calendarID, toGoogleEvent(inv)).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return "", classify(err)
	}
	if created == nil || created.Id == "" {
		return "", errors.New("calendar API returned no event id")
	}

	c.logger.Info("Created calendar event", "title", inv.Title, "start", inv.StartDate(), "eventID", created.Id)
	return created.Id, nil
}

// toGoogleEvent converts an invite to an all-day Calendar API event.
func toGoogleEvent(inv *models.Invite) *calendar.Event {
	attendees := make([]*calendar.EventAttendee, 0, len(inv.Attendees))
	for _, a := range inv.Attendees {
		attendees = append(attendees, &calendar.EventAttendee{Email: a})
	}
	return &calendar.Event{
		Summary:      inv.Title,
		Description:  inv.Description,
		Start:        &calendar.EventDateTime{Date: inv.StartDate(), TimeZone: inv.TimeZone},
		End:          &calendar.EventDateTime{Date: inv.EndDate(), TimeZone: inv.TimeZone},
		Attendees:    attendees,
		Transparency: "transparent",
	}
}

// classify marks errors that will fail every row as models.ErrSinkUnavailable:
// rejected credentials, a missing calendar and transport failures.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusNotFound:
			return fmt.Errorf("%w: %w", models.ErrSinkUnavailable, err)
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrSinkUnavailable, err)
}
