package caldav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"rostercal/internal/ics"
	"rostercal/internal/models"
	"strings"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

// ICloudEndpoint is used when no endpoint is configured.
const ICloudEndpoint = "https://caldav.icloud.com/"

// ErrUnauthorized is returned when the server rejects the credentials.
var ErrUnauthorized = errors.New("caldav server rejected the credentials")

// basicAuthTransport adds Basic Auth and a User-Agent to each request.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
// A 401 response is turned into ErrUnauthorized.
func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "rostercal/1.0")
	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, fmt.Errorf("%w (%s %s)", ErrUnauthorized, req.Method, req.URL.Redacted())
	}
	return resp, nil
}

// calendarStore is the part of *caldav.Client the sink uses.
type calendarStore interface {
	FindCurrentUserPrincipal(ctx context.Context) (string, error)
	FindCalendarHomeSet(ctx context.Context, principal string) (string, error)
	FindCalendars(ctx context.Context, calendarHomeSet string) ([]caldav.Calendar, error)
	PutCalendarObject(ctx context.Context, path string, cal *ical.Calendar) (*caldav.CalendarObject, error)
}

// Settings holds the CalDAV account parameters.
type Settings struct {
	Endpoint     string
	Username     string
	Password     string
	CalendarName string
}

// Sink stores invites as events in a CalDAV calendar.
type Sink struct {
	store        calendarStore
	logger       *slog.Logger
	calendarPath string
}

// NewSink connects to the server and locates the named calendar.
func NewSink(ctx context.Context, logger *slog.Logger, s Settings) (*Sink, error) {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = ICloudEndpoint
	}
	httpClient := &http.Client{Transport: &basicAuthTransport{
		Username:  s.Username,
		Password:  s.Password,
		Transport: http.DefaultTransport,
	}}

	client, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	return newSink(ctx, logger, client, s.CalendarName)
}

func newSink(ctx context.Context, logger *slog.Logger, store calendarStore, calendarName string) (*Sink, error) {
	s := &Sink{store: store, logger: logger}

	logger.Info("Finding CalDAV calendar", "calendarName", calendarName)
	calendarPath, err := s.findCalendar(ctx, calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", calendarName, err)
	}
	s.calendarPath = calendarPath
	logger.Info("Successfully found CalDAV calendar", "path", calendarPath)
	return s, nil
}

// Send uploads the invite as <uid>.ics and returns the object path.
func (s *Sink) Send(ctx context.Context, inv *models.Invite) (string, error) {
	uid := ics.GenerateUID()
	cal := ics.Calendar(inv, ics.Options{UID: uid})
	objectPath := path.Join(s.calendarPath, strings.TrimSuffix(uid, "@rostercal")+".ics")

	s.logger.Debug("Uploading event", "title", inv.Title, "path", objectPath)
	obj, err := s.store.PutCalendarObject(ctx, objectPath, cal)
	if err != nil {
		return "", classify(err)
	}

	if obj != nil && obj.Path != "" {
		objectPath = obj.Path
	}
	s.logger.Info("Successfully stored event", "title", inv.Title, "path", objectPath)
	return objectPath, nil
}

// classify marks rejected credentials and transport failures as
// models.ErrSinkUnavailable. Other errors are row-level.
func classify(err error) error {
	var urlErr *url.Error
	switch {
	case errors.Is(err, ErrUnauthorized):
		return fmt.Errorf("%w: %w", models.ErrSinkUnavailable, err)
	case errors.As(err, &urlErr) && !errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", models.ErrSinkUnavailable, err)
	default:
		return fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func (s *Sink) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := s.store.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := s.store.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := s.store.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}
	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
