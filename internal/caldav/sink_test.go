package caldav

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"rostercal/internal/models"
	"strings"
	"testing"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

type fakeStore struct {
	calendars []caldav.Calendar
	put       map[string]*ical.Calendar
	putErr    error
}

func (f *fakeStore) FindCurrentUserPrincipal(context.Context) (string, error) {
	return "/123/principal/", nil
}

func (f *fakeStore) FindCalendarHomeSet(_ context.Context, principal string) (string, error) {
	if principal != "/123/principal/" {
		return "", errors.New("unknown principal")
	}
	return "/123/calendars/", nil
}

func (f *fakeStore) FindCalendars(context.Context, string) ([]caldav.Calendar, error) {
	return f.calendars, nil
}

func (f *fakeStore) PutCalendarObject(_ context.Context, p string, cal *ical.Calendar) (*caldav.CalendarObject, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	if f.put == nil {
		f.put = map[string]*ical.Calendar{}
	}
	f.put[p] = cal
	return &caldav.CalendarObject{Path: p, Data: cal}, nil
}

func testInvite() *models.Invite {
	start := models.Date(2025, 12, 24)
	return &models.Invite{
		Title:     "Oppas – Opa Piet (2025-12-24)",
		Start:     start,
		End:       start.AddDate(0, 0, 1),
		Attendees: models.RecipientSet{"opa.piet@example.com"},
	}
}

func newTestStore() *fakeStore {
	return &fakeStore{calendars: []caldav.Calendar{
		{Path: "/123/calendars/work/", Name: "Work"},
		{Path: "/123/calendars/family/", Name: "Family"},
	}}
}

func TestSinkSend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newTestStore()

	s, err := newSink(context.Background(), logger, store, "Family")
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	p, err := s.Send(context.Background(), testInvite())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.HasPrefix(p, "/123/calendars/family/") || !strings.HasSuffix(p, ".ics") {
		t.Errorf("path = %q", p)
	}

	cal := store.put[p]
	if cal == nil {
		t.Fatalf("nothing stored at %q", p)
	}
	ev := cal.Events()[0]
	if start := ev.Props.Get(ical.PropDateTimeStart); start == nil || start.Value != "20251224" {
		t.Errorf("DTSTART = %v", start)
	}
	if m := cal.Props.Get(ical.PropMethod); m != nil {
		t.Errorf("stored objects must not carry METHOD, got %q", m.Value)
	}
}

func TestSinkUnknownCalendar(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := newSink(context.Background(), logger, newTestStore(), "Holidays"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSinkSendErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := newTestStore()
	s, err := newSink(context.Background(), logger, store, "Family")
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	store.putErr = &url.Error{Op: "Put", URL: "https://caldav.example.com/", Err: errors.New("connection refused")}
	if _, err := s.Send(context.Background(), testInvite()); !errors.Is(err, models.ErrSinkUnavailable) {
		t.Errorf("expected ErrSinkUnavailable, got %v", err)
	}

	store.putErr = errors.New("412 Precondition Failed")
	_, err = s.Send(context.Background(), testInvite())
	if err == nil || errors.Is(err, models.ErrSinkUnavailable) {
		t.Errorf("expected row-level error, got %v", err)
	}
}

// serverStore discovers calendars from fakeStore but uploads through a real client.
type serverStore struct {
	*fakeStore
	client *caldav.Client
}

func (s *serverStore) PutCalendarObject(ctx context.Context, p string, cal *ical.Calendar) (*caldav.CalendarObject, error) {
	return s.client.PutCalendarObject(ctx, p, cal)
}

func TestSinkRejectedCredentials(t *testing.T) {
	var gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _, _ = r.BasicAuth()
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	httpClient := &http.Client{Transport: &basicAuthTransport{
		Username:  "me@icloud.com",
		Password:  "wrong",
		Transport: http.DefaultTransport,
	}}
	client, err := caldav.NewClient(httpClient, srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := newSink(context.Background(), logger, &serverStore{fakeStore: newTestStore(), client: client}, "Family")
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	_, err = s.Send(context.Background(), testInvite())
	if !errors.Is(err, models.ErrSinkUnavailable) || !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected unavailable sink on 401, got %v", err)
	}
	if gotUser != "me@icloud.com" {
		t.Errorf("basic auth user = %q", gotUser)
	}
}
