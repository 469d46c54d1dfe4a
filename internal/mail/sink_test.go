package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"rostercal/internal/models"
	"strings"
	"testing"

	"github.com/emersion/go-ical"
	gomail "github.com/wneessen/go-mail"
)

type fakeMailer struct {
	msgs []*gomail.Msg
	err  error
}

func (f *fakeMailer) DialAndSendWithContext(_ context.Context, msgs ...*gomail.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func testInvite() *models.Invite {
	start := models.Date(2025, 12, 24)
	return &models.Invite{
		Title:       "Oppas – Opa Piet (2025-12-24)",
		Description: "pickup at 5pm",
		Start:       start,
		End:         start.AddDate(0, 0, 1),
		Attendees:   models.RecipientSet{"opa.piet@example.com", "me@example.com"},
	}
}

func newTestSink(m Mailer) *Sink {
	return NewSink(slog.New(slog.NewTextHandler(io.Discard, nil)), m, "planner@example.com")
}

func TestSendComposesInvite(t *testing.T) {
	m := &fakeMailer{}
	id, err := newTestSink(m).Send(context.Background(), testInvite())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(m.msgs))
	}
	msg := m.msgs[0]
	if id == "" || id != msg.GetMessageID() {
		t.Errorf("receipt %q does not match Message-ID %q", id, msg.GetMessageID())
	}

	rcpts, err := msg.GetRecipients()
	if err != nil {
		t.Fatalf("recipients: %v", err)
	}
	if !reflect.DeepEqual(rcpts, []string{"opa.piet@example.com", "me@example.com"}) {
		t.Errorf("recipients = %v", rcpts)
	}

	files := msg.GetAttachments()
	if len(files) != 1 || files[0].Name != attachmentName {
		t.Fatalf("attachments = %v", files)
	}
	if !strings.HasPrefix(string(files[0].ContentType), "text/calendar; method=REQUEST") {
		t.Errorf("content type = %q", files[0].ContentType)
	}

	var buf bytes.Buffer
	if _, err := files[0].Writer(&buf); err != nil {
		t.Fatalf("read attachment: %v", err)
	}
	cal, err := ical.NewDecoder(&buf).Decode()
	if err != nil {
		t.Fatalf("decode attachment: %v", err)
	}
	ev := cal.Events()[0]
	if org := ev.Props.Get(ical.PropOrganizer); org == nil || org.Value != "mailto:planner@example.com" {
		t.Errorf("organizer = %v", org)
	}

	var raw bytes.Buffer
	if _, err := msg.WriteTo(&raw); err != nil {
		t.Fatalf("write message: %v", err)
	}
	if !strings.Contains(raw.String(), "Subject:") {
		t.Error("message has no subject header")
	}
}

func TestSendWithoutAttendees(t *testing.T) {
	m := &fakeMailer{}
	inv := testInvite()
	inv.Attendees = nil

	_, err := newTestSink(m).Send(context.Background(), inv)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, models.ErrSinkUnavailable) {
		t.Error("missing attendees is a row error")
	}
	if len(m.msgs) != 0 {
		t.Error("nothing should be sent")
	}
}

func TestSendClassifiesErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"dial", errors.New("dial failed: connection refused"), true},
		{"connection lost", &gomail.SendError{Reason: gomail.ErrConnCheck}, true},
		{"recipient rejected", &gomail.SendError{Reason: gomail.ErrSMTPRcptTo}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestSink(&fakeMailer{err: tt.err}).Send(context.Background(), testInvite())
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, models.ErrSinkUnavailable); got != tt.unavailable {
				t.Errorf("unavailable = %v, want %v (%v)", got, tt.unavailable, err)
			}
		})
	}
}

func TestSendRejectsBadAddress(t *testing.T) {
	inv := testInvite()
	inv.Attendees = models.RecipientSet{"not an address"}
	if _, err := newTestSink(&fakeMailer{}).Send(context.Background(), inv); err == nil {
		t.Fatal("expected error for invalid attendee")
	}
}
