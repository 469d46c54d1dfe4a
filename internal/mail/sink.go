package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"rostercal/internal/ics"
	"rostercal/internal/models"
	"time"

	gomail "github.com/wneessen/go-mail"
)

const attachmentName = "invite.ics"

// Mailer delivers messages. *gomail.Client satisfies it.
type Mailer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// Settings holds the SMTP connection parameters.
type Settings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sink emails invites as iCalendar REQUEST attachments.
type Sink struct {
	mailer Mailer
	from   string
	logger *slog.Logger
	now    func() time.Time
}

// NewClient creates an SMTP client using AUTH PLAIN over mandatory STARTTLS.
func NewClient(s Settings) (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(s.Port),
		gomail.WithTLSPortPolicy(gomail.TLSMandatory),
		gomail.WithTimeout(30 * time.Second),
	}
	if s.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.Username),
			gomail.WithPassword(s.Password),
		)
	}
	client, err := gomail.NewClient(s.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return client, nil
}

// NewSink creates a Sink sending from the given address.
func NewSink(logger *slog.Logger, mailer Mailer, from string) *Sink {
	return &Sink{mailer: mailer, from: from, logger: logger, now: time.Now}
}

// Send mails one message addressed to every attendee and returns its Message-ID.
func (s *Sink) Send(ctx context.Context, inv *models.Invite) (string, error) {
	if len(inv.Attendees) == 0 {
		return "", errors.New("invite has no attendees to mail")
	}

	msg, err := s.compose(inv)
	if err != nil {
		return "", err
	}

	s.logger.Debug("Sending invite email", "title", inv.Title, "to", inv.Attendees)
	if err := s.mailer.DialAndSendWithContext(ctx, msg); err != nil {
		return "", classify(err)
	}

	id := msg.GetMessageID()
	s.logger.Info("Invite email accepted for delivery", "title", inv.Title, "messageID", id)
	return id, nil
}

func (s *Sink) compose(inv *models.Invite) (*gomail.Msg, error) {
	var body bytes.Buffer
	opts := ics.Options{Method: ics.MethodRequest, Organizer: s.from, Stamp: s.now()}
	if err := ics.Encode(&body, inv, opts); err != nil {
		return nil, err
	}

	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(inv.Attendees...); err != nil {
		return nil, fmt.Errorf("invalid attendee address: %w", err)
	}
	msg.Subject(inv.Title)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(gomail.TypeTextPlain, plainBody(inv))

	ct := gomail.ContentType("text/calendar; method=" + ics.MethodRequest + "; charset=UTF-8")
	if err := msg.AttachReader(attachmentName, &body, gomail.WithFileContentType(ct)); err != nil {
		return nil, fmt.Errorf("failed to attach invite: %w", err)
	}
	return msg, nil
}

func plainBody(inv *models.Invite) string {
	text := fmt.Sprintf("%s\nDate: %s\n", inv.Title, inv.StartDate())
	if inv.Description != "" {
		text += "\n" + inv.Description + "\n"
	}
	return text
}

// classify separates per-message rejections from failures that affect every
// message, such as dial or authentication errors.
func classify(err error) error {
	var sendErr *gomail.SendError
	if errors.As(err, &sendErr) && sendErr.Reason != gomail.ErrConnCheck {
		return fmt.Errorf("smtp rejected invite: %w", err)
	}
	return fmt.Errorf("%w: %w", models.ErrSinkUnavailable, err)
}
