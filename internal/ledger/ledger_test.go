package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"rostercal/internal/models"
	"testing"
)

type countingSender struct {
	calls int
	err   error
}

func (c *countingSender) Send(context.Context, *models.Invite) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return "evt-1", nil
}

func testInvite() *models.Invite {
	start := models.Date(2025, 12, 24)
	return &models.Invite{
		Title:     "Oppas – Opa Piet (2025-12-24)",
		Start:     start,
		End:       start.AddDate(0, 0, 1),
		Attendees: models.RecipientSet{"me@example.com", "opa.piet@example.com"},
	}
}

func TestSinkRecordsAndSkips(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "state.json")
	next := &countingSender{}

	s, err := Open(logger, path, next)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Send(context.Background(), testInvite()); err != nil {
		t.Fatalf("first send: %v", err)
	}

	// A fresh process sees the saved state.
	s2, err := Open(logger, path, next)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if s2.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s2.Len())
	}

	inv := testInvite()
	inv.Attendees = models.RecipientSet{"Opa.Piet@example.com", "me@example.com"}
	receipt, err := s2.Send(context.Background(), inv)
	if !errors.Is(err, models.ErrAlreadySent) {
		t.Fatalf("expected ErrAlreadySent, got %v", err)
	}
	if receipt != "evt-1" {
		t.Errorf("receipt = %q", receipt)
	}
	if next.calls != 1 {
		t.Errorf("next called %d times", next.calls)
	}
}

func TestSinkDoesNotRecordFailures(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "state.json")
	next := &countingSender{err: errors.New("rejected")}

	s, err := Open(logger, path, next)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Send(context.Background(), testInvite()); err == nil {
		t.Fatal("expected error")
	}
	if s.Len() != 0 {
		t.Errorf("failed send was recorded")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("state file should not exist yet: %v", err)
	}
}

func TestOpenCorruptFile(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(logger, path, &countingSender{}); err == nil {
		t.Fatal("expected error for corrupt state file")
	}
}
