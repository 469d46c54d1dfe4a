// Package ledger keeps an optional record of invites delivered in earlier
// runs. It is only used when a state file is configured.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"rostercal/internal/models"
	"sort"
	"strings"
	"time"
)

// Entry records one delivered invite.
type Entry struct {
	Receipt string    `json:"receipt"`
	SentAt  time.Time `json:"sentAt"`
}

// State maps an invite key to its delivery record.
type State map[string]Entry

// Sender is the sink being decorated.
type Sender interface {
	Send(ctx context.Context, inv *models.Invite) (string, error)
}

// Sink skips invites already present in the state file and records new ones.
type Sink struct {
	logger *slog.Logger
	next   Sender
	path   string
	state  State
	now    func() time.Time
}

// Open loads the state file at path and wraps next. A missing file starts
// with an empty state.
func Open(logger *slog.Logger, path string, next Sender) (*Sink, error) {
	state, err := load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load ledger state: %w", err)
		}
		logger.Info("No ledger file found, starting fresh.", "file", path)
		state = make(State)
	}
	return &Sink{logger: logger, next: next, path: path, state: state, now: time.Now}, nil
}

// Key identifies an invite by date, title and attendees.
func Key(inv *models.Invite) string {
	attendees := make([]string, len(inv.Attendees))
	for i, a := range inv.Attendees {
		attendees[i] = strings.ToLower(a)
	}
	sort.Strings(attendees)
	return inv.StartDate() + "|" + inv.Title + "|" + strings.Join(attendees, ",")
}

// Send forwards inv unless its key was recorded before.
func (s *Sink) Send(ctx context.Context, inv *models.Invite) (string, error) {
	key := Key(inv)
	if entry, ok := s.state[key]; ok {
		s.logger.Debug("Invite found in ledger.", "title", inv.Title, "receipt", entry.Receipt)
		return entry.Receipt, models.ErrAlreadySent
	}

	receipt, err := s.next.Send(ctx, inv)
	if err != nil {
		return "", err
	}

	s.state[key] = Entry{Receipt: receipt, SentAt: s.now().UTC()}
	if err := s.save(); err != nil {
		// The invite is out already; a lost record means a resend next run.
		s.logger.Error("Failed to save ledger state", "file", s.path, "error", err)
	}
	return receipt, nil
}

// Len returns the number of recorded invites.
func (s *Sink) Len() int { return len(s.state) }

func load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if state == nil {
		state = make(State)
	}
	return state, nil
}

// save writes the state through a temp file and rename.
func (s *Sink) save() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".rostercal-ledger-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
