package roster

import (
	"errors"
	"rostercal/internal/models"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name    string
		row     models.RawRow
		want    time.Time
		wantErr error
	}{
		{"iso", models.RawRow{Date: "2025-12-24", Assignee: "Opa Piet"}, models.Date(2025, 12, 24), nil},
		{"iso single digits", models.RawRow{Date: "2025-1-5", Assignee: "Opa Piet"}, models.Date(2025, 1, 5), nil},
		{"day first", models.RawRow{Date: "24/12/2025", Assignee: "Opa Piet"}, models.Date(2025, 12, 24), nil},
		{"single digits", models.RawRow{Date: "3/2/2026", Assignee: "Oma Lisa"}, models.Date(2026, 2, 3), nil},
		{"dashes", models.RawRow{Date: "03-02-2026", Assignee: "Oma Lisa"}, models.Date(2026, 2, 3), nil},
		{"dots", models.RawRow{Date: "3.2.2026", Assignee: "Oma Lisa"}, models.Date(2026, 2, 3), nil},
		{"padded", models.RawRow{Date: "  2025-01-06 ", Assignee: " Oma Lisa "}, models.Date(2025, 1, 6), nil},
		{"garbage date", models.RawRow{Date: "not-a-date", Assignee: "Oma Lisa"}, time.Time{}, ErrInvalidDate},
		{"empty date", models.RawRow{Assignee: "Oma Lisa"}, time.Time{}, ErrInvalidDate},
		{"impossible day", models.RawRow{Date: "31/02/2026", Assignee: "Oma Lisa"}, time.Time{}, ErrInvalidDate},
		{"empty assignee", models.RawRow{Date: "2025-12-24"}, time.Time{}, ErrMissingAssignee},
		{"blank assignee", models.RawRow{Date: "2025-12-24", Assignee: " \t"}, time.Time{}, ErrMissingAssignee},
		{"both missing", models.RawRow{}, time.Time{}, ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.row.Line = 2
			appt, err := n.Normalize(tt.row)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				var rowErr *RowError
				if !errors.As(err, &rowErr) || rowErr.Line != 2 {
					t.Errorf("expected RowError for line 2, got %#v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !appt.Date.Equal(tt.want) {
				t.Errorf("date = %v, want %v", appt.Date, tt.want)
			}
			if appt.Assignee == "" || appt.Assignee[0] == ' ' {
				t.Errorf("assignee not trimmed: %q", appt.Assignee)
			}
		})
	}
}

func TestNormalizeKeepsNote(t *testing.T) {
	appt, err := NewNormalizer().Normalize(models.RawRow{Line: 3, Date: "2025-12-24", Assignee: "Opa Piet", Comment: "pickup at 5pm"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Note != "pickup at 5pm" {
		t.Errorf("note = %q", appt.Note)
	}
}

func TestParseDateRoundTrip(t *testing.T) {
	n := NewNormalizer()
	start := models.Date(2024, 12, 25)
	for i := 0; i < 800; i += 7 {
		d := start.AddDate(0, 0, i)
		for _, layout := range []string{"2006-01-02", "02/01/2006"} {
			got, err := n.ParseDate(d.Format(layout))
			if err != nil {
				t.Fatalf("parse %q: %v", d.Format(layout), err)
			}
			if !got.Equal(d) {
				t.Fatalf("round trip of %s via %q gave %s", d, layout, got)
			}
		}
	}
}

func TestExtraLayouts(t *testing.T) {
	n := NewNormalizer("2 January 2006", " ")
	got, err := n.ParseDate("24 December 2025")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(models.Date(2025, 12, 24)) {
		t.Errorf("got %v", got)
	}
	if len(n.layouts) != len(DefaultLayouts)+1 {
		t.Errorf("blank layout should be ignored, have %v", n.layouts)
	}
}
