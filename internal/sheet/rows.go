package sheet

import (
	"errors"
	"fmt"
	"rostercal/internal/models"
	"strings"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

// Columns names the header cells of the roster.
type Columns struct {
	Week     string
	Date     string
	Assignee string
	Comment  string
}

// DefaultColumns matches the shared family roster.
var DefaultColumns = Columns{
	Week:     "Week nummer",
	Date:     "Datum",
	Assignee: "Oppas",
	Comment:  "Comments",
}

// FromValues maps a grid whose first line is the header to raw rows.
//
// Header matching ignores case and surrounding space. The date and assignee
// columns are required, week and comment are optional. Short lines are
// padded and fully blank lines are dropped.
func FromValues(values [][]string, cols Columns) ([]models.RawRow, error) {
	if len(values) == 0 {
		return nil, nil
	}

	index := map[string]int{}
	for i, h := range values[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	lookup := func(name string) int {
		if i, ok := index[strings.ToLower(strings.TrimSpace(name))]; ok && name != "" {
			return i
		}
		return -1
	}

	week, date, assignee, comment := lookup(cols.Week), lookup(cols.Date), lookup(cols.Assignee), lookup(cols.Comment)
	if date < 0 {
		return nil, fmt.Errorf("%w %q", ErrMissingColumn, cols.Date)
	}
	if assignee < 0 {
		return nil, fmt.Errorf("%w %q", ErrMissingColumn, cols.Assignee)
	}

	rows := make([]models.RawRow, 0, len(values)-1)
	for i, line := range values[1:] {
		if blank(line) {
			continue
		}
		rows = append(rows, models.RawRow{
			Line:     i + 2,
			Week:     cell(line, week),
			Date:     cell(line, date),
			Assignee: cell(line, assignee),
			Comment:  cell(line, comment),
		})
	}
	return rows, nil
}

func cell(line []string, i int) string {
	if i < 0 || i >= len(line) {
		return ""
	}
	return line[i]
}

func blank(line []string) bool {
	for _, c := range line {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
