package sheet

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"rostercal/internal/models"
	"strings"
)

// CSVSource reads the roster from a local CSV export.
type CSVSource struct {
	path    string
	columns Columns
	logger  *slog.Logger
}

// NewCSVSource creates a CSVSource for path.
func NewCSVSource(logger *slog.Logger, path string, cols Columns) *CSVSource {
	return &CSVSource{path: path, columns: cols, logger: logger}
}

// Rows reads and maps the whole file.
func (s *CSVSource) Rows(ctx context.Context) ([]models.RawRow, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	values, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse roster csv %s: %w", s.path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(values) > 0 && len(values[0]) > 0 {
		values[0][0] = trimBOM(values[0][0])
	}

	rows, err := FromValues(values, s.columns)
	if err != nil {
		return nil, fmt.Errorf("roster csv %s: %w", s.path, err)
	}
	s.logger.Info("Read roster csv", "file", s.path, "rows", len(rows))
	return rows, nil
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
