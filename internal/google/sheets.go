package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"rostercal/internal/models"
	"rostercal/internal/sheet"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetSource reads roster rows from a Google Sheet.
type SheetSource struct {
	service *sheets.Service
	sheetID string
	rng     string
	columns sheet.Columns
	logger  *slog.Logger
}

// NewSheetSource creates a row source for the given spreadsheet and A1 range.
func NewSheetSource(ctx context.Context, logger *slog.Logger, httpClient *http.Client, sheetID, rng string, cols sheet.Columns, opts ...option.ClientOption) (*SheetSource, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &SheetSource{service: service, sheetID: sheetID, rng: rng, columns: cols, logger: logger}, nil
}

// Rows fetches the range and maps it to raw rows using the header line.
func (s *SheetSource) Rows(ctx context.Context) ([]models.RawRow, error) {
	s.logger.Debug("Fetching roster sheet", "sheetID", s.sheetID, "range", s.rng)

	resp, err := s.service.Spreadsheets.Values.Get(s.sheetID, s.rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", s.sheetID, err)
	}

	values := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = fmt.Sprint(cell)
		}
		values[i] = cells
	}

	rows, err := sheet.FromValues(values, s.columns)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", s.sheetID, err)
	}
	s.logger.Info("Successfully fetched roster sheet", "rows", len(rows), "sheetID", s.sheetID)
	return rows, nil
}
