package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// DefaultSheetsRange is the A1 range rows are appended after
const DefaultSheetsRange = "Condors!A1"

// ErrSheetsNotConfigured is returned when no spreadsheet is set up
var ErrSheetsNotConfigured = errors.New("google sheets export not configured")

// SheetsAppender appends rows to a spreadsheet
type SheetsAppender interface {
	Append(ctx context.Context, rows []ResultRow) error
}

// SheetsExporter appends result rows to a Google spreadsheet
type SheetsExporter struct {
	service       *sheets.Service
	spreadsheetID string
	writeRange    string
	logger        *slog.Logger
}

// NewSheetsExporter authenticates with a service account credentials file
func NewSheetsExporter(ctx context.Context, spreadsheetID, credentialsFile, writeRange string, logger *slog.Logger) (*SheetsExporter, error) {
	if spreadsheetID == "" || credentialsFile == "" {
		return nil, ErrSheetsNotConfigured
	}
	return NewSheetsExporterWithOptions(ctx, spreadsheetID, writeRange, logger,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
}

// NewSheetsExporterWithOptions builds the client from explicit API options
func NewSheetsExporterWithOptions(ctx context.Context, spreadsheetID, writeRange string, logger *slog.Logger, opts ...option.ClientOption) (*SheetsExporter, error) {
	if spreadsheetID == "" {
		return nil, ErrSheetsNotConfigured
	}
	if writeRange == "" {
		writeRange = DefaultSheetsRange
	}
	if logger == nil {
		logger = slog.Default()
	}

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &SheetsExporter{
		service:       srv,
		spreadsheetID: spreadsheetID,
		writeRange:    writeRange,
		logger:        logger,
	}, nil
}

// Append adds the rows below the existing data in the configured range
func (s *SheetsExporter) Append(ctx context.Context, rows []ResultRow) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.Values())
	}

	resp, err := s.service.Spreadsheets.Values.
		Append(s.spreadsheetID, s.writeRange, &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to spreadsheet: %w", err)
	}
	if resp.HTTPStatusCode != 200 {
		return fmt.Errorf("append to spreadsheet: unexpected status %d", resp.HTTPStatusCode)
	}

	s.logger.InfoContext(ctx, "appended rows to spreadsheet",
		slog.String("component", "exporter"),
		slog.String("spreadsheet_id", s.spreadsheetID),
		slog.String("range", s.writeRange),
		slog.Int("rows", len(rows)),
	)
	return nil
}
