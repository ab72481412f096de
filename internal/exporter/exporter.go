package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/config"
)

// ErrUnknownFormat is returned for an unsupported export format
var ErrUnknownFormat = errors.New("unknown export format")

// TimestampLayout stamps export filenames
const TimestampLayout = "20060102_150405"

// Exporter writes search results in the configured formats
type Exporter struct {
	csv    *CSVWriter
	bom    bool
	sheets SheetsAppender
	logger *slog.Logger
	now    func() time.Time
}

// NewExporter creates an exporter rooted at the export directory of paths.
// sheets may be nil when no spreadsheet is configured.
func NewExporter(paths *config.Paths, cfg config.ExportConfig, sheets SheetsAppender, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		csv:    NewCSVWriter(paths),
		bom:    cfg.BOM,
		sheets: sheets,
		logger: logger.With(slog.String("component", "exporter")),
		now:    time.Now,
	}
}

// FileName builds ic_opportunities_{symbol}_{YYYYMMDD_HHMMSS}.{ext}
func FileName(symbol, format string, t time.Time) string {
	symbol = strings.TrimPrefix(strings.TrimSpace(symbol), "$")
	if symbol == "" {
		symbol = "UNKNOWN"
	}
	return fmt.Sprintf("ic_opportunities_%s_%s.%s", symbol, t.Format(TimestampLayout), format)
}

// ContentType returns the MIME type for a file format
func ContentType(format string) string {
	switch normalizeFormat(format) {
	case config.FormatCSV:
		return "text/csv; charset=utf-8"
	case config.FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case config.FormatJSON:
		return "application/json"
	}
	return "application/octet-stream"
}

// IsFileFormat reports whether format produces a downloadable file
func IsFileFormat(format string) bool {
	switch normalizeFormat(format) {
	case config.FormatCSV, config.FormatXLSX, config.FormatJSON:
		return true
	}
	return false
}

// Export writes the result in one format. It returns the written file path,
// or an empty path for the spreadsheet append.
func (e *Exporter) Export(ctx context.Context, result *condor.Result, format string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	format = normalizeFormat(format)
	rows := RowsFromResult(result)

	if format == config.FormatSheets {
		if e.sheets == nil {
			return "", ErrSheetsNotConfigured
		}
		return "", e.sheets.Append(ctx, rows)
	}
	if !IsFileFormat(format) {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	path := e.csv.resolvePath(FileName(symbolOf(result), format, e.now()))

	var err error
	switch format {
	case config.FormatCSV:
		err = e.csv.WriteSimpleCSV(path, rows, e.bom)
	case config.FormatXLSX:
		if err = ensureDir(path); err == nil {
			err = WriteXLSX(path, rows)
		}
	case config.FormatJSON:
		err = writeFile(path, func(w io.Writer) error {
			return EncodeJSON(w, e.document(result, rows))
		})
	}
	if err != nil {
		return "", fmt.Errorf("export %s: %w", format, err)
	}

	e.logger.InfoContext(ctx, "exported search results",
		slog.String("format", format),
		slog.String("path", path),
		slog.Int("rows", len(rows)),
	)
	return path, nil
}

// ExportAll writes every format, continuing past individual failures
func (e *Exporter) ExportAll(ctx context.Context, result *condor.Result, formats []string) ([]string, error) {
	var (
		paths []string
		errs  []error
	)
	for _, format := range formats {
		path, err := e.Export(ctx, result, format)
		if err != nil {
			e.logger.WarnContext(ctx, "export failed",
				slog.String("format", format),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
			continue
		}
		if path != "" {
			paths = append(paths, path)
		}
	}
	return paths, errors.Join(errs...)
}

// Encode writes the result in a file format to out
func (e *Exporter) Encode(out io.Writer, result *condor.Result, format string) error {
	rows := RowsFromResult(result)
	switch normalizeFormat(format) {
	case config.FormatCSV:
		return EncodeCSV(out, rows, e.bom)
	case config.FormatXLSX:
		return EncodeXLSX(out, rows)
	case config.FormatJSON:
		return EncodeJSON(out, e.document(result, rows))
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// DownloadName is the attachment filename for an encoded result
func (e *Exporter) DownloadName(result *condor.Result, format string) string {
	return FileName(symbolOf(result), normalizeFormat(format), e.now())
}

func (e *Exporter) document(result *condor.Result, rows []ResultRow) Document {
	doc := Document{ExportedAt: e.now().UTC(), Candidates: rows}
	if result != nil {
		doc.Symbol = result.Symbol
		doc.Spot = result.Spot
		doc.Relaxed = result.Relaxed
		doc.TraceID = result.Trace.TraceID
	}
	return doc
}

func symbolOf(result *condor.Result) string {
	if result == nil {
		return ""
	}
	return result.Symbol
}

func normalizeFormat(format string) string {
	return strings.ToLower(strings.TrimSpace(format))
}
