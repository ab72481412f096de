package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/config"
)

// utf8BOM helps Excel recognize UTF-8
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	paths *config.Paths
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{paths: paths}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Rows      []ResultRow
	Append    bool
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes result rows to a CSV file with the given options
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	fullPath := w.resolvePath(filePath)

	slog.Info("Writing CSV file",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Rows)))

	if err := ensureDir(fullPath); err != nil {
		return err
	}

	// Appending to an empty or missing file still needs a header row
	appending := options.Append && fileHasContent(fullPath)

	flags := os.O_CREATE | os.O_WRONLY
	if appending {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(fullPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if appending {
		if err := gocsv.MarshalWithoutHeaders(&options.Rows, file); err != nil {
			return fmt.Errorf("failed to append records: %w", err)
		}
		return nil
	}
	return EncodeCSV(file, options.Rows, options.BOMPrefix)
}

// WriteSimpleCSV writes a fresh CSV file with a header row
func (w *CSVWriter) WriteSimpleCSV(filePath string, rows []ResultRow, bom bool) error {
	return w.WriteCSV(filePath, WriteOptions{
		Rows:      rows,
		BOMPrefix: bom,
	})
}

// AppendToCSV appends rows to an existing CSV file
func (w *CSVWriter) AppendToCSV(filePath string, rows []ResultRow) error {
	return w.WriteCSV(filePath, WriteOptions{
		Rows:   rows,
		Append: true,
	})
}

// EncodeCSV writes a header row and one line per result row to out
func EncodeCSV(out io.Writer, rows []ResultRow, bom bool) error {
	if bom {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}
	if err := gocsv.Marshal(&rows, out); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	return nil
}

// resolvePath places relative paths in the export directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.paths == nil {
		return filePath
	}
	return w.paths.GetExportPath(filePath)
}

func fileHasContent(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// ensureDir creates the parent directory of path
func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// writeFile creates path and hands it to encode
func writeFile(path string, encode func(io.Writer) error) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := encode(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
