// Package validation checks the files and directories the finder reads
// chains from and writes exports to.
package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyFile is returned for zero-length input files
	ErrEmptyFile = errors.New("file is empty")
	// ErrUnsupportedExtension is returned when an input file has the wrong type
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	// ErrNotDirectory is returned when an output path exists but is a file
	ErrNotDirectory = errors.New("not a directory")
)

// FileValidator validates chain inputs and export outputs
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{logger: logger}
}

// ValidateFile checks that path is a readable, non-empty regular file
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		v.logger.Debug("input file unavailable",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		v.logger.Debug("input file is empty", slog.String("path", path))
		return fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	return nil
}

// ValidateInput checks ValidateFile and that the extension is one of exts.
// Extensions compare case-insensitively and include the dot.
func (v *FileValidator) ValidateInput(path string, exts ...string) error {
	if len(exts) > 0 {
		ext := strings.ToLower(filepath.Ext(path))
		matched := false
		for _, e := range exts {
			if ext == strings.ToLower(e) {
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Errorf("%s: %w %q, want %s", path, ErrUnsupportedExtension, ext, strings.Join(exts, " or "))
		}
	}
	return v.ValidateFile(path)
}

// ValidateOutputDirectory creates dir when missing and probes that it is
// writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			v.logger.Warn("failed to create output directory",
				slog.String("directory", dir),
				slog.String("error", err.Error()))
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	case err != nil:
		return fmt.Errorf("stat %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		v.logger.Warn("output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// CountFiles returns the number of regular files in dir matching pattern
func (v *FileValidator) CountFiles(dir, pattern string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, fmt.Errorf("glob %s: %w", pattern, err)
	}
	count := 0
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			count++
		}
	}
	return count, nil
}
