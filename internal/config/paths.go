package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved filesystem locations the application writes to
type Paths struct {
	BaseDir   string
	DataDir   string
	ExportDir string
	ChartDir  string
	LogsDir   string
}

// GetPaths resolves the configured directories against the working directory
func (c *Config) GetPaths() (*Paths, error) {
	base, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %v", err)
	}
	return c.PathsFrom(base), nil
}

// PathsFrom resolves the configured directories against base
func (c *Config) PathsFrom(base string) *Paths {
	return &Paths{
		BaseDir:   base,
		DataDir:   resolve(base, DefaultDataDir),
		ExportDir: resolve(base, c.Export.Dir),
		ChartDir:  resolve(base, c.Chart.Dir),
		LogsDir:   filepath.Dir(resolve(base, c.Logging.FilePath)),
	}
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	logger := slog.Default()

	for _, dir := range []string{p.DataDir, p.ExportDir, p.ChartDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
		logger.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// GetExportPath returns the full path for an export file
func (p *Paths) GetExportPath(filename string) string {
	return filepath.Join(p.ExportDir, filename)
}

// GetChartPath returns the full path for a chart image
func (p *Paths) GetChartPath(filename string) string {
	return filepath.Join(p.ChartDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func resolve(base, path string) string {
	if path == "" {
		return base
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}
