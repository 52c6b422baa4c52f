package report

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/tordrt/metaharvest/internal/catalog"
)

// Report file names. Multi-instance runs prefix them with "<subdomain>_".
const (
	ConnectionsFile = "connections.csv"
	DatabasesFile   = "databases.csv"
	CombinedFile    = "connections_databases.csv"
)

// Paths lists the files written for one instance. Skipped reports are empty.
type Paths struct {
	Connections string
	Databases   string
	Combined    string
}

// FileWriter writes the three per-instance reports into a directory
type FileWriter struct {
	OutputDir     string
	MultiInstance bool
	logger        *zap.Logger
}

// NewFileWriter creates a file writer. If logger is nil, a no-op logger is used.
func NewFileWriter(outputDir string, multiInstance bool, logger *zap.Logger) *FileWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileWriter{OutputDir: outputDir, MultiInstance: multiInstance, logger: logger}
}

// PathsFor returns the report paths for a subdomain
func (f *FileWriter) PathsFor(subdomain string) Paths {
	prefix := ""
	if f.MultiInstance {
		prefix = subdomain + "_"
	}
	return Paths{
		Connections: filepath.Join(f.OutputDir, prefix+ConnectionsFile),
		Databases:   filepath.Join(f.OutputDir, prefix+DatabasesFile),
		Combined:    filepath.Join(f.OutputDir, prefix+CombinedFile),
	}
}

// Write writes the reports of one instance. Empty record sets are skipped
// with a warning and leave no file behind.
func (f *FileWriter) Write(result catalog.InstanceResult) (Paths, error) {
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return Paths{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	planned := f.PathsFor(result.Instance.Subdomain)
	var written Paths

	if len(result.Connections) == 0 {
		f.logger.Warn("No connections data to export", zap.String("subdomain", result.Instance.Subdomain))
	} else {
		if err := f.writeFile(planned.Connections, func(w *CSVWriter) error {
			return w.WriteConnections(result.Connections)
		}); err != nil {
			return written, fmt.Errorf("failed to write connections report: %w", err)
		}
		written.Connections = planned.Connections
		f.logger.Info("Exported connections", zap.Int("count", len(result.Connections)), zap.String("file", planned.Connections))
	}

	if len(result.Databases) == 0 {
		f.logger.Warn("No databases data to export", zap.String("subdomain", result.Instance.Subdomain))
	} else {
		if err := f.writeFile(planned.Databases, func(w *CSVWriter) error {
			return w.WriteDatabases(result.Databases)
		}); err != nil {
			return written, fmt.Errorf("failed to write databases report: %w", err)
		}
		written.Databases = planned.Databases
		f.logger.Info("Exported databases", zap.Int("count", len(result.Databases)), zap.String("file", planned.Databases))
	}

	if len(result.Combined) > 0 {
		if err := f.writeFile(planned.Combined, func(w *CSVWriter) error {
			return w.WriteCombined(result.Combined, f.MultiInstance)
		}); err != nil {
			return written, fmt.Errorf("failed to write combined report: %w", err)
		}
		written.Combined = planned.Combined
		f.logger.Info("Exported combined report", zap.Int("count", len(result.Combined)), zap.String("file", planned.Combined))
	}

	return written, nil
}

func (f *FileWriter) writeFile(path string, fn func(w *CSVWriter) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := fn(NewCSVWriter(file)); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
