package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/tordrt/metaharvest/internal/catalog"
)

// Column orders are consumed by position downstream and must not change.
var (
	ConnectionColumns = []string{
		"connection_name", "connection_qualified_name", "connector_name",
		"category", "created_by", "updated_by", "create_time", "update_time",
	}

	DatabaseColumns = []string{
		"type_name", "qualified_name", "name", "created_by", "updated_by",
		"create_time", "update_time", "connection_qualified_name",
	}

	combinedColumns = []string{
		"connector_name", "connection_name", "category", "type_name", "name",
	}
)

// CombinedColumns returns the combined report header.
// Multi-instance reports lead with the subdomain.
func CombinedColumns(multiInstance bool) []string {
	if multiInstance {
		return append([]string{"subdomain"}, combinedColumns...)
	}
	return append([]string(nil), combinedColumns...)
}

// CSVWriter writes record sets as CSV with a header row
type CSVWriter struct {
	writer io.Writer
}

// NewCSVWriter creates a new CSV writer
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{writer: w}
}

// WriteConnections writes the connections report
func (f *CSVWriter) WriteConnections(connections []catalog.Connection) error {
	rows := make([][]string, 0, len(connections))
	for _, c := range connections {
		rows = append(rows, ConnectionRow(c))
	}
	return f.write(ConnectionColumns, rows)
}

// WriteDatabases writes the databases report
func (f *CSVWriter) WriteDatabases(databases []catalog.DatabaseRecord) error {
	rows := make([][]string, 0, len(databases))
	for _, d := range databases {
		rows = append(rows, DatabaseRow(d))
	}
	return f.write(DatabaseColumns, rows)
}

// WriteCombined writes the left-joined report
func (f *CSVWriter) WriteCombined(records []catalog.CombinedRecord, multiInstance bool) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, CombinedRow(r, multiInstance))
	}
	return f.write(CombinedColumns(multiInstance), rows)
}

func (f *CSVWriter) write(header []string, rows [][]string) error {
	w := csv.NewWriter(f.writer)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// ConnectionRow flattens a connection in ConnectionColumns order
func ConnectionRow(c catalog.Connection) []string {
	return []string{
		c.Name, c.QualifiedName, c.ConnectorName, c.Category,
		c.CreatedBy, c.UpdatedBy, c.CreateTime, c.UpdateTime,
	}
}

// DatabaseRow flattens a database record in DatabaseColumns order
func DatabaseRow(d catalog.DatabaseRecord) []string {
	return []string{
		d.TypeName, d.QualifiedName, d.Name, d.CreatedBy, d.UpdatedBy,
		d.CreateTime, d.UpdateTime, d.ConnectionQualifiedName,
	}
}

// CombinedRow flattens a combined record in CombinedColumns order
func CombinedRow(r catalog.CombinedRecord, multiInstance bool) []string {
	row := []string{r.ConnectorName, r.ConnectionName, r.Category, r.TypeName, r.Name}
	if multiInstance {
		return append([]string{r.Subdomain}, row...)
	}
	return row
}
