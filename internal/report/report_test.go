package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/metaharvest/internal/catalog"
)

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteConnections(t *testing.T) {
	var buf bytes.Buffer
	err := NewCSVWriter(&buf).WriteConnections([]catalog.Connection{{
		Name: "test-conn", QualifiedName: "test/conn/1", ConnectorName: "test-connector",
		Category: "warehouse", CreatedBy: "alice", UpdatedBy: "bob",
		CreateTime: "1234567890", UpdateTime: "1234567891",
	}})
	require.NoError(t, err)

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 2)
	assert.Equal(t, ConnectionColumns, rows[0])
	assert.Equal(t, []string{"test-conn", "test/conn/1", "test-connector", "warehouse", "alice", "bob", "1234567890", "1234567891"}, rows[1])
}

func TestWriteDatabases(t *testing.T) {
	var buf bytes.Buffer
	err := NewCSVWriter(&buf).WriteDatabases([]catalog.DatabaseRecord{{
		ConnectionQualifiedName: "test/conn/1", TypeName: "Database", QualifiedName: "test/db/1",
		Name: "test-db", CreatedBy: "alice", UpdatedBy: "bob", CreateTime: "1", UpdateTime: "2",
	}})
	require.NoError(t, err)

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"type_name", "qualified_name", "name", "created_by", "updated_by", "create_time", "update_time", "connection_qualified_name"}, rows[0])
	assert.Equal(t, []string{"Database", "test/db/1", "test-db", "alice", "bob", "1", "2", "test/conn/1"}, rows[1])
}

func TestWriteCombined(t *testing.T) {
	records := []catalog.CombinedRecord{
		{Subdomain: "acme", ConnectorName: "databricks", ConnectionName: "prod", Category: "lake", TypeName: "Database", Name: "analytics"},
		{Subdomain: "acme", ConnectorName: "api", ConnectionName: "feed", Category: "API"},
	}

	tests := []struct {
		name       string
		multi      bool
		wantHeader []string
		wantFirst  []string
		wantLast   []string
	}{
		{
			name:       "legacy",
			wantHeader: []string{"connector_name", "connection_name", "category", "type_name", "name"},
			wantFirst:  []string{"databricks", "prod", "lake", "Database", "analytics"},
			wantLast:   []string{"api", "feed", "API", "", ""},
		},
		{
			name:       "multi-instance",
			multi:      true,
			wantHeader: []string{"subdomain", "connector_name", "connection_name", "category", "type_name", "name"},
			wantFirst:  []string{"acme", "databricks", "prod", "lake", "Database", "analytics"},
			wantLast:   []string{"acme", "api", "feed", "API", "", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewCSVWriter(&buf).WriteCombined(records, tt.multi))

			rows := readCSV(t, buf.Bytes())
			require.Len(t, rows, 3)
			assert.Equal(t, tt.wantHeader, rows[0])
			assert.Equal(t, tt.wantFirst, rows[1])
			assert.Equal(t, tt.wantLast, rows[2])
		})
	}
}

func TestCombinedColumnsNotShared(t *testing.T) {
	cols := CombinedColumns(false)
	cols[0] = "mutated"
	assert.Equal(t, "connector_name", CombinedColumns(false)[0])
}

func TestFileWriterPaths(t *testing.T) {
	legacy := NewFileWriter("out", false, nil).PathsFor("acme")
	assert.Equal(t, filepath.Join("out", "connections.csv"), legacy.Connections)
	assert.Equal(t, filepath.Join("out", "databases.csv"), legacy.Databases)
	assert.Equal(t, filepath.Join("out", "connections_databases.csv"), legacy.Combined)

	multi := NewFileWriter("out", true, nil).PathsFor("acme")
	assert.Equal(t, filepath.Join("out", "acme_connections.csv"), multi.Connections)
	assert.Equal(t, filepath.Join("out", "acme_connections_databases.csv"), multi.Combined)
}

func TestFileWriterWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	w := NewFileWriter(dir, true, nil)

	result := catalog.InstanceResult{
		Instance:    catalog.Instance{Subdomain: "acme"},
		Connections: []catalog.Connection{{Name: "c", QualifiedName: "q"}},
		Databases:   []catalog.DatabaseRecord{{ConnectionQualifiedName: "q", Name: "d"}},
		Combined:    []catalog.CombinedRecord{{Subdomain: "acme", ConnectionName: "c", Name: "d"}},
	}

	paths, err := w.Write(result)
	require.NoError(t, err)

	for _, p := range []string{paths.Connections, paths.Databases, paths.Combined} {
		require.NotEmpty(t, p)
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}

	data, err := os.ReadFile(paths.Combined)
	require.NoError(t, err)
	rows := readCSV(t, data)
	assert.Equal(t, []string{"acme", "", "c", "", "", "d"}, rows[1])
}

func TestFileWriterSkipsEmptySets(t *testing.T) {
	dir := t.TempDir()
	w := NewFileWriter(dir, false, nil)

	result := catalog.InstanceResult{
		Instance:    catalog.Instance{Subdomain: "acme"},
		Connections: []catalog.Connection{{Name: "c", QualifiedName: "q"}},
		Combined:    []catalog.CombinedRecord{{ConnectionName: "c"}},
	}

	paths, err := w.Write(result)
	require.NoError(t, err)
	assert.NotEmpty(t, paths.Connections)
	assert.Empty(t, paths.Databases)
	assert.NotEmpty(t, paths.Combined)

	_, err = os.Stat(filepath.Join(dir, DatabasesFile))
	assert.True(t, os.IsNotExist(err))
}

func TestFileWriterUnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := NewFileWriter(filepath.Join(blocker, "out"), false, nil).Write(catalog.InstanceResult{})
	assert.Error(t, err)
}
