package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/metaharvest/internal/catalog"
)

func insertPattern(table string) string {
	return "INSERT INTO " + regexp.QuoteMeta(table) + " "
}

func TestSQLStoreMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + ConnectionsTable).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + DatabasesTable).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + CombinedTable).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, newSQLStore(db).migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreSaveInstanceCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	result := catalog.InstanceResult{
		Instance:    catalog.Instance{Subdomain: "acme"},
		Connections: []catalog.Connection{{Name: "feed", QualifiedName: "default/api/2", ConnectorName: "api"}},
		Combined:    []catalog.CombinedRecord{{ConnectorName: "api", ConnectionName: "feed"}},
	}

	mock.ExpectBegin()
	conns := mock.ExpectPrepare(insertPattern(ConnectionsTable))
	conns.ExpectExec().
		WithArgs("run-1", "acme", 0, "feed", "default/api/2", "api", "", "", "", "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectPrepare(insertPattern(DatabasesTable))
	combined := mock.ExpectPrepare(insertPattern(CombinedTable))
	combined.ExpectExec().
		WithArgs("run-1", "acme", 0, "api", "feed", "", "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, newSQLStore(db).SaveInstance(context.Background(), "run-1", result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreSaveInstanceRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectPrepare(insertPattern(ConnectionsTable)).
		ExpectExec().
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = newSQLStore(db).SaveInstance(context.Background(), "run-1", sampleResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ConnectionsTable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
