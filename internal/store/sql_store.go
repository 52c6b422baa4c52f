package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tordrt/metaharvest/internal/catalog"
)

// sqlStore writes through database/sql. SQLite and MySQL share it since both
// drivers use ? placeholders.
type sqlStore struct {
	db *sql.DB
}

func newSQLStore(db *sql.DB) *sqlStore {
	return &sqlStore{db: db}
}

func (s *sqlStore) migrate(ctx context.Context) error {
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, t.createStatement()); err != nil {
			return fmt.Errorf("failed to create %s: %w", t.name, err)
		}
	}
	return nil
}

// SaveInstance stores every record set of one instance in a single transaction
func (s *sqlStore) SaveInstance(ctx context.Context, runID string, result catalog.InstanceResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range tables {
		cols := t.allColumns()
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(cols, ", "), placeholders)

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare insert into %s: %w", t.name, err)
		}

		for _, row := range rowsFor(t, runID, result) {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				_ = stmt.Close()
				return fmt.Errorf("failed to insert into %s: %w", t.name, err)
			}
		}
		if err := stmt.Close(); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}
