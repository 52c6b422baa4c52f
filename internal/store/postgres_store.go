package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tordrt/metaharvest/internal/catalog"
)

// postgresStore bulk-loads record sets with COPY
type postgresStore struct {
	conn *pgx.Conn
}

func newPostgresStore(conn *pgx.Conn) *postgresStore {
	return &postgresStore{conn: conn}
}

func (s *postgresStore) migrate(ctx context.Context) error {
	for _, t := range tables {
		if _, err := s.conn.Exec(ctx, t.createStatement()); err != nil {
			return fmt.Errorf("failed to create %s: %w", t.name, err)
		}
	}
	return nil
}

// SaveInstance stores every record set of one instance in a single transaction
func (s *postgresStore) SaveInstance(ctx context.Context, runID string, result catalog.InstanceResult) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, t := range tables {
		rows := rowsFor(t, runID, result)
		if len(rows) == 0 {
			continue
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{t.name}, t.allColumns(), pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("failed to copy into %s: %w", t.name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *postgresStore) Close() error {
	return s.conn.Close(context.Background())
}
