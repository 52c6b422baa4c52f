package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// dialPostgres opens the single connection a postgres store copies records through
func dialPostgres(ctx context.Context, connString string) (*pgx.Conn, error) {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL connection string: %w", err)
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Host, err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Host, err)
	}

	return conn, nil
}
