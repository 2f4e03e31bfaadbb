package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PgxSession implements Session on a single pgx connection.
type PgxSession struct {
	conn *pgx.Conn
}

// Connect opens and pings a single connection to connStr.
func Connect(ctx context.Context, connStr string) (*PgxSession, error) {
	cfg, err := pgx.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	// Redshift does not support the extended protocol's statement cache.
	cfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to warehouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("pinging warehouse: %w", err)
	}
	return &PgxSession{conn: conn}, nil
}

func (s *PgxSession) Exec(ctx context.Context, sql string) error {
	if _, err := s.conn.Exec(ctx, sql); err != nil {
		return err
	}
	return nil
}

func (s *PgxSession) QueryInt(ctx context.Context, sql string) (int64, error) {
	var n int64
	if err := s.conn.QueryRow(ctx, sql).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PgxSession) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}
