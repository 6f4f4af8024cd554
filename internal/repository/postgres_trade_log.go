package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"SuperAlgo/internal/domain/models"
	drepo "SuperAlgo/internal/domain/repository"
)

type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresTradeLog inserts trade records into a Postgres table.
type PostgresTradeLog struct {
	db    pgExecer
	table string
	close func()
}

// NewPostgresPool opens and pings a pgx pool.
func NewPostgresPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func NewPostgresTradeLog(pool *pgxpool.Pool, table string) *PostgresTradeLog {
	return &PostgresTradeLog{db: pool, table: table, close: pool.Close}
}

// EnsureSchema creates the trade table when missing.
func (s *PostgresTradeLog) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL,
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	quantity BIGINT NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	sentiment DOUBLE PRECISION NOT NULL,
	realized_pnl DOUBLE PRECISION NOT NULL,
	order_id TEXT
)`, pgx.Identifier{s.table}.Sanitize())
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create trade table: %w", err)
	}
	return nil
}

func (s *PostgresTradeLog) Append(ctx context.Context, rec models.TradeRecord) error {
	q := fmt.Sprintf(`INSERT INTO %s (ts, symbol, action, quantity, price, sentiment, realized_pnl, order_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, pgx.Identifier{s.table}.Sanitize())
	_, err := s.db.Exec(ctx, q,
		rec.Timestamp.UTC(),
		rec.Symbol,
		string(rec.Action),
		rec.Quantity,
		rec.Price,
		rec.Sentiment,
		rec.RealizedPnL,
		rec.OrderID,
	)
	if err != nil {
		return fmt.Errorf("postgres insert trade: %w", err)
	}
	return nil
}

func (s *PostgresTradeLog) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

var _ drepo.TradeLog = (*PostgresTradeLog)(nil)
