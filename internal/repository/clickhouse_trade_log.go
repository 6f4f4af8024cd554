package repository

import (
	"context"
	"database/sql"
	"fmt"

	"SuperAlgo/internal/domain/models"
	drepo "SuperAlgo/internal/domain/repository"
)

// ClickHouseTradeLog inserts trade records into a MergeTree table.
type ClickHouseTradeLog struct {
	db    *sql.DB
	table string
}

func NewClickHouseTradeLog(db *sql.DB, table string) *ClickHouseTradeLog {
	return &ClickHouseTradeLog{db: db, table: table}
}

// ClickHouseTradeSchema returns the DDL for the trade table.
func ClickHouseTradeSchema(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	ts DateTime64(3, 'UTC'),
	symbol LowCardinality(String),
	action LowCardinality(String),
	quantity Int64,
	price Float64,
	sentiment Float64,
	realized_pnl Float64,
	order_id String
) ENGINE = MergeTree
ORDER BY (symbol, ts)`, table)}
}

func (s *ClickHouseTradeLog) Append(ctx context.Context, rec models.TradeRecord) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, symbol, action, quantity, price, sentiment, realized_pnl, order_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q,
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
		return fmt.Errorf("clickhouse insert trade: %w", err)
	}
	return nil
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *ClickHouseTradeLog) Close() error { return nil }

var _ drepo.TradeLog = (*ClickHouseTradeLog)(nil)
