package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"SuperAlgo/internal/domain/models"
	drepo "SuperAlgo/internal/domain/repository"
)

// CSVTradeLog appends one headerless row per executed order:
// timestamp,symbol,action,quantity,price,sentiment,realizedPnL.
type CSVTradeLog struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

func NewCSVTradeLog(path string) (*CSVTradeLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("trade log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trade log: %w", err)
	}
	return &CSVTradeLog{f: f, w: csv.NewWriter(f)}, nil
}

// Row renders rec in trade log column order.
func Row(rec models.TradeRecord) []string {
	return []string{
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.Symbol,
		string(rec.Action),
		strconv.FormatInt(rec.Quantity, 10),
		strconv.FormatFloat(rec.Price, 'f', -1, 64),
		strconv.FormatFloat(rec.Sentiment, 'f', -1, 64),
		strconv.FormatFloat(rec.RealizedPnL, 'f', 2, 64),
	}
}

func (l *CSVTradeLog) Append(_ context.Context, rec models.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return fmt.Errorf("trade log closed")
	}
	if err := l.w.Write(Row(rec)); err != nil {
		return fmt.Errorf("write trade log: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("flush trade log: %w", err)
	}
	return nil
}

func (l *CSVTradeLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	l.w.Flush()
	err := l.f.Close()
	l.f = nil
	return err
}

var _ drepo.TradeLog = (*CSVTradeLog)(nil)
