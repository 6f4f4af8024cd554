// Package yahoo serves recent bars from the Yahoo Finance chart endpoint.
// It needs no credentials and backs the "yahoo" market data type.
package yahoo

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"SuperAlgo/internal/domain/errs"
	"SuperAlgo/internal/domain/models"
	drepo "SuperAlgo/internal/domain/repository"
)

var intervals = map[drepo.Timeframe]datetime.Interval{
	drepo.TF1Min:  datetime.Interval("1m"),
	drepo.TF5Min:  datetime.Interval("5m"),
	drepo.TF15Min: datetime.Interval("15m"),
}

type Source struct {
	timeframe drepo.Timeframe
	lookback  time.Duration
	now       func() time.Time
}

// NewSource builds a chart source. lookback bounds the request window and
// must cover overnight gaps.
func NewSource(tf drepo.Timeframe, lookback time.Duration) *Source {
	if lookback <= 0 {
		lookback = 4 * 24 * time.Hour
	}
	return &Source{timeframe: tf, lookback: lookback, now: time.Now}
}

func (s *Source) GetRecentBars(ctx context.Context, symbol string, count int) ([]models.Bar, error) {
	interval, ok := intervals[s.timeframe]
	if !ok {
		return nil, fmt.Errorf("yahoo: unsupported timeframe %q: %w", s.timeframe, errs.ErrUpstream)
	}
	end := s.now()
	start := end.Add(-s.lookback)

	iter := chart.Get(&chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: interval,
	})

	bars := make([]models.Bar, 0, count)
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("yahoo %s: %v: %w", symbol, err, errs.ErrUpstream)
		}
		b := iter.Bar()
		// minutes without trades come back as null quotes
		if b.Close.IsZero() {
			continue
		}
		bars = append(bars, models.Bar{
			Timestamp: time.Unix(int64(b.Timestamp), 0).UTC(),
			Open:      b.Open.InexactFloat64(),
			High:      b.High.InexactFloat64(),
			Low:       b.Low.InexactFloat64(),
			Close:     b.Close.InexactFloat64(),
			Volume:    float64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo %s: %v: %w", symbol, err, errs.ErrUpstream)
	}
	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	return bars, nil
}

var _ drepo.MarketData = (*Source)(nil)
