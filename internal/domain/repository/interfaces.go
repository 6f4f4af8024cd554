package repository

import (
	"context"
	"time"

	"SuperAlgo/internal/domain/models"

	"github.com/shopspring/decimal"
)

// Timeframe is the bar resolution requested from market data.
type Timeframe string

const (
	TF1Min  Timeframe = "1Min"
	TF5Min  Timeframe = "5Min"
	TF15Min Timeframe = "15Min"
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1Min, TF5Min, TF15Min:
		return true
	default:
		return false
	}
}

// Duration returns the wall-clock length of one bar.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF5Min:
		return 5 * time.Minute
	case TF15Min:
		return 15 * time.Minute
	default:
		return time.Minute
	}
}

// MarketData returns up to count most recent bars in ascending order. The
// result may be shorter than requested.
type MarketData interface {
	GetRecentBars(ctx context.Context, symbol string, count int) ([]models.Bar, error)
}

// Broker is the authoritative source of positions and cash. Errors wrap
// errs.ErrBrokerUnavailable or errs.ErrOrderRejected.
type Broker interface {
	// GetPosition returns nil when the account holds no position in symbol.
	GetPosition(ctx context.Context, symbol string) (*models.Position, error)
	GetAccountCash(ctx context.Context) (decimal.Decimal, error)
	// SubmitMarketOrder blocks until the order is filled or fails.
	SubmitMarketOrder(ctx context.Context, intent models.OrderIntent) (models.Fill, error)
}

// TradeLog is the append-only record of executed orders.
type TradeLog interface {
	Append(ctx context.Context, rec models.TradeRecord) error
	Close() error
}

// StateStore persists risk state so counters survive restarts.
type StateStore interface {
	LoadSymbol(ctx context.Context, symbol string) (*models.SymbolState, error)
	SaveSymbol(ctx context.Context, st models.SymbolState) error
	LoadGuard(ctx context.Context) (*models.GuardState, error)
	SaveGuard(ctx context.Context, st models.GuardState) error
	// AcquireInstance takes the single-instance lock; false means another
	// engine already holds it.
	AcquireInstance(ctx context.Context, ttl time.Duration) (bool, error)
	// RefreshInstance extends a held lock and fails if it has lapsed.
	RefreshInstance(ctx context.Context, ttl time.Duration) error
	ReleaseInstance(ctx context.Context) error
}

// PriceStream is a streaming last-trade feed.
type PriceStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.PriceTick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// PriceSource returns the freshest known price for symbol.
type PriceSource interface {
	LastPrice(symbol string) (price float64, at time.Time, ok bool)
}

type Metrics interface {
	RecordTick(symbol, outcome string)
	RecordOrder(symbol, side, result string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordRealizedPnL(symbol string, cumulative float64)
	SetDailyLossBreached(breached bool)
	RecordLatency(op string, seconds float64)
}
