// Package sim provides an in-process broker that fills market orders at the
// decision price. It backs the "sim" broker type and the use case tests.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"SuperAlgo/internal/domain/errs"
	"SuperAlgo/internal/domain/models"
	drepo "SuperAlgo/internal/domain/repository"
)

type positionState struct {
	qty     int64
	avgCost decimal.Decimal
}

type Option func(*Broker)

// WithSlippageBps moves buy fills up and sell fills down by bps/10000.
func WithSlippageBps(bps float64) Option {
	return func(b *Broker) { b.slippage = decimal.NewFromFloat(bps).Div(decimal.NewFromInt(10000)) }
}

func WithClock(now func() time.Time) Option { return func(b *Broker) { b.now = now } }

// Broker tracks virtual cash and per-symbol long positions.
type Broker struct {
	mu        sync.Mutex
	cash      decimal.Decimal
	realized  decimal.Decimal
	positions map[string]positionState
	slippage  decimal.Decimal
	now       func() time.Time
	fills     []models.Fill
}

func NewBroker(startingCash float64, opts ...Option) *Broker {
	b := &Broker{
		cash:      decimal.NewFromFloat(startingCash),
		positions: make(map[string]positionState),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Broker) GetPosition(_ context.Context, symbol string) (*models.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[symbol]
	if !ok {
		return nil, nil
	}
	return &models.Position{Symbol: symbol, Quantity: p.qty, EntryPrice: p.avgCost.InexactFloat64()}, nil
}

func (b *Broker) GetAccountCash(context.Context) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cash, nil
}

func (b *Broker) SubmitMarketOrder(ctx context.Context, intent models.OrderIntent) (models.Fill, error) {
	if err := ctx.Err(); err != nil {
		return models.Fill{}, fmt.Errorf("sim submit: %v: %w", err, errs.ErrBrokerUnavailable)
	}
	if intent.Quantity <= 0 {
		return models.Fill{}, fmt.Errorf("quantity must be positive: %w", errs.ErrOrderRejected)
	}
	if intent.DecisionPrice <= 0 {
		return models.Fill{}, fmt.Errorf("price must be positive: %w", errs.ErrOrderRejected)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	price := decimal.NewFromFloat(intent.DecisionPrice)
	qty := decimal.NewFromInt(intent.Quantity)
	state := b.positions[intent.Symbol]

	switch intent.Side {
	case models.SideBuy:
		price = price.Mul(decimal.NewFromInt(1).Add(b.slippage))
		notional := price.Mul(qty)
		if notional.GreaterThan(b.cash) {
			return models.Fill{}, fmt.Errorf("insufficient cash for %s: %w", intent.Symbol, errs.ErrOrderRejected)
		}
		newQty := state.qty + intent.Quantity
		avg := state.avgCost.Mul(decimal.NewFromInt(state.qty)).Add(notional).Div(decimal.NewFromInt(newQty))
		b.cash = b.cash.Sub(notional)
		b.positions[intent.Symbol] = positionState{qty: newQty, avgCost: avg}
	case models.SideSell:
		if state.qty < intent.Quantity {
			return models.Fill{}, fmt.Errorf("insufficient position in %s: %w", intent.Symbol, errs.ErrOrderRejected)
		}
		price = price.Mul(decimal.NewFromInt(1).Sub(b.slippage))
		b.realized = b.realized.Add(price.Sub(state.avgCost).Mul(qty))
		b.cash = b.cash.Add(price.Mul(qty))
		if left := state.qty - intent.Quantity; left == 0 {
			delete(b.positions, intent.Symbol)
		} else {
			b.positions[intent.Symbol] = positionState{qty: left, avgCost: state.avgCost}
		}
	default:
		return models.Fill{}, fmt.Errorf("unknown side %q: %w", intent.Side, errs.ErrOrderRejected)
	}

	fill := models.Fill{
		OrderID:   uuid.NewString(),
		Price:     price.InexactFloat64(),
		Quantity:  intent.Quantity,
		Timestamp: b.now(),
	}
	b.fills = append(b.fills, fill)
	return fill, nil
}

// RealizedPnL returns total closed-trade profit and loss.
func (b *Broker) RealizedPnL() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.realized
}

// Fills returns a copy of every fill so far.
func (b *Broker) Fills() []models.Fill {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Fill(nil), b.fills...)
}

// SetPosition overwrites the broker's view of a symbol. A zero quantity
// removes the position.
func (b *Broker) SetPosition(symbol string, qty int64, avgCost float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if qty <= 0 {
		delete(b.positions, symbol)
		return
	}
	b.positions[symbol] = positionState{qty: qty, avgCost: decimal.NewFromFloat(avgCost)}
}

var _ drepo.Broker = (*Broker)(nil)
