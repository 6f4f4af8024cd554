package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"SuperAlgo/internal/domain/errs"
	"SuperAlgo/internal/domain/models"
	drepo "SuperAlgo/internal/domain/repository"
	applogger "SuperAlgo/pkg/logger"
)

// RiskParams are the per-symbol trading limits.
type RiskParams struct {
	CashBuffer      float64
	StopLossPct     float64
	TakeProfitPct   float64
	Cooldown        time.Duration
	MaxTradesPerDay int
	// TrackedSymbols divides available cash between symbols.
	TrackedSymbols int
}

// Session decides trading hours and trading days.
type Session interface {
	IsOpen(t time.Time) bool
	DayKey(t time.Time) string
}

const entryTolerance = 1e-6

type ControllerOption func(*RiskController)

func WithStateStore(s drepo.StateStore) ControllerOption {
	return func(c *RiskController) { c.store = s }
}

func WithControllerLogger(l *applogger.Logger) ControllerOption {
	return func(c *RiskController) { c.log = l }
}

func WithControllerClock(now func() time.Time) ControllerOption {
	return func(c *RiskController) { c.now = now }
}

// RiskController owns the FLAT/LONG state of one symbol. Ticks are
// serialized. State reads a snapshot published after each mutation and
// never waits on a running tick.
type RiskController struct {
	symbol  string
	params  RiskParams
	session Session
	broker  drepo.Broker
	gateway *ExecutionGateway
	guard   *DailyLossGuard
	store   drepo.StateStore
	metrics drepo.Metrics
	log     *applogger.Logger
	now     func() time.Time

	mu           sync.Mutex
	state        models.SymbolState
	bootstrapped bool
	snapshot     atomic.Pointer[models.SymbolState]
}

func NewRiskController(symbol string, params RiskParams, session Session, broker drepo.Broker,
	gateway *ExecutionGateway, guard *DailyLossGuard, metrics drepo.Metrics, opts ...ControllerOption) *RiskController {
	if params.TrackedSymbols < 1 {
		params.TrackedSymbols = 1
	}
	c := &RiskController{
		symbol:  symbol,
		params:  params,
		session: session,
		broker:  broker,
		gateway: gateway,
		guard:   guard,
		metrics: metrics,
		log:     applogger.Nop(),
		now:     time.Now,
		state:   models.NewSymbolState(symbol, ""),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(applogger.String("symbol", symbol))
	c.publish()
	return c
}

func (c *RiskController) Symbol() string { return c.symbol }

// State returns a copy of the last published state.
func (c *RiskController) State() models.SymbolState {
	return c.snapshot.Load().Clone()
}

// publish must be called with mu held.
func (c *RiskController) publish() {
	st := c.state.Clone()
	c.snapshot.Store(&st)
}

// Bootstrap seeds state from the broker position and any persisted
// counters for today.
func (c *RiskController) Bootstrap(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.publish()
	return c.bootstrap(ctx)
}

func (c *RiskController) bootstrap(ctx context.Context) error {
	day := c.session.DayKey(c.now())
	pos, err := c.broker.GetPosition(ctx, c.symbol)
	if err != nil {
		return fmt.Errorf("bootstrap %s: %w", c.symbol, err)
	}

	st := models.NewSymbolState(c.symbol, day)
	if c.store != nil {
		saved, err := c.store.LoadSymbol(ctx, c.symbol)
		if err != nil {
			c.log.Warn("load persisted state failed", applogger.Error(err))
		} else if saved != nil {
			st.CumulativePnL = saved.CumulativePnL
			st.LastTradeAt = saved.Clone().LastTradeAt
			if saved.Day == day {
				st.TradesToday = saved.TradesToday
			}
		}
	}
	switch {
	case pos == nil || pos.Quantity == 0:
	case pos.Quantity > 0:
		st.Status = models.StatusLong
		st.Quantity = pos.Quantity
		st.EntryPrice = pos.EntryPrice
	default:
		// left FLAT so every tick reports the mismatch until an operator acts
		c.log.Warn("broker holds a short position; trading blocked",
			applogger.Int64("broker_quantity", pos.Quantity))
	}

	c.state = st
	c.bootstrapped = true
	c.persist(ctx)
	c.log.Info("risk state bootstrapped",
		applogger.String("status", string(st.Status)),
		applogger.Int64("quantity", st.Quantity),
		applogger.Int("trades_today", st.TradesToday))
	return nil
}

// ResetDay zeroes the trade counter when day starts a new trading day.
// Positions are untouched.
func (c *RiskController) ResetDay(ctx context.Context, day string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.publish()
	c.resetDay(ctx, day)
}

func (c *RiskController) resetDay(ctx context.Context, day string) {
	if !c.bootstrapped || c.state.Day == day {
		return
	}
	c.state.Day = day
	c.state.TradesToday = 0
	c.persist(ctx)
}

// Tick runs one evaluation. The returned error is non-nil for failure
// outcomes and for a confirmed fill whose trade record was lost.
func (c *RiskController) Tick(ctx context.Context, view MarketView) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.publish()

	now := c.now()
	if !c.session.IsOpen(now) {
		return OutcomeClosed, nil
	}
	if !c.bootstrapped {
		if err := c.bootstrap(ctx); err != nil {
			return OutcomeBrokerUnavailable, err
		}
	}
	c.resetDay(ctx, c.session.DayKey(now))

	if c.state.TradesToday >= c.params.MaxTradesPerDay {
		return OutcomeDailyCap, nil
	}
	if c.state.LastTradeAt != nil && now.Sub(*c.state.LastTradeAt) < c.params.Cooldown {
		return OutcomeCooldown, nil
	}

	pos, err := c.broker.GetPosition(ctx, c.symbol)
	if err != nil {
		return OutcomeBrokerUnavailable, err
	}
	if out, err := c.reconcile(ctx, pos); out != "" {
		return out, err
	}

	if c.state.IsLong() {
		return c.checkExit(ctx, view)
	}
	return c.checkEntry(ctx, view)
}

// reconcile compares the broker position with internal state. A non-empty
// outcome means the tick must stop. A short broker position never matches.
func (c *RiskController) reconcile(ctx context.Context, pos *models.Position) (Outcome, error) {
	held := pos != nil && pos.Quantity != 0
	if held != c.state.IsLong() || (held && pos.Quantity < 0) {
		var qty int64
		if held {
			qty = pos.Quantity
		}
		err := fmt.Errorf("%s: broker quantity=%d, controller status=%s: %w",
			c.symbol, qty, c.state.Status, errs.ErrReconciliationMismatch)
		c.log.Warn("position existence mismatch; operator attention required", applogger.Error(err))
		return OutcomeReconcileMismatch, err
	}
	if !held {
		return "", nil
	}
	if pos.Quantity == c.state.Quantity && !entryDiffers(pos.EntryPrice, c.state.EntryPrice) {
		return "", nil
	}

	c.log.Warn("position differs from broker; adopting broker values",
		applogger.Int64("quantity", c.state.Quantity),
		applogger.Int64("broker_quantity", pos.Quantity),
		applogger.Float64("entry_price", c.state.EntryPrice),
		applogger.Float64("broker_entry_price", pos.EntryPrice))
	c.state.Quantity = pos.Quantity
	c.state.EntryPrice = pos.EntryPrice
	c.persist(ctx)
	return OutcomeReconciled, nil
}

func entryDiffers(a, b float64) bool {
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale == 0 {
		return false
	}
	return math.Abs(a-b)/scale > entryTolerance
}

func (c *RiskController) checkExit(ctx context.Context, view MarketView) (Outcome, error) {
	q, err := view.Quote(ctx)
	if err != nil {
		return dataOutcome(err), err
	}
	c.metrics.RecordLastPrice(c.symbol, q.Price)

	entry := c.state.EntryPrice
	var out Outcome
	switch {
	case q.Price <= entry*(1-c.params.StopLossPct):
		out = OutcomeExitStopLoss
	case q.Price >= entry*(1+c.params.TakeProfitPct):
		out = OutcomeExitTakeProfit
	default:
		return OutcomeHold, nil
	}

	qty := c.state.Quantity
	intent := models.OrderIntent{Symbol: c.symbol, Side: models.SideSell, Quantity: qty, DecisionPrice: q.Price}
	realize := func(f models.Fill) float64 { return (f.Price - entry) * float64(f.Quantity) }
	fill, rec, err := c.gateway.Submit(ctx, intent, q.Sentiment, realize)
	if err != nil && !errors.Is(err, ErrTradeLogAppend) {
		return orderOutcome(err), err
	}

	c.state.Status = models.StatusFlat
	c.state.Quantity = 0
	c.state.EntryPrice = 0
	c.markTraded()
	c.state.CumulativePnL += rec.RealizedPnL
	c.persist(ctx)

	c.guard.Record(ctx, rec.RealizedPnL)
	c.metrics.RecordRealizedPnL(c.symbol, c.state.CumulativePnL)
	c.log.Info("position closed",
		applogger.String("reason", string(out)),
		applogger.Int64("quantity", fill.Quantity),
		applogger.Float64("entry_price", entry),
		applogger.Float64("fill_price", fill.Price),
		applogger.Float64("realized_pnl", rec.RealizedPnL))
	return out, err
}

func (c *RiskController) checkEntry(ctx context.Context, view MarketView) (Outcome, error) {
	snap, err := view.Snapshot(ctx)
	if err != nil {
		return dataOutcome(err), err
	}
	c.metrics.RecordLastPrice(c.symbol, snap.Price)

	if snap.Signal.Kind != models.SignalBuy {
		return OutcomeHold, nil
	}
	if !c.guard.EntriesAllowed() {
		c.log.Debug("entry suppressed by daily loss limit")
		return OutcomeEntryHalted, nil
	}

	cash, err := c.broker.GetAccountCash(ctx)
	if err != nil {
		return OutcomeBrokerUnavailable, err
	}
	qty := c.size(cash, snap.Price)
	if qty <= 0 {
		c.log.Info("insufficient cash for entry",
			applogger.String("cash", cash.StringFixed(2)),
			applogger.Float64("price", snap.Price))
		return OutcomeInsufficientCash, nil
	}

	intent := models.OrderIntent{Symbol: c.symbol, Side: models.SideBuy, Quantity: qty, DecisionPrice: snap.Price}
	fill, _, err := c.gateway.Submit(ctx, intent, snap.Sentiment, nil)
	if err != nil && !errors.Is(err, ErrTradeLogAppend) {
		return orderOutcome(err), err
	}

	c.state.Status = models.StatusLong
	c.state.Quantity = fill.Quantity
	c.state.EntryPrice = fill.Price
	c.markTraded()
	c.persist(ctx)
	c.log.Info("position opened",
		applogger.Int64("quantity", fill.Quantity),
		applogger.Float64("fill_price", fill.Price),
		applogger.String("signal", snap.Signal.String()))
	return OutcomeEntered, err
}

// size is floor(cash*(1-buffer)/n / price).
func (c *RiskController) size(cash decimal.Decimal, price float64) int64 {
	if price <= 0 || !cash.IsPositive() {
		return 0
	}
	alloc := cash.Mul(decimal.NewFromFloat(1 - c.params.CashBuffer)).
		Div(decimal.NewFromInt(int64(c.params.TrackedSymbols)))
	return alloc.Div(decimal.NewFromFloat(price)).Floor().IntPart()
}

func (c *RiskController) markTraded() {
	t := c.now()
	c.state.LastTradeAt = &t
	c.state.TradesToday++
}

func (c *RiskController) persist(ctx context.Context) {
	if c.store == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := c.store.SaveSymbol(pctx, c.state.Clone()); err != nil {
		c.log.Warn("persist risk state failed", applogger.Error(err))
	}
}

func dataOutcome(err error) Outcome {
	if errors.Is(err, errs.ErrInsufficientData) {
		return OutcomeNoData
	}
	return OutcomeUpstreamError
}

func orderOutcome(err error) Outcome {
	if errors.Is(err, errs.ErrOrderRejected) {
		return OutcomeOrderRejected
	}
	return OutcomeBrokerUnavailable
}
