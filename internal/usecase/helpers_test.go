package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SuperAlgo/internal/domain/models"
	drepo "SuperAlgo/internal/domain/repository"
	"SuperAlgo/internal/service/sim"
	"SuperAlgo/pkg/metrics"
)

type fixedSession struct{ closed bool }

func (s fixedSession) IsOpen(time.Time) bool { return !s.closed }

func (fixedSession) DayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 13, 14, 31, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeView struct {
	mu         sync.Mutex
	price      float64
	sentiment  float64
	signal     models.SignalKind
	err        error
	quoteCalls int
	snapCalls  int
}

func (v *fakeView) set(price float64, sig models.SignalKind) {
	v.mu.Lock()
	v.price, v.signal = price, sig
	v.mu.Unlock()
}

func (v *fakeView) Quote(context.Context) (Quote, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.quoteCalls++
	if v.err != nil {
		return Quote{}, v.err
	}
	return Quote{Price: v.price, Sentiment: v.sentiment}, nil
}

func (v *fakeView) Snapshot(context.Context) (Snapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snapCalls++
	if v.err != nil {
		return Snapshot{}, v.err
	}
	return Snapshot{
		Quote:  Quote{Price: v.price, Sentiment: v.sentiment},
		Signal: models.Signal{Kind: v.signal, Confidence: 0.7},
	}, nil
}

type memLog struct {
	mu   sync.Mutex
	recs []models.TradeRecord
	err  error
}

func (l *memLog) Append(_ context.Context, rec models.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.recs = append(l.recs, rec)
	return nil
}

func (l *memLog) Close() error { return nil }

func (l *memLog) records() []models.TradeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.TradeRecord(nil), l.recs...)
}

// flakyBroker fails the calls whose error is set and delegates the rest.
// A non-nil position replaces the simulated one.
type flakyBroker struct {
	*sim.Broker
	submitErr   error
	positionErr error
	position    *models.Position
}

func (b *flakyBroker) GetPosition(ctx context.Context, symbol string) (*models.Position, error) {
	if b.positionErr != nil {
		return nil, b.positionErr
	}
	if b.position != nil {
		p := *b.position
		return &p, nil
	}
	return b.Broker.GetPosition(ctx, symbol)
}

func (b *flakyBroker) SubmitMarketOrder(ctx context.Context, intent models.OrderIntent) (models.Fill, error) {
	if b.submitErr != nil {
		return models.Fill{}, b.submitErr
	}
	return b.Broker.SubmitMarketOrder(ctx, intent)
}

type countingAlerter struct {
	mu    sync.Mutex
	count int
}

func (a *countingAlerter) Alert(context.Context, string, string) error {
	a.mu.Lock()
	a.count++
	a.mu.Unlock()
	return nil
}

func (a *countingAlerter) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

func defaultParams() RiskParams {
	return RiskParams{
		CashBuffer:      0.1,
		StopLossPct:     0.02,
		TakeProfitPct:   0.04,
		Cooldown:        5 * time.Minute,
		MaxTradesPerDay: 10,
		TrackedSymbols:  3,
	}
}

type harness struct {
	clock *testClock
	log   *memLog
	guard *DailyLossGuard
	gw    *ExecutionGateway
}

func newHarness(broker drepo.Broker, limit float64, opts ...GuardOption) *harness {
	h := &harness{clock: newClock(), log: &memLog{}}
	h.guard = NewDailyLossGuard(limit, metrics.Nop{}, opts...)
	h.guard.ResetDay(context.Background(), fixedSession{}.DayKey(h.clock.Now()))
	h.gw = NewExecutionGateway(broker, h.log, metrics.Nop{}, nil)
	h.gw.now = h.clock.Now
	return h
}

func (h *harness) controller(symbol string, broker drepo.Broker, params RiskParams, opts ...ControllerOption) *RiskController {
	opts = append([]ControllerOption{WithControllerClock(h.clock.Now)}, opts...)
	return NewRiskController(symbol, params, fixedSession{}, broker, h.gw, h.guard, metrics.Nop{}, opts...)
}

func mustTick(t *testing.T, c *RiskController, v MarketView, want Outcome) {
	t.Helper()
	got, err := c.Tick(context.Background(), v)
	if got != want {
		t.Fatalf("outcome = %s (err %v), want %s", got, err, want)
	}
	if err != nil && !errors.Is(err, ErrTradeLogAppend) && want.Traded() {
		t.Fatalf("unexpected error on %s: %v", want, err)
	}
}
