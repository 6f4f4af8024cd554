package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"SuperAlgo/internal/domain/errs"
	"SuperAlgo/internal/domain/models"
	"SuperAlgo/internal/repository"
	"SuperAlgo/internal/service/sim"
	"SuperAlgo/pkg/cache"
	"SuperAlgo/pkg/metrics"
)

func TestEntrySizingScenarioA(t *testing.T) {
	broker := sim.NewBroker(10000)
	h := newHarness(broker, -100)
	c := h.controller("TSLA", broker, defaultParams())
	view := &fakeView{price: 100, signal: models.SignalBuy, sentiment: 0.2}

	mustTick(t, c, view, OutcomeEntered)

	st := c.State()
	if st.Status != models.StatusLong || st.Quantity != 30 || st.EntryPrice != 100 {
		t.Fatalf("unexpected state %+v", st)
	}
	if st.TradesToday != 1 || st.LastTradeAt == nil {
		t.Fatalf("trade not counted: %+v", st)
	}
	recs := h.log.records()
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	r := recs[0]
	if r.Action != models.SideBuy || r.Quantity != 30 || r.Price != 100 || r.RealizedPnL != 0 || r.Sentiment != 0.2 {
		t.Fatalf("unexpected record %+v", r)
	}
}

func TestStopLossScenarioB(t *testing.T) {
	for _, sig := range []models.SignalKind{models.SignalBuy, models.SignalHold, models.SignalSell} {
		t.Run(sig.String(), func(t *testing.T) {
			broker := sim.NewBroker(10000)
			broker.SetPosition("TSLA", 10, 100)
			h := newHarness(broker, -100)
			c := h.controller("TSLA", broker, defaultParams())
			view := &fakeView{price: 97, signal: sig}

			mustTick(t, c, view, OutcomeExitStopLoss)

			st := c.State()
			if st.Status != models.StatusFlat || st.Quantity != 0 {
				t.Fatalf("expected flat, got %+v", st)
			}
			recs := h.log.records()
			if len(recs) != 1 || recs[0].Action != models.SideSell || recs[0].Quantity != 10 {
				t.Fatalf("unexpected records %+v", recs)
			}
			if recs[0].RealizedPnL != -30 {
				t.Fatalf("realized = %v, want -30", recs[0].RealizedPnL)
			}
			if view.snapCalls != 0 {
				t.Fatalf("exit consulted the model")
			}
			if g := h.guard.Snapshot(); g.CumulativePnL != -30 {
				t.Fatalf("guard pnl = %v", g.CumulativePnL)
			}
		})
	}
}

func TestNoExitInsideBandScenarioC(t *testing.T) {
	broker := sim.NewBroker(10000)
	broker.SetPosition("TSLA", 10, 100)
	h := newHarness(broker, -100)
	c := h.controller("TSLA", broker, defaultParams())
	view := &fakeView{price: 103, signal: models.SignalBuy}

	if err := c.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	before := c.State()
	mustTick(t, c, view, OutcomeHold)

	if !c.State().Equal(before) {
		t.Fatalf("state changed: %+v -> %+v", before, c.State())
	}
	if len(broker.Fills()) != 0 || len(h.log.records()) != 0 {
		t.Fatalf("no order expected")
	}
}

func TestTakeProfit(t *testing.T) {
	broker := sim.NewBroker(10000)
	broker.SetPosition("AMD", 4, 100)
	h := newHarness(broker, -100)
	c := h.controller("AMD", broker, defaultParams())

	mustTick(t, c, &fakeView{price: 104}, OutcomeExitTakeProfit)
	if recs := h.log.records(); len(recs) != 1 || recs[0].RealizedPnL != 16 {
		t.Fatalf("unexpected records %+v", recs)
	}
}

func TestDailyLossHaltsEntriesScenarioD(t *testing.T) {
	broker := sim.NewBroker(100000)
	broker.SetPosition("TSLA", 10, 100)
	broker.SetPosition("AMD", 5, 100)
	alerter := &countingAlerter{}
	h := newHarness(broker, -50, WithGuardAlerter(alerter))

	tsla := h.controller("TSLA", broker, defaultParams())
	aapl := h.controller("AAPL", broker, defaultParams())
	amd := h.controller("AMD", broker, defaultParams())

	mustTick(t, tsla, &fakeView{price: 94}, OutcomeExitStopLoss)
	if h.guard.EntriesAllowed() {
		t.Fatalf("guard should be breached at %v", h.guard.Snapshot().CumulativePnL)
	}
	if alerter.calls() != 1 {
		t.Fatalf("alerts = %d, want 1", alerter.calls())
	}

	mustTick(t, aapl, &fakeView{price: 50, signal: models.SignalBuy}, OutcomeEntryHalted)
	if aapl.State().IsLong() {
		t.Fatalf("entry must be suppressed")
	}

	mustTick(t, amd, &fakeView{price: 90}, OutcomeExitStopLoss)
	if alerter.calls() != 1 {
		t.Fatalf("alert must fire once per day, got %d", alerter.calls())
	}

	h.clock.Advance(24 * time.Hour)
	h.guard.ResetDay(context.Background(), fixedSession{}.DayKey(h.clock.Now()))
	mustTick(t, aapl, &fakeView{price: 50, signal: models.SignalBuy}, OutcomeEntered)
}

func TestDailyCapBoundsTrades(t *testing.T) {
	broker := sim.NewBroker(10000)
	params := defaultParams()
	params.Cooldown = 0
	params.MaxTradesPerDay = 3
	h := newHarness(broker, -1000)
	c := h.controller("TSLA", broker, params)
	view := &fakeView{}

	for i := 0; i < 20; i++ {
		if c.State().IsLong() {
			view.set(110, models.SignalHold)
		} else {
			view.set(100, models.SignalBuy)
		}
		if _, err := c.Tick(context.Background(), view); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		h.clock.Advance(time.Minute)
		if st := c.State(); st.TradesToday > params.MaxTradesPerDay {
			t.Fatalf("tradesToday = %d exceeds cap", st.TradesToday)
		}
	}
	if n := len(h.log.records()); n != params.MaxTradesPerDay {
		t.Fatalf("records = %d, want %d", n, params.MaxTradesPerDay)
	}
	mustTick(t, c, view, OutcomeDailyCap)

	recs := h.log.records()
	for i := 1; i < len(recs); i++ {
		if recs[i].Action == recs[i-1].Action {
			t.Fatalf("consecutive %s at %d", recs[i].Action, i)
		}
	}
}

func TestCooldownGatesExit(t *testing.T) {
	// a zero broker clock leaves trade timestamps on the test clock
	broker := sim.NewBroker(10000, sim.WithClock(func() time.Time { return time.Time{} }))
	h := newHarness(broker, -1000)
	c := h.controller("TSLA", broker, defaultParams())
	view := &fakeView{price: 100, signal: models.SignalBuy}

	mustTick(t, c, view, OutcomeEntered)
	view.set(90, models.SignalHold)
	h.clock.Advance(4*time.Minute + 59*time.Second)
	mustTick(t, c, view, OutcomeCooldown)
	h.clock.Advance(time.Second)
	mustTick(t, c, view, OutcomeExitStopLoss)

	recs := h.log.records()
	if gap := recs[1].Timestamp.Sub(recs[0].Timestamp); gap < 5*time.Minute {
		t.Fatalf("trades %v apart", gap)
	}
}

func TestBrokerFailureLeavesStateUntouched(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Outcome
	}{
		{"unavailable", fmt.Errorf("timeout: %w", errs.ErrBrokerUnavailable), OutcomeBrokerUnavailable},
		{"rejected", fmt.Errorf("403: %w", errs.ErrOrderRejected), OutcomeOrderRejected},
		{"unclassified", errors.New("connection reset"), OutcomeBrokerUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, long := range []bool{false, true} {
				broker := &flakyBroker{Broker: sim.NewBroker(10000)}
				view := &fakeView{price: 100, signal: models.SignalBuy}
				if long {
					broker.SetPosition("TSLA", 10, 100)
					view.price = 90
				}
				h := newHarness(broker, -100)
				c := h.controller("TSLA", broker, defaultParams())
				if err := c.Bootstrap(context.Background()); err != nil {
					t.Fatalf("bootstrap: %v", err)
				}
				before := c.State()

				broker.submitErr = tc.err
				out, err := c.Tick(context.Background(), view)
				if out != tc.want || err == nil {
					t.Fatalf("outcome = %s err = %v, want %s", out, err, tc.want)
				}
				if !c.State().Equal(before) {
					t.Fatalf("state mutated: %+v -> %+v", before, c.State())
				}
				if len(h.log.records()) != 0 {
					t.Fatalf("record written on failure")
				}
			}
		})
	}
}

func TestPositionQueryFailureSkipsTick(t *testing.T) {
	broker := &flakyBroker{Broker: sim.NewBroker(10000)}
	h := newHarness(broker, -100)
	c := h.controller("TSLA", broker, defaultParams())
	if err := c.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	broker.positionErr = fmt.Errorf("503: %w", errs.ErrBrokerUnavailable)

	out, err := c.Tick(context.Background(), &fakeView{price: 100, signal: models.SignalBuy})
	if out != OutcomeBrokerUnavailable || !errors.Is(err, errs.ErrBrokerUnavailable) {
		t.Fatalf("outcome = %s err = %v", out, err)
	}
}

func TestBootstrapFailureIsRetried(t *testing.T) {
	broker := &flakyBroker{Broker: sim.NewBroker(10000), positionErr: errs.ErrBrokerUnavailable}
	h := newHarness(broker, -100)
	c := h.controller("TSLA", broker, defaultParams())
	view := &fakeView{price: 100, signal: models.SignalBuy}

	mustTick(t, c, view, OutcomeBrokerUnavailable)
	broker.positionErr = nil
	mustTick(t, c, view, OutcomeEntered)
}

func TestExistenceMismatchSkipsTick(t *testing.T) {
	broker := sim.NewBroker(10000)
	h := newHarness(broker, -100)
	c := h.controller("TSLA", broker, defaultParams())
	if err := c.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	broker.SetPosition("TSLA", 7, 120)
	before := c.State()

	out, err := c.Tick(context.Background(), &fakeView{price: 100, signal: models.SignalBuy})
	if out != OutcomeReconcileMismatch || !errors.Is(err, errs.ErrReconciliationMismatch) {
		t.Fatalf("outcome = %s err = %v", out, err)
	}
	if !c.State().Equal(before) {
		t.Fatalf("mismatch must not change state")
	}
	if len(broker.Fills()) != 0 {
		t.Fatalf("no order expected")
	}
}

func TestShortBrokerPositionIsMismatch(t *testing.T) {
	broker := &flakyBroker{Broker: sim.NewBroker(10000)}
	h := newHarness(broker, -100)
	c := h.controller("TSLA", broker, defaultParams())
	if err := c.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	broker.position = &models.Position{Symbol: "TSLA", Quantity: -5, EntryPrice: 100}

	out, err := c.Tick(context.Background(), &fakeView{price: 100, signal: models.SignalBuy})
	if out != OutcomeReconcileMismatch || !errors.Is(err, errs.ErrReconciliationMismatch) {
		t.Fatalf("outcome = %s err = %v", out, err)
	}
	if st := c.State(); st.Status != models.StatusFlat || st.TradesToday != 0 {
		t.Fatalf("unexpected state %+v", st)
	}
	if len(broker.Fills()) != 0 || len(h.log.records()) != 0 {
		t.Fatalf("no order expected")
	}
}

func TestBootstrapWithShortStaysBlocked(t *testing.T) {
	broker := &flakyBroker{
		Broker:   sim.NewBroker(10000),
		position: &models.Position{Symbol: "TSLA", Quantity: -5, EntryPrice: 100},
	}
	h := newHarness(broker, -100)
	c := h.controller("TSLA", broker, defaultParams())
	if err := c.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if st := c.State(); st.Status != models.StatusFlat || st.Quantity != 0 {
		t.Fatalf("short must not be adopted, got %+v", st)
	}
	for i := 0; i < 2; i++ {
		mustTick(t, c, &fakeView{price: 100, signal: models.SignalBuy}, OutcomeReconcileMismatch)
	}
	if len(broker.Fills()) != 0 {
		t.Fatalf("no order expected")
	}
}

// gatedView holds Snapshot until release is closed.
type gatedView struct {
	fakeView
	entered chan struct{}
	release chan struct{}
}

func (v *gatedView) Snapshot(ctx context.Context) (Snapshot, error) {
	close(v.entered)
	<-v.release
	return v.fakeView.Snapshot(ctx)
}

func TestStateDoesNotWaitForTick(t *testing.T) {
	broker := sim.NewBroker(10000)
	h := newHarness(broker, -100)
	c := h.controller("TSLA", broker, defaultParams())
	view := &gatedView{
		fakeView: fakeView{price: 100, signal: models.SignalBuy},
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}

	done := make(chan Outcome, 1)
	go func() {
		out, _ := c.Tick(context.Background(), view)
		done <- out
	}()
	<-view.entered

	got := make(chan models.SymbolState, 1)
	go func() { got <- c.State() }()
	select {
	case st := <-got:
		if st.Status != models.StatusFlat {
			t.Fatalf("expected pre-tick state, got %+v", st)
		}
	case <-time.After(time.Second):
		t.Fatalf("State blocked behind a running tick")
	}

	close(view.release)
	if out := <-done; out != OutcomeEntered {
		t.Fatalf("outcome = %s", out)
	}
	if st := c.State(); st.Status != models.StatusLong || st.Quantity != 30 {
		t.Fatalf("state not published after tick: %+v", st)
	}
}

func TestQuantityMismatchAdoptsBroker(t *testing.T) {
	broker := sim.NewBroker(10000)
	broker.SetPosition("TSLA", 10, 100)
	h := newHarness(broker, -100)
	c := h.controller("TSLA", broker, defaultParams())
	if err := c.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	broker.SetPosition("TSLA", 15, 101)

	mustTick(t, c, &fakeView{price: 50}, OutcomeReconciled)
	st := c.State()
	if st.Quantity != 15 || st.EntryPrice != 101 || st.TradesToday != 0 {
		t.Fatalf("unexpected state %+v", st)
	}
	if len(broker.Fills()) != 0 {
		t.Fatalf("reconciliation must not trade")
	}
	mustTick(t, c, &fakeView{price: 50}, OutcomeExitStopLoss)
}

func TestGateOutcomes(t *testing.T) {
	broker := sim.NewBroker(10000)
	h := newHarness(broker, -100)

	closed := NewRiskController("TSLA", defaultParams(), fixedSession{closed: true}, broker, h.gw, h.guard, metrics.Nop{})
	if out, err := closed.Tick(context.Background(), &fakeView{}); out != OutcomeClosed || err != nil {
		t.Fatalf("closed: %s %v", out, err)
	}

	c := h.controller("TSLA", broker, defaultParams())
	mustTick(t, c, &fakeView{err: fmt.Errorf("short: %w", errs.ErrInsufficientData)}, OutcomeNoData)
	mustTick(t, c, &fakeView{err: fmt.Errorf("bars 500: %w", errs.ErrUpstream)}, OutcomeUpstreamError)
	mustTick(t, c, &fakeView{price: 100, signal: models.SignalSell}, OutcomeHold)
	mustTick(t, c, &fakeView{price: 100, signal: models.SignalHold}, OutcomeHold)
	mustTick(t, c, &fakeView{price: 400000, signal: models.SignalBuy}, OutcomeInsufficientCash)
	if c.State().TradesToday != 0 {
		t.Fatalf("no trade expected")
	}
}

func TestTradeLogFailureStillAppliesFill(t *testing.T) {
	broker := sim.NewBroker(10000)
	h := newHarness(broker, -100)
	h.log.err = errors.New("disk full")
	c := h.controller("TSLA", broker, defaultParams())

	out, err := c.Tick(context.Background(), &fakeView{price: 100, signal: models.SignalBuy})
	if out != OutcomeEntered || !errors.Is(err, ErrTradeLogAppend) {
		t.Fatalf("outcome = %s err = %v", out, err)
	}
	if st := c.State(); !st.IsLong() || st.Quantity != 30 {
		t.Fatalf("filled order must be applied: %+v", st)
	}
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	store := repository.NewCacheStateStore(cache.NewMemoryCache(), time.Hour)
	broker := sim.NewBroker(10000)
	h := newHarness(broker, -100)
	c := h.controller("TSLA", broker, defaultParams(), WithStateStore(store))
	mustTick(t, c, &fakeView{price: 100, signal: models.SignalBuy}, OutcomeEntered)

	restarted := h.controller("TSLA", broker, defaultParams(), WithStateStore(store))
	if err := restarted.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	st := restarted.State()
	if st.TradesToday != 1 || st.LastTradeAt == nil || !st.IsLong() || st.Quantity != 30 {
		t.Fatalf("unexpected restored state %+v", st)
	}
	mustTick(t, restarted, &fakeView{price: 90}, OutcomeCooldown)
}

func TestResetDayClearsCounter(t *testing.T) {
	broker := sim.NewBroker(10000)
	h := newHarness(broker, -100)
	c := h.controller("TSLA", broker, defaultParams())
	mustTick(t, c, &fakeView{price: 100, signal: models.SignalBuy}, OutcomeEntered)

	h.clock.Advance(24 * time.Hour)
	c.ResetDay(context.Background(), fixedSession{}.DayKey(h.clock.Now()))
	st := c.State()
	if st.TradesToday != 0 || !st.IsLong() {
		t.Fatalf("reset must keep the position and zero the counter: %+v", st)
	}
}
