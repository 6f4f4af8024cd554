package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SuperAlgo/internal/domain/models"
	drepo "SuperAlgo/internal/domain/repository"
	domsvc "SuperAlgo/internal/domain/service"
	applogger "SuperAlgo/pkg/logger"
)

type GuardOption func(*DailyLossGuard)

func WithGuardStore(s drepo.StateStore) GuardOption { return func(g *DailyLossGuard) { g.store = s } }

func WithGuardAlerter(a domsvc.Alerter) GuardOption { return func(g *DailyLossGuard) { g.alerter = a } }

func WithGuardLogger(l *applogger.Logger) GuardOption { return func(g *DailyLossGuard) { g.log = l } }

// DailyLossGuard accumulates realized PnL across all symbols. Once the
// day's total reaches the limit it halts new entries until ResetDay.
type DailyLossGuard struct {
	limit   float64
	metrics drepo.Metrics
	store   drepo.StateStore
	alerter domsvc.Alerter
	log     *applogger.Logger

	mu    sync.Mutex
	state models.GuardState
}

// NewDailyLossGuard builds a guard for limit, a negative amount.
func NewDailyLossGuard(limit float64, metrics drepo.Metrics, opts ...GuardOption) *DailyLossGuard {
	g := &DailyLossGuard{limit: limit, metrics: metrics, log: applogger.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *DailyLossGuard) Limit() float64 { return g.limit }

// Restore loads the persisted accumulator if it belongs to day.
func (g *DailyLossGuard) Restore(ctx context.Context, day string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = models.GuardState{Day: day}
	if g.store == nil {
		return nil
	}
	saved, err := g.store.LoadGuard(ctx)
	if err != nil {
		g.metrics.SetDailyLossBreached(false)
		return fmt.Errorf("restore daily loss guard: %w", err)
	}
	if saved != nil && saved.Day == day {
		g.state = *saved
	}
	g.metrics.SetDailyLossBreached(g.state.Breached)
	return nil
}

// Record adds one realized PnL. The first crossing of the limit latches the
// halt and fires a single alert.
func (g *DailyLossGuard) Record(ctx context.Context, pnl float64) {
	g.mu.Lock()
	g.state.CumulativePnL += pnl
	crossed := !g.state.Breached && g.state.CumulativePnL <= g.limit
	if crossed {
		g.state.Breached = true
	}
	snap := g.state
	g.mu.Unlock()

	g.persist(ctx, snap)
	if !crossed {
		return
	}

	g.metrics.SetDailyLossBreached(true)
	g.log.Error("daily loss limit breached; new entries halted",
		applogger.Float64("cumulative_pnl", snap.CumulativePnL),
		applogger.Float64("limit", g.limit),
		applogger.String("day", snap.Day))
	if g.alerter != nil {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		msg := fmt.Sprintf("realized PnL %.2f reached the daily limit %.2f on %s; entries halted", snap.CumulativePnL, g.limit, snap.Day)
		if err := g.alerter.Alert(actx, "Daily loss limit breached", msg); err != nil {
			g.log.Error("daily loss alert failed", applogger.Error(err))
		}
	}
}

// EntriesAllowed is false while the day's loss latch is set.
func (g *DailyLossGuard) EntriesAllowed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.state.Breached
}

// ResetDay clears the accumulator when day differs from the current one.
// A guard that was never restored restores instead.
func (g *DailyLossGuard) ResetDay(ctx context.Context, day string) {
	g.mu.Lock()
	if g.state.Day == day {
		g.mu.Unlock()
		return
	}
	if g.state.Day == "" {
		g.mu.Unlock()
		if err := g.Restore(ctx, day); err != nil {
			g.log.Warn("daily loss guard restore failed", applogger.Error(err))
		}
		return
	}
	wasBreached := g.state.Breached
	g.state = models.GuardState{Day: day}
	snap := g.state
	g.mu.Unlock()

	if wasBreached {
		g.log.Info("daily loss latch cleared", applogger.String("day", day))
	}
	g.metrics.SetDailyLossBreached(false)
	g.persist(ctx, snap)
}

func (g *DailyLossGuard) Snapshot() models.GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *DailyLossGuard) persist(ctx context.Context, st models.GuardState) {
	if g.store == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := g.store.SaveGuard(pctx, st); err != nil {
		g.log.Warn("persist daily loss guard failed", applogger.Error(err))
	}
}
