package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"SuperAlgo/internal/domain/errs"
	"SuperAlgo/internal/domain/models"
	drepo "SuperAlgo/internal/domain/repository"
	applogger "SuperAlgo/pkg/logger"
)

// SymbolTask pairs a symbol's controller with its market view.
type SymbolTask struct {
	Controller *RiskController
	View       MarketView
}

type SchedulerOption func(*Scheduler)

// WithTickTimeout bounds one tick. Defaults to the interval.
func WithTickTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickTimeout = d
		}
	}
}

func WithSchedulerLogger(l *applogger.Logger) SchedulerOption {
	return func(s *Scheduler) { s.log = l }
}

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler runs one independent ticking goroutine per symbol.
type Scheduler struct {
	tasks       []SymbolTask
	interval    time.Duration
	tickTimeout time.Duration
	session     Session
	guard       *DailyLossGuard
	metrics     drepo.Metrics
	log         *applogger.Logger
	now         func() time.Time

	wg sync.WaitGroup
}

func NewScheduler(tasks []SymbolTask, interval time.Duration, session Session, guard *DailyLossGuard, metrics drepo.Metrics, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		tasks:       tasks,
		interval:    interval,
		tickTimeout: interval,
		session:     session,
		guard:       guard,
		metrics:     metrics,
		log:         applogger.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap restores the guard for the current trading day and seeds every
// controller from the broker. A controller that fails here retries on its
// first tick.
func (s *Scheduler) Bootstrap(ctx context.Context) {
	day := s.session.DayKey(s.now())
	if err := s.guard.Restore(ctx, day); err != nil {
		s.log.Warn("daily loss guard restore failed", applogger.Error(err))
	}
	for _, task := range s.tasks {
		if err := task.Controller.Bootstrap(ctx); err != nil {
			s.metrics.RecordError(errs.Kind(err))
			s.log.Warn("controller bootstrap failed",
				applogger.String("symbol", task.Controller.Symbol()),
				applogger.Error(err))
		}
	}
}

// Run ticks every symbol immediately and then once per interval until ctx
// is cancelled. It returns after every in-flight tick has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive")
	}
	s.log.Info("scheduler started",
		applogger.Int("symbols", len(s.tasks)),
		applogger.Duration("interval", s.interval))
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, task)
	}
	<-ctx.Done()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
	return nil
}

// RunOnce ticks every symbol concurrently a single time.
func (s *Scheduler) RunOnce(ctx context.Context) map[string]Outcome {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]Outcome, len(s.tasks))
	)
	for _, task := range s.tasks {
		wg.Add(1)
		go func(task SymbolTask) {
			defer wg.Done()
			o := s.tick(ctx, task)
			mu.Lock()
			out[task.Controller.Symbol()] = o
			mu.Unlock()
		}(task)
	}
	wg.Wait()
	return out
}

func (s *Scheduler) loop(ctx context.Context, task SymbolTask) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx, task)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, task)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, task SymbolTask) (out Outcome) {
	symbol := task.Controller.Symbol()
	defer func() {
		if r := recover(); r != nil {
			s.metrics.RecordError("panic")
			s.log.Error("tick panicked",
				applogger.String("symbol", symbol),
				applogger.Any("panic", r))
			out = OutcomeUpstreamError
		}
	}()
	if ctx.Err() != nil {
		return OutcomeClosed
	}

	day := s.session.DayKey(s.now())
	s.guard.ResetDay(ctx, day)
	task.Controller.ResetDay(ctx, day)

	tctx, cancel := context.WithTimeout(ctx, s.tickTimeout)
	defer cancel()
	start := time.Now()
	out, err := task.Controller.Tick(tctx, task.View)
	s.metrics.RecordLatency("tick", time.Since(start).Seconds())
	s.metrics.RecordTick(symbol, string(out))

	switch {
	case err != nil:
		s.metrics.RecordError(errs.Kind(err))
		s.log.Warn("tick failed",
			applogger.String("symbol", symbol),
			applogger.String("outcome", string(out)),
			applogger.Error(err))
	case out.Traded():
		s.log.Info("tick traded", applogger.String("symbol", symbol), applogger.String("outcome", string(out)))
	default:
		s.log.Debug("tick", applogger.String("symbol", symbol), applogger.String("outcome", string(out)))
	}
	return out
}

// States returns a copy of every symbol's state, sorted by symbol.
func (s *Scheduler) States() []models.SymbolState {
	out := make([]models.SymbolState, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Controller.State())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// State returns one symbol's state.
func (s *Scheduler) State(symbol string) (models.SymbolState, bool) {
	for _, t := range s.tasks {
		if t.Controller.Symbol() == symbol {
			return t.Controller.State(), true
		}
	}
	return models.SymbolState{}, false
}

func (s *Scheduler) Guard() *DailyLossGuard { return s.guard }
