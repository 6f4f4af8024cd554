package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	drepo "SuperAlgo/internal/domain/repository"
	"SuperAlgo/internal/usecase"
	xhttp "SuperAlgo/pkg/http"
	applogger "SuperAlgo/pkg/logger"
	"SuperAlgo/pkg/queue"
)

const (
	instanceLockTTL = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// ErrInstanceLocked is returned when another engine holds the instance lock.
var ErrInstanceLocked = errors.New("another engine instance is running")

// Closer releases one infrastructure resource at shutdown.
type Closer struct {
	Name  string
	Close func() error
}

type Option func(*App)

func WithPriceCollector(c *usecase.PriceCollector) Option {
	return func(a *App) { a.collector = c }
}

func WithAlertQueue(q *queue.RedisQueue) Option {
	return func(a *App) { a.alerts = q }
}

func WithHTTPServer(s *xhttp.Server) Option {
	return func(a *App) { a.httpServer = s }
}

// WithClosers appends resources closed in order after everything else stops.
func WithClosers(c ...Closer) Option {
	return func(a *App) { a.closers = append(a.closers, c...) }
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// App encapsulates the engine lifecycle.
type App struct {
	log             *applogger.Logger
	scheduler       *usecase.Scheduler
	store           drepo.StateStore
	collector       *usecase.PriceCollector
	streaming       bool
	alerts          *queue.RedisQueue
	httpServer      *xhttp.Server
	closers         []Closer
	shutdownTimeout time.Duration
	lockTTL         time.Duration
}

func New(log *applogger.Logger, scheduler *usecase.Scheduler, store drepo.StateStore, opts ...Option) *App {
	if log == nil {
		log = applogger.Nop()
	}
	a := &App{
		log:             log,
		scheduler:       scheduler,
		store:           store,
		shutdownTimeout: shutdownTimeout,
		lockTTL:         instanceLockTTL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every component and blocks until ctx is cancelled or the
// instance lock is lost.
func (a *App) Run(ctx context.Context) error {
	if err := a.acquire(ctx); err != nil {
		a.close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.scheduler.Bootstrap(runCtx)
	a.startAlerts(runCtx)
	a.startCollector(runCtx)

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			cancel()
			a.shutdown()
			return fmt.Errorf("http server: %w", err)
		}
	}

	lockErr := make(chan error, 1)
	go a.refreshLock(runCtx, lockErr)

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := a.scheduler.Run(runCtx); err != nil {
			a.log.Error("scheduler error", applogger.Error(err))
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case runErr = <-lockErr:
		a.log.Error("instance lock lost; stopping", applogger.Error(runErr))
	case <-schedDone:
		runErr = errors.New("scheduler exited")
	}

	cancel()
	<-schedDone
	a.shutdown()
	return runErr
}

// RunOnce evaluates every symbol a single time and shuts down.
func (a *App) RunOnce(ctx context.Context) (map[string]usecase.Outcome, error) {
	if err := a.acquire(ctx); err != nil {
		a.close()
		return nil, err
	}
	a.startAlerts(ctx)
	a.scheduler.Bootstrap(ctx)
	out := a.scheduler.RunOnce(ctx)
	a.shutdown()
	return out, nil
}

func (a *App) acquire(ctx context.Context) error {
	ok, err := a.store.AcquireInstance(ctx, a.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return ErrInstanceLocked
	}
	return nil
}

func (a *App) startAlerts(ctx context.Context) {
	if a.alerts == nil {
		return
	}
	if err := a.alerts.Start(ctx); err != nil {
		a.log.Warn("alert queue workers not started", applogger.Error(err))
	}
}

func (a *App) startCollector(ctx context.Context) {
	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			a.log.Warn("price stream unavailable; using bar closes", applogger.Error(err))
		} else {
			a.streaming = true
		}
	}
}

func (a *App) refreshLock(ctx context.Context, lost chan<- error) {
	t := time.NewTicker(a.lockTTL / 3)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := a.store.RefreshInstance(ctx, a.lockTTL); err != nil {
				if ctx.Err() != nil {
					return
				}
				lost <- err
				return
			}
		}
	}
}

// shutdown stops components in reverse start order. The scheduler must
// already have returned.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	a.log.Info("shutting down...")

	if a.collector != nil {
		if err := a.collector.Stop(); err != nil {
			a.log.Warn("price stream close error", applogger.Error(err))
		}
		if a.streaming {
			select {
			case <-a.collector.Done():
			case <-ctx.Done():
			}
		}
	}
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.alerts != nil {
		if err := a.alerts.Stop(ctx); err != nil {
			a.log.Warn("alert queue stop error", applogger.Error(err))
		}
	}
	if err := a.store.ReleaseInstance(ctx); err != nil {
		a.log.Warn("release instance lock error", applogger.Error(err))
	}
	a.close()
	a.log.Info("shutdown complete")
}

func (a *App) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn(c.Name+" close error", applogger.Error(err))
		}
	}
	a.closers = nil
}
