package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"SuperAlgo/internal/domain/models"
	drepo "SuperAlgo/internal/domain/repository"
	mid "SuperAlgo/internal/middleware"
	applogger "SuperAlgo/pkg/logger"
)

var errStreamClosed = errors.New("price stream closed")

// PriceBook keeps the newest accepted tick per symbol.
type PriceBook struct {
	mu     sync.RWMutex
	latest map[string]models.PriceTick
}

func NewPriceBook() *PriceBook {
	return &PriceBook{latest: make(map[string]models.PriceTick)}
}

// Update stores t unless a newer tick is already held.
func (b *PriceBook) Update(t models.PriceTick) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.latest[t.Symbol]; ok && cur.Timestamp.After(t.Timestamp) {
		return false
	}
	b.latest[t.Symbol] = t
	return true
}

func (b *PriceBook) LastPrice(symbol string) (float64, time.Time, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.latest[symbol]
	return t.Price, t.Timestamp, ok
}

// PriceCollector feeds a PriceBook from a streaming feed and reconnects
// when the stream drops.
type PriceCollector struct {
	stream  drepo.PriceStream
	book    *PriceBook
	filter  *mid.TickFilter
	metrics drepo.Metrics
	log     *applogger.Logger

	done chan struct{}
}

func NewPriceCollector(stream drepo.PriceStream, book *PriceBook, filter *mid.TickFilter, metrics drepo.Metrics, log *applogger.Logger) *PriceCollector {
	if log == nil {
		log = applogger.Nop()
	}
	return &PriceCollector{stream: stream, book: book, filter: filter, metrics: metrics, log: log, done: make(chan struct{})}
}

func (c *PriceCollector) IsConnected() bool { return c.stream.IsConnected() }

// Start connects, subscribes and consumes in the background until ctx ends.
func (c *PriceCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	go c.run(ctx)
	return nil
}

// Done is closed when the consume loop exits.
func (c *PriceCollector) Done() <-chan struct{} { return c.done }

func (c *PriceCollector) Stop() error { return c.stream.Close() }

func (c *PriceCollector) run(ctx context.Context) {
	defer close(c.done)
	for {
		ticks, errc := c.stream.Read(ctx)
		err := c.consume(ctx, ticks, errc)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("price_stream")
		c.log.Warn("price stream interrupted; reconnecting", applogger.Error(err))
		for {
			if err := c.stream.Reconnect(ctx); err == nil {
				break
			} else if ctx.Err() != nil {
				return
			} else {
				c.metrics.RecordError("price_stream_reconnect")
				c.log.Warn("price stream reconnect failed", applogger.Error(err))
			}
		}
		c.log.Info("price stream reconnected")
	}
}

func (c *PriceCollector) consume(ctx context.Context, ticks <-chan models.PriceTick, errc <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-ticks:
			if !ok {
				select {
				case err := <-errc:
					if err != nil {
						return err
					}
				default:
				}
				return errStreamClosed
			}
			c.handle(t)
		}
	}
}

func (c *PriceCollector) handle(t models.PriceTick) {
	if c.filter != nil && !c.filter.Accept(t, time.Now()) {
		return
	}
	if c.book.Update(t) {
		c.metrics.RecordLastPrice(t.Symbol, t.Price)
	}
}
