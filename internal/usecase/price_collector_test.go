package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SuperAlgo/internal/domain/models"
	mid "SuperAlgo/internal/middleware"
	"SuperAlgo/pkg/metrics"
)

// scriptedStream replays one batch per Read; after the last batch Read
// blocks until cancelled.
type scriptedStream struct {
	mu         sync.Mutex
	batches    [][]models.PriceTick
	reconnects int
}

func (s *scriptedStream) Connect(context.Context) error   { return nil }
func (s *scriptedStream) Subscribe(context.Context) error { return nil }
func (s *scriptedStream) Close() error                    { return nil }
func (s *scriptedStream) IsConnected() bool               { return true }

func (s *scriptedStream) Reconnect(context.Context) error {
	s.mu.Lock()
	s.reconnects++
	s.mu.Unlock()
	return nil
}

func (s *scriptedStream) Read(ctx context.Context) (<-chan models.PriceTick, <-chan error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticks := make(chan models.PriceTick, 16)
	errc := make(chan error, 1)
	if len(s.batches) == 0 {
		return ticks, errc
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	for _, t := range batch {
		ticks <- t
	}
	errc <- errors.New("socket closed")
	close(errc)
	close(ticks)
	return ticks, errc
}

func TestPriceBookKeepsNewest(t *testing.T) {
	b := NewPriceBook()
	now := time.Now()
	b.Update(models.PriceTick{Symbol: "TSLA", Price: 170, Timestamp: now})
	if b.Update(models.PriceTick{Symbol: "TSLA", Price: 160, Timestamp: now.Add(-time.Second)}) {
		t.Fatalf("older tick accepted")
	}
	if p, at, ok := b.LastPrice("TSLA"); !ok || p != 170 || !at.Equal(now) {
		t.Fatalf("LastPrice = %v %v %v", p, at, ok)
	}
	if _, _, ok := b.LastPrice("AMD"); ok {
		t.Fatalf("unknown symbol reported")
	}
}

func TestCollectorReconnectsAndKeepsFeeding(t *testing.T) {
	now := time.Now()
	stream := &scriptedStream{batches: [][]models.PriceTick{
		{{Symbol: "TSLA", Price: 170, Timestamp: now}},
		{{Symbol: "TSLA", Price: 0, Timestamp: now.Add(time.Second)}, {Symbol: "TSLA", Price: 171, Timestamp: now.Add(2 * time.Second)}},
	}}
	book := NewPriceBook()
	c := NewPriceCollector(stream, book, mid.NewTickFilter(metrics.Nop{}, mid.WithMaxRPS(0)), metrics.Nop{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for {
		if p, _, _ := book.LastPrice("TSLA"); p == 171 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("second batch never arrived")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-c.Done()

	stream.mu.Lock()
	defer stream.mu.Unlock()
	if stream.reconnects < 1 {
		t.Fatalf("stream never reconnected")
	}
}
