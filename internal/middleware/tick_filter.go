// Package middleware screens streamed price ticks before they reach the
// price book.
package middleware

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"SuperAlgo/internal/domain/models"
	domrepo "SuperAlgo/internal/domain/repository"
)

// TickFilter validates ticks, drops untracked symbols and throttles each
// symbol to at most maxRPS accepted ticks per second.
type TickFilter struct {
	metrics domrepo.Metrics
	maxRPS  int
	tracked map[string]struct{}

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

type FilterOption func(*TickFilter)

// WithMaxRPS sets the per-symbol throttle. Zero disables it.
func WithMaxRPS(n int) FilterOption {
	return func(f *TickFilter) {
		if n >= 0 {
			f.maxRPS = n
		}
	}
}

// WithTracked restricts accepted ticks to symbols.
func WithTracked(symbols []string) FilterOption {
	return func(f *TickFilter) {
		f.tracked = make(map[string]struct{}, len(symbols))
		for _, s := range symbols {
			f.tracked[strings.ToUpper(s)] = struct{}{}
		}
	}
}

func NewTickFilter(metrics domrepo.Metrics, opts ...FilterOption) *TickFilter {
	f := &TickFilter{
		metrics:  metrics,
		maxRPS:   20,
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Accept reports whether t should update the price book.
func (f *TickFilter) Accept(t models.PriceTick, now time.Time) bool {
	if err := validateTick(t); err != nil {
		f.metrics.RecordError("tick_invalid")
		return false
	}
	if f.tracked != nil {
		if _, ok := f.tracked[t.Symbol]; !ok {
			return false
		}
	}
	if !f.allow(t.Symbol, now) {
		f.metrics.RecordError("tick_throttle")
		return false
	}
	return true
}

func validateTick(t models.PriceTick) error {
	if t.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	if t.Price <= 0 || t.Volume < 0 {
		return fmt.Errorf("non-positive price or negative volume")
	}
	return nil
}

func (f *TickFilter) allow(symbol string, now time.Time) bool {
	if f.maxRPS <= 0 {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	last, seen := f.lastSeen[symbol]
	if seen && now.Sub(last) < time.Second/time.Duration(f.maxRPS) {
		return false
	}
	f.lastSeen[symbol] = now
	return true
}
