package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SuperAlgo/internal/domain/models"
	drepo "SuperAlgo/internal/domain/repository"
	"SuperAlgo/pkg/cache"
)

const (
	symbolKeyPrefix = "state:symbol"
	guardKey        = "state:guard"
	instanceLockKey = "lock:engine"
)

// CacheStateStore keeps risk state in a pkg/cache Service (Redis in
// production, memory otherwise).
type CacheStateStore struct {
	c   cache.Service
	ttl time.Duration
}

// NewCacheStateStore stores entries with ttl; zero keeps them forever.
func NewCacheStateStore(c cache.Service, ttl time.Duration) *CacheStateStore {
	return &CacheStateStore{c: c, ttl: ttl}
}

func (s *CacheStateStore) LoadSymbol(ctx context.Context, symbol string) (*models.SymbolState, error) {
	var st models.SymbolState
	if err := s.c.Get(ctx, cache.GenerateKey(symbolKeyPrefix, symbol), &st); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("load state %s: %w", symbol, err)
	}
	return &st, nil
}

func (s *CacheStateStore) SaveSymbol(ctx context.Context, st models.SymbolState) error {
	if err := s.c.Set(ctx, cache.GenerateKey(symbolKeyPrefix, st.Symbol), st, s.ttl); err != nil {
		return fmt.Errorf("save state %s: %w", st.Symbol, err)
	}
	return nil
}

func (s *CacheStateStore) LoadGuard(ctx context.Context) (*models.GuardState, error) {
	var g models.GuardState
	if err := s.c.Get(ctx, guardKey, &g); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("load guard: %w", err)
	}
	return &g, nil
}

func (s *CacheStateStore) SaveGuard(ctx context.Context, g models.GuardState) error {
	if err := s.c.Set(ctx, guardKey, g, s.ttl); err != nil {
		return fmt.Errorf("save guard: %w", err)
	}
	return nil
}

func (s *CacheStateStore) AcquireInstance(ctx context.Context, ttl time.Duration) (bool, error) {
	return s.c.TryLock(ctx, instanceLockKey, ttl)
}

func (s *CacheStateStore) RefreshInstance(ctx context.Context, ttl time.Duration) error {
	ok, err := s.c.Expire(ctx, instanceLockKey, ttl)
	if err != nil {
		return fmt.Errorf("refresh instance lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("instance lock lost")
	}
	return nil
}

func (s *CacheStateStore) ReleaseInstance(ctx context.Context) error {
	return s.c.Unlock(ctx, instanceLockKey)
}

var _ drepo.StateStore = (*CacheStateStore)(nil)
