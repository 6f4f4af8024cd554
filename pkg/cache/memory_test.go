package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type sample struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestMemoryRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(WithMemoryClock(func() time.Time { return now }))

	if err := mc.Set(ctx, "a", sample{Name: "x", Value: 1.5}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got sample
	if err := mc.Get(ctx, "a", &got); err != nil || got.Name != "x" || got.Value != 1.5 {
		t.Fatalf("get = %+v, %v", got, err)
	}

	now = now.Add(2 * time.Minute)
	if err := mc.Get(ctx, "a", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestMemoryLock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(WithMemoryClock(func() time.Time { return now }))

	ok, _ := mc.TryLock(ctx, "lock", time.Minute)
	if !ok {
		t.Fatalf("first lock should succeed")
	}
	if ok, _ := mc.TryLock(ctx, "lock", time.Minute); ok {
		t.Fatalf("second lock should fail while held")
	}
	if ok, _ := mc.Expire(ctx, "lock", 5*time.Minute); !ok {
		t.Fatalf("expire on held lock should succeed")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := mc.TryLock(ctx, "lock", time.Minute); ok {
		t.Fatalf("refreshed lock should still be held")
	}
	_ = mc.Unlock(ctx, "lock")
	if ok, _ := mc.TryLock(ctx, "lock", time.Minute); !ok {
		t.Fatalf("lock should be free after unlock")
	}
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryClock(func() time.Time { return now }))

	_ = mc.Set(ctx, "a", "1", 0)
	now = now.Add(time.Second)
	_ = mc.Set(ctx, "b", "2", 0)
	now = now.Add(time.Second)
	var s string
	_ = mc.Get(ctx, "a", &s)
	now = now.Add(time.Second)
	_ = mc.Set(ctx, "c", "3", 0)

	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if ok, _ := mc.Exists(ctx, "a", "c"); !ok {
		t.Fatalf("a and c should remain")
	}
}
