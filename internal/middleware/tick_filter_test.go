package middleware

import (
	"testing"
	"time"

	"SuperAlgo/internal/domain/models"
	"SuperAlgo/pkg/metrics"
)

func TestTickFilterRejectsInvalid(t *testing.T) {
	f := NewTickFilter(metrics.Nop{})
	now := time.Now()
	bad := []models.PriceTick{
		{Price: 10, Timestamp: now},
		{Symbol: "TSLA", Price: 0, Timestamp: now},
		{Symbol: "TSLA", Price: 10},
		{Symbol: "TSLA", Price: 10, Volume: -1, Timestamp: now},
	}
	for i, tick := range bad {
		if f.Accept(tick, now) {
			t.Fatalf("case %d accepted: %+v", i, tick)
		}
	}
}

func TestTickFilterTracked(t *testing.T) {
	f := NewTickFilter(metrics.Nop{}, WithTracked([]string{"tsla"}))
	now := time.Now()
	if !f.Accept(models.PriceTick{Symbol: "TSLA", Price: 1, Timestamp: now}, now) {
		t.Fatalf("tracked symbol rejected")
	}
	if f.Accept(models.PriceTick{Symbol: "AAPL", Price: 1, Timestamp: now}, now) {
		t.Fatalf("untracked symbol accepted")
	}
}

func TestTickFilterThrottle(t *testing.T) {
	f := NewTickFilter(metrics.Nop{}, WithMaxRPS(2))
	base := time.Date(2024, 3, 13, 14, 30, 0, 0, time.UTC)
	tick := models.PriceTick{Symbol: "AMD", Price: 150, Timestamp: base}

	if !f.Accept(tick, base) {
		t.Fatalf("first tick rejected")
	}
	if f.Accept(tick, base.Add(100*time.Millisecond)) {
		t.Fatalf("tick inside throttle window accepted")
	}
	if !f.Accept(tick, base.Add(600*time.Millisecond)) {
		t.Fatalf("tick after window rejected")
	}
}
