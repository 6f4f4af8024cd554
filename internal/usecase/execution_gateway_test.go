package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"SuperAlgo/internal/domain/errs"
	"SuperAlgo/internal/domain/models"
	"SuperAlgo/internal/service/sim"
	"SuperAlgo/pkg/metrics"
)

func TestGatewayRecordsFill(t *testing.T) {
	log := &memLog{}
	fillAt := time.Date(2024, 3, 13, 14, 35, 0, 0, time.UTC)
	broker := sim.NewBroker(1000, sim.WithClock(func() time.Time { return fillAt }))
	gw := NewExecutionGateway(broker, log, metrics.Nop{}, nil)
	gw.now = func() time.Time { return fillAt.Add(-time.Second) }

	intent := models.OrderIntent{Symbol: "AMD", Side: models.SideBuy, Quantity: 2, DecisionPrice: 150}
	fill, rec, err := gw.Submit(context.Background(), intent, -0.3, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if fill.OrderID == "" || rec.OrderID != fill.OrderID {
		t.Fatalf("order id not propagated: %+v %+v", fill, rec)
	}
	if !rec.Timestamp.Equal(fillAt) || rec.Sentiment != -0.3 || rec.Quantity != 2 || rec.Price != 150 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(log.records()) != 1 {
		t.Fatalf("expected one append")
	}
}

func TestGatewaySubmitsOnce(t *testing.T) {
	calls := 0
	broker := &countingBroker{Broker: sim.NewBroker(1000), fail: errs.ErrBrokerUnavailable, calls: &calls}
	log := &memLog{}
	gw := NewExecutionGateway(broker, log, metrics.Nop{}, nil)

	intent := models.OrderIntent{Symbol: "AMD", Side: models.SideBuy, Quantity: 1, DecisionPrice: 10}
	if _, _, err := gw.Submit(context.Background(), intent, 0, nil); !errors.Is(err, errs.ErrBrokerUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("broker called %d times, want 1", calls)
	}
	if len(log.records()) != 0 {
		t.Fatalf("failed order recorded")
	}
}

type countingBroker struct {
	*sim.Broker
	fail  error
	calls *int
}

func (b *countingBroker) SubmitMarketOrder(ctx context.Context, intent models.OrderIntent) (models.Fill, error) {
	*b.calls++
	if b.fail != nil {
		return models.Fill{}, b.fail
	}
	return b.Broker.SubmitMarketOrder(ctx, intent)
}
