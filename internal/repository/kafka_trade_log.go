package repository

import (
	"context"
	"time"

	"SuperAlgo/internal/domain/models"
	drepo "SuperAlgo/internal/domain/repository"
)

type publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaTradeLog publishes each trade keyed by symbol, so per-symbol order
// is preserved on the topic.
type KafkaTradeLog struct {
	producer publisher
	topic    string
}

func NewKafkaTradeLog(producer publisher, topic string) *KafkaTradeLog {
	return &KafkaTradeLog{producer: producer, topic: topic}
}

type tradeEvent struct {
	Timestamp   string  `json:"timestamp"`
	Symbol      string  `json:"symbol"`
	Action      string  `json:"action"`
	Quantity    int64   `json:"quantity"`
	Price       float64 `json:"price"`
	Sentiment   float64 `json:"sentiment"`
	RealizedPnL float64 `json:"realized_pnl"`
	OrderID     string  `json:"order_id,omitempty"`
}

func (p *KafkaTradeLog) Append(ctx context.Context, rec models.TradeRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.Symbol), tradeEvent{
		Timestamp:   rec.Timestamp.UTC().Format(time.RFC3339Nano),
		Symbol:      rec.Symbol,
		Action:      string(rec.Action),
		Quantity:    rec.Quantity,
		Price:       rec.Price,
		Sentiment:   rec.Sentiment,
		RealizedPnL: rec.RealizedPnL,
		OrderID:     rec.OrderID,
	})
}

func (p *KafkaTradeLog) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ drepo.TradeLog = (*KafkaTradeLog)(nil)
