package models

import "time"

// TradeRecord is one executed order as written to the trade log.
type TradeRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Symbol      string    `json:"symbol"`
	Action      Side      `json:"action"`
	Quantity    int64     `json:"quantity"`
	Price       float64   `json:"price"`
	Sentiment   float64   `json:"sentiment"`
	RealizedPnL float64   `json:"realized_pnl"`
	OrderID     string    `json:"order_id,omitempty"`
}
