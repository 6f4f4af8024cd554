package models

import "time"

// PriceTick is a last-trade print from a streaming feed.
type PriceTick struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}
