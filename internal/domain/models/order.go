package models

import "time"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderIntent is a market order the controller wants executed.
type OrderIntent struct {
	ClientOrderID string
	Symbol        string
	Side          Side
	Quantity      int64
	DecisionPrice float64
}

// Fill is the broker's confirmation of an executed order.
type Fill struct {
	OrderID   string
	Price     float64
	Quantity  int64
	Timestamp time.Time
}

// Position is the broker's view of a holding. A nil *Position means flat.
type Position struct {
	Symbol     string
	Quantity   int64
	EntryPrice float64
}
