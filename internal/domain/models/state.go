package models

import "time"

type PositionStatus string

const (
	StatusFlat PositionStatus = "FLAT"
	StatusLong PositionStatus = "LONG"
)

// SymbolState is the per-symbol risk state. It is a plain value: the
// controller that owns it only ever hands out copies.
type SymbolState struct {
	Symbol        string         `json:"symbol"`
	Status        PositionStatus `json:"status"`
	EntryPrice    float64        `json:"entry_price,omitempty"`
	Quantity      int64          `json:"quantity,omitempty"`
	LastTradeAt   *time.Time     `json:"last_trade_at,omitempty"`
	TradesToday   int            `json:"trades_today"`
	Day           string         `json:"day"`
	CumulativePnL float64        `json:"cumulative_pnl"`
}

func NewSymbolState(symbol, day string) SymbolState {
	return SymbolState{Symbol: symbol, Status: StatusFlat, Day: day}
}

func (s SymbolState) IsLong() bool { return s.Status == StatusLong }

// Equal compares two states field by field, including the LastTradeAt instant.
func (s SymbolState) Equal(o SymbolState) bool {
	if s.Symbol != o.Symbol || s.Status != o.Status || s.EntryPrice != o.EntryPrice ||
		s.Quantity != o.Quantity || s.TradesToday != o.TradesToday || s.Day != o.Day ||
		s.CumulativePnL != o.CumulativePnL {
		return false
	}
	switch {
	case s.LastTradeAt == nil && o.LastTradeAt == nil:
		return true
	case s.LastTradeAt == nil || o.LastTradeAt == nil:
		return false
	default:
		return s.LastTradeAt.Equal(*o.LastTradeAt)
	}
}

// GuardState is the process-wide daily loss accumulator.
type GuardState struct {
	Day           string  `json:"day"`
	CumulativePnL float64 `json:"cumulative_pnl"`
	Breached      bool    `json:"breached"`
}

// Clone returns a deep copy.
func (s SymbolState) Clone() SymbolState {
	c := s
	if s.LastTradeAt != nil {
		t := *s.LastTradeAt
		c.LastTradeAt = &t
	}
	return c
}
