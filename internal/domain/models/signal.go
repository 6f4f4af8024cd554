package models

import "fmt"

type SignalKind int

const (
	SignalHold SignalKind = iota
	SignalBuy
	SignalSell
)

func (k SignalKind) String() string {
	switch k {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Signal is the classifier's per-tick recommendation. Confidence is the
// probability assigned to Kind, in [0, 1].
type Signal struct {
	Kind       SignalKind
	Confidence float64
}

func Hold() Signal { return Signal{Kind: SignalHold} }

func (s Signal) String() string {
	return fmt.Sprintf("%s(%.3f)", s.Kind, s.Confidence)
}
