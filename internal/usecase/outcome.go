package usecase

import (
	"context"
	"time"

	"SuperAlgo/internal/domain/models"
)

// Outcome is the result of one symbol tick.
type Outcome string

const (
	OutcomeClosed            Outcome = "closed"
	OutcomeDailyCap          Outcome = "daily_cap"
	OutcomeCooldown          Outcome = "cooldown"
	OutcomeNoData            Outcome = "no_data"
	OutcomeUpstreamError     Outcome = "upstream_error"
	OutcomeBrokerUnavailable Outcome = "broker_unavailable"
	OutcomeOrderRejected     Outcome = "order_rejected"
	OutcomeReconcileMismatch Outcome = "reconcile_mismatch"
	OutcomeReconciled        Outcome = "reconciled"
	OutcomeExitStopLoss      Outcome = "exit_stop_loss"
	OutcomeExitTakeProfit    Outcome = "exit_take_profit"
	OutcomeEntered           Outcome = "entered"
	OutcomeInsufficientCash  Outcome = "insufficient_cash"
	OutcomeEntryHalted       Outcome = "entry_halted"
	OutcomeHold              Outcome = "hold"
)

// Traded reports whether the tick executed an order.
func (o Outcome) Traded() bool {
	switch o {
	case OutcomeExitStopLoss, OutcomeExitTakeProfit, OutcomeEntered:
		return true
	default:
		return false
	}
}

// Quote is the current price of a symbol and the sentiment recorded with
// any trade made on it.
type Quote struct {
	Price     float64
	Sentiment float64
	At        time.Time
}

// Snapshot is a Quote plus the model's decision for the latest bar.
type Snapshot struct {
	Quote
	Signal   models.Signal
	Features models.FeatureVector
}

// MarketView prices one symbol. Quote is all an exit needs; Snapshot runs
// the feature pipeline and signal model.
type MarketView interface {
	Quote(ctx context.Context) (Quote, error)
	Snapshot(ctx context.Context) (Snapshot, error)
}
