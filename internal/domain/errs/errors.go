// Package errs holds the engine's error taxonomy. Adapters wrap these with
// fmt.Errorf("...: %w") and callers classify with errors.Is.
package errs

import "errors"

var (
	// ErrInsufficientData: fewer usable bars than the feature window needs.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrUpstream: market data or model failure other than short history.
	ErrUpstream = errors.New("upstream failure")

	// ErrBrokerUnavailable: the broker could not be reached or answered 5xx.
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrOrderRejected: the broker refused the order.
	ErrOrderRejected = errors.New("order rejected")

	ErrReconciliationMismatch = errors.New("reconciliation mismatch")

	ErrDailyLossLimitBreached = errors.New("daily loss limit breached")
)

// Kind returns a short label for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrBrokerUnavailable):
		return "broker_unavailable"
	case errors.Is(err, ErrOrderRejected):
		return "order_rejected"
	case errors.Is(err, ErrReconciliationMismatch):
		return "reconciliation_mismatch"
	case errors.Is(err, ErrDailyLossLimitBreached):
		return "daily_loss_limit"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	default:
		return "unknown"
	}
}
