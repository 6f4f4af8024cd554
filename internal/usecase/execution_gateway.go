package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"SuperAlgo/internal/domain/errs"
	"SuperAlgo/internal/domain/models"
	drepo "SuperAlgo/internal/domain/repository"
	applogger "SuperAlgo/pkg/logger"
)

// ErrTradeLogAppend means the broker filled the order but the record could
// not be written. The fill is still returned and must be applied.
var ErrTradeLogAppend = errors.New("trade log append failed")

const appendTimeout = 5 * time.Second

// ExecutionGateway submits single market orders and records their fills.
type ExecutionGateway struct {
	broker   drepo.Broker
	tradeLog drepo.TradeLog
	metrics  drepo.Metrics
	log      *applogger.Logger
	now      func() time.Time
}

func NewExecutionGateway(broker drepo.Broker, tradeLog drepo.TradeLog, metrics drepo.Metrics, log *applogger.Logger) *ExecutionGateway {
	if log == nil {
		log = applogger.Nop()
	}
	return &ExecutionGateway{
		broker:   broker,
		tradeLog: tradeLog,
		metrics:  metrics,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Submit sends intent to the broker exactly once. realize computes the
// realized PnL of the fill (nil means zero). On broker failure no record
// is written.
func (g *ExecutionGateway) Submit(ctx context.Context, intent models.OrderIntent, sentiment float64, realize func(models.Fill) float64) (models.Fill, models.TradeRecord, error) {
	if intent.ClientOrderID == "" {
		intent.ClientOrderID = uuid.NewString()
	}

	start := time.Now()
	fill, err := g.broker.SubmitMarketOrder(ctx, intent)
	g.metrics.RecordLatency("submit_order", time.Since(start).Seconds())
	if err != nil {
		result := "unavailable"
		if errors.Is(err, errs.ErrOrderRejected) {
			result = "rejected"
		} else if !errors.Is(err, errs.ErrBrokerUnavailable) {
			err = fmt.Errorf("%v: %w", err, errs.ErrBrokerUnavailable)
		}
		g.metrics.RecordOrder(intent.Symbol, string(intent.Side), result)
		return models.Fill{}, models.TradeRecord{}, err
	}
	g.metrics.RecordOrder(intent.Symbol, string(intent.Side), "filled")

	if fill.Quantity <= 0 {
		fill.Quantity = intent.Quantity
	}
	var pnl float64
	if realize != nil {
		pnl = realize(fill)
	}
	ts := g.now()
	if fill.Timestamp.After(ts) {
		ts = fill.Timestamp.UTC()
	}
	rec := models.TradeRecord{
		Timestamp:   ts,
		Symbol:      intent.Symbol,
		Action:      intent.Side,
		Quantity:    fill.Quantity,
		Price:       fill.Price,
		Sentiment:   sentiment,
		RealizedPnL: pnl,
		OrderID:     fill.OrderID,
	}

	// the order is filled; record it even if the tick is being cancelled
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()
	if err := g.tradeLog.Append(actx, rec); err != nil {
		g.metrics.RecordError("trade_log")
		g.log.Error("trade log append failed",
			applogger.String("symbol", rec.Symbol),
			applogger.String("client_order_id", intent.ClientOrderID),
			applogger.Error(err))
		return fill, rec, fmt.Errorf("%w: %v", ErrTradeLogAppend, err)
	}
	return fill, rec, nil
}
