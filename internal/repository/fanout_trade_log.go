package repository

import (
	"context"
	"errors"

	"SuperAlgo/internal/domain/models"
	drepo "SuperAlgo/internal/domain/repository"
	applogger "SuperAlgo/pkg/logger"
)

// NamedTradeLog labels a secondary sink for logs and metrics.
type NamedTradeLog struct {
	Name string
	Log  drepo.TradeLog
}

// FanoutTradeLog writes to the primary sink and then to every secondary.
// Only the primary's failure fails the append.
type FanoutTradeLog struct {
	primary     drepo.TradeLog
	secondaries []NamedTradeLog
	metrics     drepo.Metrics
	log         *applogger.Logger
}

func NewFanoutTradeLog(primary drepo.TradeLog, metrics drepo.Metrics, log *applogger.Logger, secondaries ...NamedTradeLog) *FanoutTradeLog {
	if log == nil {
		log = applogger.Nop()
	}
	return &FanoutTradeLog{primary: primary, secondaries: secondaries, metrics: metrics, log: log}
}

func (f *FanoutTradeLog) Append(ctx context.Context, rec models.TradeRecord) error {
	if err := f.primary.Append(ctx, rec); err != nil {
		return err
	}
	for _, s := range f.secondaries {
		if err := s.Log.Append(ctx, rec); err != nil {
			f.log.Warn("secondary trade log append failed",
				applogger.String("sink", s.Name),
				applogger.String("symbol", rec.Symbol),
				applogger.Error(err))
			if f.metrics != nil {
				f.metrics.RecordError("trade_log_" + s.Name)
			}
		}
	}
	return nil
}

func (f *FanoutTradeLog) Close() error {
	errs := []error{f.primary.Close()}
	for _, s := range f.secondaries {
		errs = append(errs, s.Log.Close())
	}
	return errors.Join(errs...)
}

var _ drepo.TradeLog = (*FanoutTradeLog)(nil)
