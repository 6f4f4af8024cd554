package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SuperAlgo/internal/domain/errs"
	"SuperAlgo/internal/domain/models"
	drepo "SuperAlgo/internal/domain/repository"
	domsvc "SuperAlgo/internal/domain/service"
	"SuperAlgo/internal/services/features"
)

type EvaluatorOption func(*Evaluator)

// WithPriceSource prefers streamed prices younger than maxAge over the last
// bar close.
func WithPriceSource(ps drepo.PriceSource, maxAge time.Duration) EvaluatorOption {
	return func(e *Evaluator) {
		e.prices = ps
		e.maxAge = maxAge
	}
}

func WithSentiment(s domsvc.SentimentScorer) EvaluatorOption {
	return func(e *Evaluator) { e.sentiment = s }
}

func WithEvaluatorClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.now = now }
}

// Evaluator is the MarketView of one symbol: it fetches bars, builds
// features against the market reference symbol and asks the model for a
// signal. The model instance belongs to this symbol alone.
type Evaluator struct {
	symbol       string
	marketSymbol string
	data         drepo.MarketData
	pipeline     *features.Pipeline
	model        domsvc.SignalModel
	sentiment    domsvc.SentimentScorer
	prices       drepo.PriceSource
	maxAge       time.Duration
	metrics      drepo.Metrics
	now          func() time.Time
}

func NewEvaluator(symbol, marketSymbol string, data drepo.MarketData, pipeline *features.Pipeline,
	model domsvc.SignalModel, metrics drepo.Metrics, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		symbol:       symbol,
		marketSymbol: marketSymbol,
		data:         data,
		pipeline:     pipeline,
		model:        model,
		metrics:      metrics,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Quote(ctx context.Context) (Quote, error) {
	if p, at, ok := e.streamed(); ok {
		return Quote{Price: p, Sentiment: e.score(ctx), At: at}, nil
	}
	bars, err := e.bars(ctx, e.symbol, 1)
	if err != nil {
		return Quote{}, err
	}
	if len(bars) == 0 {
		return Quote{}, fmt.Errorf("%s: no bars: %w", e.symbol, errs.ErrInsufficientData)
	}
	last := bars[len(bars)-1]
	return Quote{Price: last.Close, Sentiment: e.score(ctx), At: last.Timestamp}, nil
}

func (e *Evaluator) Snapshot(ctx context.Context) (Snapshot, error) {
	start := time.Now()
	defer func() { e.metrics.RecordLatency("evaluate", time.Since(start).Seconds()) }()

	n := e.pipeline.RequiredBars()
	bars, err := e.bars(ctx, e.symbol, n)
	if err != nil {
		return Snapshot{}, err
	}
	ref, err := e.bars(ctx, e.marketSymbol, n)
	if err != nil {
		return Snapshot{}, err
	}
	if len(ref) == 0 {
		return Snapshot{}, fmt.Errorf("%s: no reference bars: %w", e.marketSymbol, errs.ErrInsufficientData)
	}

	sentiment := e.score(ctx)
	ds, err := e.pipeline.Build(e.symbol, bars, ref, sentiment)
	if err != nil {
		return Snapshot{}, err
	}

	x, y := ds.TrainingSet()
	if err := e.model.Train(ctx, x, y); err != nil {
		return Snapshot{}, classifyModel("train", err)
	}
	latest := ds.Latest()
	sig, err := e.model.Predict(ctx, latest.Values())
	if err != nil {
		return Snapshot{}, classifyModel("predict", err)
	}

	q := Quote{Price: models.LastClose(bars), Sentiment: sentiment, At: bars[len(bars)-1].Timestamp}
	if p, at, ok := e.streamed(); ok {
		q.Price, q.At = p, at
	}
	return Snapshot{Quote: q, Signal: sig, Features: latest}, nil
}

func (e *Evaluator) bars(ctx context.Context, symbol string, count int) ([]models.Bar, error) {
	bars, err := e.data.GetRecentBars(ctx, symbol, count)
	if err == nil {
		return bars, nil
	}
	if errors.Is(err, errs.ErrInsufficientData) || errors.Is(err, errs.ErrUpstream) {
		return nil, err
	}
	return nil, fmt.Errorf("bars %s: %v: %w", symbol, err, errs.ErrUpstream)
}

func (e *Evaluator) streamed() (float64, time.Time, bool) {
	if e.prices == nil {
		return 0, time.Time{}, false
	}
	p, at, ok := e.prices.LastPrice(e.symbol)
	if !ok || p <= 0 || e.now().Sub(at) > e.maxAge {
		return 0, time.Time{}, false
	}
	return p, at, true
}

func (e *Evaluator) score(ctx context.Context) float64 {
	if e.sentiment == nil {
		return 0
	}
	return e.sentiment.Score(ctx)
}

func classifyModel(op string, err error) error {
	if errors.Is(err, errs.ErrInsufficientData) || errors.Is(err, errs.ErrUpstream) {
		return err
	}
	return fmt.Errorf("model %s: %v: %w", op, err, errs.ErrUpstream)
}
