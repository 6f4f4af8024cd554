package service

import (
	"context"

	"SuperAlgo/internal/domain/models"
)

// SignalModel is a binary up/down classifier over feature rows in
// models.FeatureNames order. Instances hold per-symbol fitted state and are
// never shared between symbols.
type SignalModel interface {
	Train(ctx context.Context, x [][]float64, y []int) error
	Predict(ctx context.Context, x []float64) (models.Signal, error)
}

// ModelFactory builds a fresh model for one symbol.
type ModelFactory func(symbol string) SignalModel

// SentimentScorer returns a score in [-1, 1]. Failures degrade to 0.
type SentimentScorer interface {
	Score(ctx context.Context) float64
}

// Alerter delivers operator notifications.
type Alerter interface {
	Alert(ctx context.Context, title, message string) error
}
