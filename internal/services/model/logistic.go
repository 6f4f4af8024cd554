// Package model provides the in-process SignalModel: an L2-regularized
// logistic regression fitted by batch gradient descent on z-scored features.
package model

import (
	"context"
	"fmt"
	"math"
	"sync"

	"SuperAlgo/internal/domain/errs"
	"SuperAlgo/internal/domain/models"
	domsvc "SuperAlgo/internal/domain/service"
)

type Option func(*Logistic)

func WithLearningRate(lr float64) Option {
	return func(m *Logistic) {
		if lr > 0 {
			m.lr = lr
		}
	}
}

func WithEpochs(n int) Option {
	return func(m *Logistic) {
		if n > 0 {
			m.epochs = n
		}
	}
}

func WithL2(l2 float64) Option {
	return func(m *Logistic) {
		if l2 >= 0 {
			m.l2 = l2
		}
	}
}

// WithMinConfidence degrades predictions below the threshold to HOLD.
func WithMinConfidence(c float64) Option {
	return func(m *Logistic) { m.minConfidence = c }
}

type Logistic struct {
	lr            float64
	epochs        int
	l2            float64
	minConfidence float64

	mu      sync.RWMutex
	mean    []float64
	scale   []float64
	weights []float64
	bias    float64
	trained bool
}

func NewLogistic(opts ...Option) *Logistic {
	m := &Logistic{lr: 0.1, epochs: 300, l2: 0.01}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Factory returns a ModelFactory producing independent instances.
func Factory(opts ...Option) domsvc.ModelFactory {
	return func(string) domsvc.SignalModel { return NewLogistic(opts...) }
}

func (m *Logistic) Train(_ context.Context, x [][]float64, y []int) error {
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("train on %d rows / %d labels: %w", len(x), len(y), errs.ErrInsufficientData)
	}
	dim := len(x[0])
	for i, row := range x {
		if len(row) != dim {
			return fmt.Errorf("row %d has %d features, want %d", i, len(row), dim)
		}
	}

	mean, scale := standardize(x, dim)
	z := make([][]float64, len(x))
	for i, row := range x {
		z[i] = apply(row, mean, scale)
	}

	w := make([]float64, dim)
	b := 0.0
	n := float64(len(z))
	grad := make([]float64, dim)
	for e := 0; e < m.epochs; e++ {
		for j := range grad {
			grad[j] = 0
		}
		gb := 0.0
		for i, row := range z {
			err := sigmoid(dot(w, row)+b) - float64(y[i])
			for j, v := range row {
				grad[j] += err * v
			}
			gb += err
		}
		for j := range w {
			w[j] -= m.lr * (grad[j]/n + m.l2*w[j])
		}
		b -= m.lr * gb / n
	}

	m.mu.Lock()
	m.mean, m.scale, m.weights, m.bias, m.trained = mean, scale, w, b, true
	m.mu.Unlock()
	return nil
}

// ProbaUp returns P(next return > 0) for x.
func (m *Logistic) ProbaUp(x []float64) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.trained {
		return 0, fmt.Errorf("model not trained")
	}
	if len(x) != len(m.weights) {
		return 0, fmt.Errorf("predict on %d features, want %d", len(x), len(m.weights))
	}
	return sigmoid(dot(m.weights, apply(x, m.mean, m.scale)) + m.bias), nil
}

func (m *Logistic) Predict(_ context.Context, x []float64) (models.Signal, error) {
	m.mu.RLock()
	trained := m.trained
	m.mu.RUnlock()
	if !trained {
		return models.Hold(), nil
	}
	p, err := m.ProbaUp(x)
	if err != nil {
		return models.Hold(), err
	}
	return Classify(p, m.minConfidence), nil
}

// Classify maps an up-probability onto a signal.
func Classify(probaUp, minConfidence float64) models.Signal {
	sig := models.Signal{Kind: models.SignalBuy, Confidence: probaUp}
	if probaUp < 0.5 {
		sig = models.Signal{Kind: models.SignalSell, Confidence: 1 - probaUp}
	}
	if sig.Confidence < minConfidence {
		return models.Signal{Kind: models.SignalHold, Confidence: sig.Confidence}
	}
	return sig
}

func standardize(x [][]float64, dim int) ([]float64, []float64) {
	mean := make([]float64, dim)
	scale := make([]float64, dim)
	n := float64(len(x))
	for _, row := range x {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}
	for _, row := range x {
		for j, v := range row {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] < 1e-12 {
			scale[j] = 1
		}
	}
	return mean, scale
}

func apply(row, mean, scale []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - mean[j]) / scale[j]
	}
	return out
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

var _ domsvc.SignalModel = (*Logistic)(nil)
