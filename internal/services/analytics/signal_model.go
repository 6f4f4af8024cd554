package analytics

import (
	"context"
	"fmt"
	"time"

	"SuperAlgo/internal/domain/errs"
	"SuperAlgo/internal/domain/models"
	domsvc "SuperAlgo/internal/domain/service"
	"SuperAlgo/internal/services/model"
)

// HTTPSignalModel delegates training and scoring to an external model
// service. The service keys fitted parameters by symbol, so instances for
// different symbols never share state.
type HTTPSignalModel struct {
	base          *HTTPServiceBase
	symbol        string
	minConfidence float64
	trained       bool
}

func NewHTTPSignalModel(baseURL string, timeout time.Duration, symbol string, minConfidence float64) *HTTPSignalModel {
	return &HTTPSignalModel{
		base:          NewHTTPServiceBase(baseURL, timeout),
		symbol:        symbol,
		minConfidence: minConfidence,
	}
}

// HTTPModelFactory builds one remote model per symbol.
func HTTPModelFactory(baseURL string, timeout time.Duration, minConfidence float64) domsvc.ModelFactory {
	return func(symbol string) domsvc.SignalModel {
		return NewHTTPSignalModel(baseURL, timeout, symbol, minConfidence)
	}
}

type trainReq struct {
	Symbol   string      `json:"symbol"`
	Names    []string    `json:"feature_names"`
	Features [][]float64 `json:"features"`
	Labels   []int       `json:"labels"`
}

type trainResp struct {
	Rows int `json:"rows"`
}

type predictReq struct {
	Symbol   string    `json:"symbol"`
	Names    []string  `json:"feature_names"`
	Features []float64 `json:"features"`
}

type predictResp struct {
	ProbaUp float64 `json:"proba_up"`
}

func (s *HTTPSignalModel) Train(ctx context.Context, x [][]float64, y []int) error {
	var tr trainResp
	err := s.base.PostJSON(ctx, "/model/train", trainReq{
		Symbol:   s.symbol,
		Names:    models.FeatureNames,
		Features: x,
		Labels:   y,
	}, &tr)
	if err != nil {
		return fmt.Errorf("train %s: %v: %w", s.symbol, err, errs.ErrUpstream)
	}
	s.trained = true
	return nil
}

func (s *HTTPSignalModel) Predict(ctx context.Context, x []float64) (models.Signal, error) {
	if !s.trained {
		return models.Hold(), nil
	}
	var pr predictResp
	err := s.base.PostJSON(ctx, "/model/predict", predictReq{
		Symbol:   s.symbol,
		Names:    models.FeatureNames,
		Features: x,
	}, &pr)
	if err != nil {
		return models.Hold(), fmt.Errorf("predict %s: %v: %w", s.symbol, err, errs.ErrUpstream)
	}
	if pr.ProbaUp < 0 || pr.ProbaUp > 1 {
		return models.Hold(), fmt.Errorf("predict %s: proba_up %v out of range: %w", s.symbol, pr.ProbaUp, errs.ErrUpstream)
	}
	return model.Classify(pr.ProbaUp, s.minConfidence), nil
}

var _ domsvc.SignalModel = (*HTTPSignalModel)(nil)
