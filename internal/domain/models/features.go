package models

import "time"

const (
	FeatureRSI          = "rsi"
	FeatureReturns      = "returns"
	FeatureSMAFast      = "sma_fast"
	FeatureSMASlow      = "sma_slow"
	FeatureVolatility   = "volatility"
	FeatureVolumeSpike  = "volume_spike"
	FeatureMarketReturn = "market_return"
	FeatureSentiment    = "sentiment"
)

// FeatureNames is the fixed feature schema. Training and prediction rows use
// this exact order.
var FeatureNames = []string{
	FeatureRSI,
	FeatureReturns,
	FeatureSMAFast,
	FeatureSMASlow,
	FeatureVolatility,
	FeatureVolumeSpike,
	FeatureMarketReturn,
	FeatureSentiment,
}

var featureIndex = func() map[string]int {
	m := make(map[string]int, len(FeatureNames))
	for i, n := range FeatureNames {
		m[n] = i
	}
	return m
}()

// FeatureVector is one row of the schema for a single bar. Values is never
// mutated after construction.
type FeatureVector struct {
	Symbol    string
	Timestamp time.Time
	values    []float64
}

func NewFeatureVector(symbol string, ts time.Time, values []float64) FeatureVector {
	cp := make([]float64, len(values))
	copy(cp, values)
	return FeatureVector{Symbol: symbol, Timestamp: ts, values: cp}
}

// Values returns a copy of the row in schema order.
func (v FeatureVector) Values() []float64 {
	cp := make([]float64, len(v.values))
	copy(cp, v.values)
	return cp
}

// Get returns the named feature; ok is false for names outside the schema.
func (v FeatureVector) Get(name string) (float64, bool) {
	i, ok := featureIndex[name]
	if !ok || i >= len(v.values) {
		return 0, false
	}
	return v.values[i], true
}

func (v FeatureVector) Map() map[string]float64 {
	m := make(map[string]float64, len(v.values))
	for i, val := range v.values {
		m[FeatureNames[i]] = val
	}
	return m
}
