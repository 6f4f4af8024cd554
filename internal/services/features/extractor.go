package features

import (
	"fmt"
	"math"

	"SuperAlgo/internal/domain/errs"
	"SuperAlgo/internal/domain/models"
)

const (
	RSIPeriod         = 14
	SMAFastWindow     = 5
	SMASlowWindow     = 15
	VolatilityWindow  = 5
	VolumeSpikeWindow = 10

	// WarmupBars is the number of leading bars whose rolling statistics are
	// undefined (the slow SMA needs 15 closes, so the first complete row is
	// index 14).
	WarmupBars = SMASlowWindow - 1

	DefaultWindow = 30
)

type Option func(*Pipeline)

// WithWindow sets the minimum number of complete rows.
func WithWindow(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.window = n
		}
	}
}

// Pipeline turns bar history into feature rows. It holds no state between
// calls.
type Pipeline struct {
	window int
}

func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{window: DefaultWindow}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Window() int { return p.window }

// RequiredBars is how many bars to request so that Window complete rows
// survive warmup removal.
func (p *Pipeline) RequiredBars() int { return p.window + WarmupBars }

// Dataset holds the complete rows for one symbol, oldest first. Labels[i]
// refers to Rows[i]; the newest row has no label.
type Dataset struct {
	Rows   []models.FeatureVector
	Labels []int
}

// Latest is the row for the most recent bar.
func (d *Dataset) Latest() models.FeatureVector {
	return d.Rows[len(d.Rows)-1]
}

// TrainingSet returns the labelled rows as a design matrix.
func (d *Dataset) TrainingSet() ([][]float64, []int) {
	x := make([][]float64, len(d.Labels))
	for i := range d.Labels {
		x[i] = d.Rows[i].Values()
	}
	y := make([]int, len(d.Labels))
	copy(y, d.Labels)
	return x, y
}

// Build computes the feature rows of bars, using reference as the market
// index series and sentiment as a constant column.
func (p *Pipeline) Build(symbol string, bars, reference []models.Bar, sentiment float64) (*Dataset, error) {
	if len(bars) < p.window {
		return nil, fmt.Errorf("%s: %d bars, need %d: %w", symbol, len(bars), p.window, errs.ErrInsufficientData)
	}
	for i, b := range bars {
		if b.Close <= 0 || math.IsNaN(b.Close) {
			return nil, fmt.Errorf("%s: non-positive close at bar %d: %w", symbol, i, errs.ErrInsufficientData)
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("%s: bars not ascending at %d: %w", symbol, i, errs.ErrUpstream)
		}
	}

	c := closes(bars)
	returns := PctReturns(c)
	cols := map[string][]float64{
		models.FeatureRSI:          WilderRSI(c, RSIPeriod),
		models.FeatureReturns:      returns,
		models.FeatureSMAFast:      SMA(c, SMAFastWindow),
		models.FeatureSMASlow:      SMA(c, SMASlowWindow),
		models.FeatureVolatility:   RollingStd(returns, VolatilityWindow),
		models.FeatureVolumeSpike:  VolumeSpike(bars, VolumeSpikeWindow),
		models.FeatureMarketReturn: AlignedReturns(bars, reference),
	}

	ds := &Dataset{}
	row := make([]float64, len(models.FeatureNames))
	for t := range bars {
		complete := true
		for j, name := range models.FeatureNames {
			if name == models.FeatureSentiment {
				row[j] = sentiment
				continue
			}
			v := cols[name][t]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				complete = false
				break
			}
			row[j] = v
		}
		if !complete {
			continue
		}
		ds.Rows = append(ds.Rows, models.NewFeatureVector(symbol, bars[t].Timestamp, row))
		if t+1 < len(bars) {
			label := 0
			if returns[t+1] > 0 {
				label = 1
			}
			ds.Labels = append(ds.Labels, label)
		}
	}

	if len(ds.Rows) < p.window {
		return nil, fmt.Errorf("%s: %d complete rows after warmup, need %d: %w",
			symbol, len(ds.Rows), p.window, errs.ErrInsufficientData)
	}
	return ds, nil
}
