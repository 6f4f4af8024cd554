package features

import (
	"math"

	"SuperAlgo/internal/domain/models"
)

// Every indicator returns a series aligned with its input. Positions without
// enough history hold NaN.

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func closes(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// PctReturns computes r_t = C_t / C_{t-1} - 1.
func PctReturns(values []float64) []float64 {
	out := nanSeries(len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out[i] = values[i]/values[i-1] - 1
	}
	return out
}

// SMA is the simple moving average over window values ending at t.
func SMA(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if window <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// RollingStd is the sample (n-1) standard deviation over window values
// ending at t. Windows containing NaN stay NaN.
func RollingStd(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		seg := values[i-window+1 : i+1]
		mean, ok := meanOf(seg)
		if !ok {
			continue
		}
		ss := 0.0
		for _, v := range seg {
			d := v - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

func meanOf(seg []float64) (float64, bool) {
	sum := 0.0
	for _, v := range seg {
		if math.IsNaN(v) {
			return 0, false
		}
		sum += v
	}
	return sum / float64(len(seg)), true
}

// WilderRSI is the relative strength index with Wilder smoothing
// (exponential, alpha = 1/period). The first bar counts as an unchanged
// price, so the value is defined from index period-1 onwards. A window with
// no losses reads 100.
func WilderRSI(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) == 0 {
		return out
	}
	alpha := 1 / float64(period)
	var avgUp, avgDown float64
	for i := range values {
		var up, down float64
		if i > 0 {
			d := values[i] - values[i-1]
			if d > 0 {
				up = d
			} else {
				down = -d
			}
		}
		if i == 0 {
			avgUp, avgDown = up, down
		} else {
			avgUp = (1-alpha)*avgUp + alpha*up
			avgDown = (1-alpha)*avgDown + alpha*down
		}
		if i < period-1 {
			continue
		}
		if avgDown == 0 {
			out[i] = 100
			continue
		}
		rs := avgUp / avgDown
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// VolumeSpike is volume_t divided by the mean of the window volumes ending at
// t. A zero mean yields 0.
func VolumeSpike(bars []models.Bar, window int) []float64 {
	vols := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = b.Volume
	}
	means := SMA(vols, window)
	out := nanSeries(len(bars))
	for i := range bars {
		if math.IsNaN(means[i]) {
			continue
		}
		if means[i] == 0 {
			out[i] = 0
			continue
		}
		out[i] = vols[i] / means[i]
	}
	return out
}

// AlignedReturns maps the reference series' percentage returns onto the
// timestamps of bars. Missing timestamps and undefined returns read 0.
func AlignedReturns(bars, reference []models.Bar) []float64 {
	refRet := PctReturns(closes(reference))
	byTS := make(map[int64]float64, len(reference))
	for i, b := range reference {
		if !math.IsNaN(refRet[i]) {
			byTS[b.Timestamp.UnixNano()] = refRet[i]
		}
	}
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = byTS[b.Timestamp.UnixNano()]
	}
	return out
}
