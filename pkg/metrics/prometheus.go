package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticks       *prometheus.CounterVec
	orders      *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	lastPrice   *prometheus.GaugeVec
	realizedPnL *prometheus.GaugeVec
	lossLatch   prometheus.Gauge
	latency     *prometheus.HistogramVec
}

// New registers the recorder's collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		ticks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "superalgo_ticks_total",
				Help: "Scheduler ticks by symbol and outcome",
			},
			[]string{"symbol", "outcome"},
		),
		orders: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "superalgo_orders_total",
				Help: "Orders submitted by symbol, side and result",
			},
			[]string{"symbol", "side", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "superalgo_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "superalgo_last_price",
				Help: "Last decision price for a symbol",
			},
			[]string{"symbol"},
		),
		realizedPnL: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "superalgo_realized_pnl",
				Help: "Cumulative realized PnL for the trading day",
			},
			[]string{"symbol"},
		),
		lossLatch: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "superalgo_daily_loss_breached",
				Help: "1 while new entries are halted by the daily loss limit",
			},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "superalgo_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordTick(symbol, outcome string) {
	r.ticks.WithLabelValues(symbol, outcome).Inc()
}

func (r *Recorder) RecordOrder(symbol, side, result string) {
	r.orders.WithLabelValues(symbol, side, result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordRealizedPnL(symbol string, cumulative float64) {
	r.realizedPnL.WithLabelValues(symbol).Set(cumulative)
}

func (r *Recorder) SetDailyLossBreached(breached bool) {
	if breached {
		r.lossLatch.Set(1)
		return
	}
	r.lossLatch.Set(0)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTick(string, string)          {}
func (Nop) RecordOrder(string, string, string) {}
func (Nop) RecordError(string)                 {}
func (Nop) RecordLastPrice(string, float64)    {}
func (Nop) RecordRealizedPnL(string, float64)  {}
func (Nop) SetDailyLossBreached(bool)          {}
func (Nop) RecordLatency(string, float64)      {}
