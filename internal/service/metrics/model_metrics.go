package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	ModelServiceLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "superalgo",
			Subsystem: "model_service",
			Name:      "latency_seconds",
			Help:      "Latency of remote model service calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ModelServiceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "superalgo",
			Subsystem: "model_service",
			Name:      "errors_total",
			Help:      "Errors by model service endpoint",
		},
		[]string{"endpoint"},
	)
)

// Register adds the model service collectors to reg once.
func Register(reg prometheus.Registerer) {
	once.Do(func() {
		reg.MustRegister(ModelServiceLatency, ModelServiceErrors)
	})
}
