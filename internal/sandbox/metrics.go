package sandbox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricNamespace = "agentbot"
	metricSubsystem = "sandbox"
)

const (
	resultSuccess     = "success"
	resultFailure     = "failure"
	resultTimeout     = "timeout"
	resultUnavailable = "unavailable"
	resultTestMode    = "test_mode"
)

type metricCollector struct {
	executions *prometheus.CounterVec
	duration   prometheus.Histogram
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		executions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Subsystem: metricSubsystem,
				Name:      "executions_total",
				Help:      "number of agent executions by result",
			},
			[]string{"result"},
		),
		duration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricNamespace,
				Subsystem: metricSubsystem,
				Name:      "execution_duration_seconds",
				Help:      "duration of sandbox runs",
				Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600, 7200},
			},
		),
	}
}

func (m *metricCollector) ExecutionFinished(result string) {
	m.executions.WithLabelValues(result).Inc()
}

func (m *metricCollector) RunDuration(d time.Duration) {
	m.duration.Observe(d.Seconds())
}
