package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricNamespace = "agentbot"
	metricSubsystem = "router"
)

const (
	deliveriesMetricName      = "deliveries_total"
	dispatchResultsMetricName = "dispatch_results_total"
)

const (
	eventTypeLabel = "event_type"
	decisionLabel  = "decision"
	operationLabel = "operation"
	resultLabel    = "result"
)

type resultLabelVal string

const (
	resultLabelSuccessVal resultLabelVal = "success"
	resultLabelFailureVal resultLabelVal = "failure"
)

type metricCollector struct {
	deliveries      *prometheus.CounterVec
	dispatchResults *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		deliveries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Subsystem: metricSubsystem,
				Name:      deliveriesMetricName,
				Help:      "count of classified github webhook deliveries",
			},
			[]string{eventTypeLabel, decisionLabel},
		),
		dispatchResults: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Subsystem: metricSubsystem,
				Name:      dispatchResultsMetricName,
				Help:      "count of dispatched tasks by result",
			},
			[]string{operationLabel, resultLabel},
		),
	}
}

func (m *metricCollector) DeliveryClassified(eventType string, kind DecisionKind) {
	m.deliveries.WithLabelValues(eventType, kind.String()).Inc()
}

func (m *metricCollector) DispatchFinished(operation string, result resultLabelVal) {
	m.dispatchResults.WithLabelValues(operation, string(result)).Inc()
}
