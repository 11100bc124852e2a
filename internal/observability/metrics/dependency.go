package metrics

import "github.com/prometheus/client_golang/prometheus"

var breakerStates = []string{"closed", "half-open", "open"}

// DependencyMetrics counts retries and tracks breaker state of the external
// dependencies (ollama, arcgis, qdrant, nats, html). It satisfies
// resilience.Observer.
type DependencyMetrics struct {
	service string
	retries *prometheus.CounterVec
	breaker *prometheus.GaugeVec
}

func newDependencyMetrics(service string, registry *prometheus.Registry) *DependencyMetrics {
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zoning",
			Subsystem: "dependency",
			Name:      "retries_total",
			Help:      "Retried calls to external dependencies by operation.",
		},
		[]string{"service", "operation"},
	)
	breaker := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "zoning",
			Subsystem: "dependency",
			Name:      "breaker_state",
			Help:      "1 for the current circuit breaker state of a dependency.",
		},
		[]string{"service", "dependency", "state"},
	)
	registry.MustRegister(retries, breaker)
	return &DependencyMetrics{service: service, retries: retries, breaker: breaker}
}

func (m *DependencyMetrics) ObserveRetry(operation string) {
	m.retries.WithLabelValues(m.service, operation).Inc()
}

func (m *DependencyMetrics) ObserveBreakerState(dependency, state string) {
	for _, s := range breakerStates {
		value := 0.0
		if s == state {
			value = 1
		}
		m.breaker.WithLabelValues(m.service, dependency, s).Set(value)
	}
}
