package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	buildTotal      *prometheus.CounterVec
	buildDuration   *prometheus.HistogramVec
	buildInFlight   prometheus.Gauge
	chunksIndexed   *prometheus.GaugeVec
	skippedDocs     *prometheus.GaugeVec
	requestLag      *prometheus.HistogramVec
	watchTriggerCnt *prometheus.CounterVec
	dependencies    *DependencyMetrics
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	buildTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zoning",
			Subsystem: "index",
			Name:      "builds_total",
			Help:      "Total index builds by status.",
		},
		[]string{"service", "status"},
	)
	buildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zoning",
			Subsystem: "index",
			Name:      "build_duration_seconds",
			Help:      "Index build duration in seconds by status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"service", "status"},
	)
	buildInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "zoning",
			Subsystem: "index",
			Name:      "build_in_flight",
			Help:      "Number of running index builds.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chunksIndexed := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "zoning",
			Subsystem: "index",
			Name:      "chunks",
			Help:      "Chunks stored by the last successful build.",
		},
		[]string{"service", "collection"},
	)
	skippedDocs := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "zoning",
			Subsystem: "index",
			Name:      "skipped_documents",
			Help:      "Documents skipped by the last build.",
		},
		[]string{"service", "collection"},
	)
	requestLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zoning",
			Subsystem: "worker",
			Name:      "rebuild_request_lag_seconds",
			Help:      "Delay between a rebuild request and the start of its build.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	watchTriggerCnt := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zoning",
			Subsystem: "worker",
			Name:      "watch_triggers_total",
			Help:      "Rebuild requests triggered by document directory changes.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(buildTotal, buildDuration, buildInFlight, chunksIndexed, skippedDocs, requestLag, watchTriggerCnt)

	return &WorkerMetrics{
		registry:        registry,
		buildTotal:      buildTotal,
		buildDuration:   buildDuration,
		buildInFlight:   buildInFlight,
		chunksIndexed:   chunksIndexed,
		skippedDocs:     skippedDocs,
		requestLag:      requestLag,
		watchTriggerCnt: watchTriggerCnt,
		dependencies:    newDependencyMetrics(service, registry),
	}
}

func (m *WorkerMetrics) Dependencies() *DependencyMetrics {
	return m.dependencies
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartBuild() {
	m.buildInFlight.Inc()
}

// FinishBuild records a finished build. build may be nil when the build
// could not even be journaled.
func (m *WorkerMetrics) FinishBuild(service string, duration time.Duration, build *domain.IndexBuild, err error) {
	m.buildInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.buildTotal.WithLabelValues(service, status).Inc()
	m.buildDuration.WithLabelValues(service, status).Observe(duration.Seconds())

	if build == nil {
		return
	}
	m.skippedDocs.WithLabelValues(service, build.Collection).Set(float64(build.Skipped))
	if err == nil {
		m.chunksIndexed.WithLabelValues(service, build.Collection).Set(float64(build.Chunks))
	}
}

func (m *WorkerMetrics) ObserveRequestLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.requestLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) RecordWatchTrigger(service string, err error) {
	status := "published"
	if err != nil {
		status = "error"
	}
	m.watchTriggerCnt.WithLabelValues(service, status).Inc()
}
