package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics covers both sync runs and clean-view rebuilds; the
// sync and calibrate binaries register the slices they use.
type PipelineMetrics struct {
	registry *prometheus.Registry

	messagesTotal   *prometheus.CounterVec
	recordsTotal    *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	cleanViewRows   prometheus.Gauge
	rebuildDuration prometheus.Histogram
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	messagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fundnav",
			Subsystem: "sync",
			Name:      "messages_total",
			Help:      "Mail messages processed per run outcome.",
		},
		[]string{"service", "mode"},
	)
	recordsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fundnav",
			Subsystem: "sync",
			Name:      "records_total",
			Help:      "Record dispositions: inserted, duplicate, failed.",
		},
		[]string{"service", "disposition"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fundnav",
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Sync run duration by outcome.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	cleanViewRows := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fundnav",
			Subsystem: "calibration",
			Name:      "clean_view_rows",
			Help:      "Rows in the clean view after the last rebuild.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	rebuildDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fundnav",
			Subsystem: "calibration",
			Name:      "rebuild_duration_seconds",
			Help:      "Clean-view rebuild duration.",
			Buckets:   prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(messagesTotal, recordsTotal, runDuration, cleanViewRows, rebuildDuration)

	return &PipelineMetrics{
		registry:        registry,
		messagesTotal:   messagesTotal,
		recordsTotal:    recordsTotal,
		runDuration:     runDuration,
		cleanViewRows:   cleanViewRows,
		rebuildDuration: rebuildDuration,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) ObserveSyncRun(service, mode string, messages, inserted, duplicates, failures int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.messagesTotal.WithLabelValues(service, mode).Add(float64(messages))
	m.recordsTotal.WithLabelValues(service, "inserted").Add(float64(inserted))
	m.recordsTotal.WithLabelValues(service, "duplicate").Add(float64(duplicates))
	m.recordsTotal.WithLabelValues(service, "failed").Add(float64(failures))
	m.runDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveRebuild(cleanRows int, duration time.Duration) {
	m.cleanViewRows.Set(float64(cleanRows))
	m.rebuildDuration.Observe(duration.Seconds())
}
