// Package observability holds the Prometheus metrics recorded during a scrape run.
//
// shelter-watch is a batch job, so metrics are not served over HTTP. After a run
// they can be written in the text exposition format for the node exporter's
// textfile collector.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shelter_watch"

// Page labels for fetch metrics.
const (
	PageIndex  = "index"
	PageDetail = "detail"
)

// Fetch outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeRetry   = "retry"
	OutcomeError   = "error"
)

// Metrics holds the counters, histograms, and gauges for one scrape run.
type Metrics struct {
	registry *prometheus.Registry

	AnnouncementsListed prometheus.Counter
	SnapshotsParsed     prometheus.Counter
	DetailPagesSkipped  prometheus.Counter
	Anomalies           *prometheus.CounterVec   // labels: kind
	Fetches             *prometheus.CounterVec   // labels: page={index,detail}, outcome={success,retry,error}
	FetchDuration       *prometheus.HistogramVec // labels: page

	RunDuration      prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
	LastRunSuccess   prometheus.Gauge
}

// NewMetrics creates all run metrics on a fresh registry, so repeated calls
// (one per run or per test) never collide.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AnnouncementsListed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "announcements_total",
			Help:      "Announcements matching the disaster keyword.",
		}),
		SnapshotsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shelter_snapshots_total",
			Help:      "Shelter rows parsed from detail pages.",
		}),
		DetailPagesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detail_pages_skipped_total",
			Help:      "Detail pages whose shelter rows were dropped after a fetch failure.",
		}),
		Anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_anomalies_total",
			Help:      "Row- or entry-level parsing anomalies by kind.",
		}, []string{"kind"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Page fetch attempts by page type and outcome.",
		}, []string{"page", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a single page fetch.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"page"}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of the last run.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run completed, 0 if it failed.",
		}),
	}

	m.registry.MustRegister(
		m.AnnouncementsListed,
		m.SnapshotsParsed,
		m.DetailPagesSkipped,
		m.Anomalies,
		m.Fetches,
		m.FetchDuration,
		m.RunDuration,
		m.LastRunTimestamp,
		m.LastRunSuccess,
	)

	return m
}

// Registry returns the registry holding the run metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
// The file is written atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
