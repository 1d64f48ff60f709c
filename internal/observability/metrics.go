package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion and scoring pipelines.
type Metrics struct {
	PagesFetched     *prometheus.CounterVec // labels: county
	RecordsProcessed *prometheus.CounterVec // labels: county
	RecordsFailed    *prometheus.CounterVec // labels: county, reason={validation,write}
	SnapshotsWritten *prometheus.CounterVec // labels: county
	ParcelsScored    *prometheus.CounterVec // labels: county
	RunDuration      *prometheus.HistogramVec // labels: county, status
	RunsActive       prometheus.Gauge
}

// NewMetrics creates all pipeline metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parcelscope",
			Name:      "pages_fetched_total",
			Help:      "Source pages fetched per county.",
		}, []string{"county"}),
		RecordsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parcelscope",
			Name:      "records_processed_total",
			Help:      "Parcel records successfully upserted per county.",
		}, []string{"county"}),
		RecordsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parcelscope",
			Name:      "records_failed_total",
			Help:      "Parcel records skipped or lost, by county and reason.",
		}, []string{"county", "reason"}),
		SnapshotsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parcelscope",
			Name:      "history_snapshots_written_total",
			Help:      "History snapshot rows inserted per county.",
		}, []string{"county"}),
		ParcelsScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parcelscope",
			Name:      "parcels_scored_total",
			Help:      "Score rows computed per county.",
		}, []string{"county"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "parcelscope",
			Name:      "ingestion_run_duration_seconds",
			Help:      "Duration of one ingestion invocation, by county and outcome.",
			Buckets:   []float64{1, 5, 10, 20, 30, 45, 55, 60, 90},
		}, []string{"county", "status"}),
		RunsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parcelscope",
			Name:      "ingestion_runs_active",
			Help:      "Number of ingestion invocations currently executing.",
		}),
	}

	reg.MustRegister(
		m.PagesFetched,
		m.RecordsProcessed,
		m.RecordsFailed,
		m.SnapshotsWritten,
		m.ParcelsScored,
		m.RunDuration,
		m.RunsActive,
	)

	return m
}
