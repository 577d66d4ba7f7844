// Package telemetry exposes Prometheus instrumentation for the optimizer
// service: pipeline counters fed through the event callbacks, and database
// pool gauges refreshed on a ticker.
package telemetry

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zombar/optimizer/models"
)

// Recorder translates pipeline events into Prometheus metrics. It
// satisfies the optimizer's Events interface.
type Recorder struct {
	passesStarted   *prometheus.CounterVec
	passesCompleted *prometheus.CounterVec
	passesFailed    *prometheus.CounterVec
	scoreDelta      *prometheus.HistogramVec
	degradations    *prometheus.CounterVec
	documentsScored prometheus.Counter
}

// NewRecorder registers the pipeline collectors on the default registry.
// namespace distinguishes multiple services sharing one Prometheus scrape.
func NewRecorder(namespace string) *Recorder {
	return &Recorder{
		passesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "improvement_passes_started_total",
			Help:      "Improvement passes started, by rubric.",
		}, []string{"rubric"}),
		passesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "improvement_passes_completed_total",
			Help:      "Improvement passes completed successfully, by rubric.",
		}, []string{"rubric"}),
		passesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "improvement_passes_failed_total",
			Help:      "Improvement passes that returned an error, by rubric.",
		}, []string{"rubric"}),
		scoreDelta: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "improvement_pass_score_delta",
			Help:      "Rubric score change produced by a pass (after minus before).",
			Buckets:   []float64{-20, -10, -5, 0, 5, 10, 15, 20, 30, 50},
		}, []string{"rubric"}),
		degradations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_degradations_total",
			Help:      "External provider calls that degraded to empty results.",
		}, []string{"provider"}),
		documentsScored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_scored_total",
			Help:      "Documents run through the composite scorer via the API.",
		}),
	}
}

// PassStarted implements the pipeline event callback.
func (r *Recorder) PassStarted(documentID string, rubric models.Rubric) {
	r.passesStarted.WithLabelValues(string(rubric)).Inc()
}

// PassCompleted implements the pipeline event callback.
func (r *Recorder) PassCompleted(result *models.ImprovementPassResult) {
	rubric := string(result.PassName)
	r.passesCompleted.WithLabelValues(rubric).Inc()
	r.scoreDelta.WithLabelValues(rubric).Observe(float64(result.ScoreAfter - result.ScoreBefore))
}

// ProviderDegraded implements the pipeline event callback.
func (r *Recorder) ProviderDegraded(provider, reason string) {
	r.degradations.WithLabelValues(provider).Inc()
}

// PassFailed records an error returned by RunPass. Called from the API
// layer since the pipeline reports failures as errors, not events.
func (r *Recorder) PassFailed(rubric string) {
	r.passesFailed.WithLabelValues(rubric).Inc()
}

// DocumentScored records one standalone scoring request.
func (r *Recorder) DocumentScored() {
	r.documentsScored.Inc()
}

// DatabaseMetrics exposes connection pool gauges for one *sql.DB.
type DatabaseMetrics struct {
	openConnections prometheus.Gauge
	inUse           prometheus.Gauge
	idle            prometheus.Gauge
	waitCount       prometheus.Gauge
	waitDuration    prometheus.Gauge
}

// NewDatabaseMetrics registers the pool gauges on the default registry.
func NewDatabaseMetrics(namespace string) *DatabaseMetrics {
	return &DatabaseMetrics{
		openConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_open_connections",
			Help:      "Open connections in the pool.",
		}),
		inUse: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_in_use",
			Help:      "Connections currently in use.",
		}),
		idle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Idle connections in the pool.",
		}),
		waitCount: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_wait_count_total",
			Help:      "Total connections waited for.",
		}),
		waitDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_wait_duration_seconds",
			Help:      "Total time blocked waiting for a connection.",
		}),
	}
}

// UpdateDBStats refreshes the gauges from the pool's current stats.
func (m *DatabaseMetrics) UpdateDBStats(db *sql.DB) {
	if db == nil {
		return
	}
	stats := db.Stats()
	m.openConnections.Set(float64(stats.OpenConnections))
	m.inUse.Set(float64(stats.InUse))
	m.idle.Set(float64(stats.Idle))
	m.waitCount.Set(float64(stats.WaitCount))
	m.waitDuration.Set(stats.WaitDuration.Seconds())
}
