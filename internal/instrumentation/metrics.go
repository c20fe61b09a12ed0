// Package instrumentation exposes Prometheus metrics for the collection pipeline.
package instrumentation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors registered for the service.
type Metrics struct {
	collectionsTotal   *prometheus.CounterVec
	snapshotsCreated   prometheus.Counter
	collectionDuration *prometheus.HistogramVec
	qualityScore       *prometheus.GaugeVec
}

// New registers the service metrics on the given registerer and returns the
// bundle. Pass prometheus.DefaultRegisterer in production; tests use a fresh
// registry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		collectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "p2pmon",
			Name:      "collections_total",
			Help:      "Pair collection attempts by result.",
		}, []string{"pair", "result"}),
		snapshotsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "p2pmon",
			Name:      "snapshots_created_total",
			Help:      "Price history snapshots persisted.",
		}),
		collectionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "p2pmon",
			Name:      "collection_duration_seconds",
			Help:      "Wall time of one pair collection including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"pair"}),
		qualityScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "p2pmon",
			Name:      "data_quality_score",
			Help:      "Validator quality score of the latest batch per pair and side.",
		}, []string{"pair", "side"}),
	}
}

// ObserveCollection records one pair collection attempt.
func (m *Metrics) ObserveCollection(pair string, duration time.Duration, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.collectionsTotal.WithLabelValues(pair, result).Inc()
	m.collectionDuration.WithLabelValues(pair).Observe(duration.Seconds())
}

// IncSnapshotsCreated counts one persisted snapshot.
func (m *Metrics) IncSnapshotsCreated() {
	m.snapshotsCreated.Inc()
}

// SetQualityScore publishes the latest validator score for a pair and side.
func (m *Metrics) SetQualityScore(pair, side string, score float64) {
	m.qualityScore.WithLabelValues(pair, side).Set(score)
}
