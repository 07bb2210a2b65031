// file: internal/metrics/metrics.go

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides centralized metrics collection for fitness-connect.
type Metrics struct {
	SyncsTotal          *prometheus.CounterVec
	SyncDuration        *prometheus.HistogramVec
	TokenRefreshesTotal *prometheus.CounterVec
	PushRetriesTotal    prometheus.Counter
	LastSyncSuccess     prometheus.Gauge
}

// NewMetrics creates a new metrics instance and registers the collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		SyncsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fitness_syncs_total",
				Help: "Total number of sync runs by terminal outcome.",
			},
			[]string{"outcome"},
		),
		SyncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fitness_sync_duration_seconds",
				Help:    "Duration of sync runs by terminal outcome.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		TokenRefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fitness_token_refreshes_total",
				Help: "Total number of OAuth2 refresh exchanges by provider and result.",
			},
			[]string{"provider", "result"},
		),
		PushRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fitness_push_retries_total",
				Help: "Total number of push attempts retried after a transient error.",
			},
		),
		LastSyncSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fitness_last_sync_success_timestamp_seconds",
				Help: "Unix timestamp of the last successful sync run.",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.SyncsTotal,
		m.SyncDuration,
		m.TokenRefreshesTotal,
		m.PushRetriesTotal,
		m.LastSyncSuccess,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// IncSync increments the counter for a sync run outcome.
// Safe to call on a nil receiver so metrics stay optional.
func (m *Metrics) IncSync(outcome string) {
	if m == nil {
		return
	}
	m.SyncsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSyncDuration records how long a sync run took.
func (m *Metrics) ObserveSyncDuration(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.SyncDuration.WithLabelValues(outcome).Observe(seconds)
}

// IncTokenRefresh counts a refresh exchange by provider and result.
func (m *Metrics) IncTokenRefresh(providerID, result string) {
	if m == nil {
		return
	}
	m.TokenRefreshesTotal.WithLabelValues(providerID, result).Inc()
}

// IncPushRetry counts a retried push attempt.
func (m *Metrics) IncPushRetry() {
	if m == nil {
		return
	}
	m.PushRetriesTotal.Inc()
}

// MarkSyncSuccess records the time of a successful sync.
func (m *Metrics) MarkSyncSuccess(t time.Time) {
	if m == nil {
		return
	}
	m.LastSyncSuccess.Set(float64(t.Unix()))
}
