// Package metrics provides Prometheus metrics for the reelcast pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all reelcast metrics.
	MetricsNamespace = "reelcast"

	// MetricsSubsystem is the subsystem for pipeline metrics.
	MetricsSubsystem = "pipeline"
)

// Metrics holds all Prometheus metrics for the publishing pipeline.
type Metrics struct {
	ReelsPostedTotal   *prometheus.CounterVec
	ReelsFailedTotal   *prometheus.CounterVec
	PublishDuration    *prometheus.HistogramVec
	StagingAttempts    *prometheus.CounterVec
	QueueDepth         *prometheus.GaugeVec
	OverlayRenderTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all pipeline metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		ReelsPostedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "reels_posted_total",
				Help:      "Total number of reels successfully posted",
			},
			[]string{"platform"},
		),
		ReelsFailedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "reels_failed_total",
				Help:      "Total number of per-platform publish failures",
			},
			[]string{"platform", "reason"},
		),
		PublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "publish_duration_seconds",
				Help:      "Duration of the full per-platform publish cycle",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4min
			},
			[]string{"platform"},
		),
		StagingAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "staging_attempts_total",
				Help:      "Total number of asset staging attempts",
			},
			[]string{"status"}, // success, failure
		),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "queue_depth",
				Help:      "Current number of reels by status",
			},
			[]string{"status"},
		),
		OverlayRenderTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "overlay_render_total",
				Help:      "Total number of headline overlay renders",
			},
			[]string{"status"}, // rendered, fallback
		),
	}
}

// RecordPosted records a successful platform publish.
func (m *Metrics) RecordPosted(platform string, durationSeconds float64) {
	m.ReelsPostedTotal.WithLabelValues(platform).Inc()
	m.PublishDuration.WithLabelValues(platform).Observe(durationSeconds)
}

// RecordFailed records a per-platform publish failure.
func (m *Metrics) RecordFailed(platform, reason string, durationSeconds float64) {
	m.ReelsFailedTotal.WithLabelValues(platform, reason).Inc()
	m.PublishDuration.WithLabelValues(platform).Observe(durationSeconds)
}

// RecordStaging records a staging attempt outcome.
func (m *Metrics) RecordStaging(success bool) {
	if success {
		m.StagingAttempts.WithLabelValues("success").Inc()
	} else {
		m.StagingAttempts.WithLabelValues("failure").Inc()
	}
}

// SetQueueDepth records the current queue depth for a status.
func (m *Metrics) SetQueueDepth(status string, depth int64) {
	m.QueueDepth.WithLabelValues(status).Set(float64(depth))
}

// RecordOverlayRender records whether the compositor rendered an overlay or
// fell back to the original image.
func (m *Metrics) RecordOverlayRender(rendered bool) {
	if rendered {
		m.OverlayRenderTotal.WithLabelValues("rendered").Inc()
	} else {
		m.OverlayRenderTotal.WithLabelValues("fallback").Inc()
	}
}
