package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Pipeline stages
	// ============================================
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zkv_router_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkv_router_stage_failures_total",
			Help: "Total number of pipeline stage failures by error kind",
		},
		[]string{"stage", "kind"},
	)

	// ============================================
	// Extraction
	// ============================================
	ExtractionStrategyHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkv_router_extraction_strategy_hits_total",
			Help: "Number of extractions satisfied by each strategy",
		},
		[]string{"strategy"},
	)

	// ============================================
	// Artifacts
	// ============================================
	ArtifactBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zkv_router_artifact_bytes",
		Help:    "Size of downloaded proof artifacts",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})

	// ============================================
	// Chain
	// ============================================
	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkv_router_submissions_total",
			Help: "Chain submissions by call and outcome",
		},
		[]string{"call", "outcome"},
	)

	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkv_router_event_publish_failures_total",
			Help: "Pipeline events that could not be delivered",
		},
		[]string{"type"},
	)

	EventSinkStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zkv_router_event_sink_status",
		Help: "Event sink connection status (1=connected, 0=disconnected)",
	})
)

// ObserveStage records the duration since start under the given stage.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// WriteTextfile dumps the default registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
