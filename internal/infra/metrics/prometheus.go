package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "girlsnav_sessions_processed_total",
		Help: "Total number of analysis sessions processed, by final status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "girlsnav_stage_duration_seconds",
		Help:    "Duration of each analysis pipeline stage",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
	}, []string{"stage"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "girlsnav_frames_extracted_total",
		Help: "Total number of frames sampled from source videos",
	})

	FramesClassifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "girlsnav_frames_classified_total",
		Help: "Frames sent to the classifier, by outcome",
	}, []string{"outcome"})

	ClassificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "girlsnav_classification_duration_seconds",
		Help:    "Latency of a single frame classification call",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	ArtifactWriteFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "girlsnav_artifact_write_failures_total",
		Help: "Report artifacts that could not be written or uploaded",
	}, []string{"artifact"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "girlsnav_active_workers",
		Help: "Number of currently active workers processing sessions",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "girlsnav_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
