// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus instrumentation for the recording
// pipeline. Metric names are stable; dashboards depend on them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PhaseTransitions counts every observed phase transition.
	PhaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelcast_phase_transitions_total",
		Help: "Total number of recording phase transitions",
	}, []string{"from", "to"})

	// RecordingSeconds observes the duration of finished recordings.
	RecordingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reelcast_recording_seconds",
		Help:    "Duration of recordings at stop time",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	})

	// UploadBytesTotal counts bytes transferred per artifact kind.
	UploadBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelcast_upload_bytes_total",
		Help: "Total bytes uploaded per artifact kind",
	}, []string{"artifact"})

	// UploadsTotal counts finished uploads per artifact kind and result.
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelcast_uploads_total",
		Help: "Total uploads per artifact kind and result",
	}, []string{"artifact", "result"})

	// RollbacksTotal counts best-effort remote session rollbacks.
	RollbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelcast_rollbacks_total",
		Help: "Total remote session rollback attempts",
	})

	// ThumbnailSoftFailTotal counts thumbnail extractions resolved as "no thumbnail".
	ThumbnailSoftFailTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelcast_thumbnail_soft_fail_total",
		Help: "Total thumbnail extractions that soft-failed",
	})

	// TranscodeSeconds observes wall-clock transcode time.
	TranscodeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reelcast_transcode_seconds",
		Help:    "Wall-clock duration of transcode runs",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// SurfaceDetections counts surface re-classifications by detected kind.
	SurfaceDetections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelcast_surface_detections_total",
		Help: "Total surface classification changes by detected kind",
	}, []string{"kind"})
)
