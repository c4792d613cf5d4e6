package verify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Verifications tracks completed verification runs by outcome
	Verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rv_verifications_total",
			Help: "Total number of verification runs by outcome",
		},
		[]string{"outcome"}, // "success", "validation_error", "upstream_error", "processing_error"
	)

	// VerificationScore tracks the distribution of confidence scores
	VerificationScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rv_verification_score",
			Help:    "Distribution of cross-source confidence scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// VerificationDuration tracks end-to-end run latency
	VerificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rv_verification_duration_seconds",
			Help:    "End-to-end verification run duration",
			Buckets: prometheus.DefBuckets,
		},
	)

	// QueriesTotal tracks individual research queries by final status
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rv_verification_queries_total",
			Help: "Total number of research queries issued by final status",
		},
		[]string{"status"}, // "succeeded", "failed"
	)

	// ConflictsDetected tracks conflicting claim pairs found across sources
	ConflictsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rv_conflicts_detected_total",
			Help: "Total number of conflicting claim pairs detected",
		},
	)
)
