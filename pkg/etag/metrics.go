package etag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// validationsTotal counts conditional validation fetches by outcome.
	validationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "github_etag_validations_total",
			Help: "Total number of ETag validation requests by outcome",
		},
		[]string{"outcome"}, // "not_modified", "modified", "short_circuit"
	)

	// hitsTotal counts 304 responses to a stored ETag.
	hitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "github_etag_hits_total",
			Help: "Total number of stored ETags confirmed by a 304 response",
		},
	)

	// writesTotal counts persisted ETag records.
	writesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "github_etag_writes_total",
			Help: "Total number of ETag records written by listing kind",
		},
		[]string{"kind"}, // "front_loaded", "back_loaded"
	)

	// skippedTotal counts requests that bypassed validation.
	skippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "github_etag_skipped_total",
			Help: "Total number of requests that skipped ETag validation by reason",
		},
		[]string{"reason"}, // "denied", "not_first_page", "no_record", "store_error"
	)
)
