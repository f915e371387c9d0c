package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreErrors tracks failed store operations by backend and operation.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "github_etag_store_errors_total",
			Help: "Total number of etag store operation errors",
		},
		[]string{"backend", "operation"}, // "lookup", "upsert", "record_hit"
	)
)
