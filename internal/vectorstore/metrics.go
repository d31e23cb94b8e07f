package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChunksAdded counts chunks written. Labels: backend
	ChunksAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "vectorstore",
			Name:      "chunks_added_total",
			Help:      "Total number of chunks written to the vector store",
		},
		[]string{"backend"},
	)

	// WriteFailures counts failed Add calls. Labels: backend
	WriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "vectorstore",
			Name:      "write_failures_total",
			Help:      "Total number of failed vector store writes",
		},
		[]string{"backend"},
	)

	// QueryFailures counts queries that degraded to an empty result.
	// Labels: backend
	QueryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "vectorstore",
			Name:      "query_failures_total",
			Help:      "Total number of vector store queries that failed and returned no results",
		},
		[]string{"backend"},
	)

	// QueryDuration tracks query latency. Labels: backend
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docrag",
			Subsystem: "vectorstore",
			Name:      "query_duration_seconds",
			Help:      "Duration of vector store queries in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)
)
