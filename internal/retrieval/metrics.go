package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestions counts Ingest calls. Labels: status (ok, no_content, error)
	Ingestions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "retrieval",
			Name:      "ingestions_total",
			Help:      "Total number of document ingestions by outcome",
		},
		[]string{"status"},
	)

	// ChunksIndexed counts chunks stored by successful ingestions.
	ChunksIndexed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "retrieval",
			Name:      "chunks_indexed_total",
			Help:      "Total number of chunks indexed",
		},
	)

	// IngestDuration tracks end-to-end ingestion latency.
	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docrag",
			Subsystem: "retrieval",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of document ingestion in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// RetrievalsDegraded counts Retrieve calls that returned nothing because
	// embedding the query failed.
	RetrievalsDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "retrieval",
			Name:      "query_embedding_failures_total",
			Help:      "Total number of queries whose embedding failed",
		},
	)
)

// statusError labels failed ingestions.
const statusError = "error"
