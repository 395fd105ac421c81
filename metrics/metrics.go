// Package metrics defines the Prometheus metric types for the Bolt server
// and provides the collector variables the rest of the code increments.
//
// When defining new operations or metrics, these are helpful values to
// track:
//   - things coming into or going out of the system: connections, messages,
//     queries.
//   - the success or error status of any of the above.
//   - the distribution of processing latency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks the number of Bolt connections currently
	// open.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "boltd_active_connections",
			Help: "Number of Bolt connections currently open.",
		},
	)

	// MessagesTotal counts every request message processed, labeled by its
	// mnemonic tag name (RUN, PULL, ...).
	//
	// Example usage:
	//
	//	metrics.MessagesTotal.With(prometheus.Labels{"tag": "RUN"}).Inc()
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boltd_messages_total",
			Help: "The total number of request messages processed, by tag.",
		}, []string{"tag"})

	// QueryLatencyHistogram tracks how long the engine takes to execute each
	// RUN's query (result conversion and the response write are not timed).
	QueryLatencyHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "boltd_query_latency_seconds",
			Help: "Query execution latency distribution (seconds).",
			Buckets: []float64{
				0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025,
				0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
			},
		},
	)

	// ChunkBytesHistogram tracks the size in bytes of each framed message
	// written to a connection.
	ChunkBytesHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "boltd_chunk_bytes_histogram",
			Help: "Size distribution of framed outbound messages, in bytes.",
			Buckets: []float64{
				8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096, 8192,
				16384, 32768, 65535,
			},
		},
	)

	// FailuresTotal counts FAILURE responses sent, labeled by Neo4j status
	// code.
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boltd_failures_total",
			Help: "The total number of FAILURE responses sent, by status code.",
		}, []string{"code"})
)
