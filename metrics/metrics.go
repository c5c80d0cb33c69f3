// Package metrics registers the client's prometheus collectors. The query
// server exposes them on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheHits counts reads served from the resilience cache.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "potshot",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Reads served from the resilience cache while fresh.",
	})

	// CacheMisses counts reads that fell through to the remote node.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "potshot",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Reads that fell through to the remote node (absent or stale).",
	})

	// RetryAttempts counts backoff retries per operation.
	RetryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "potshot",
		Subsystem: "rpc",
		Name:      "retries_total",
		Help:      "Backoff retries of remote reads, by operation.",
	}, []string{"operation"})

	// ShotsResolved counts resolved wagers by outcome.
	ShotsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "potshot",
		Subsystem: "wager",
		Name:      "shots_resolved_total",
		Help:      "Resolved wagers, by outcome.",
	}, []string{"result"})

	// ExpiredCleanups counts cleanup transactions for expired commitments.
	ExpiredCleanups = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "potshot",
		Subsystem: "wager",
		Name:      "expired_cleanups_total",
		Help:      "Cleanup transactions submitted for expired commitments.",
	})

	// UnsyncedRecords tracks the reconciliation backlog depth.
	UnsyncedRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "potshot",
		Subsystem: "ledger",
		Name:      "unsynced_records",
		Help:      "Ledger writes pending redelivery on the reconciliation backlog.",
	})

	// ReconciledRecords counts backlog entries successfully redelivered.
	ReconciledRecords = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "potshot",
		Subsystem: "ledger",
		Name:      "reconciled_records_total",
		Help:      "Backlog entries delivered to the ledger by the reconciliation job.",
	})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
