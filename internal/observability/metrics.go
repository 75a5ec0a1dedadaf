package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// syncRuns counts completed sync passes by outcome ("ok" or "partial").
	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatstore",
			Name:      "sync_runs_total",
			Help:      "Total number of completed cache-to-database sync passes.",
		},
		[]string{"result"},
	)

	// syncEntries counts chat entries flushed to the durable tier.
	syncEntries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatstore",
			Name:      "sync_entries_total",
			Help:      "Total number of chat entries written to the database by sync.",
		},
	)
)

func init() {
	prometheus.MustRegister(syncRuns, syncEntries)
}

// ObserveSyncRun records the outcome of one sync pass. ok means every pending
// entry was either written or identified as expired; synced is the number of
// entries persisted during the pass. Passes that lost the lock race are not
// recorded.
func ObserveSyncRun(synced int, ok bool) {
	result := "ok"
	if !ok {
		result = "partial"
	}
	syncRuns.WithLabelValues(result).Inc()
	if synced > 0 {
		syncEntries.Add(float64(synced))
	}
}
