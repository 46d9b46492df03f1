package audioindex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts fallback reads, failed writes and lock contention.
type Metrics struct {
	// FallbackReads counts reads served from the index because the primary
	// store was unreachable, labelled by operation.
	FallbackReads *prometheus.CounterVec
	// FailedWrites counts swallowed write failures, labelled by store
	// ("primary" or "index") and operation.
	FailedWrites *prometheus.CounterVec
	LockRetries  prometheus.Counter
	LockTimeouts prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil
// registerer leaves them unregistered, which tests rely on.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FallbackReads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audioindex_fallback_reads_total",
				Help: "Reads served from the index file because the primary store was unreachable",
			},
			[]string{"operation"},
		),
		FailedWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audioindex_failed_writes_total",
				Help: "Write failures on one side of the dual write",
			},
			[]string{"store", "operation"},
		),
		LockRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "audioindex_lock_retries_total",
			Help: "Index file lock attempts that found the lock held",
		}),
		LockTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "audioindex_lock_timeouts_total",
			Help: "Index writes abandoned after exhausting the lock retry budget",
		}),
	}
}
