// Package sweeper implements the background expiration sweep. It is a
// best-effort mechanism: lazy eviction on the read path (internal/keyspace)
// is the authoritative correctness mechanism; the sweeper only bounds
// memory for keys that are never read again.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/reddb/reddb/internal/keyspace"
)

const interval = time.Second

// Run wakes every interval and, for every Keyspace currently in registry,
// collects expired keys and evicts them. It returns when ctx is canceled.
func Run(ctx context.Context, registry *keyspace.Registry) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(registry)
		}
	}
}

func sweepOnce(registry *keyspace.Registry) {
	now := time.Now().Unix()
	for _, ks := range registry.All() {
		expired := ks.ExpiredKeys(now)
		if len(expired) == 0 {
			continue
		}
		ks.EvictBatch(expired, now)
		slog.Debug("sweeper evicted keys", "db", ks.ID, "count", len(expired))
	}
}
