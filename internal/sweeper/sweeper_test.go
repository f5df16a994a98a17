package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/reddb/reddb/internal/keyspace"
)

func TestSweepOnceEvictsExpiredAcrossAllKeyspaces(t *testing.T) {
	registry := keyspace.NewRegistry()
	db0 := registry.Get(0)
	id, err := registry.New(nil)
	assert.NoError(t, err)
	db1 := registry.Get(id)

	ttl := int64(1)
	db0.Set("a", "1", &ttl)
	db1.Set("b", "2", &ttl)

	// a negative TTL clears the deadline rather than backdating it, so let
	// the one-second deadlines pass instead
	time.Sleep(2 * time.Second)

	sweepOnce(registry)

	assert.Equal(t, 0, db0.Exists("a"))
	assert.Equal(t, 0, db1.Exists("b"))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	registry := keyspace.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Run(ctx, registry)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
