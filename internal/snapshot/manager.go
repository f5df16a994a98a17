package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/reddb/reddb/internal/keyspace"
)

// Manager drives DUMP, LOAD, and TIME_DUMP against a Registry.
type Manager struct {
	registry *keyspace.Registry
	dumpDir  string // joined onto auto-generated filenames only

	mu       sync.Mutex
	dumperID int // counts periodic dumpers started; not otherwise read
	cancel   context.CancelFunc
}

// NewManager returns a Manager bound to registry.
func NewManager(registry *keyspace.Registry) *Manager {
	return &Manager{registry: registry}
}

// SetDumpDir sets the directory auto-generated filenames (manual DUMP with
// no filename, and every TIME_DUMP tick) are written under. Explicit
// client-supplied filenames are used as-is, since they may already be
// absolute or relative to a directory the client controls.
func (m *Manager) SetDumpDir(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dumpDir = dir
}

func (m *Manager) autoPath(name string) string {
	m.mu.Lock()
	dir := m.dumpDir
	m.mu.Unlock()
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// Dump writes the selected Keyspace to filename (or an auto-generated name
// if filename is empty), filtering out expired entries and storing
// remaining TTLs rather than absolute deadlines. The entries are copied
// under the Keyspace's own lock (Keyspace.Snapshot), so the file holds a
// single consistent view rather than a torn one; the file itself is
// written after that lock is released.
func (m *Manager) Dump(databaseID int, filename string) (string, error) {
	ks := m.registry.Get(databaseID)
	if ks == nil {
		return "", fmt.Errorf("Database %d does not exist", databaseID)
	}
	if filename == "" {
		filename = m.autoPath(AutoFilename(databaseID))
	}

	data, ttl := ks.Snapshot()
	if err := writeFile(filename, databaseID, data, ttl); err != nil {
		return "", fmt.Errorf("Failed to dump database: %s", err)
	}
	return fmt.Sprintf("Database %d dumped to %s", databaseID, filename), nil
}

// Load replaces the contents of the selected Keyspace with filename's
// contents. Malformed individual TTL values are skipped silently; the key
// is still loaded without a deadline.
func (m *Manager) Load(databaseID int, filename string) (string, error) {
	ks := m.registry.Get(databaseID)
	if ks == nil {
		return "", fmt.Errorf("Database %d does not exist", databaseID)
	}

	rec, err := readFile(filename)
	if err != nil {
		return "", err
	}

	replaced, loaded := ks.Restore(rec.Data, parseTTL(rec.TTL))

	sourceDB := "unknown"
	if rec.DatabaseID != nil {
		sourceDB = fmt.Sprintf("%d", *rec.DatabaseID)
	}
	return fmt.Sprintf(
		"Database loaded from %s (source DB: %s). Replaced %d keys with %d keys in DB %d.",
		filename, sourceDB, replaced, loaded, databaseID,
	), nil
}

// TimeDump starts (or stops, if intervalSeconds <= 0) the periodic dumper.
// Starting replaces any previously running dumper. Stopping when none is
// running is a no-op that still returns the stop confirmation.
func (m *Manager) TimeDump(intervalSeconds int) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	if intervalSeconds <= 0 {
		return "Time dump stopped"
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.dumperID++
	go m.timeDumpWorker(ctx, time.Duration(intervalSeconds)*time.Second)

	return fmt.Sprintf("Time dump started with interval %d seconds", intervalSeconds)
}

// StopTimeDump cancels any running periodic dumper; used by server
// shutdown. It is safe to call even if no dumper is running.
func (m *Manager) StopTimeDump() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Manager) timeDumpWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Re-read the Registry on every tick, so a database created
			// after TIME_DUMP started is still picked up.
			for _, ks := range m.registry.All() {
				filename := m.autoPath(AutoDumpFilename(ks.ID))
				data, ttl := ks.Snapshot()
				if err := writeFile(filename, ks.ID, data, ttl); err != nil {
					slog.Error("auto-dump failed", "db", ks.ID, "error", err)
					continue
				}
				slog.Info("auto-dump completed", "db", ks.ID, "file", filename)
			}
		}
	}
}
