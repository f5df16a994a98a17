package keyspace

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultDB is the id of the database that always exists and cannot be
// dropped.
const DefaultDB = 0

// Registry maps database ids to Keyspaces. Its own mutex guards only the
// id->Keyspace mapping, not the contents of any Keyspace, so that a
// command which has already resolved a Keyspace reference can finish even
// if another command concurrently drops a different database.
type Registry struct {
	mu sync.RWMutex
	db map[int]*Keyspace
}

// NewRegistry returns a Registry pre-populated with database 0.
func NewRegistry() *Registry {
	return &Registry{
		db: map[int]*Keyspace{
			DefaultDB: New(DefaultDB),
		},
	}
}

// Get returns the Keyspace for id, or nil if it does not exist.
func (r *Registry) Get(id int) *Keyspace {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db[id]
}

// Select reports whether id names an existing database.
func (r *Registry) Select(id int) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.db[id]; !ok {
		return fmt.Errorf("Database %d does not exist", id)
	}
	return nil
}

// New allocates a new Keyspace. If id is nil, the smallest non-negative id
// not currently present is chosen. Returns the chosen id.
func (r *Registry) New(id *int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var chosen int
	if id == nil {
		chosen = 0
		for {
			if _, ok := r.db[chosen]; !ok {
				break
			}
			chosen++
		}
	} else {
		chosen = *id
		if chosen < 0 {
			return 0, fmt.Errorf("Database ID must be non-negative")
		}
		if _, ok := r.db[chosen]; ok {
			return 0, fmt.Errorf("Database %d already exists", chosen)
		}
	}

	r.db[chosen] = New(chosen)
	return chosen, nil
}

// List returns one human-readable "DB <id>: <n> keys" entry per database,
// ordered by id.
func (r *Registry) List() []string {
	r.mu.RLock()
	ids := make([]int, 0, len(r.db))
	for id := range r.db {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, fmt.Sprintf("DB %d: %d keys", id, r.db[id].Size()))
	}
	r.mu.RUnlock()
	return out
}

// Drop removes a database. Database 0 can never be dropped.
func (r *Registry) Drop(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == DefaultDB {
		return fmt.Errorf("Cannot drop default database (0)")
	}
	if _, ok := r.db[id]; !ok {
		return fmt.Errorf("Database %d does not exist", id)
	}
	delete(r.db, id)
	return nil
}

// All returns a snapshot slice of every Keyspace currently registered, used
// by the sweeper and the periodic dumper so neither holds the Registry
// lock while performing (potentially slow) per-Keyspace work.
func (r *Registry) All() []*Keyspace {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Keyspace, 0, len(r.db))
	for _, ks := range r.db {
		out = append(out, ks)
	}
	return out
}
