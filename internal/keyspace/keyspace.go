// Package keyspace implements one logical reddb database: a string-keyed,
// string-valued map with an independent per-key expiration table.
package keyspace

import (
	"sync"
	"time"
)

// Keyspace is one logical database. All methods are safe for concurrent
// use; a single RWMutex guards both the kv and ttl maps so that bulk
// operations (BulkGet, BulkSet) are atomic as a whole: a reader never
// observes half of a bulk write.
type Keyspace struct {
	ID int

	mu  sync.RWMutex
	kv  map[string]string
	ttl map[string]int64 // absolute deadline, unix seconds
}

// New returns an empty Keyspace with the given id.
func New(id int) *Keyspace {
	return &Keyspace{
		ID:  id,
		kv:  make(map[string]string),
		ttl: make(map[string]int64),
	}
}

func nowUnix() int64 { return time.Now().Unix() }

// isExpiredLocked reports whether key has a deadline that has passed. The
// caller must hold mu for writing if it intends to evict.
func (k *Keyspace) isExpiredLocked(key string, now int64) bool {
	deadline, ok := k.ttl[key]
	return ok && now >= deadline
}

// evictLocked removes key from both maps. Caller holds mu for writing.
func (k *Keyspace) evictLocked(key string) {
	delete(k.kv, key)
	delete(k.ttl, key)
}

// Get returns the value for key, evicting it first if its deadline has
// passed. The wildcards "*" and "**" return, respectively, the ordered
// values and the key/value mapping of all non-expired entries.
func (k *Keyspace) Get(key string) any {
	switch key {
	case "*":
		return k.getAllValues()
	case "**":
		return k.getAllPairs()
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	now := nowUnix()
	if k.isExpiredLocked(key, now) {
		k.evictLocked(key)
		return nil
	}
	v, ok := k.kv[key]
	if !ok {
		return nil
	}
	return v
}

func (k *Keyspace) getAllValues() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := nowUnix()
	out := make([]string, 0, len(k.kv))
	for key, v := range k.kv {
		if k.isExpiredLocked(key, now) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func (k *Keyspace) getAllPairs() map[string]string {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := nowUnix()
	out := make(map[string]string, len(k.kv))
	for key, v := range k.kv {
		if k.isExpiredLocked(key, now) {
			continue
		}
		out[key] = v
	}
	return out
}

// Set writes value for key. If ttlSeconds is non-nil and positive, the
// deadline is set to now+ttlSeconds; if zero or negative, any existing
// deadline is cleared; a nil ttlSeconds leaves an existing deadline
// untouched. Always returns 1.
func (k *Keyspace) Set(key, value string, ttlSeconds *int64) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kv[key] = value

	if ttlSeconds != nil {
		if *ttlSeconds > 0 {
			k.ttl[key] = nowUnix() + *ttlSeconds
		} else {
			delete(k.ttl, key)
		}
	}
	return 1
}

// Exists reports 1 if key is present and unexpired (lazily evicting an
// expired key), else 0.
func (k *Keyspace) Exists(key string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := nowUnix()
	if k.isExpiredLocked(key, now) {
		k.evictLocked(key)
		return 0
	}
	if _, ok := k.kv[key]; ok {
		return 1
	}
	return 0
}

// Delete removes key from both maps, returning 1 if a value was removed.
func (k *Keyspace) Delete(key string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, existed := k.kv[key]
	k.evictLocked(key)
	if existed {
		return 1
	}
	return 0
}

// DelTime clears any deadline on key, returning 1 if one existed.
func (k *Keyspace) DelTime(key string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.ttl[key]; ok {
		delete(k.ttl, key)
		return 1
	}
	return 0
}

// Flush clears both maps, returning the prior key count.
func (k *Keyspace) Flush() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := len(k.kv)
	k.kv = make(map[string]string)
	k.ttl = make(map[string]int64)
	return n
}

// BulkGet returns one result per input key, aligned by position. A
// single-element request for "*" or "**" behaves like Get.
func (k *Keyspace) BulkGet(keys []string) []any {
	if len(keys) == 1 && (keys[0] == "*" || keys[0] == "**") {
		return []any{k.Get(keys[0])}
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	now := nowUnix()
	out := make([]any, len(keys))
	for i, key := range keys {
		if k.isExpiredLocked(key, now) {
			k.evictLocked(key)
			out[i] = nil
			continue
		}
		if v, ok := k.kv[key]; ok {
			out[i] = v
		} else {
			out[i] = nil
		}
	}
	return out
}

// BulkSet writes pairs from a flat [k1, v1, k2, v2, ...] slice, ignoring a
// trailing unpaired key, and returns the number of pairs written. The
// whole write is atomic with respect to other Keyspace operations.
func (k *Keyspace) BulkSet(items []string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := len(items) / 2
	for i := 0; i < n; i++ {
		k.kv[items[2*i]] = items[2*i+1]
	}
	return n
}

// Size returns the current key count, after evicting expired entries so
// admin reporting (LIST_DBS) never counts stale keys.
func (k *Keyspace) Size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := nowUnix()
	var expired []string
	for key := range k.ttl {
		if k.isExpiredLocked(key, now) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		k.evictLocked(key)
	}
	return len(k.kv)
}

// Snapshot returns a copy of the non-expired key/value pairs and, for keys
// with a deadline, the remaining TTL in seconds. Holding the Keyspace's
// own lock for the whole call gives the caller (the snapshot manager) a
// single consistent view rather than one torn by a concurrent write.
func (k *Keyspace) Snapshot() (data map[string]string, remainingTTL map[string]float64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := nowUnix()
	data = make(map[string]string, len(k.kv))
	remainingTTL = make(map[string]float64)
	for key, v := range k.kv {
		if k.isExpiredLocked(key, now) {
			continue
		}
		data[key] = v
		if deadline, ok := k.ttl[key]; ok {
			remaining := float64(deadline - now)
			if remaining > 0 {
				remainingTTL[key] = remaining
			}
		}
	}
	return data, remainingTTL
}

// Restore clears the Keyspace and loads data, setting a deadline of
// now+remainingTTL[key] for any key present in remainingTTL with a
// positive value. Returns the number of keys that existed before the
// restore and the number loaded.
func (k *Keyspace) Restore(data map[string]string, remainingTTL map[string]float64) (replaced, loaded int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	replaced = len(k.kv)
	k.kv = make(map[string]string, len(data))
	k.ttl = make(map[string]int64)

	now := nowUnix()
	for key, value := range data {
		k.kv[key] = value
		loaded++
		if remaining, ok := remainingTTL[key]; ok && remaining > 0 {
			k.ttl[key] = now + int64(remaining)
		}
	}
	return replaced, loaded
}

// ExpiredKeys returns a snapshot of keys whose deadline is <= now, without
// mutating the Keyspace. Used by the sweeper, which collects a batch
// before acquiring the lock again to remove it, so it never mutates the
// ttl map while iterating over it.
func (k *Keyspace) ExpiredKeys(now int64) []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	var expired []string
	for key, deadline := range k.ttl {
		if now >= deadline {
			expired = append(expired, key)
		}
	}
	return expired
}

// EvictBatch removes the given keys from both maps, re-checking each
// deadline under the write lock so that a concurrent SET extending the
// deadline past now is not clobbered by a stale sweep batch.
func (k *Keyspace) EvictBatch(keys []string, now int64) {
	if len(keys) == 0 {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, key := range keys {
		if k.isExpiredLocked(key, now) {
			k.evictLocked(key)
		}
	}
}
