// Package snapshot implements the self-describing dump/load file format and
// the timed periodic dumper.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// file is the on-disk snapshot record. The ttl field is decoded into raw
// per-key messages rather than float64 directly, since a single malformed
// TTL entry must not abort the whole load (see parseTTL).
type file struct {
	DatabaseID *int                       `json:"database_id,omitempty"`
	Data       map[string]string          `json:"data"`
	TTL        map[string]json.RawMessage `json:"ttl"`
	Timestamp  float64                    `json:"timestamp"`
}

// writeFile serializes data/ttl for the given database id to filename.
func writeFile(filename string, databaseID int, data map[string]string, ttl map[string]float64) error {
	rawTTL := make(map[string]json.RawMessage, len(ttl))
	for key, seconds := range ttl {
		encoded, err := json.Marshal(seconds)
		if err != nil {
			return err
		}
		rawTTL[key] = encoded
	}

	id := databaseID
	rec := file{
		DatabaseID: &id,
		Data:       data,
		TTL:        rawTTL,
		Timestamp:  float64(time.Now().Unix()),
	}
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, raw, 0o644)
}

// readFile parses filename, reporting a distinct error for a missing file
// versus a malformed one.
func readFile(filename string) (*file, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("File not found: %s", filename)
		}
		return nil, err
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("Invalid JSON in dump file: %s", err)
	}
	if _, ok := generic["data"]; !ok {
		return nil, fmt.Errorf("Invalid dump file format: missing 'data' field")
	}

	var rec file
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("Invalid dump file format: %s", err)
	}
	return &rec, nil
}

// parseTTL converts the file's raw per-key TTL entries to seconds,
// dropping any entry that isn't a valid number rather than failing the
// whole load; the key it belongs to is still loaded, just without a
// deadline.
func parseTTL(raw map[string]json.RawMessage) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for key, msg := range raw {
		var seconds float64
		if err := json.Unmarshal(msg, &seconds); err != nil {
			continue
		}
		out[key] = seconds
	}
	return out
}

// AutoFilename builds the manual-dump filename convention
// reddb_dump_db<id>_<unix_seconds>.json.
func AutoFilename(databaseID int) string {
	return fmt.Sprintf("reddb_dump_db%d_%d.json", databaseID, time.Now().Unix())
}

// AutoDumpFilename builds the periodic-dump filename convention
// reddb_auto_dump_db<id>_<unix_seconds>.json.
func AutoDumpFilename(databaseID int) string {
	return fmt.Sprintf("reddb_auto_dump_db%d_%d.json", databaseID, time.Now().Unix())
}
