// Package session holds the per-connection state tracked by reddb: whether
// AUTH has succeeded on this connection, and which database is currently
// selected. Nothing here is persisted across connections.
package session

import "github.com/reddb/reddb/internal/keyspace"

// Session tracks one connection's authentication status and selected
// database.
type Session struct {
	Authenticated bool
	CurrentDB     int
}

// New returns the initial session state: unauthenticated, database 0.
func New() *Session {
	return &Session{Authenticated: false, CurrentDB: keyspace.DefaultDB}
}
