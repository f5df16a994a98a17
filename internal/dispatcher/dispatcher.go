// Package dispatcher implements the command routing table: the first
// token selects the command (case-insensitive), remaining tokens are raw
// string arguments, authentication gates FLUSH/DUMP/LOAD when a server
// password is configured, and key and FLUSH/DUMP/LOAD commands route to the
// session's currently selected Keyspace.
package dispatcher

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/reddb/reddb/internal/codec"
	"github.com/reddb/reddb/internal/keyspace"
	"github.com/reddb/reddb/internal/session"
	"github.com/reddb/reddb/internal/snapshot"
)

// commandError is raised by handlers for malformed requests; Dispatch
// converts it to a codec.ErrorValue at the boundary.
type commandError struct{ message string }

func (e *commandError) Error() string { return e.message }

func errf(format string, args ...any) error {
	return &commandError{message: fmt.Sprintf(format, args...)}
}

// Dispatcher owns the shared state commands operate on: the database
// registry, the snapshot manager, and the optional server password.
type Dispatcher struct {
	Registry *keyspace.Registry
	Snapshot *snapshot.Manager

	mu       sync.RWMutex
	password *string // nil means password protection is disabled
}

// New returns a Dispatcher. initialPassword may be empty to start with
// password protection disabled.
func New(registry *keyspace.Registry, mgr *snapshot.Manager, initialPassword string) *Dispatcher {
	d := &Dispatcher{Registry: registry, Snapshot: mgr}
	if initialPassword != "" {
		d.password = &initialPassword
	}
	return d
}

func (d *Dispatcher) currentPassword() *string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.password
}

func (d *Dispatcher) setPassword(p string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p == "" {
		d.password = nil
		return
	}
	d.password = &p
}

var protectedCommands = map[string]bool{
	"FLUSH": true,
	"DUMP":  true,
	"LOAD":  true,
}

// Dispatch handles one already-decoded request value for sess, returning
// the value to encode as the response. Any unexpected panic from a handler
// is not recovered here; the connection handler is the boundary that must
// convert it to an error frame.
func (d *Dispatcher) Dispatch(sess *session.Session, request any) any {
	tokens, err := tokenize(request)
	if err != nil {
		return toErrorValue(err)
	}
	if len(tokens) == 0 {
		return toErrorValue(errf("Missing command"))
	}

	command := strings.ToUpper(tokens[0])
	args := tokens[1:]

	password := d.currentPassword()
	if password != nil && protectedCommands[command] && !sess.Authenticated {
		return codec.NewError("Authentication required")
	}

	result, err := d.route(sess, command, args, password)
	if err != nil {
		return toErrorValue(err)
	}
	return result
}

func toErrorValue(err error) codec.ErrorValue {
	if ev, ok := err.(codec.ErrorValue); ok {
		return ev
	}
	return codec.NewError("%s", err.Error())
}

// tokenize turns a decoded request into its string tokens. An array of
// strings is used as-is; a lone string is split on whitespace; anything
// else is a command error.
func tokenize(request any) ([]string, error) {
	switch v := request.(type) {
	case codec.Array:
		tokens := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errf("Request must be list or simple string.")
			}
			tokens = append(tokens, s)
		}
		return tokens, nil
	case []string:
		return v, nil
	case string:
		return strings.Fields(v), nil
	default:
		return nil, errf("Request must be list or simple string.")
	}
}

func (d *Dispatcher) route(sess *session.Session, command string, args []string, password *string) (any, error) {
	switch command {
	case "AUTH":
		return d.cmdAuth(sess, args, password)
	case "SET_PASSWORD":
		return d.cmdSetPassword(args)
	case "SELECT":
		return d.cmdSelect(sess, args)
	case "NEW_DB":
		return d.cmdNewDB(args)
	case "LIST_DBS":
		return d.Registry.List(), nil
	case "DROP_DB":
		return d.cmdDropDB(args)
	case "GET":
		return d.withKey(sess, args, func(ks *keyspace.Keyspace, key string) (any, error) {
			return ks.Get(key), nil
		})
	case "SET":
		return d.cmdSet(sess, args)
	case "DELETE":
		return d.withKey(sess, args, func(ks *keyspace.Keyspace, key string) (any, error) {
			return ks.Delete(key), nil
		})
	case "EXISTS":
		return d.withKey(sess, args, func(ks *keyspace.Keyspace, key string) (any, error) {
			return ks.Exists(key), nil
		})
	case "DEL_TIME":
		return d.withKey(sess, args, func(ks *keyspace.Keyspace, key string) (any, error) {
			return ks.DelTime(key), nil
		})
	case "BULK_GET":
		return d.cmdBulkGet(sess, args)
	case "BULK_SET":
		return d.cmdBulkSet(sess, args)
	case "FLUSH":
		return d.cmdFlush(sess, args, password)
	case "DUMP":
		return d.cmdDump(sess, args, password)
	case "LOAD":
		return d.cmdLoad(sess, args, password)
	case "TIME_DUMP":
		return d.cmdTimeDump(args)
	default:
		return nil, errf("Unrecognized command: %s", command)
	}
}

func (d *Dispatcher) withKey(sess *session.Session, args []string, fn func(*keyspace.Keyspace, string) (any, error)) (any, error) {
	if len(args) < 1 {
		return nil, errf("Missing key")
	}
	ks := d.Registry.Get(sess.CurrentDB)
	if ks == nil {
		return nil, errf("Database %d does not exist", sess.CurrentDB)
	}
	return fn(ks, args[0])
}

func (d *Dispatcher) cmdAuth(sess *session.Session, args []string, password *string) (any, error) {
	if len(args) < 1 {
		return nil, errf("Missing password")
	}
	if password == nil {
		return codec.NewError("No password set on server"), nil
	}
	if args[0] != *password {
		return codec.NewError("Invalid password"), nil
	}
	sess.Authenticated = true
	return "OK", nil
}

func (d *Dispatcher) cmdSetPassword(args []string) (any, error) {
	if len(args) < 1 {
		return nil, errf("Missing password")
	}
	d.setPassword(args[0])
	if args[0] == "" {
		return "Password disabled", nil
	}
	return "Password set", nil
}

func (d *Dispatcher) cmdSelect(sess *session.Session, args []string) (any, error) {
	if len(args) < 1 {
		return nil, errf("Missing database ID")
	}
	id, convErr := strconv.Atoi(args[0])
	if convErr != nil {
		return codec.NewError("Database ID must be an integer"), nil
	}
	if err := d.Registry.Select(id); err != nil {
		return codec.NewError("%s", err), nil
	}
	sess.CurrentDB = id
	return "OK", nil
}

func (d *Dispatcher) cmdNewDB(args []string) (any, error) {
	var idPtr *int
	if len(args) > 0 {
		id, convErr := strconv.Atoi(args[0])
		if convErr != nil {
			return codec.NewError("Database ID must be an integer"), nil
		}
		idPtr = &id
	}
	id, err := d.Registry.New(idPtr)
	if err != nil {
		return codec.NewError("%s", err), nil
	}
	return fmt.Sprintf("Database %d created", id), nil
}

func (d *Dispatcher) cmdDropDB(args []string) (any, error) {
	if len(args) < 1 {
		return nil, errf("Missing database ID")
	}
	id, convErr := strconv.Atoi(args[0])
	if convErr != nil {
		return codec.NewError("Database ID must be an integer"), nil
	}
	if err := d.Registry.Drop(id); err != nil {
		return codec.NewError("%s", err), nil
	}
	return fmt.Sprintf("Database %d dropped", id), nil
}

func (d *Dispatcher) cmdSet(sess *session.Session, args []string) (any, error) {
	if len(args) < 2 {
		return codec.NewError("SET requires at least key and value"), nil
	}
	ks := d.Registry.Get(sess.CurrentDB)
	if ks == nil {
		return nil, errf("Database %d does not exist", sess.CurrentDB)
	}

	var ttl *int64
	if len(args) > 2 {
		if n, convErr := strconv.ParseInt(args[2], 10, 64); convErr == nil {
			ttl = &n
		}
		// Non-numeric TTL is silently ignored; the value is still written.
	}
	return ks.Set(args[0], args[1], ttl), nil
}

func (d *Dispatcher) cmdBulkGet(sess *session.Session, args []string) (any, error) {
	if len(args) < 1 {
		return nil, errf("Invalid arguments for BULK_GET")
	}
	ks := d.Registry.Get(sess.CurrentDB)
	if ks == nil {
		return nil, errf("Database %d does not exist", sess.CurrentDB)
	}
	return codec.Array(ks.BulkGet(args)), nil
}

func (d *Dispatcher) cmdBulkSet(sess *session.Session, args []string) (any, error) {
	if len(args) < 2 {
		return nil, errf("Invalid arguments for BULK_SET")
	}
	ks := d.Registry.Get(sess.CurrentDB)
	if ks == nil {
		return nil, errf("Database %d does not exist", sess.CurrentDB)
	}
	return ks.BulkSet(args), nil
}

// checkPasswordArg validates a command's password argument against the
// server password when one is configured. FLUSH, DUMP, and LOAD take the
// password as their first argument in addition to requiring prior AUTH.
func (d *Dispatcher) checkPasswordArg(password *string, given string) error {
	if password == nil {
		return nil
	}
	if given != *password {
		return errf("Invalid password")
	}
	return nil
}

func (d *Dispatcher) cmdFlush(sess *session.Session, args []string, password *string) (any, error) {
	if password != nil {
		if len(args) < 1 {
			return codec.NewError("Invalid password"), nil
		}
		if err := d.checkPasswordArg(password, args[0]); err != nil {
			return codec.NewError("%s", err), nil
		}
	}
	ks := d.Registry.Get(sess.CurrentDB)
	if ks == nil {
		return nil, errf("Database %d does not exist", sess.CurrentDB)
	}
	return ks.Flush(), nil
}

func (d *Dispatcher) cmdDump(sess *session.Session, args []string, password *string) (any, error) {
	var filename string
	if password != nil {
		if len(args) < 1 {
			return codec.NewError("Password required for DUMP"), nil
		}
		if err := d.checkPasswordArg(password, args[0]); err != nil {
			return codec.NewError("%s", err), nil
		}
		if len(args) > 1 {
			filename = args[1]
		}
	} else if len(args) > 0 {
		filename = args[0]
	}

	msg, err := d.Snapshot.Dump(sess.CurrentDB, filename)
	if err != nil {
		return codec.NewError("%s", err), nil
	}
	return msg, nil
}

func (d *Dispatcher) cmdLoad(sess *session.Session, args []string, password *string) (any, error) {
	var filename string
	if password != nil {
		if len(args) < 2 {
			return codec.NewError("Password and filename required for LOAD"), nil
		}
		if err := d.checkPasswordArg(password, args[0]); err != nil {
			return codec.NewError("%s", err), nil
		}
		filename = args[1]
	} else {
		if len(args) < 1 {
			return codec.NewError("Filename required for LOAD"), nil
		}
		filename = args[0]
	}

	msg, err := d.Snapshot.Load(sess.CurrentDB, filename)
	if err != nil {
		return codec.NewError("%s", err), nil
	}
	return msg, nil
}

func (d *Dispatcher) cmdTimeDump(args []string) (any, error) {
	if len(args) < 1 {
		return nil, errf("Missing interval")
	}
	interval, convErr := strconv.Atoi(args[0])
	if convErr != nil {
		return codec.NewError("Invalid interval value"), nil
	}
	return d.Snapshot.TimeDump(interval), nil
}
