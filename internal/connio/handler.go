// Package connio owns the per-connection decode/dispatch/encode loop: one
// goroutine per connection, reading requests and writing responses until
// the client disconnects or the connection fails.
package connio

import (
	"bufio"
	"errors"
	"log/slog"
	"net"

	"github.com/reddb/reddb/internal/codec"
	"github.com/reddb/reddb/internal/dispatcher"
	"github.com/reddb/reddb/internal/session"
)

// Handle owns conn for its whole lifetime: it decodes requests, dispatches
// them, encodes responses, and unconditionally closes conn on return.
func Handle(conn net.Conn, d *dispatcher.Dispatcher) {
	defer conn.Close()

	sess := session.New()
	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	for {
		request, err := codec.Decode(reader)
		if err != nil {
			if errors.Is(err, codec.ErrDisconnect) {
				return
			}
			var protoErr *codec.ErrProtocol
			if errors.As(err, &protoErr) {
				if writeErr := codec.Encode(writer, codec.NewError("%s", protoErr.Message)); writeErr != nil {
					slog.Warn("write failed after protocol error", "error", writeErr)
					return
				}
				continue
			}
			slog.Warn("unexpected decode failure", "error", err)
			return
		}

		response := dispatchSafely(d, sess, request)
		if err := codec.Encode(writer, response); err != nil {
			slog.Warn("write failed", "error", err)
			return
		}
	}
}

// dispatchSafely converts any panic inside the dispatcher into an error
// frame rather than crashing the server or the connection.
func dispatchSafely(d *dispatcher.Dispatcher, sess *session.Session, request any) (response any) {
	defer func() {
		if r := recover(); r != nil {
			response = codec.NewError("%v", r)
		}
	}()
	return d.Dispatch(sess, request)
}
