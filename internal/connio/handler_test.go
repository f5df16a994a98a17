package connio

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reddb/reddb/internal/codec"
	"github.com/reddb/reddb/internal/dispatcher"
	"github.com/reddb/reddb/internal/keyspace"
	"github.com/reddb/reddb/internal/snapshot"
)

func newTestDispatcher() *dispatcher.Dispatcher {
	registry := keyspace.NewRegistry()
	mgr := snapshot.NewManager(registry)
	return dispatcher.New(registry, mgr, "")
}

func TestHandleRoundTripsOneRequest(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	go Handle(server, newTestDispatcher())

	w := bufio.NewWriter(client)
	require.NoError(t, codec.Encode(w, codec.Array{"SET", "a", "1"}))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(client)
	resp, err := codec.Decode(r)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp)
}

func TestHandleClosesOnDisconnect(t *testing.T) {
	server, client := net.Pipe()
	done := make(chan struct{})
	go func() {
		Handle(server, newTestDispatcher())
		close(done)
	}()

	client.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Handle did not return after client disconnect")
	}
}

func TestHandleSurvivesProtocolError(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	go Handle(server, newTestDispatcher())

	client.SetDeadline(time.Now().Add(2 * time.Second))
	_, err := client.Write([]byte("?garbage\r\n"))
	require.NoError(t, err)

	r := bufio.NewReader(client)
	resp, err := codec.Decode(r)
	require.NoError(t, err)
	assert.Equal(t, codec.ErrorValue{Message: "bad request"}, resp)

	// connection stays open: a second, well-formed request still works.
	w := bufio.NewWriter(client)
	require.NoError(t, codec.Encode(w, codec.Array{"SET", "a", "1"}))
	resp, err = codec.Decode(r)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp)
}
