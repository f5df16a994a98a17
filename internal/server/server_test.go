package server

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reddb/reddb/internal/codec"
	"github.com/reddb/reddb/internal/config"
)

func startTestServer(t *testing.T) (addr string, shutdown func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	listener.Close()

	cfg := config.Default()
	cfg.Host = host
	cfg.Port = port
	srv := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	addr = cfg.Addr()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	return addr, func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Fatal("server did not shut down")
		}
	}
}

func TestServerAcceptsAndRoutesOneCommand(t *testing.T) {
	addr, shutdown := startTestServer(t)
	defer shutdown()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	w := bufio.NewWriter(conn)
	require.NoError(t, codec.Encode(w, codec.Array{"SET", "k", "v"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)
	resp, err := codec.Decode(r)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp)
}

func TestServerShutdownClosesOpenConnections(t *testing.T) {
	addr, shutdown := startTestServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	shutdown()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.Error(t, err)
}
