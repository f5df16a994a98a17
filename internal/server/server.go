// Package server wires together the Registry, Sweeper, Snapshot Manager,
// and Dispatcher into the accept loop: bind a listener, hand each
// connection to a bounded worker pool, and coordinate the acceptor,
// sweeper, and shutdown goroutines through a shared context.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/reddb/reddb/internal/config"
	"github.com/reddb/reddb/internal/connio"
	"github.com/reddb/reddb/internal/dispatcher"
	"github.com/reddb/reddb/internal/keyspace"
	"github.com/reddb/reddb/internal/snapshot"
	"github.com/reddb/reddb/internal/sweeper"
)

// Server owns the listener and every long-running task: the acceptor, the
// bounded worker pool, the Registry, the Sweeper, and the optional
// TIME_DUMP task (started by the TIME_DUMP command, or by Run when
// cfg.TimeDumpInterval is positive).
type Server struct {
	cfg        config.Config
	Registry   *keyspace.Registry
	Snapshot   *snapshot.Manager
	Dispatcher *dispatcher.Dispatcher

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
}

// New constructs a Server from cfg. The Registry starts with database 0
// only; the Snapshot Manager's dump directory and the Dispatcher's
// initial password come from cfg.
func New(cfg config.Config) *Server {
	registry := keyspace.NewRegistry()
	mgr := snapshot.NewManager(registry)
	if cfg.DumpDir != "" {
		mgr.SetDumpDir(cfg.DumpDir)
	}
	d := dispatcher.New(registry, mgr, cfg.Password)

	return &Server{
		cfg:        cfg,
		Registry:   registry,
		Snapshot:   mgr,
		Dispatcher: d,
		conns:      make(map[net.Conn]struct{}),
	}
}

// Run binds the listener and blocks until ctx is canceled, at which point
// it stops accepting, cancels the sweeper and any running TIME_DUMP task,
// and waits for in-flight connection handlers to finish. A nil return
// means clean shutdown; any other error is a listener failure.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	defer listener.Close()
	slog.Info("reddb listening", "addr", s.cfg.Addr())

	if s.cfg.TimeDumpInterval > 0 {
		msg := s.Snapshot.TimeDump(s.cfg.TimeDumpInterval)
		slog.Info("periodic dump started", "result", msg)
	}
	defer s.Snapshot.StopTimeDump()

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		sweeper.Run(egCtx, s.Registry)
		return nil
	})

	eg.Go(func() error {
		return s.accept(egCtx, listener)
	})

	eg.Go(func() error {
		<-egCtx.Done()
		listener.Close()
		s.closeOpenConns()
		return nil
	})

	if err := eg.Wait(); err != nil && !isClosedOrCanceled(err) {
		return err
	}
	return nil
}

// accept runs the acceptor loop, handing each connection to a worker
// bounded by cfg.MaxClients. workers.Go blocks once the pool is
// saturated, so the acceptor backs off rather than dropping a
// connection.
func (s *Server) accept(ctx context.Context, listener net.Listener) error {
	workers := errgroup.Group{}
	maxClients := s.cfg.MaxClients
	if maxClients <= 0 {
		maxClients = config.Default().MaxClients
	}
	workers.SetLimit(maxClients)
	defer workers.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || isClosedOrCanceled(err) {
				return nil
			}
			return err
		}

		s.trackConn(conn)
		workers.Go(func() error {
			slog.Debug("connection accepted", "remote", conn.RemoteAddr())
			connio.Handle(conn, s.Dispatcher)
			s.untrackConn(conn)
			slog.Debug("connection closed", "remote", conn.RemoteAddr())
			return nil
		})
	}
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

// closeOpenConns force-closes every still-open connection on shutdown.
// connio.Handle's own `defer conn.Close()` makes a second Close on the
// same conn a harmless no-op, so there is no race with a connection
// finishing naturally at the same moment.
func (s *Server) closeOpenConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

func isClosedOrCanceled(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled)
}
