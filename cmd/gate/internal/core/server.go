package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrPortOutOfRange is returned by Run when the configured port cannot
	// possibly be bound.
	ErrPortOutOfRange = errors.New("listen port is out of the valid range")

	// ErrNotStarted is returned by Stop when the listener was never opened.
	ErrNotStarted = errors.New("cannot stop a server that has not been started")
)

// levelFatal marks a failure that ends the run. The core never exits the
// process itself; exit policy stays with the caller of Run.
const levelFatal = slog.LevelError + 4

// Server accepts TCP client connections and hands each one to a
// ConnectionHandler, admitting at most maxClients connections at a time.
//
// Run blocks until Stop is called and every dispatched connection has
// finished. Stop may be called from any goroutine; it initiates shutdown and
// returns immediately, the drain happens inside Run.
type Server struct {
	port       int
	maxClients int
	handler    ConnectionHandler
	log        *slog.Logger

	permits *semaphore.Weighted
	wg      sync.WaitGroup

	// stopCtx unblocks a pending permit wait once shutdown begins,
	// closing the listener unblocks a pending Accept.
	stopCtx context.Context
	stopFn  context.CancelFunc

	mu       sync.Mutex
	stopped  bool
	listener net.Listener
}

// NewServer creates a server listening on the given port that admits at most
// maxClients concurrent connections. The logger is an injected collaborator;
// nil falls back to slog.Default().
func NewServer(port, maxClients int, handler ConnectionHandler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if maxClients < 1 {
		// A non-positive limit would block the accept loop forever.
		maxClients = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		port:       port,
		maxClients: maxClients,
		handler:    handler,
		log:        log,
		permits:    semaphore.NewWeighted(int64(maxClients)),
		stopCtx:    ctx,
		stopFn:     cancel,
	}
}

// Run opens the listener and serves until Stop is called, then waits for all
// dispatched connections to finish before returning. A startup failure is
// reported and returned without entering the accept loop; process exit policy
// stays with the caller.
func (s *Server) Run() error {
	if err := s.openListener(); err != nil {
		s.log.Log(context.Background(), levelFatal, "Server cannot be started", "error", err)
		return err
	}

	for !s.isStopped() {
		if err := s.acquireConnection(); err != nil {
			continue
		}
		if s.isStopped() {
			// The permit was granted while shutdown was already in
			// progress. Shutdown is terminal, so it is never released.
			break
		}

		conn, err := s.acceptNext()
		if err != nil {
			s.releaseConnection()
			if s.isStopped() {
				break
			}
			s.log.Error("Error while connecting to a client", "error", err)
			continue
		}

		s.dispatch(conn)
	}

	s.wg.Wait()
	s.log.Info("Server operation completed")
	return nil
}

// Stop flips the server into its terminal state: no further connections are
// admitted and the listener is closed, which unblocks a pending accept.
// Calling Stop again is safe; closing the already-closed listener is logged
// and swallowed so the shutdown narrative stays consistent.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info("Stopping the server...")
	if s.listener == nil {
		s.log.Error("Cannot stop a server that has not been started")
		return ErrNotStarted
	}

	s.stopped = true
	s.stopFn()
	if err := s.listener.Close(); err != nil {
		s.log.Error("Error while shutting down the listener", "error", err)
	}
	s.log.Info("Draining already connected clients...")
	return nil
}

// Addr reports the bound listener address, or nil before a successful Run.
// Useful when the server was configured with port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Server) openListener() error {
	s.log.Info("Starting the server...", "port", s.port, "max_clients", s.maxClients)

	if s.port < 0 || s.port > 65535 {
		return fmt.Errorf("%w: %d", ErrPortOutOfRange, s.port)
	}

	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.port))
	if err != nil {
		return fmt.Errorf("opening listener on port %d: %w", s.port, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.Info("Server is ready to accept connections", "addr", listener.Addr().String())
	return nil
}

// acquireConnection blocks until a connection permit is available or shutdown
// interrupts the wait, in which case the caller skips the iteration.
func (s *Server) acquireConnection() error {
	if err := s.permits.Acquire(s.stopCtx, 1); err != nil {
		s.log.Error("Interrupted while waiting for a connection permit", "error", err)
		return err
	}
	s.log.Info("Connection permit granted")
	return nil
}

func (s *Server) releaseConnection() {
	s.permits.Release(1)
	s.log.Info("Connection permit released")
}

func (s *Server) acceptNext() (net.Conn, error) {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	s.log.Info("Listening for a client", "addr", listener.Addr().String())
	conn, err := listener.Accept()
	if err != nil {
		return nil, fmt.Errorf("accepting client connection: %w", err)
	}

	s.log.Info("Connection with a client established", "remote_addr", conn.RemoteAddr().String())
	return conn, nil
}

// dispatch hands the connection to the handler on its own goroutine. The
// permit is released when the handler returns, success or failure alike, so a
// well-behaved handler never has to touch the admission accounting.
func (s *Server) dispatch(conn net.Conn) {
	id := uuid.NewString()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.releaseConnection()

		s.log.Info("Client dispatched", "conn_id", id, "remote_addr", conn.RemoteAddr().String())
		s.handler.HandleConnection(conn)
		s.log.Info("Client finished", "conn_id", id)
	}()
}
