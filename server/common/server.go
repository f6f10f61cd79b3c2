package common

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/op/go-logging"
	"golang.org/x/sync/errgroup"
)

var log = logging.MustGetLogger("log")

// ServerConfig Configuration used by the server
type ServerConfig struct {
	Port int
	// ListenBacklog is kept for deployment parity with the shipped
	// configuration; the Go runtime sizes the accept queue itself.
	ListenBacklog  int
	AgenciesAmount int
	BetsFilePath   string
}

// Server accepts agency connections and runs one session per connection.
// All sessions share the lottery coordinator.
type Server struct {
	config   ServerConfig
	listener net.Listener
	lottery  *Lottery

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer binds the listening socket and initializes the coordinator.
// Binding at construction lets callers learn the address before Run.
func NewServer(config ServerConfig, store BetStore) (*Server, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", config.Port))
	if err != nil {
		return nil, fmt.Errorf("bind server socket: %w", err)
	}
	return &Server{
		config:   config,
		listener: listener,
		lottery:  NewLottery(store, config.AgenciesAmount),
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run accepts connections until ctx is cancelled, spawning a session worker
// per client. On cancellation it closes the listener to unblock accept,
// tears down the finish barrier, closes every live client socket so blocked
// reads return, and joins all workers before returning.
func (s *Server) Run(ctx context.Context) error {
	var group errgroup.Group

	// Closing the listener is the only way to unblock Accept.
	loopDone := make(chan struct{})
	defer close(loopDone)
	go func() {
		select {
		case <-ctx.Done():
			log.Info("action: server_graceful_shutdown | result: in_progress")
			s.listener.Close()
		case <-loopDone:
		}
	}()

	var acceptErr error
	for {
		log.Info("action: accept_connections | result: in_progress")
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() == nil {
				log.Errorf("action: accept_connections | result: fail | error: %v", err)
				acceptErr = err
			}
			break
		}
		log.Infof("action: accept_connections | result: success | ip: %s", remoteIP(conn))

		s.trackConnection(conn)
		group.Go(func() error {
			defer s.untrackConnection(conn)
			// Session failures are contained: logged, never fatal for the server.
			if err := (&session{conn: conn, lottery: s.lottery}).run(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("action: client_connection | result: fail | ip: %s | error: %v", remoteIP(conn), err)
			} else {
				log.Infof("action: client_connection | result: closed | ip: %s", remoteIP(conn))
			}
			return nil
		})
	}

	s.listener.Close()
	s.lottery.Abort()
	s.closeConnections()
	_ = group.Wait()

	if ctx.Err() != nil {
		log.Info("action: server_graceful_shutdown | result: success")
		return nil
	}
	return acceptErr
}

func (s *Server) trackConnection(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrackConnection(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// closeConnections force-closes every live client socket so session workers
// blocked on reads observe an error and exit.
func (s *Server) closeConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

func remoteIP(conn net.Conn) string {
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP.String()
	}
	return conn.RemoteAddr().String()
}
