// Package server runs the stream and datagram listeners and hands every
// inbound message to the chat service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Rrens/chat-bridge/internal/config"
	"github.com/Rrens/chat-bridge/internal/domain"
	"github.com/Rrens/chat-bridge/internal/service"
	"github.com/Rrens/chat-bridge/internal/transport"
)

// acceptBackoff is the pause after an unexpected accept error
const acceptBackoff = 50 * time.Millisecond

// Dispatcher handles one inbound message
type Dispatcher interface {
	Handle(ctx context.Context, t domain.Transport, key domain.SessionKey, msg string, reply service.Replier) service.Outcome
}

// Stats is a snapshot of listener activity
type Stats struct {
	ActiveConnections   int64 `json:"active_connections"`
	AcceptedConnections int64 `json:"accepted_connections"`
	RejectedConnections int64 `json:"rejected_connections"`
	Datagrams           int64 `json:"datagrams"`
	DatagramWorkers     int64 `json:"datagram_workers"`
}

// Server owns the listeners and their workers
type Server struct {
	cfg      config.ServerConfig
	codec    *transport.Codec
	dispatch Dispatcher

	adminAddr    string
	adminHandler http.Handler

	listenOnce sync.Once
	listenErr  error
	tcp        net.Listener
	udp        *transport.PacketConn

	connMu sync.Mutex
	conns  map[*transport.StreamConn]struct{}

	active    atomic.Int64
	accepted  atomic.Int64
	rejected  atomic.Int64
	datagrams atomic.Int64
	workers   atomic.Int64
}

// Option configures optional parts of the server
type Option func(*Server)

// WithAdmin serves handler on addr alongside the chat listeners
func WithAdmin(addr string, handler http.Handler) Option {
	return func(s *Server) {
		s.adminAddr = addr
		s.adminHandler = handler
	}
}

// New creates a server. Nothing is bound until Listen or Run.
func New(cfg config.ServerConfig, codec *transport.Codec, dispatch Dispatcher, opts ...Option) *Server {
	if cfg.UDPWorkers < 1 {
		cfg.UDPWorkers = 1
	}
	s := &Server{
		cfg:      cfg,
		codec:    codec,
		dispatch: dispatch,
		conns:    make(map[*transport.StreamConn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds the stream and datagram sockets
func (s *Server) Listen() error {
	s.listenOnce.Do(func() {
		tcp, err := net.Listen("tcp", s.cfg.TCPAddr())
		if err != nil {
			s.listenErr = fmt.Errorf("failed to listen on tcp %s: %w", s.cfg.TCPAddr(), err)
			return
		}

		udp, err := net.ListenPacket("udp", s.cfg.UDPAddr())
		if err != nil {
			tcp.Close()
			s.listenErr = fmt.Errorf("failed to listen on udp %s: %w", s.cfg.UDPAddr(), err)
			return
		}

		s.tcp = tcp
		s.udp = transport.NewPacketConn(udp, s.codec)
	})
	return s.listenErr
}

// TCPAddr returns the bound stream address
func (s *Server) TCPAddr() net.Addr {
	if s.tcp == nil {
		return nil
	}
	return s.tcp.Addr()
}

// UDPAddr returns the bound datagram address
func (s *Server) UDPAddr() net.Addr {
	if s.udp == nil {
		return nil
	}
	return s.udp.LocalAddr()
}

// Run serves until ctx is cancelled or a listener fails
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	log.Info().
		Str("host", s.cfg.Host).
		Str("tcp", s.TCPAddr().String()).
		Str("udp", s.UDPAddr().String()).
		Int("udp_workers", s.cfg.UDPWorkers).
		Int("max_connections", s.cfg.MaxConnections).
		Msg("Server started")

	g, gctx := errgroup.WithContext(ctx)
	var handlers sync.WaitGroup

	g.Go(func() error {
		return s.acceptLoop(gctx, &handlers)
	})

	// Datagram workers start exactly once, independent of stream accepts
	for i := 0; i < s.cfg.UDPWorkers; i++ {
		id := i
		g.Go(func() error {
			s.datagramWorker(gctx, id)
			return nil
		})
	}

	var admin *http.Server
	if s.adminHandler != nil {
		admin = &http.Server{
			Addr:              s.adminAddr,
			Handler:           s.adminHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", s.adminAddr).Msg("Admin API listening")
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.shutdown(admin)
		return nil
	})

	err := g.Wait()
	handlers.Wait()
	log.Info().Msg("Server stopped")
	return err
}

func (s *Server) shutdown(admin *http.Server) {
	log.Info().Msg("Shutting down listeners")

	s.tcp.Close()
	s.udp.Close()

	s.connMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connMu.Unlock()

	if admin != nil {
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := admin.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("admin server shutdown")
		}
	}
}

// Stats returns the current listener counters
func (s *Server) Stats() Stats {
	return Stats{
		ActiveConnections:   s.active.Load(),
		AcceptedConnections: s.accepted.Load(),
		RejectedConnections: s.rejected.Load(),
		Datagrams:           s.datagrams.Load(),
		DatagramWorkers:     s.workers.Load(),
	}
}

func (s *Server) trackConn(conn *transport.StreamConn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conns[conn] = struct{}{}
	s.active.Add(1)
}

func (s *Server) untrackConn(conn *transport.StreamConn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if _, ok := s.conns[conn]; ok {
		delete(s.conns, conn)
		s.active.Add(-1)
	}
}

// cycle runs one message through the dispatcher, containing any panic to
// this message
func (s *Server) cycle(ctx context.Context, t domain.Transport, key domain.SessionKey, msg string, reply service.Replier) (outcome service.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().
				Str("transport", string(t)).
				Str("session", key.String()).
				Interface("panic", p).
				Str("stack", string(debug.Stack())).
				Msg("panic while handling message")
			outcome = service.OutcomeFailed
		}
	}()
	return s.dispatch.Handle(ctx, t, key, msg, reply)
}
