package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/chat-bridge/internal/domain"
	"github.com/Rrens/chat-bridge/internal/service"
	"github.com/Rrens/chat-bridge/internal/transport"
)

func (s *Server) acceptLoop(ctx context.Context, handlers *sync.WaitGroup) error {
	for {
		conn, err := s.tcp.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				log.Info().Msg("Listener closed, exiting accept loop")
				return nil
			}
			log.Error().Err(err).Msg("Error accepting connection")
			time.Sleep(acceptBackoff)
			continue
		}

		if s.cfg.MaxConnections > 0 && s.active.Load() >= int64(s.cfg.MaxConnections) {
			s.rejected.Add(1)
			log.Warn().
				Str("remote", conn.RemoteAddr().String()).
				Int("limit", s.cfg.MaxConnections).
				Msg("Connection limit reached, rejecting connection")
			conn.Close()
			continue
		}

		s.accepted.Add(1)
		sc := transport.NewStreamConn(conn, s.codec)
		s.trackConn(sc)

		handlers.Add(1)
		go func() {
			defer handlers.Done()
			s.serveStream(ctx, sc)
		}()
	}
}

// serveStream owns one connection until the peer quits, disconnects or idles out
func (s *Server) serveStream(ctx context.Context, conn *transport.StreamConn) {
	defer s.untrackConn(conn)
	defer conn.Close()

	key, err := domain.KeyFromAddr(conn.RemoteAddr())
	if err != nil {
		log.Error().Err(err).Msg("cannot derive session key")
		return
	}

	logger := log.With().Str("session", key.String()).Logger()
	logger.Info().Msg("client connected")

	for {
		if s.cfg.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}

		msg, err := conn.Recv()
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrPeerClosed):
				logger.Info().Msg("client disconnected")
				return
			case transport.IsTimeout(err):
				logger.Info().Dur("idle_timeout", s.cfg.IdleTimeout).Msg("closing idle connection")
				return
			case errors.Is(err, domain.ErrFraming):
				logger.Warn().Err(err).Msg("dropping malformed frame")
				continue
			default:
				logger.Error().Err(err).Msg("receive failed")
				return
			}
		}

		if s.cycle(ctx, domain.TransportStream, key, msg, conn) == service.OutcomeQuit {
			return
		}
	}
}
