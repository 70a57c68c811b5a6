package server

import (
	"context"
	"errors"
	"net"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/chat-bridge/internal/domain"
	"github.com/Rrens/chat-bridge/internal/service"
)

// datagramWorker reads from the shared socket until it is closed or a client
// sends the quit command, which stops only this worker
func (s *Server) datagramWorker(ctx context.Context, id int) {
	s.workers.Add(1)
	defer s.workers.Add(-1)

	logger := log.With().Int("worker", id).Logger()
	logger.Debug().Msg("datagram worker started")

	for {
		msg, addr, err := s.udp.Recv()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				logger.Debug().Msg("datagram socket closed")
				return
			}
			ev := logger.Warn().Err(err)
			if addr != nil {
				ev = ev.Str("remote", addr.String())
			}
			ev.Msg("dropping datagram")
			continue
		}
		s.datagrams.Add(1)

		key, err := domain.KeyFromAddr(addr)
		if err != nil {
			logger.Warn().Err(err).Msg("cannot derive session key")
			continue
		}

		reply := service.ReplyFunc(func(m string) error {
			return s.udp.Send(m, addr)
		})

		if s.cycle(ctx, domain.TransportDatagram, key, msg, reply) == service.OutcomeQuit {
			logger.Info().Str("session", key.String()).Msg("datagram worker stopped by client")
			return
		}
	}
}
