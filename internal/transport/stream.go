package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/Rrens/chat-bridge/internal/domain"
)

// headerSize is the length prefix of every stream frame
const headerSize = 4

// StreamConn exchanges length-prefixed frames over a connection.
// Recv must not be called concurrently; Send is safe for concurrent use.
type StreamConn struct {
	conn  net.Conn
	codec *Codec
	r     *bufio.Reader

	wmu sync.Mutex
}

// NewStreamConn wraps an accepted or dialed connection
func NewStreamConn(conn net.Conn, codec *Codec) *StreamConn {
	return &StreamConn{
		conn:  conn,
		codec: codec,
		r:     bufio.NewReader(conn),
	}
}

// Dial connects to a stream listener
func Dial(ctx context.Context, addr string, codec *Codec) (*StreamConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return NewStreamConn(conn, codec), nil
}

// Recv reads one message. It returns domain.ErrPeerClosed when the remote
// side went away and a domain.ErrFraming error for a bad frame, after which
// the stream is still usable. Deadline errors are returned unchanged.
func (s *StreamConn) Recv() (string, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(s.r, header[:]); err != nil {
		return "", classifyReadErr(err)
	}

	n := binary.BigEndian.Uint32(header[:])
	if int64(n) > int64(s.codec.MaxPayload()) {
		// Skip the body so the next frame starts on a boundary
		if _, err := io.CopyN(io.Discard, s.r, int64(n)); err != nil {
			return "", classifyReadErr(err)
		}
		return "", fmt.Errorf("frame of %d bytes (limit %d): %w", n, s.codec.MaxPayload(), domain.ErrPayloadTooLarge)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(s.r, payload); err != nil {
		return "", classifyReadErr(err)
	}

	return s.codec.Decode(payload)
}

// Send writes one message as a single frame
func (s *StreamConn) Send(msg string) error {
	payload, err := s.codec.Encode(msg)
	if err != nil {
		return err
	}

	frame := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[headerSize:], payload)

	s.wmu.Lock()
	defer s.wmu.Unlock()

	if _, err := s.conn.Write(frame); err != nil {
		return classifyReadErr(err)
	}
	return nil
}

// SetReadDeadline bounds the next Recv
func (s *StreamConn) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// RemoteAddr returns the peer address
func (s *StreamConn) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// LocalAddr returns our end of the connection
func (s *StreamConn) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close closes the underlying connection
func (s *StreamConn) Close() error {
	return s.conn.Close()
}

// classifyReadErr maps connection teardown to domain.ErrPeerClosed
func classifyReadErr(err error) error {
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return fmt.Errorf("%w: %v", domain.ErrPeerClosed, err)
	}
	return err
}

// IsTimeout reports whether err is a deadline expiry
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
