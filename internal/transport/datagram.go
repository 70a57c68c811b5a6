package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/Rrens/chat-bridge/internal/domain"
)

// PacketConn exchanges one sealed message per datagram on a shared socket.
// It is safe for concurrent use by several workers.
type PacketConn struct {
	conn  net.PacketConn
	codec *Codec
}

// NewPacketConn wraps a bound datagram socket
func NewPacketConn(conn net.PacketConn, codec *Codec) *PacketConn {
	return &PacketConn{conn: conn, codec: codec}
}

// Recv reads one datagram. The source address is returned even when the
// payload fails to decode so callers can log it.
func (p *PacketConn) Recv() (string, net.Addr, error) {
	// One spare byte detects datagrams truncated by the buffer
	buf := make([]byte, p.codec.MaxPayload()+1)
	n, addr, err := p.conn.ReadFrom(buf)
	if err != nil {
		return "", addr, err
	}
	if n > p.codec.MaxPayload() {
		return "", addr, fmt.Errorf("datagram exceeds %d bytes: %w", p.codec.MaxPayload(), domain.ErrPayloadTooLarge)
	}

	msg, err := p.codec.Decode(buf[:n])
	return msg, addr, err
}

// Send writes msg to addr as one datagram
func (p *PacketConn) Send(msg string, addr net.Addr) error {
	payload, err := p.codec.Encode(msg)
	if err != nil {
		return err
	}
	if _, err := p.conn.WriteTo(payload, addr); err != nil {
		return fmt.Errorf("failed to send datagram to %s: %w", addr, err)
	}
	return nil
}

// LocalAddr returns the bound address
func (p *PacketConn) LocalAddr() net.Addr {
	return p.conn.LocalAddr()
}

// Close closes the socket, unblocking every Recv
func (p *PacketConn) Close() error {
	return p.conn.Close()
}

// DatagramClient is a connected datagram socket for talking to one server
type DatagramClient struct {
	conn  *net.UDPConn
	codec *Codec
}

// DialDatagram opens a datagram client for addr
func DialDatagram(addr string, codec *Codec) (*DatagramClient, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return &DatagramClient{conn: conn, codec: codec}, nil
}

// Send writes one message
func (c *DatagramClient) Send(msg string) error {
	payload, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(payload)
	return err
}

// Recv reads one reply
func (c *DatagramClient) Recv() (string, error) {
	buf := make([]byte, c.codec.MaxPayload()+1)
	n, err := c.conn.Read(buf)
	if err != nil {
		return "", err
	}
	return c.codec.Decode(buf[:n])
}

// SetReadDeadline bounds the next Recv
func (c *DatagramClient) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// LocalAddr returns the client's source address
func (c *DatagramClient) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Close closes the socket
func (c *DatagramClient) Close() error {
	return c.conn.Close()
}
