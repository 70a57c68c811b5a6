package domain

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// SessionKey identifies a client by the address it talks to us from
type SessionKey struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// String renders the key as host:port (IPv6 hosts are bracketed)
func (k SessionKey) String() string {
	return net.JoinHostPort(k.Host, strconv.Itoa(k.Port))
}

// KeyFromAddr builds a session key from a TCP or UDP address
func KeyFromAddr(addr net.Addr) (SessionKey, error) {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return keyFromAddrPort(a.AddrPort()), nil
	case *net.UDPAddr:
		return keyFromAddrPort(a.AddrPort()), nil
	case nil:
		return SessionKey{}, fmt.Errorf("nil address")
	default:
		return ParseSessionKey(addr.String())
	}
}

func keyFromAddrPort(ap netip.AddrPort) SessionKey {
	return SessionKey{Host: ap.Addr().Unmap().String(), Port: int(ap.Port())}
}

// ParseSessionKey parses a host:port string into a session key
func ParseSessionKey(s string) (SessionKey, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return SessionKey{}, fmt.Errorf("invalid session key %q: %w", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return SessionKey{}, fmt.Errorf("invalid port in session key %q", s)
	}
	return SessionKey{Host: host, Port: port}, nil
}

// Conversation is the ordered transcript of one session, oldest first
type Conversation []Turn

// Clone returns a copy that shares no memory with c
func (c Conversation) Clone() Conversation {
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// Last returns the most recent n turns, or the whole conversation when n <= 0
func (c Conversation) Last(n int) Conversation {
	if n <= 0 || n >= len(c) {
		return c
	}
	return c[len(c)-n:]
}

// SessionStore is the only mutable state shared between workers.
//
// Operations on different keys may run in parallel; operations on the same
// key are serialized. Returned conversations are snapshots owned by the caller.
type SessionStore interface {
	// GetOrCreate returns the conversation for key, creating an empty session
	// if none exists
	GetOrCreate(ctx context.Context, key SessionKey) (Conversation, error)

	// Append adds one turn. Returns ErrUnknownSession if key has no session
	Append(ctx context.Context, key SessionKey, turn Turn) error

	// Clear empties the conversation, creating the session if needed
	Clear(ctx context.Context, key SessionKey) error

	// Get looks a session up without creating it
	Get(ctx context.Context, key SessionKey) (Conversation, bool, error)

	// Keys lists every known session
	Keys(ctx context.Context) ([]SessionKey, error)
}
