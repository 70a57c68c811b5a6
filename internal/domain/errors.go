package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFraming is returned for malformed or undecodable payloads
	ErrFraming = errors.New("transport framing error")

	// ErrPayloadTooLarge is returned when an encoded payload exceeds the
	// transport's maximum size. It wraps ErrFraming.
	ErrPayloadTooLarge = fmt.Errorf("%w: payload too large", ErrFraming)

	// ErrPeerClosed is returned when the remote side went away
	ErrPeerClosed = errors.New("peer closed connection")

	// ErrBackendUnavailable marks a failed or empty backend reply
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrUnknownSession is returned when mutating a session that was never created
	ErrUnknownSession = errors.New("unknown session")
)
