// Package transport frames chat messages for the stream and datagram
// listeners. Payloads are optionally sealed with AES-GCM and are bounded by
// a maximum encoded size.
package transport

import (
	"fmt"
	"unicode/utf8"

	"github.com/Rrens/chat-bridge/internal/domain"
	"github.com/Rrens/chat-bridge/internal/security"
)

// DefaultMaxPayload is used when a codec is built with a non-positive limit
const DefaultMaxPayload = 4096

// Codec turns messages into bounded wire payloads and back
type Codec struct {
	enc        *security.Encryptor
	maxPayload int
}

// NewCodec creates a codec. A nil encryptor sends plain UTF-8.
func NewCodec(maxPayload int, enc *security.Encryptor) *Codec {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Codec{enc: enc, maxPayload: maxPayload}
}

// MaxPayload returns the largest encoded payload the codec accepts
func (c *Codec) MaxPayload() int {
	return c.maxPayload
}

// Encode seals msg. It fails with domain.ErrPayloadTooLarge when the encoded
// form would not fit the payload limit.
func (c *Codec) Encode(msg string) ([]byte, error) {
	size := len(msg)
	if c.enc != nil {
		size += c.enc.Overhead()
	}
	if size > c.maxPayload {
		return nil, fmt.Errorf("encode %d bytes (limit %d): %w", size, c.maxPayload, domain.ErrPayloadTooLarge)
	}

	if c.enc == nil {
		return []byte(msg), nil
	}

	sealed, err := c.enc.Encrypt([]byte(msg))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFraming, err)
	}
	return sealed, nil
}

// Decode opens a payload produced by Encode
func (c *Codec) Decode(payload []byte) (string, error) {
	if len(payload) > c.maxPayload {
		return "", fmt.Errorf("decode %d bytes (limit %d): %w", len(payload), c.maxPayload, domain.ErrPayloadTooLarge)
	}

	plain := payload
	if c.enc != nil {
		var err error
		plain, err = c.enc.Decrypt(payload)
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrFraming, err)
		}
	}

	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: payload is not valid UTF-8", domain.ErrFraming)
	}
	return string(plain), nil
}
