package transport_test

import (
	"context"
	"encoding/binary"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/chat-bridge/internal/domain"
	"github.com/Rrens/chat-bridge/internal/security"
	"github.com/Rrens/chat-bridge/internal/transport"
)

func newCodec(t *testing.T, max int) *transport.Codec {
	t.Helper()
	enc, err := security.NewEncryptorFromSecret("transport-test-secret")
	require.NoError(t, err)
	return transport.NewCodec(max, enc)
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := newCodec(t, 0)
	assert.Equal(t, transport.DefaultMaxPayload, codec.MaxPayload())

	for _, msg := range []string{"", "hello", "héllo wörld 你好"} {
		payload, err := codec.Encode(msg)
		require.NoError(t, err)
		if msg != "" {
			assert.NotContains(t, string(payload), msg)
		}

		got, err := codec.Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, msg, got)
	}
}

func TestCodec_EncodeTooLarge(t *testing.T) {
	codec := newCodec(t, 64)

	_, err := codec.Encode(strings.Repeat("x", 64))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)
	assert.ErrorIs(t, err, domain.ErrFraming)
}

func TestCodec_DecodeGarbage(t *testing.T) {
	codec := newCodec(t, 0)

	_, err := codec.Decode([]byte("definitely not sealed"))
	assert.ErrorIs(t, err, domain.ErrFraming)
}

func TestCodec_PlainRejectsInvalidUTF8(t *testing.T) {
	codec := transport.NewCodec(16, nil)

	_, err := codec.Decode([]byte{0xff, 0xfe})
	assert.ErrorIs(t, err, domain.ErrFraming)
}

func streamPair(t *testing.T, codec *transport.Codec) (*transport.StreamConn, *transport.StreamConn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	client, err := transport.Dial(context.Background(), ln.Addr().String(), codec)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	conn, ok := <-accepted
	require.True(t, ok)
	server := transport.NewStreamConn(conn, codec)
	t.Cleanup(func() { server.Close() })

	return client, server
}

func TestStreamConn_SendRecv(t *testing.T) {
	codec := newCodec(t, 0)
	client, server := streamPair(t, codec)

	require.NoError(t, client.Send("first"))
	require.NoError(t, client.Send("second"))

	got, err := server.Recv()
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	got, err = server.Recv()
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	require.NoError(t, server.Send("[TCP] reply"))
	got, err = client.Recv()
	require.NoError(t, err)
	assert.Equal(t, "[TCP] reply", got)
}

func TestStreamConn_PeerClosed(t *testing.T) {
	codec := newCodec(t, 0)
	client, server := streamPair(t, codec)

	require.NoError(t, client.Close())

	_, err := server.Recv()
	assert.ErrorIs(t, err, domain.ErrPeerClosed)
}

func TestStreamConn_OversizeFrameIsSkipped(t *testing.T) {
	codec := transport.NewCodec(32, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		raw, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			return
		}
		defer raw.Close()

		big := make([]byte, 4+100)
		binary.BigEndian.PutUint32(big, 100)
		raw.Write(big)

		small := make([]byte, 4+2)
		binary.BigEndian.PutUint32(small, 2)
		copy(small[4:], "ok")
		raw.Write(small)

		time.Sleep(200 * time.Millisecond)
	}()

	conn, err := ln.Accept()
	require.NoError(t, err)
	server := transport.NewStreamConn(conn, codec)
	defer server.Close()

	_, err = server.Recv()
	assert.ErrorIs(t, err, domain.ErrFraming)

	got, err := server.Recv()
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestStreamConn_ReadDeadline(t *testing.T) {
	codec := newCodec(t, 0)
	_, server := streamPair(t, codec)

	require.NoError(t, server.SetReadDeadline(time.Now().Add(50*time.Millisecond)))

	_, err := server.Recv()
	require.Error(t, err)
	assert.True(t, transport.IsTimeout(err))
	assert.NotErrorIs(t, err, domain.ErrPeerClosed)
}

func TestPacketConn_SendRecv(t *testing.T) {
	codec := newCodec(t, 0)

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	server := transport.NewPacketConn(pc, codec)
	defer server.Close()

	client, err := transport.DialDatagram(server.LocalAddr().String(), codec)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send("ping"))

	msg, addr, err := server.Recv()
	require.NoError(t, err)
	assert.Equal(t, "ping", msg)
	assert.Equal(t, client.LocalAddr().String(), addr.String())

	require.NoError(t, server.Send("[UDP] pong", addr))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	got, err := client.Recv()
	require.NoError(t, err)
	assert.Equal(t, "[UDP] pong", got)
}

func TestPacketConn_OversizeDatagram(t *testing.T) {
	codec := transport.NewCodec(16, nil)

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	server := transport.NewPacketConn(pc, codec)
	defer server.Close()

	raw, err := net.Dial("udp", server.LocalAddr().String())
	require.NoError(t, err)
	defer raw.Close()

	_, err = raw.Write([]byte(strings.Repeat("y", 40)))
	require.NoError(t, err)

	_, addr, err := server.Recv()
	assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)
	assert.NotNil(t, addr)
}

func TestPacketConn_CloseUnblocksRecv(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	server := transport.NewPacketConn(pc, transport.NewCodec(0, nil))

	done := make(chan error, 1)
	go func() {
		_, _, err := server.Recv()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, server.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, net.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not return after Close")
	}
}
