package domain_test

import (
	"errors"
	"net"
	"testing"

	"github.com/Rrens/chat-bridge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionKey_NoConcatenationCollisions(t *testing.T) {
	a := domain.SessionKey{Host: "1.2", Port: 34}
	b := domain.SessionKey{Host: "1.23", Port: 4}

	assert.NotEqual(t, a, b)

	m := map[domain.SessionKey]int{a: 1, b: 2}
	assert.Len(t, m, 2)
}

func TestKeyFromAddr(t *testing.T) {
	tests := []struct {
		name string
		addr net.Addr
		want domain.SessionKey
	}{
		{
			"tcp ipv4",
			&net.TCPAddr{IP: net.ParseIP("1.2.3.4"), Port: 9000},
			domain.SessionKey{Host: "1.2.3.4", Port: 9000},
		},
		{
			"udp ipv4",
			&net.UDPAddr{IP: net.ParseIP("1.2.3.4"), Port: 9000},
			domain.SessionKey{Host: "1.2.3.4", Port: 9000},
		},
		{
			"udp ipv6",
			&net.UDPAddr{IP: net.ParseIP("::1"), Port: 53},
			domain.SessionKey{Host: "::1", Port: 53},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.KeyFromAddr(tt.addr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyFromAddr_SameHostDifferentTransport(t *testing.T) {
	tcpKey, err := domain.KeyFromAddr(&net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 5000})
	require.NoError(t, err)
	udpKey, err := domain.KeyFromAddr(&net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 5000})
	require.NoError(t, err)

	assert.Equal(t, tcpKey, udpKey)
}

func TestParseSessionKey(t *testing.T) {
	key, err := domain.ParseSessionKey("[::1]:8080")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionKey{Host: "::1", Port: 8080}, key)
	assert.Equal(t, "[::1]:8080", key.String())

	_, err = domain.ParseSessionKey("no-port")
	assert.Error(t, err)

	_, err = domain.ParseSessionKey("host:99999")
	assert.Error(t, err)
}

func TestConversation_CloneAndLast(t *testing.T) {
	conv := domain.Conversation{
		domain.UserTurn("a"),
		domain.AssistantTurn("b"),
		domain.UserTurn("c"),
	}

	clone := conv.Clone()
	clone[0].Content = "changed"
	assert.Equal(t, "a", conv[0].Content)

	assert.Equal(t, conv[1:], conv.Last(2))
	assert.Equal(t, conv, conv.Last(0))
	assert.Equal(t, conv, conv.Last(10))
}

func TestErrPayloadTooLarge_IsFraming(t *testing.T) {
	assert.True(t, errors.Is(domain.ErrPayloadTooLarge, domain.ErrFraming))
	assert.False(t, errors.Is(domain.ErrFraming, domain.ErrPayloadTooLarge))
}
