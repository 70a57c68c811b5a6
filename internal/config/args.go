package config

import (
	"errors"
	"fmt"
	"strconv"
)

// Usage is printed when the positional arguments are wrong
const Usage = "Invalid usage, format: server <IP address> <TCP port> <UDP port>"

// ErrUsage is returned by ParseArgs for a malformed invocation
var ErrUsage = errors.New("invalid usage")

// ServerArgs are the positional arguments of the server binary
type ServerArgs struct {
	Host    string
	TCPPort int
	UDPPort int
}

// ParseArgs parses "<host> <tcp-port> <udp-port>"
func ParseArgs(args []string) (ServerArgs, error) {
	if len(args) != 3 {
		return ServerArgs{}, fmt.Errorf("%w: expected 3 arguments, got %d", ErrUsage, len(args))
	}

	host := args[0]
	if host == "" {
		return ServerArgs{}, fmt.Errorf("%w: empty host", ErrUsage)
	}

	tcpPort, err := parsePort(args[1])
	if err != nil {
		return ServerArgs{}, err
	}
	udpPort, err := parsePort(args[2])
	if err != nil {
		return ServerArgs{}, err
	}

	return ServerArgs{Host: host, TCPPort: tcpPort, UDPPort: udpPort}, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 0 || port > 65535 {
		return 0, fmt.Errorf("%w: invalid port %q", ErrUsage, s)
	}
	return port, nil
}

// ApplyArgs overrides the listen addresses with the positional arguments
func (c *Config) ApplyArgs(a ServerArgs) {
	c.Server.Host = a.Host
	c.Server.TCPPort = a.TCPPort
	c.Server.UDPPort = a.UDPPort
}
