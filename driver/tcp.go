package driver

import (
	"fmt"
	"net"
	"time"
)

const (
	dialTimeout  = 5 * time.Second
	writeTimeout = 2 * time.Second
)

// TCPPort carries the serial protocol over a TCP connection, for
// serial-to-Ethernet bridges and `psu simulate`.
type TCPPort struct {
	conn    net.Conn
	address string
}

var _ Port = (*TCPPort)(nil)

// OpenTCP dials a serial bridge at address (host:port).
func OpenTCP(address string) (*TCPPort, error) {
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return &TCPPort{conn: conn, address: address}, nil
}

func (t *TCPPort) Write(p []byte) (int, error) {
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return 0, err
	}
	return t.conn.Write(p)
}

func (t *TCPPort) Close() error {
	return t.conn.Close()
}

func (t *TCPPort) Name() string {
	return tcpScheme + t.address
}
