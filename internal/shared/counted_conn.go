package shared

import (
	"net"
	"sync/atomic"
)

// Traffic accumulates the bytes moved over counted connections.
type Traffic struct {
	Uplink   atomic.Uint64
	Downlink atomic.Uint64
}

// CountedConn is a net.Conn wrapper that atomically counts uplink and
// downlink bytes into a Traffic.
type CountedConn struct {
	net.Conn
	traffic *Traffic
}

// NewCountedConn wraps conn. A nil traffic returns conn unchanged.
func NewCountedConn(conn net.Conn, traffic *Traffic) net.Conn {
	if traffic == nil {
		return conn
	}
	return &CountedConn{Conn: conn, traffic: traffic}
}

// Read reads from the underlying connection and adds to the downlink count.
func (c *CountedConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.traffic.Downlink.Add(uint64(n))
	}
	return n, err
}

// Write writes to the underlying connection and adds to the uplink count.
func (c *CountedConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.traffic.Uplink.Add(uint64(n))
	}
	return n, err
}
