package transport

import (
	"context"
	"net"
	"time"
)

// TCPDialer establishes plain TCP connections with Nagle disabled,
// since RCP frames are small and latency-sensitive.
type TCPDialer struct {
	Timeout   time.Duration
	KeepAlive time.Duration // TCP keep-alive period (0 = OS default)
}

// Dial connects to address over TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}

	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true) //nolint:errcheck
	}
	return conn, nil
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }
