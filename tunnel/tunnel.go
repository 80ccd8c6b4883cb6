// Package tunnel carries RCP connections through an SSH gateway using
// golang.org/x/crypto/ssh.  The client never talks to the gateway
// directly; transport.SSHDialer opens one forwarded stream per
// connection attempt.
package tunnel

import (
	"context"
	"net"
)

// Tunnel is an encrypted path to the network the RCP server lives on.
type Tunnel interface {
	// Connect establishes the tunnel to the gateway.
	Connect(ctx context.Context) error

	// Dial opens a forwarded stream to address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close tears down the tunnel and every stream opened through it.
	Close() error

	// IsAlive reports whether the gateway session is still up.
	IsAlive() bool
}
