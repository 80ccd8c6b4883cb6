// Package transport opens the byte stream an RCP client speaks over:
// a plain TCP connection, or a stream forwarded through an SSH
// gateway.  What happens over the stream is the protocol layer's job.
package transport

import (
	"context"
	"net"

	"rcpc/config"
	"rcpc/tunnel"
	"rcpc/util"
)

// Dialer opens outbound connections to the RCP server.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}

// New picks the dialer cfg asks for: SSH-tunnelled when a tunnel spec
// was resolved, plain TCP otherwise.
func New(cfg *config.Config, logger *util.Logger) Dialer {
	if cfg.TunnelEnabled {
		return NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.ConnTimeout,
			KeepAlive:     cfg.KeepAliveInterval,
		}, logger)
	}
	return &TCPDialer{Timeout: cfg.ConnTimeout, KeepAlive: cfg.KeepAliveInterval}
}
