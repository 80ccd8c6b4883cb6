package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultHost is the server contacted when nothing else is given.
	DefaultHost = "localhost"

	// DefaultPort is the RCP server port.
	DefaultPort = 8716

	// DefaultClientName is sent in the Auth request.
	DefaultClientName = "RCP Client"

	// DefaultPSK is used by the connect command when neither a flag
	// nor the connection string supplies a key.
	DefaultPSK = "test_key"

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultKeepAliveInterval is how often the session sends a
	// heartbeat frame.
	DefaultKeepAliveInterval = 30 * time.Second

	// DefaultConnTimeout bounds the TCP (or tunnelled) dial.
	DefaultConnTimeout = 10 * time.Second

	// DefaultReconnectDelay is the first wait after a lost connection.
	DefaultReconnectDelay = 2 * time.Second

	// DefaultMaxReconnectAttempts is how many times to retry after a
	// connection loss.
	DefaultMaxReconnectAttempts = 10

	// DefaultMaxReconnectBackoff caps the exponential backoff between
	// reconnection attempts.
	DefaultMaxReconnectBackoff = 60 * time.Second

	// DefaultGracePeriod is how long Disconnect waits for the router
	// and service workers to finish.
	DefaultGracePeriod = 5 * time.Second

	// DefaultQueueCapacity is the per-service envelope queue size.
	DefaultQueueCapacity = 100
)
