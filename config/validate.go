package config

import (
	rcperr "rcpc/internal/errors"
	"rcpc/internal/protocol"
	"rcpc/internal/service"
)

// Validate checks that the configuration is internally consistent.
// Auth methods other than PSK pass validation; they are rejected by
// the server handshake instead.
func (c *Config) Validate() error {
	if c.Host == "" {
		return &rcperr.ConfigError{
			Field:   "host",
			Message: "server host is required",
			Hint:    "pass -H <host> or a connection string such as rcp://host:8716",
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &rcperr.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "port out of range 1-65535",
		}
	}
	if _, err := protocol.ParseAuthMethod(string(c.AuthMethod)); err != nil {
		return &rcperr.ConfigError{
			Field:   "auth-method",
			Value:   c.AuthMethod,
			Message: err.Error(),
			Hint:    "supported: psk, public-key, password, none",
		}
	}
	if c.ConnTimeout <= 0 {
		return &rcperr.ConfigError{
			Field:   "timeout",
			Value:   c.ConnTimeout,
			Message: "connection timeout must be positive",
		}
	}
	if c.KeepAliveInterval < 0 {
		return &rcperr.ConfigError{
			Field:   "keep-alive",
			Value:   c.KeepAliveInterval,
			Message: "keep-alive interval cannot be negative",
		}
	}
	if c.QueueCapacity < 1 {
		return &rcperr.ConfigError{
			Field:   "queue-capacity",
			Value:   c.QueueCapacity,
			Message: "service queue capacity must be at least 1",
		}
	}
	for _, name := range c.Services {
		if _, err := service.ParseKind(name); err != nil {
			return &rcperr.ConfigError{
				Field:   "service",
				Value:   name,
				Message: err.Error(),
				Hint:    "known services: display, input, audio, clipboard, file-transfer, app",
			}
		}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &rcperr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: "tunnel host is required",
		}
	}
	return nil
}
