package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	rcperr "rcpc/internal/errors"
	"rcpc/internal/protocol"
)

// ── Defaults ─────────────────────────────────────────────────────────

// TestDefault verifies the defaults every client starts from.
func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Host != "localhost" || cfg.Port != 8716 {
		t.Errorf("address = %s, want localhost:8716", cfg.Address())
	}
	if cfg.ClientName != "RCP Client" {
		t.Errorf("ClientName = %q", cfg.ClientName)
	}
	if cfg.AuthMethod != protocol.AuthPreSharedKey {
		t.Errorf("AuthMethod = %q", cfg.AuthMethod)
	}
	if !cfg.AutoReconnect || cfg.ReconnectDelay != 2*time.Second {
		t.Errorf("reconnect = %v / %v", cfg.AutoReconnect, cfg.ReconnectDelay)
	}
	if cfg.ConnTimeout != 10*time.Second || cfg.KeepAliveInterval != 30*time.Second {
		t.Errorf("timeouts = %v / %v", cfg.ConnTimeout, cfg.KeepAliveInterval)
	}
	if cfg.QueueCapacity != 100 {
		t.Errorf("QueueCapacity = %d", cfg.QueueCapacity)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestAddress_IPv6(t *testing.T) {
	cfg := &Config{Host: "::1", Port: 8716}
	if got := cfg.Address(); got != "[::1]:8716" {
		t.Errorf("Address = %q", got)
	}
}

// ── ParseTunnelSpec ──────────────────────────────────────────────────

func TestParseTunnelSpec(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantUser string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"full", "admin@bastion.example.com:2222", "admin", "bastion.example.com", 2222, false},
		{"no port", "root@gateway", "root", "gateway", 22, false},
		{"no user", "jump-host:2200", "", "jump-host", 2200, false},
		{"host only", "gateway.local", "", "gateway.local", 22, false},
		{"bad port", "user@host:999999", "", "", 0, true},
		{"empty", "", "", "", 0, true},
		{"colon only", ":", "", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, host, port, err := ParseTunnelSpec(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if user != tt.wantUser || host != tt.wantHost || port != tt.wantPort {
				t.Errorf("got (%q, %q, %d), want (%q, %q, %d)",
					user, host, port, tt.wantUser, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestResolveTunnel(t *testing.T) {
	cfg := Default()
	cfg.TunnelSpec = "ops@bastion:2200"
	if err := cfg.ResolveTunnel(); err != nil {
		t.Fatal(err)
	}
	if !cfg.TunnelEnabled || cfg.TunnelUser != "ops" || cfg.TunnelHost != "bastion" || cfg.TunnelPort != 2200 {
		t.Errorf("tunnel = %+v", cfg)
	}

	cfg.TunnelSpec = "bad:port:spec"
	err := cfg.ResolveTunnel()
	var ce *rcperr.ConfigError
	if !errors.As(err, &ce) || ce.Field != "tunnel" {
		t.Errorf("got %v, want tunnel ConfigError", err)
	}
}

// ── Connection strings ───────────────────────────────────────────────

func TestApplyConnectionString(t *testing.T) {
	cs, err := ParseConnectionString("alice:s3cret@desk.example.com:9000")
	if err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	cfg.ApplyConnectionString(cs)

	if cfg.Host != "desk.example.com" || cfg.Port != 9000 {
		t.Errorf("address = %s", cfg.Address())
	}
	if cfg.ClientName != "alice" || cfg.PSK != "s3cret" {
		t.Errorf("name/psk = %q / %q", cfg.ClientName, cfg.PSK)
	}

	cs, _ = ParseConnectionString("desk")
	cfg = Default()
	cfg.ApplyConnectionString(cs)
	if cfg.Port != DefaultPort || cfg.ClientName != DefaultClientName || cfg.PSK != "" {
		t.Errorf("missing parts should keep defaults: %+v", cfg)
	}
}

// ── Validation ───────────────────────────────────────────────────────

// TestValidate_ErrorMessages verifies that Validate names the field
// at fault and offers a hint where one helps.
func TestValidate_ErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantSub string
	}{
		{"empty host", func(c *Config) { c.Host = "" }, "host", "hint:"},
		{"port zero", func(c *Config) { c.Port = 0 }, "port", "out of range"},
		{"port too high", func(c *Config) { c.Port = 70000 }, "port", "out of range"},
		{"unknown auth", func(c *Config) { c.AuthMethod = "kerberos" }, "auth-method", "hint:"},
		{"zero timeout", func(c *Config) { c.ConnTimeout = 0 }, "timeout", "positive"},
		{"negative keep-alive", func(c *Config) { c.KeepAliveInterval = -time.Second }, "keep-alive", "negative"},
		{"empty queue", func(c *Config) { c.QueueCapacity = 0 }, "queue-capacity", "at least 1"},
		{"unknown service", func(c *Config) { c.Services = []string{"display", "video"} }, "service", "video"},
		{"tunnel without host", func(c *Config) { c.TunnelEnabled = true }, "tunnel", "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var ce *rcperr.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("got %v, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("field = %q, want %q", ce.Field, tt.field)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

// TestValidate_NonPSKMethodsAccepted verifies declared methods are
// only rejected later, during the handshake.
func TestValidate_NonPSKMethodsAccepted(t *testing.T) {
	for _, m := range []protocol.AuthMethod{protocol.AuthPassword, protocol.AuthPublicKey, protocol.AuthNone} {
		cfg := Default()
		cfg.AuthMethod = m
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s: %v", m, err)
		}
	}
}
