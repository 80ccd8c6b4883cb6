package config

// loader.go - configuration loading from files and environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (LoadFromEnv)
//   3. YAML config file  (LoadFile)
//   4. Defaults   (defaults.go)

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"rcpc/internal/protocol"
)

// ── YAML file ────────────────────────────────────────────────────────

// LoadFile overlays the YAML document at path onto cfg.  Keys absent
// from the file keep their current value; unknown keys are an error so
// typos do not go unnoticed.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	return decodeYAML(cfg, data, path)
}

func decodeYAML(cfg *Config, data []byte, name string) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the RCP_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive) and their negations
// "0", "false", "no".  Durations accept Go syntax ("10s") or a bare
// number of seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("RCP_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("RCP_PORT"); v > 0 {
		cfg.Port = v
	}
	if v := os.Getenv("RCP_CLIENT_NAME"); v != "" {
		cfg.ClientName = v
	}
	if v := os.Getenv("RCP_CLIENT_ID"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			cfg.ClientID = id
		}
	}
	if v := os.Getenv("RCP_AUTH_METHOD"); v != "" {
		if m, err := protocol.ParseAuthMethod(v); err == nil {
			cfg.AuthMethod = m
		} else {
			cfg.AuthMethod = protocol.AuthMethod(v) // rejected by Validate
		}
	}
	if v := os.Getenv("RCP_PSK"); v != "" {
		cfg.PSK = v
	}

	// Lifecycle
	if v := envDuration("RCP_TIMEOUT"); v > 0 {
		cfg.ConnTimeout = v
	}
	if v := envDuration("RCP_KEEP_ALIVE"); v > 0 {
		cfg.KeepAliveInterval = v
	}
	if b, ok := envBool("RCP_AUTO_RECONNECT"); ok {
		cfg.AutoReconnect = b
	}
	if v := envDuration("RCP_RECONNECT_DELAY"); v > 0 {
		cfg.ReconnectDelay = v
	}
	if v := envInt("RCP_MAX_RECONNECT_ATTEMPTS"); v > 0 {
		cfg.MaxReconnectAttempts = v
	}

	// SSH tunnel
	if v := os.Getenv("RCP_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("RCP_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if b, ok := envBool("RCP_SSH_PASSWORD"); ok {
		cfg.SSHPassword = b
	}
	if b, ok := envBool("RCP_SSH_AGENT"); ok {
		cfg.UseSSHAgent = b
	}
	if b, ok := envBool("RCP_STRICT_HOSTKEY"); ok {
		cfg.StrictHostKey = b
	}
	if v := os.Getenv("RCP_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Session
	if v := os.Getenv("RCP_SERVICES"); v != "" {
		cfg.Services = splitList(v)
	}

	// Output
	if v := envInt("RCP_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) (value, ok bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	}
	return false, false
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil {
		return secondsDuration(n)
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
