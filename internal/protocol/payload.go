package protocol

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuthMethod is the authentication scheme a client declares in its
// Auth request.
type AuthMethod string

const (
	AuthPreSharedKey AuthMethod = "psk"
	AuthPublicKey    AuthMethod = "public-key"
	AuthPassword     AuthMethod = "password"
	AuthNone         AuthMethod = "none"
)

// ParseAuthMethod accepts the canonical names plus a few aliases.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "psk", "pre-shared-key", "presharedkey":
		return AuthPreSharedKey, nil
	case "public-key", "publickey", "pubkey":
		return AuthPublicKey, nil
	case "password":
		return AuthPassword, nil
	case "none":
		return AuthNone, nil
	}
	return "", fmt.Errorf("unknown auth method %q", s)
}

// AuthPayload is the client's opening Auth request.
type AuthPayload struct {
	ClientID   uuid.UUID  `cbor:"client_id"`
	ClientName string     `cbor:"client_name"`
	Method     AuthMethod `cbor:"auth_method"`
	Data       []byte     `cbor:"auth_data"`
}

// AuthChallenge is the server's reply to an AuthPayload.
type AuthChallenge struct {
	Challenge []byte `cbor:"challenge"`
	Salt      []byte `cbor:"salt"`
}

// AuthResponse answers an AuthChallenge.
type AuthResponse struct {
	ClientID uuid.UUID `cbor:"client_id"`
	Response []byte    `cbor:"response"`
}

// SessionInfo is issued by the server once authentication succeeds.
// The client stores it for the lifetime of the session and never
// interprets it beyond display.
type SessionInfo struct {
	SessionID   uuid.UUID `cbor:"session_id"`
	ServerName  string    `cbor:"server_name,omitempty"`
	Permissions []string  `cbor:"permissions,omitempty"`
	ExpiresAt   time.Time `cbor:"expires_at"`
}

// Clone returns a copy that shares nothing with s.
func (s *SessionInfo) Clone() *SessionInfo {
	if s == nil {
		return nil
	}
	out := *s
	out.Permissions = append([]string(nil), s.Permissions...)
	return &out
}

// LaunchRequest asks the App service to start a program on the server.
type LaunchRequest struct {
	Command string   `cbor:"command"`
	Args    []string `cbor:"args,omitempty"`
}
