package protocol

import (
	"net"
	"testing"
	"time"

	"github.com/google/uuid"

	rcperr "rcpc/internal/errors"
)

func TestSessionInfoPayload(t *testing.T) {
	in := SessionInfo{
		SessionID:   uuid.New(),
		ServerName:  "workstation",
		Permissions: []string{"display", "input"},
		ExpiresAt:   time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	data, err := Marshal(in)
	if err != nil {
		t.Fatal(err)
	}

	var out SessionInfo
	if err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.SessionID != in.SessionID || out.ServerName != in.ServerName {
		t.Errorf("got %+v, want %+v", out, in)
	}
	if !out.ExpiresAt.Equal(in.ExpiresAt) {
		t.Errorf("expires_at = %v, want %v", out.ExpiresAt, in.ExpiresAt)
	}
}

func TestMarshal_Deterministic(t *testing.T) {
	id := uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2")
	p := AuthPayload{ClientID: id, ClientName: "RCP Client", Method: AuthPreSharedKey}
	a, _ := Marshal(p)
	b, _ := Marshal(p)
	if string(a) != string(b) {
		t.Error("encoding is not deterministic")
	}
}

func TestUnmarshal_Garbage(t *testing.T) {
	var c AuthChallenge
	err := Unmarshal([]byte{0xff, 0x00, 0x13}, &c)
	if !rcperr.IsKind(err, rcperr.KindProtocol) {
		t.Errorf("got %v, want protocol error", err)
	}
}

func TestParseAuthMethod(t *testing.T) {
	tests := []struct {
		in   string
		want AuthMethod
		ok   bool
	}{
		{"psk", AuthPreSharedKey, true},
		{"Pre-Shared-Key", AuthPreSharedKey, true},
		{"password", AuthPassword, true},
		{"pubkey", AuthPublicKey, true},
		{"kerberos", "", false},
	}
	for _, tt := range tests {
		got, err := ParseAuthMethod(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseAuthMethod(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestConn_ReadWrite(t *testing.T) {
	a, b := net.Pipe()
	client, server := NewConn(a), NewConn(b)
	defer client.Close()
	defer server.Close()

	go func() {
		f, err := server.ReadFrame()
		if err != nil {
			return
		}
		server.WriteFrame(NewFrame(CmdAck, f.Payload)) //nolint:errcheck
	}()

	if err := client.WriteFrame(NewFrame(CmdHeartbeat, []byte("ping"))); err != nil {
		t.Fatal(err)
	}
	f, err := client.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if f.Command != CmdAck || string(f.Payload) != "ping" {
		t.Errorf("got %s %q", f.Command, f.Payload)
	}
}

// A reader parked in ReadFrame must not block writers.
func TestConn_WriteWhileReading(t *testing.T) {
	a, b := net.Pipe()
	client := NewConn(a)
	defer client.Close()
	defer b.Close()

	readDone := make(chan error, 1)
	go func() {
		_, err := client.ReadFrame()
		readDone <- err
	}()

	// Drain whatever the client writes on the server side.
	received := make(chan *Frame, 1)
	go func() {
		f, err := Decode(b)
		if err == nil {
			received <- f
		}
	}()

	writeDone := make(chan error, 1)
	go func() { writeDone <- client.WriteFrame(NewFrame(CmdHeartbeat, nil)) }()

	select {
	case err := <-writeDone:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("write blocked behind pending read")
	}
	<-received

	client.Close()
	select {
	case err := <-readDone:
		if err == nil {
			t.Error("read should fail after close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not unblock the reader")
	}
}

func TestConn_Phase(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	c := NewConn(a)
	if c.Phase() != PhaseConnected {
		t.Errorf("initial phase = %s", c.Phase())
	}
	c.SetPhase(PhaseAuthenticating)
	if c.Phase() != PhaseAuthenticating {
		t.Errorf("phase = %s", c.Phase())
	}
	c.Close()
	if c.Phase() != PhaseClosed {
		t.Errorf("phase after close = %s", c.Phase())
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
