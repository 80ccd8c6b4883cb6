package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	rcperr "rcpc/internal/errors"
	"rcpc/util"
)

const (
	// HeaderSize is the length prefix plus the command byte.
	HeaderSize = 5

	// MaxFrameSize bounds the length prefix (command + payload).
	MaxFrameSize = 16 << 20
)

// Frame is one protocol message: a command identifier plus payload.
type Frame struct {
	Command Command
	Payload []byte
}

// NewFrame returns a frame for cmd carrying payload.
func NewFrame(cmd Command, payload []byte) *Frame {
	return &Frame{Command: cmd, Payload: payload}
}

// Clone returns a deep copy of f.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	out := &Frame{Command: f.Command}
	if f.Payload != nil {
		out.Payload = append([]byte(nil), f.Payload...)
	}
	return out
}

func (f *Frame) String() string {
	return fmt.Sprintf("%s(%d bytes)", f.Command, len(f.Payload))
}

// Encode writes f as a single buffer: length(4, big-endian) | command | payload.
// The length counts the command byte and the payload, not itself.
func Encode(w io.Writer, f *Frame) error {
	length := 1 + len(f.Payload)
	if length > MaxFrameSize {
		return rcperr.Protocol(fmt.Sprintf("frame too large (%d bytes)", length))
	}

	size := HeaderSize + len(f.Payload)
	buf, release := util.FrameBuffer(size)
	defer release()
	binary.BigEndian.PutUint32(buf[0:4], uint32(length))
	buf[4] = byte(f.Command)
	copy(buf[HeaderSize:], f.Payload)

	_, err := w.Write(buf)
	return err
}

// Decode reads one frame from r.  A clean end of stream before the
// first header byte is reported as io.EOF; a stream cut inside a frame
// is io.ErrUnexpectedEOF.
func Decode(r io.Reader) (*Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:4]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[0:4])
	if length < 1 || length > MaxFrameSize {
		return nil, rcperr.Protocol(fmt.Sprintf("invalid frame size %d", length))
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	f := &Frame{Command: Command(body[0])}
	if length > 1 {
		f.Payload = body[1:]
	}
	return f, nil
}
