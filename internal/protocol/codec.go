package protocol

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"

	rcperr "rcpc/internal/errors"
)

// encMode uses Core Deterministic Encoding so the same payload always
// produces identical bytes.  uuid.UUID and other TextMarshalers are
// written as CBOR text strings.
var encMode cbor.EncMode

// decMode ignores unknown fields for forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("protocol: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("protocol: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v as a CBOR payload.
func Marshal(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, rcperr.Protocol("encoding payload").WithCause(err)
	}
	return data, nil
}

// Unmarshal decodes a CBOR payload into v.
func Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return rcperr.Protocol("decoding payload").WithCause(err)
	}
	return nil
}

// EncodeFrame marshals v and wraps it in a frame for cmd.
func EncodeFrame(cmd Command, v any) (*Frame, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	return NewFrame(cmd, data), nil
}
