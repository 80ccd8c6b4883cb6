// Package service implements the per-service side of the client: the
// service kinds a client can subscribe to, the handle callers use to
// talk to a subscribed service, the registry that keeps at most one
// subscription per kind, and the worker that drives each service.
package service

import (
	"fmt"
	"strconv"
	"strings"

	"rcpc/internal/protocol"
)

// Kind identifies a service.  The six well-known kinds are constants;
// Custom builds a kind for an application-defined subscription command.
// Kind is comparable and is used as the registry key.
type Kind uint16

const (
	Display Kind = iota + 1
	Input
	Audio
	Clipboard
	FileTransfer
	App
)

const customBit Kind = 0x100

// Custom returns the kind for a custom service whose subscription
// command is id.
func Custom(id uint8) Kind { return customBit | Kind(id) }

// IsCustom reports whether k was built by Custom.
func (k Kind) IsCustom() bool { return k&customBit != 0 }

// CustomID returns the subscription command of a custom kind.
func (k Kind) CustomID() uint8 { return uint8(k) }

// Name returns the wire name of the kind, sent as the subscription
// payload.  All custom kinds share the name "custom".
func (k Kind) Name() string {
	switch k {
	case Display:
		return "display"
	case Input:
		return "input"
	case Audio:
		return "audio"
	case Clipboard:
		return "clipboard"
	case FileTransfer:
		return "file-transfer"
	case App:
		return "app"
	}
	if k.IsCustom() {
		return "custom"
	}
	return "unknown"
}

// SubscriptionCommand returns the command used to subscribe to k.
// App has no dedicated command and uses the generic subscription.
func (k Kind) SubscriptionCommand() protocol.Command {
	switch k {
	case Display:
		return protocol.CmdSubscribeDisplay
	case Input:
		return protocol.CmdSubscribeInput
	case Audio:
		return protocol.CmdSubscribeAudio
	case Clipboard:
		return protocol.CmdSubscribeClipboard
	case FileTransfer:
		return protocol.CmdSubscribeFileTransfer
	}
	if k.IsCustom() {
		return protocol.Command(k.CustomID())
	}
	return protocol.CmdServiceSubscribe
}

func (k Kind) String() string {
	if k.IsCustom() {
		return "custom:" + strconv.Itoa(int(k.CustomID()))
	}
	return k.Name()
}

// BuiltinKinds lists the well-known kinds in declaration order.
func BuiltinKinds() []Kind {
	return []Kind{Display, Input, Audio, Clipboard, FileTransfer, App}
}

// ParseKind maps a name back to its kind.  It accepts the six
// well-known names case-insensitively, plus "custom:<id>".
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, k := range BuiltinKinds() {
		if k.Name() == name {
			return k, nil
		}
	}
	if rest, ok := strings.CutPrefix(name, "custom:"); ok {
		id, err := strconv.ParseUint(rest, 0, 8)
		if err == nil {
			return Custom(uint8(id)), nil
		}
	}
	return 0, fmt.Errorf("unknown service %q", s)
}
