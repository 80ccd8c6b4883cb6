package protocol

import "fmt"

// Command is the one-byte command identifier carried by every frame.
type Command uint8

const (
	CmdAuth      Command = 0x01
	CmdHeartbeat Command = 0x02
	CmdError     Command = 0x03
	CmdAck       Command = 0x04

	// CmdServiceSubscribe is the generic subscription request, used by
	// services without a dedicated subscription command.
	CmdServiceSubscribe      Command = 0x10
	CmdSubscribeDisplay      Command = 0x11
	CmdSubscribeInput        Command = 0x12
	CmdSubscribeAudio        Command = 0x13
	CmdSubscribeClipboard    Command = 0x14
	CmdSubscribeFileTransfer Command = 0x15
	CmdStreamFrame           Command = 0x20
	CmdDisplayInfo           Command = 0x21
	CmdLaunchApp             Command = 0x40
)

var commandNames = map[Command]string{
	CmdAuth:                  "AUTH",
	CmdHeartbeat:             "HEARTBEAT",
	CmdError:                 "ERROR",
	CmdAck:                   "ACK",
	CmdServiceSubscribe:      "SERVICE_SUBSCRIBE",
	CmdSubscribeDisplay:      "SUBSCRIBE_DISPLAY",
	CmdSubscribeInput:        "SUBSCRIBE_INPUT",
	CmdSubscribeAudio:        "SUBSCRIBE_AUDIO",
	CmdSubscribeClipboard:    "SUBSCRIBE_CLIPBOARD",
	CmdSubscribeFileTransfer: "SUBSCRIBE_FILE_TRANSFER",
	CmdStreamFrame:           "STREAM_FRAME",
	CmdDisplayInfo:           "DISPLAY_INFO",
	CmdLaunchApp:             "LAUNCH_APP",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", uint8(c))
}
