package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rcpc/client"
	rcperr "rcpc/internal/errors"
	"rcpc/internal/protocol"
	"rcpc/internal/service"
	"rcpc/util"
)

// Launch asks the server to start a program through the App service.
type Launch struct {
	Command string
	Args    []string
	Timeout time.Duration // how long to wait for the reply; 0 waits on ctx only
	Logger  *util.Logger
}

// Handle subscribes to App, sends one LaunchApp request and waits for
// the server's Ack or Error.
func (l *Launch) Handle(ctx context.Context, c *client.Client) error {
	if l.Command == "" {
		return fmt.Errorf("no command specified for exec mode")
	}

	app, err := c.SubscribeService(service.App)
	if err != nil {
		return err
	}

	req, err := protocol.EncodeFrame(protocol.CmdLaunchApp, protocol.LaunchRequest{
		Command: l.Command,
		Args:    l.Args,
	})
	if err != nil {
		return err
	}

	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	l.Logger.Info("executing command: %s %v", l.Command, l.Args)
	reply, err := app.Request(ctx, req)
	if errors.Is(err, context.DeadlineExceeded) {
		return rcperr.Ef(rcperr.KindTimeout, "no reply to launch %q", l.Command).WithCause(err)
	}
	if err != nil {
		return err
	}

	switch reply.Command {
	case protocol.CmdAck:
		l.Logger.Info("server accepted launch of %s", l.Command)
		return nil
	case protocol.CmdError:
		return rcperr.Ef(rcperr.KindService, "launch %q rejected: %s", l.Command, reply.Payload)
	default:
		return rcperr.Ef(rcperr.KindProtocol, "unexpected reply to launch: %s", reply.Command)
	}
}
