package service

import (
	"context"

	rcperr "rcpc/internal/errors"
	"rcpc/internal/protocol"
	"rcpc/util"
)

var unknownCommand = []byte("Unknown command")

func ack() *protocol.Frame { return protocol.NewFrame(protocol.CmdAck, nil) }

func reject() *protocol.Frame {
	return protocol.NewFrame(protocol.CmdError, append([]byte(nil), unknownCommand...))
}

// DisplayService receives screen data.  Display info is acknowledged,
// stream frames need no answer, and anything else is rejected.
type DisplayService struct {
	log *util.Logger
}

// NewDisplayService is the Display factory.
func NewDisplayService(log *util.Logger) Service {
	return &DisplayService{log: log}
}

func (s *DisplayService) Start(context.Context) error {
	s.log.Verbose("starting display service")
	return nil
}

func (s *DisplayService) Stop(context.Context) error {
	s.log.Verbose("stopping display service")
	return nil
}

func (s *DisplayService) HandleMessage(_ context.Context, env Envelope) error {
	s.log.Debug("display service handling message %s", env.ID)

	switch env.Frame.Command {
	case protocol.CmdDisplayInfo:
		env.Respond(ack())
	case protocol.CmdStreamFrame:
	default:
		s.log.Verbose("unknown command for display service: %s", env.Frame.Command)
		env.Respond(reject())
	}
	return nil
}

// ackService acknowledges every message.  Input, clipboard and file
// transfer share it.
type ackService struct {
	name string
	log  *util.Logger
}

func newAckService(name string, log *util.Logger) *ackService {
	return &ackService{name: name, log: log}
}

func (s *ackService) Start(context.Context) error {
	s.log.Verbose("starting %s service", s.name)
	return nil
}

func (s *ackService) Stop(context.Context) error {
	s.log.Verbose("stopping %s service", s.name)
	return nil
}

func (s *ackService) HandleMessage(_ context.Context, env Envelope) error {
	s.log.Debug("%s service handling message %s", s.name, env.ID)
	env.Respond(ack())
	return nil
}

// AppService launches applications on the server.  A launch request
// is relayed by the worker and held until the server's Ack or Error
// comes back through the router; replies answer pending launches in
// the order they were sent.
type AppService struct {
	log     *util.Logger
	pending []Envelope
}

// NewAppService is the App factory.
func NewAppService(log *util.Logger) Service {
	return &AppService{log: log}
}

func (s *AppService) Start(context.Context) error {
	s.log.Verbose("starting app service")
	return nil
}

func (s *AppService) Stop(context.Context) error {
	s.log.Verbose("stopping app service")
	for _, env := range s.pending {
		env.Fail(rcperr.Service("app service stopped before the launch was answered").
			WithCause(rcperr.ErrServiceClosed))
	}
	s.pending = nil
	return nil
}

func (s *AppService) HandleMessage(_ context.Context, env Envelope) error {
	s.log.Debug("app service handling message %s", env.ID)

	if env.Inbound {
		switch env.Frame.Command {
		case protocol.CmdAck, protocol.CmdError:
			s.answer(env.Frame)
		default:
			s.log.Verbose("ignoring %s from server", env.Frame.Command)
		}
		return nil
	}

	if env.Frame.Command == protocol.CmdLaunchApp {
		s.log.Verbose("handling launch request")
		if env.ExpectsReply() {
			s.pending = append(s.pending, env)
		}
		return nil
	}
	s.log.Verbose("unknown command for app service: %s", env.Frame.Command)
	env.Respond(reject())
	return nil
}

// answer hands the server's reply to the oldest launch still waiting.
// Requests whose relay failed already hold an error and are skipped.
func (s *AppService) answer(f *protocol.Frame) {
	for len(s.pending) > 0 {
		env := s.pending[0]
		s.pending = s.pending[1:]
		if env.Respond(f) {
			return
		}
	}
	s.log.Verbose("no launch waiting for %s", f.Command)
}
