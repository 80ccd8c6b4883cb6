package service

import (
	"context"

	"rcpc/util"
)

// Service is the behaviour behind a subscription.  A worker calls
// Start once, HandleMessage for each queued envelope, and Stop once
// when the subscription ends (unless Start failed).
//
// HandleMessage answers envelopes that expect a reply, either before
// it returns or later while handling another envelope (for example the
// server's answer arriving inbound).  For caller requests the answer
// is held back until the frame has been relayed to the server.  An
// error it returns is logged and the worker moves on to the next
// envelope.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	HandleMessage(ctx context.Context, env Envelope) error
}

// Factory builds a fresh Service instance for one subscription.
type Factory func(log *util.Logger) Service

// Factories maps kinds to the factory used when subscribing.
type Factories map[Kind]Factory

// DefaultFactories returns the built-in implementations.  Audio has
// none and fails to subscribe unless the caller registers one.
func DefaultFactories() Factories {
	return Factories{
		Display:      NewDisplayService,
		Input:        func(log *util.Logger) Service { return newAckService("input", log) },
		Clipboard:    func(log *util.Logger) Service { return newAckService("clipboard", log) },
		FileTransfer: func(log *util.Logger) Service { return newAckService("file transfer", log) },
		App:          NewAppService,
	}
}

// Lookup returns the factory for kind.
func (f Factories) Lookup(kind Kind) (Factory, bool) {
	fn, ok := f[kind]
	return fn, ok && fn != nil
}
