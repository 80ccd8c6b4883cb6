package service

import (
	"context"
	"time"

	rcperr "rcpc/internal/errors"
	"rcpc/internal/metrics"
	"rcpc/internal/protocol"
	"rcpc/util"
)

// FrameWriter is the write half of the connection.
type FrameWriter interface {
	WriteFrame(f *protocol.Frame) error
}

// stopTimeout bounds the Stop hook once the worker context is gone.
const stopTimeout = 5 * time.Second

// Worker drives one subscribed service: it owns the service instance
// and consumes the handle's queue until the subscription ends.
type Worker struct {
	Handle  Handle
	Service Service
	Writer  FrameWriter

	// Ready reports whether the client is still in the Ready phase.
	// The worker exits as soon as it returns false.
	Ready func() bool

	Logger  *util.Logger
	Metrics *metrics.Collector

	held []heldReply
}

// heldReply links a reply slot the service kept past HandleMessage to
// the caller still waiting on it.
type heldReply struct {
	from chan Reply
	to   Envelope
}

// Run calls Start, processes envelopes until the queue is closed, ctx
// is cancelled or the client leaves Ready, then calls Stop.  Failures
// are logged, never returned, so one service cannot abort the others.
func (w *Worker) Run(ctx context.Context) error {
	log := w.Logger
	kind := w.Handle.Kind()
	log.Verbose("starting service handler for %s", kind)

	if err := w.Service.Start(ctx); err != nil {
		log.Error("failed to start service %s: %v", kind, err)
		w.Metrics.RecordError("service start: " + err.Error())
		w.Handle.q.close()
		return nil
	}
	w.Metrics.ServiceStarted()

	defer func() {
		w.Handle.q.close()
		for _, h := range w.held {
			h.to.Fail(rcperr.Service("service " + kind.Name() + " stopped before the server answered").
				WithCause(rcperr.ErrServiceClosed))
		}
		w.held = nil
		log.Verbose("service handler for %s stopped", kind)

		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
		defer cancel()
		if err := w.Service.Stop(stopCtx); err != nil {
			log.Error("error stopping service %s: %v", kind, err)
		}
		w.Metrics.ServiceStopped()
	}()

	for {
		select {
		case <-w.Handle.q.closed:
			return nil
		case <-ctx.Done():
			return nil
		case env := <-w.Handle.q.ch:
			if w.Ready != nil && !w.Ready() {
				env.Fail(rcperr.Session("client is no longer ready").WithCause(rcperr.ErrServiceClosed))
				return nil
			}
			w.process(ctx, log, env)
			w.forwardHeld()
		}
	}
}

func (w *Worker) process(ctx context.Context, log *util.Logger, env Envelope) {
	log.Debug("received service message %s for %s", env.ID, w.Handle.Kind())

	relay := !env.Inbound && w.Writer != nil

	// A relayed request is answered only once its frame is on the wire.
	handled := env
	if relay && env.ExpectsReply() {
		handled.reply = make(chan Reply, 1)
	}

	if err := w.Service.HandleMessage(ctx, handled); err != nil {
		log.Error("error handling service message: %v", err)
		w.Metrics.RecordError("service message: " + err.Error())
		handled.Fail(err)
		env.Fail(err)
		return
	}
	if !relay {
		return
	}

	if err := w.Writer.WriteFrame(env.Frame); err != nil {
		log.Error("failed to send service frame to server: %v", err)
		w.Metrics.RecordError("service write: " + err.Error())
		failure := rcperr.Connection("failed to send service frame").WithCause(err)
		// Fill the handler's slot too, so a held copy can no longer answer.
		handled.Fail(failure)
		env.Fail(failure)
		return
	}
	w.Metrics.FrameSent(protocol.HeaderSize + len(env.Frame.Payload))

	if handled.reply != env.reply {
		select {
		case r := <-handled.reply:
			env.answer(r)
		default:
			w.held = append(w.held, heldReply{from: handled.reply, to: env})
		}
	}
}

// forwardHeld passes on answers the service gave to requests it held
// while handling later envelopes.
func (w *Worker) forwardHeld() {
	kept := w.held[:0]
	for _, h := range w.held {
		select {
		case r := <-h.from:
			h.to.answer(r)
		default:
			kept = append(kept, h)
		}
	}
	w.held = kept
}
