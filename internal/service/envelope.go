package service

import (
	"github.com/google/uuid"

	"rcpc/internal/protocol"
)

// Reply is the single answer to a request envelope.
type Reply struct {
	Frame *protocol.Frame
	Err   error
}

// Envelope is one unit of work queued for a service worker.
//
// An envelope built by Request carries a reply slot that must be
// answered at most once; Send and router deliveries carry none.
type Envelope struct {
	ID    uuid.UUID
	Frame *protocol.Frame

	// Inbound marks frames forwarded from the server.  They are
	// handled locally and never written back to the connection.
	Inbound bool

	reply chan Reply
}

func newEnvelope(f *protocol.Frame, wantReply bool) Envelope {
	env := Envelope{ID: uuid.New(), Frame: f}
	if wantReply {
		env.reply = make(chan Reply, 1)
	}
	return env
}

// ExpectsReply reports whether a caller is waiting on this envelope.
func (e Envelope) ExpectsReply() bool { return e.reply != nil }

// Respond answers the request with f.  It reports false when there is
// no reply slot or it was already answered.
func (e Envelope) Respond(f *protocol.Frame) bool {
	return e.answer(Reply{Frame: f})
}

// Fail answers the request with err.
func (e Envelope) Fail(err error) bool {
	return e.answer(Reply{Err: err})
}

func (e Envelope) answer(r Reply) bool {
	if e.reply == nil {
		return false
	}
	select {
	case e.reply <- r:
		return true
	default:
		return false
	}
}

// Clone copies the envelope without its reply slot.  A clone is for
// inspection only and can never answer the original request.
func (e Envelope) Clone() Envelope {
	return Envelope{
		ID:      e.ID,
		Frame:   e.Frame.Clone(),
		Inbound: e.Inbound,
	}
}
