// Package session holds the client's connection lifecycle state: the
// current phase and the server-issued session record.
//
// State is shared by the client facade, the inbound router and every
// service worker.  Reads take the shared lock; transitions take the
// exclusive lock only for the duration of the compare-and-set, never
// across network I/O.
package session

import (
	"sync"

	"rcpc/internal/protocol"
)

// Phase is a step in the connection lifecycle.
type Phase int

const (
	Disconnected Phase = iota
	Connecting
	Connected
	Authenticating
	Ready
	Closing
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Authenticating:
		return "Authenticating"
	case Ready:
		return "Ready"
	case Closing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// State is the shared phase and session record for one client.
// The zero value is Disconnected with no session.
type State struct {
	mu    sync.RWMutex
	phase Phase
	info  *protocol.SessionInfo
}

// New returns a Disconnected state.
func New() *State {
	return &State{}
}

// Phase returns the current phase.
func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Is reports whether the current phase is p.
func (s *State) Is(p Phase) bool {
	return s.Phase() == p
}

// Set moves unconditionally to p.
func (s *State) Set(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// Transition moves from -> to only when the current phase is from.
// It returns the phase observed before the call and whether the
// transition happened.
func (s *State) Transition(from, to Phase) (Phase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.phase
	if prev != from {
		return prev, false
	}
	s.phase = to
	return prev, true
}

// TransitionFrom moves to `to` when the current phase is any of from.
func (s *State) TransitionFrom(to Phase, from ...Phase) (Phase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.phase
	for _, f := range from {
		if prev == f {
			s.phase = to
			return prev, true
		}
	}
	return prev, false
}

// SessionInfo returns a copy of the stored session record, or nil.
func (s *State) SessionInfo() *protocol.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.Clone()
}

// Establish stores info and moves Authenticating -> Ready in one
// step, so no reader ever observes Ready without a session record.
// It reports false, storing nothing, when the phase has moved on.
func (s *State) Establish(info *protocol.SessionInfo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Authenticating {
		return false
	}
	s.info = info.Clone()
	s.phase = Ready
	return true
}

// ClearSession drops the session record without touching the phase.
func (s *State) ClearSession() {
	s.mu.Lock()
	s.info = nil
	s.mu.Unlock()
}

// Reset drops the session record and returns to Disconnected.
func (s *State) Reset() {
	s.mu.Lock()
	s.info = nil
	s.phase = Disconnected
	s.mu.Unlock()
}

// Drop moves from -> Disconnected and drops the session record in one
// step.  It reports whether the phase was from.
func (s *State) Drop(from Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != from {
		return false
	}
	s.phase = Disconnected
	s.info = nil
	return true
}
