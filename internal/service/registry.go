package service

import (
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	rcperr "rcpc/internal/errors"
)

// OpenFunc performs a subscription for kind.  It returns the new
// handle and a launch function that starts the handle's worker.  The
// registry calls launch exactly once, after the handle is recorded.
type OpenFunc func(kind Kind) (h Handle, launch func(), err error)

// Registry maps service kinds to live handles.  There is at most one
// live subscription per kind: concurrent subscribers of the same kind
// share a single OpenFunc call and receive copies of one handle.
type Registry struct {
	mu      sync.RWMutex
	handles map[Kind]Handle
	open    bool

	flight singleflight.Group
}

// NewRegistry returns a sealed, empty registry.  Call Open before
// subscribing.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[Kind]Handle)}
}

// Open allows subscriptions.
func (r *Registry) Open() {
	r.mu.Lock()
	r.open = true
	r.mu.Unlock()
}

// IsOpen reports whether subscriptions are currently allowed.
func (r *Registry) IsOpen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.open
}

// Get returns the live handle for kind.  A handle whose worker already
// ended (its Start hook failed) is dropped so kind can be subscribed
// again.
func (r *Registry) Get(kind Kind) (Handle, bool) {
	r.mu.RLock()
	h, ok := r.handles[kind]
	r.mu.RUnlock()
	if !ok {
		return Handle{}, false
	}
	if !h.Closed() {
		return h, true
	}

	r.mu.Lock()
	if cur, ok := r.handles[kind]; ok && cur.SameQueue(h) {
		delete(r.handles, kind)
	}
	r.mu.Unlock()
	return Handle{}, false
}

// GetOrOpen returns the live handle for kind, calling open when there
// is none.  created reports whether this call's open produced the
// handle (false for callers that joined a concurrent subscription).
func (r *Registry) GetOrOpen(kind Kind, open OpenFunc) (h Handle, created bool, err error) {
	if h, ok := r.Get(kind); ok {
		return h, false, nil
	}

	// Only the caller whose function runs owns the new subscription.
	var ran bool
	v, err, _ := r.flight.Do(strconv.Itoa(int(kind)), func() (interface{}, error) {
		ran = true
		// A flight for kind may have finished between Get and Do.
		if h, ok := r.Get(kind); ok {
			return existing{h}, nil
		}
		if !r.IsOpen() {
			return nil, rcperr.ErrRegistryClosed
		}

		h, launch, err := open(kind)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if !r.open {
			h.q.close()
			return nil, rcperr.ErrRegistryClosed
		}
		r.handles[kind] = h
		// Launching under the lock orders it before any Clear.
		if launch != nil {
			launch()
		}
		return h, nil
	})
	if err != nil {
		return Handle{}, false, err
	}
	switch v := v.(type) {
	case existing:
		return v.Handle, false, nil
	case Handle:
		return v, ran, nil
	}
	return Handle{}, false, rcperr.Service("unexpected registry result")
}

type existing struct{ Handle }

// Clear seals the registry, ends every subscription and returns how
// many were ended.  Workers observe their closed queues and stop.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.open = false
	n := len(r.handles)
	for kind, h := range r.handles {
		h.q.close()
		delete(r.handles, kind)
	}
	return n
}

// Len returns the number of live subscriptions.
func (r *Registry) Len() int {
	return len(r.Kinds())
}

// Kinds returns the subscribed kinds in ascending order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	kinds := make([]Kind, 0, len(r.handles))
	for k, h := range r.handles {
		if !h.Closed() {
			kinds = append(kinds, k)
		}
	}
	r.mu.RUnlock()

	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
