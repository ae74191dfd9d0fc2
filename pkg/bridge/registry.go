package bridge

import (
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Registry maps correlation ids to pending waiters. It is the only piece
// of shared mutable state between concurrent dispatch calls and the reply
// listener. The lock guards the map mutation only; waiters are settled
// after the entry has been removed, outside the lock.
type Registry struct {
	mu      sync.Mutex
	waiters map[string]*Waiter
}

func NewRegistry() *Registry {
	return &Registry{waiters: make(map[string]*Waiter)}
}

// Register creates a waiter for the given correlation id. A collision is
// a fatal programmer error and is reported loudly rather than silently
// overwriting the existing waiter.
func (r *Registry) Register(id string) (*Waiter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.waiters[id]; exists {
		log.WithFields(log.Fields{"correlationId": id}).
			Error("Correlation id collision detected")
		return nil, ErrDuplicateCorrelationID
	}

	w := newWaiter(id)
	r.waiters[id] = w
	return w, nil
}

// take removes and returns the waiter for id, or nil if absent.
func (r *Registry) take(id string) *Waiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.waiters[id]
	if !ok {
		return nil
	}
	delete(r.waiters, id)
	return w
}

// Resolve settles the waiter registered under id with data. A reply for
// an unknown id (late, duplicate, or already timed out) is logged and
// dropped; that no-op is the system's only cancellation mechanism.
func (r *Registry) Resolve(id string, data json.RawMessage) bool {
	w := r.take(id)
	if w == nil {
		log.WithFields(log.Fields{"correlationId": id}).
			Debug("Dropping reply without pending waiter")
		return false
	}
	w.settle(data, nil)
	return true
}

// Reject settles the waiter registered under id with err. Unknown ids
// are dropped the same way as in Resolve.
func (r *Registry) Reject(id string, err error) bool {
	w := r.take(id)
	if w == nil {
		log.WithFields(log.Fields{"correlationId": id}).
			Debug("Dropping rejection without pending waiter")
		return false
	}
	w.settle(nil, err)
	return true
}

// Expire is invoked by the dispatcher's timer. If the waiter is still
// pending it is removed and settled with ErrTimeout; if it has already
// been resolved this is a no-op.
func (r *Registry) Expire(id string) bool {
	w := r.take(id)
	if w == nil {
		return false
	}
	log.WithFields(log.Fields{"correlationId": id}).
		Warn("Request timed out waiting for reply")
	w.settle(nil, ErrTimeout)
	return true
}

// FailAll drains the registry and settles every pending waiter with err.
// Wired to transport disconnect hooks so that a connection loss produces
// prompt, accurate diagnostics instead of silent timeouts.
func (r *Registry) FailAll(err error) {
	r.mu.Lock()
	drained := r.waiters
	r.waiters = make(map[string]*Waiter)
	r.mu.Unlock()

	if len(drained) > 0 {
		log.WithFields(log.Fields{"pending": len(drained)}).
			Warn("Failing all pending waiters: ", err)
	}
	for _, w := range drained {
		w.settle(nil, err)
	}
}

// Len reports the number of pending waiters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}
