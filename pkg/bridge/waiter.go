package bridge

import (
	"context"
	"encoding/json"
	"sync"
)

// Waiter is the in-memory record of a not-yet-settled request. It is
// settled exactly once, by whichever of resolve, reject or expiry comes
// first; later settlements are ignored.
type Waiter struct {
	id   string
	done chan struct{}
	once sync.Once

	data json.RawMessage
	err  error
}

func newWaiter(id string) *Waiter {
	return &Waiter{id: id, done: make(chan struct{})}
}

// CorrelationID returns the correlation id this waiter is registered under.
func (w *Waiter) CorrelationID() string { return w.id }

func (w *Waiter) settle(data json.RawMessage, err error) {
	w.once.Do(func() {
		w.data = data
		w.err = err
		close(w.done)
	})
}

// Done is closed once the waiter has been settled.
func (w *Waiter) Done() <-chan struct{} { return w.done }

// Wait blocks until the waiter settles or ctx is cancelled.
func (w *Waiter) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-w.done:
		return w.data, w.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
