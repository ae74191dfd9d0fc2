// Package transporttest provides an in-memory Transport for exercising the
// bridge, responder and gateway without a running broker.
package transporttest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/C0kke/FitFashion/pkg/transport"
)

// InMem routes published bodies straight to the handler subscribed on the
// matching address, each on its own goroutine to mimic broker delivery.
type InMem struct {
	mu       sync.Mutex
	handlers map[string]transport.Handler
	down     bool
	autoName int

	published int64
	acked     int64
}

func New() *InMem {
	return &InMem{handlers: make(map[string]transport.Handler)}
}

// SetDown makes Publish and Subscribe fail with transport.ErrNotReady,
// simulating a lost broker connection.
func (t *InMem) SetDown(down bool) {
	t.mu.Lock()
	t.down = down
	t.mu.Unlock()
}

func (t *InMem) Publish(ctx context.Context, destination string, body []byte) error {
	t.mu.Lock()
	if t.down {
		t.mu.Unlock()
		return transport.ErrNotReady
	}
	h := t.handlers[destination]
	t.mu.Unlock()

	atomic.AddInt64(&t.published, 1)
	if h == nil {
		// No consumer; the broker would buffer, we drop. Callers relying
		// on a reply will observe a timeout, as with a dead worker.
		return nil
	}

	d := transport.NewDelivery(append([]byte(nil), body...), func() error {
		atomic.AddInt64(&t.acked, 1)
		return nil
	})
	go h(d)
	return nil
}

func (t *InMem) Subscribe(address string, h transport.Handler) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.down {
		return "", transport.ErrNotReady
	}
	if address == "" {
		t.autoName++
		address = fmt.Sprintf("inmem.reply.%d", t.autoName)
	}
	t.handlers[address] = h
	return address, nil
}

func (t *InMem) Close() error { return nil }

// Published reports how many messages have been accepted by Publish.
func (t *InMem) Published() int64 { return atomic.LoadInt64(&t.published) }

// Acked reports how many deliveries have been acknowledged.
func (t *InMem) Acked() int64 { return atomic.LoadInt64(&t.acked) }
