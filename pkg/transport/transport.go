package transport

import (
	"context"
	"errors"
	"sync"
)

// ErrNotReady is returned by Publish and Subscribe while the underlying
// broker connection is not established. Callers must not block waiting
// for a connection.
var ErrNotReady = errors.New("transport: not connected")

// Delivery is a single inbound message handed to a subscription handler.
// Ack must be called after the message has been processed; additional
// calls are no-ops.
type Delivery struct {
	Body []byte

	once sync.Once
	ack  func() error
}

// NewDelivery wraps a raw message body and its acknowledgment function.
// Transports with auto-commit semantics may pass a nil ack.
func NewDelivery(body []byte, ack func() error) *Delivery {
	return &Delivery{Body: body, ack: ack}
}

// Ack acknowledges the delivery to the broker exactly once.
func (d *Delivery) Ack() error {
	var err error
	d.once.Do(func() {
		if d.ack != nil {
			err = d.ack()
		}
	})
	return err
}

// Handler processes one delivery. It is invoked from the transport's
// consumer goroutine and must not panic.
type Handler func(d *Delivery)

// Transport moves opaque envelopes between the gateway and the workers.
// One instance owns one broker connection shared by all callers; the
// connection must not be closed or reconfigured by users of the interface.
type Transport interface {
	// Publish sends body to the named queue or topic.
	Publish(ctx context.Context, destination string, body []byte) error

	// Subscribe attaches h to the named queue or topic and returns the
	// concrete address of the subscription. An empty address asks the
	// transport for a private, transport-generated one where supported.
	Subscribe(address string, h Handler) (string, error)

	Close() error
}
