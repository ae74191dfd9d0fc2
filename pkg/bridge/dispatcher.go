package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/C0kke/FitFashion/pkg/transport"
)

// DefaultTimeout bounds a dispatch when no per-call timeout is given.
const DefaultTimeout = 10 * time.Second

// Dispatcher turns fire-and-forget publishing into a synchronous-looking
// call. Many callers share one dispatcher (and thus one broker
// connection); the registry is the sole synchronization point.
type Dispatcher struct {
	transport transport.Transport
	registry  *Registry
	replyTo   string
	timeout   time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDefaultTimeout overrides the dispatcher-wide reply deadline.
func WithDefaultTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) { disp.timeout = d }
}

// NewDispatcher builds a dispatcher over the given transport. replyTo is
// the address the transport's reply listener is subscribed on; start the
// listener first.
func NewDispatcher(t transport.Transport, registry *Registry, replyTo string, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		transport: t,
		registry:  registry,
		replyTo:   replyTo,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type sendOptions struct {
	token   string
	timeout time.Duration
}

// SendOption configures a single Send call.
type SendOption func(*sendOptions)

// WithToken attaches the caller's auth token to the request envelope.
func WithToken(token string) SendOption {
	return func(o *sendOptions) { o.token = token }
}

// WithTimeout overrides the reply deadline for this call.
func WithTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) { o.timeout = d }
}

// Send publishes a request envelope to destination and blocks the calling
// goroutine until the worker's reply arrives, the deadline passes, or ctx
// is cancelled. The returned payload is whatever the worker published as
// its response; worker-side errors come back as *DomainError.
func (d *Dispatcher) Send(ctx context.Context, destination, pattern string, data interface{}, opts ...SendOption) (json.RawMessage, error) {
	o := sendOptions{timeout: d.timeout}
	for _, opt := range opts {
		opt(&o)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "bridge: unserializable payload")
	}

	id := uuid.New().String()

	// Register before publishing so a reply can never race the waiter
	// into existence.
	w, err := d.registry.Register(id)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(Request{
		Pattern:       pattern,
		Data:          payload,
		CorrelationID: id,
		ReplyTo:       d.replyTo,
		Token:         o.token,
	})
	if err != nil {
		d.registry.Reject(id, err)
		return nil, errors.Wrap(err, "bridge: envelope marshal failed")
	}

	log.WithFields(log.Fields{
		"correlationId": id,
		"destination":   destination,
		"pattern":       pattern,
	}).Debug("Dispatching request")

	if err := d.transport.Publish(ctx, destination, body); err != nil {
		// Fail immediately and clean up the waiter so nothing leaks.
		d.registry.Reject(id, err)
		return nil, err
	}

	timer := time.AfterFunc(o.timeout, func() {
		d.registry.Expire(id)
	})
	defer timer.Stop()

	resp, err := w.Wait(ctx)
	if err != nil && err == ctx.Err() {
		// The caller gave up; drop the waiter now instead of letting the
		// timer collect it later.
		d.registry.Reject(id, err)
	}
	return resp, err
}
