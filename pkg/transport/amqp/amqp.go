package amqp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/C0kke/FitFashion/pkg/transport"
)

const (
	dialAttempts     = 5
	initialBackoff   = 500 * time.Millisecond
	maxBackoff       = 30 * time.Second
	contentTypeJSON  = "application/json"
	prefetchPerQueue = 1
)

// Transport is the work-queue transport. It owns one AMQP connection with
// a dedicated publisher channel and one consumer channel per subscription.
// If the connection drops, all subscriptions are re-established after a
// successful reconnect; until then Publish and Subscribe fail fast with
// transport.ErrNotReady.
type Transport struct {
	url          string
	onDisconnect func(error)

	mu     sync.Mutex
	conn   *amqp.Connection
	pubCh  *amqp.Channel
	subs   []*subscription
	ready  bool
	closed bool
}

type subscription struct {
	address string // requested address, "" for a transport-named exclusive queue
	queue   string // concrete queue name
	handler transport.Handler
}

// queueName returns the name to declare for this subscription. A
// subscription without an address gets a transport-generated name on
// first use and keeps it for every redeclare, so reply addresses
// embedded in request envelopes stay valid across reconnects.
// Broker-generated names cannot serve here: the amq. prefix is reserved
// and cannot be declared again on a fresh connection.
func (s *subscription) queueName() string {
	if s.address != "" {
		return s.address
	}
	if s.queue == "" {
		s.queue = "reply." + uuid.New().String()
	}
	return s.queue
}

// Option configures a Transport before the first dial.
type Option func(*Transport)

// WithOnDisconnect registers a hook invoked once per connection loss,
// before reconnection starts. The bridge wires it to fail all pending
// waiters so callers get prompt diagnostics instead of silent timeouts.
func WithOnDisconnect(fn func(error)) Option {
	return func(t *Transport) { t.onDisconnect = fn }
}

// Dial connects to the AMQP broker, retrying with exponential backoff.
func Dial(url string, opts ...Option) (*Transport, error) {
	t := &Transport{url: url}
	for _, opt := range opts {
		opt(t)
	}

	backoff := initialBackoff
	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		if err := t.connect(); err != nil {
			lastErr = err
			log.WithFields(log.Fields{"url": url, "attempt": attempt}).
				Warn("Failed to connect to AMQP, retrying: ", err)
			time.Sleep(backoff)
			backoff *= 2
			continue
		}
		return t, nil
	}

	return nil, errors.Wrap(lastErr, "amqp: dial failed")
}

func (t *Transport) connect() error {
	conn, err := amqp.Dial(t.url)
	if err != nil {
		return err
	}

	pubCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.pubCh = pubCh
	t.ready = true
	t.mu.Unlock()

	go t.watch(conn)

	log.WithFields(log.Fields{"url": t.url}).Info("Connected to AMQP broker")
	return nil
}

// watch waits for the connection to close and drives recovery.
func (t *Transport) watch(conn *amqp.Connection) {
	reason := <-conn.NotifyClose(make(chan *amqp.Error, 1))

	t.mu.Lock()
	closed := t.closed
	t.ready = false
	t.mu.Unlock()

	if closed {
		return
	}

	err := transport.ErrNotReady
	if reason != nil {
		log.Error("AMQP connection lost: ", reason)
	}
	if t.onDisconnect != nil {
		t.onDisconnect(err)
	}

	t.reconnect()
}

func (t *Transport) reconnect() {
	backoff := initialBackoff
	for {
		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return
		}

		if err := t.connect(); err != nil {
			log.Warn("AMQP reconnect failed, retrying: ", err)
			time.Sleep(backoff)
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		// Subscriptions must be live again before sends resume, otherwise
		// a fast worker could reply into the void.
		t.mu.Lock()
		subs := make([]*subscription, len(t.subs))
		copy(subs, t.subs)
		t.mu.Unlock()

		for _, sub := range subs {
			if err := t.consume(sub); err != nil {
				log.WithFields(log.Fields{"queue": sub.address}).
					Error("Failed to re-establish subscription: ", err)
			}
		}
		return
	}
}

// Publish sends body to the named queue via the default exchange.
func (t *Transport) Publish(ctx context.Context, destination string, body []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.ready {
		return transport.ErrNotReady
	}

	err := t.pubCh.Publish(
		"",          // exchange
		destination, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType: contentTypeJSON,
			Body:        body,
		})
	if err != nil {
		return errors.Wrap(err, "amqp: publish failed")
	}

	return nil
}

// Subscribe consumes the named queue with manual acknowledgment. An empty
// address declares a transport-named exclusive queue whose name survives
// reconnects; the concrete name is returned either way.
func (t *Transport) Subscribe(address string, h transport.Handler) (string, error) {
	t.mu.Lock()
	if !t.ready {
		t.mu.Unlock()
		return "", transport.ErrNotReady
	}
	t.mu.Unlock()

	sub := &subscription{address: address, handler: h}
	if err := t.consume(sub); err != nil {
		return "", err
	}

	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()

	return sub.queue, nil
}

func (t *Transport) consume(sub *subscription) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "amqp: channel failed")
	}

	var q amqp.Queue
	if sub.address == "" {
		q, err = ch.QueueDeclare(
			sub.queueName(), // name
			false,           // durable
			true,            // delete when unused
			true,            // exclusive
			false,           // no-wait
			nil,             // arguments
		)
	} else {
		q, err = ch.QueueDeclare(
			sub.address, // name
			true,        // durable
			false,       // delete when unused
			false,       // exclusive
			false,       // no-wait
			nil,         // arguments
		)
	}
	if err != nil {
		ch.Close()
		return errors.Wrap(err, "amqp: queue declare failed")
	}

	if err := ch.Qos(prefetchPerQueue, 0, false); err != nil {
		ch.Close()
		return errors.Wrap(err, "amqp: qos failed")
	}

	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		ch.Close()
		return errors.Wrap(err, "amqp: consume failed")
	}

	sub.queue = q.Name

	go func() {
		for d := range msgs {
			d := d
			sub.handler(transport.NewDelivery(d.Body, func() error {
				return d.Ack(false)
			}))
		}
	}()

	log.WithFields(log.Fields{"queue": q.Name}).Debug("AMQP subscription established")
	return nil
}

// Close shuts the connection down permanently; no reconnect is attempted.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.ready = false
	if t.pubCh != nil {
		t.pubCh.Close()
	}
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}
