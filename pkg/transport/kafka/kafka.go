package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/C0kke/FitFashion/pkg/transport"
)

const dialTimeout = 10 * time.Second

// Transport is the topic-log transport. One shared writer serves all
// publishes; each subscription runs its own consumer-group reader.
// kafka-go recovers broker connections internally, so unlike the AMQP
// side there is no explicit reconnect loop here; readiness only reflects
// the initial bootstrap check and Close.
type Transport struct {
	brokers []string
	groupID string
	writer  *kafka.Writer

	mu      sync.Mutex
	readers []*kafka.Reader
	cancel  context.CancelFunc
	ctx     context.Context
	ready   bool
}

// Dial verifies that at least one bootstrap broker is reachable and
// prepares the shared writer.
func Dial(brokers []string, groupID string) (*Transport, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, err := kafka.DialContext(dialCtx, "tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, "kafka: broker unreachable")
	}
	conn.Close()

	ctx, stop := context.WithCancel(context.Background())
	t := &Transport{
		brokers: brokers,
		groupID: groupID,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		ctx:    ctx,
		cancel: stop,
		ready:  true,
	}

	log.WithFields(log.Fields{"brokers": brokers, "groupId": groupID}).
		Info("Connected to Kafka brokers")
	return t, nil
}

// Publish writes body to the named topic.
func (t *Transport) Publish(ctx context.Context, destination string, body []byte) error {
	t.mu.Lock()
	ready := t.ready
	t.mu.Unlock()
	if !ready {
		return transport.ErrNotReady
	}

	err := t.writer.WriteMessages(ctx, kafka.Message{
		Topic: destination,
		Value: body,
	})
	if err != nil {
		return errors.Wrap(err, "kafka: publish failed")
	}
	return nil
}

// Subscribe consumes the named topic within the transport's consumer
// group. Kafka has no server-named addresses, so address is mandatory.
func (t *Transport) Subscribe(address string, h transport.Handler) (string, error) {
	if address == "" {
		return "", errors.New("kafka: subscription topic required")
	}

	t.mu.Lock()
	if !t.ready {
		t.mu.Unlock()
		return "", transport.ErrNotReady
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  t.brokers,
		GroupID:  t.groupID,
		Topic:    address,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	t.readers = append(t.readers, r)
	t.mu.Unlock()

	go t.run(r, address, h)

	log.WithFields(log.Fields{"topic": address, "groupId": t.groupID}).
		Debug("Kafka subscription established")
	return address, nil
}

func (t *Transport) run(r *kafka.Reader, topic string, h transport.Handler) {
	for {
		m, err := r.FetchMessage(t.ctx)
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			log.WithFields(log.Fields{"topic": topic}).
				Error("Kafka fetch failed: ", err)
			return
		}

		h(transport.NewDelivery(m.Value, func() error {
			return r.CommitMessages(t.ctx, m)
		}))
	}
}

// Close stops all readers and the shared writer.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ready = false
	t.cancel()
	for _, r := range t.readers {
		r.Close()
	}
	return t.writer.Close()
}
