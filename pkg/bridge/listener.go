package bridge

import (
	"bytes"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/C0kke/FitFashion/pkg/transport"
)

var jsonNull = []byte("null")

// Listener is the single long-lived consumer on a transport's shared
// reply address. It demultiplexes response envelopes by correlation id
// and hands them to the registry. Start it before the first dispatch so
// a fast worker cannot reply before anyone is listening.
type Listener struct {
	registry *Registry
	address  string
}

func NewListener(registry *Registry) *Listener {
	return &Listener{registry: registry}
}

// Start subscribes the listener on the transport's reply address and
// returns the concrete address workers must publish responses to.
func (l *Listener) Start(t transport.Transport, address string) (string, error) {
	addr, err := t.Subscribe(address, l.handle)
	if err != nil {
		return "", err
	}
	l.address = addr

	log.WithFields(log.Fields{"replyTo": addr}).Info("Reply listener started")
	return addr, nil
}

// Address returns the concrete reply address after Start.
func (l *Listener) Address() string { return l.address }

// handle processes one reply. Acknowledgment is unconditional: replies
// are idempotent to drop because resolving an absent id is a no-op, so
// there is never a reason to redeliver one.
func (l *Listener) handle(d *transport.Delivery) {
	defer d.Ack()

	var resp Response
	if err := json.Unmarshal(d.Body, &resp); err != nil {
		log.Warn("Dropping malformed reply envelope: ", err)
		return
	}
	if resp.CorrelationID == "" {
		log.Warn("Dropping reply envelope without correlation id")
		return
	}

	if len(resp.Error) > 0 && !bytes.Equal(resp.Error, jsonNull) {
		l.registry.Reject(resp.CorrelationID, &DomainError{Raw: resp.Error})
		return
	}

	l.registry.Resolve(resp.CorrelationID, resp.Response)
}
