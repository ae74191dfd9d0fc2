// Package worker runs the service side of the request/reply bridge:
// consume a request envelope, execute domain logic, publish the response
// to the embedded reply address, acknowledge exactly once.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/C0kke/FitFashion/pkg/bridge"
	"github.com/C0kke/FitFashion/pkg/transport"
)

// HandlerFunc executes the domain logic for one pattern. data is the raw
// request payload; token is the caller's auth token, empty when absent.
type HandlerFunc func(ctx context.Context, data json.RawMessage, token string) (interface{}, error)

// Error shapes the error payload published back to the caller. Handlers
// return it to control the embedded status; any other error is reported
// as an internal one.
type Error struct {
	Status  int    `json:"status"`
	Message string `json:"msg"`
}

func (e *Error) Error() string { return e.Message }

func NewError(status int, msg string) *Error {
	return &Error{Status: status, Message: msg}
}

// Responder consumes one queue and serves the patterns registered on it.
// Per delivery it walks RECEIVED -> EXECUTING -> RESPONDED -> ACKNOWLEDGED:
// the broker is acked exactly once, after a response (success or error)
// has been published, whichever branch the domain logic took. Panics in
// handlers become error responses, never redeliveries.
type Responder struct {
	transport transport.Transport
	queue     string
	handlers  map[string]HandlerFunc
	ctx       context.Context
}

func NewResponder(t transport.Transport, queue string) *Responder {
	return &Responder{
		transport: t,
		queue:     queue,
		handlers:  make(map[string]HandlerFunc),
		ctx:       context.Background(),
	}
}

// Handle registers the handler for a pattern. Register all patterns
// before Start; the map is not guarded afterwards.
func (r *Responder) Handle(pattern string, h HandlerFunc) {
	r.handlers[pattern] = h
}

// Start subscribes the responder on its queue.
func (r *Responder) Start() error {
	if _, err := r.transport.Subscribe(r.queue, r.handleDelivery); err != nil {
		return err
	}

	log.WithFields(log.Fields{"queue": r.queue, "patterns": len(r.handlers)}).
		Info("Responder listening")
	return nil
}

func (r *Responder) handleDelivery(d *transport.Delivery) {
	// Ack runs last, exactly once, regardless of outcome. Poison messages
	// must not be redelivered forever.
	defer d.Ack()

	var req bridge.Request
	if err := json.Unmarshal(d.Body, &req); err != nil {
		log.WithFields(log.Fields{"queue": r.queue}).
			Warn("Dropping malformed request envelope: ", err)
		return
	}
	if req.Pattern == "" {
		log.WithFields(log.Fields{"queue": r.queue}).
			Warn("Dropping request envelope without pattern")
		return
	}

	log.WithFields(log.Fields{
		"queue":         r.queue,
		"pattern":       req.Pattern,
		"correlationId": req.CorrelationID,
	}).Debug("Handling request")

	result, err := r.execute(req)

	// Fire-and-forget call: nothing to publish, still acknowledged.
	if req.ReplyTo == "" || req.CorrelationID == "" {
		return
	}

	resp := bridge.Response{CorrelationID: req.CorrelationID}
	if err != nil {
		resp.Error = marshalError(err)
	} else {
		body, merr := json.Marshal(result)
		if merr != nil {
			resp.Error = marshalError(NewError(http.StatusInternalServerError, merr.Error()))
		} else {
			resp.Response = body
		}
	}

	body, _ := json.Marshal(resp)
	if err := r.transport.Publish(r.ctx, req.ReplyTo, body); err != nil {
		log.WithFields(log.Fields{
			"replyTo":       req.ReplyTo,
			"correlationId": req.CorrelationID,
		}).Error("Failed to publish response: ", err)
	}
}

func (r *Responder) execute(req bridge.Request) (result interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.WithFields(log.Fields{"queue": r.queue, "pattern": req.Pattern}).
				Error("Recovered panic in handler: ", rec)
			result = nil
			err = NewError(http.StatusInternalServerError, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	h, ok := r.handlers[req.Pattern]
	if !ok {
		return nil, NewError(http.StatusBadRequest, "unsupported pattern: "+req.Pattern)
	}

	return h(r.ctx, req.Data, req.Token)
}

func marshalError(err error) json.RawMessage {
	we, ok := err.(*Error)
	if !ok {
		we = NewError(http.StatusInternalServerError, err.Error())
	}
	body, _ := json.Marshal(we)
	return body
}
