package bridge

import "encoding/json"

// Request is the wire envelope published to a worker queue or topic.
// Pattern names the operation, Data carries the operation payload, and
// ReplyTo tells the worker where to publish its response. Token is the
// caller's auth token; there is a single token field for all operations.
type Request struct {
	Pattern       string          `json:"pattern"`
	Data          json.RawMessage `json:"data,omitempty"`
	CorrelationID string          `json:"correlationId"`
	ReplyTo       string          `json:"replyTo,omitempty"`
	Token         string          `json:"token,omitempty"`
}

// Response is the wire envelope a worker publishes to the reply address.
// Exactly one of Response and Error is set.
type Response struct {
	CorrelationID string          `json:"correlationId"`
	Response      json.RawMessage `json:"response,omitempty"`
	Error         json.RawMessage `json:"error,omitempty"`
}
