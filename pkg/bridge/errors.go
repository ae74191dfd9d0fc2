package bridge

import (
	"encoding/json"
	"errors"
)

// ErrTimeout is the rejection value of a request whose reply did not
// arrive within the deadline. The request is not retracted from the
// worker; a late reply is dropped by the registry.
var ErrTimeout = errors.New("bridge: request timed out")

// ErrDuplicateCorrelationID indicates a correlation id collision. With
// UUID-sized ids this never happens in practice; it is a programmer
// error, not a retryable condition.
var ErrDuplicateCorrelationID = errors.New("bridge: duplicate correlation id")

// DomainError carries the error payload a worker published, verbatim.
// It is a normal business outcome (e.g. insufficient stock), distinct
// from transport failures.
type DomainError struct {
	Raw json.RawMessage
}

func (e *DomainError) Error() string {
	var body struct {
		Message string `json:"msg"`
	}
	if err := json.Unmarshal(e.Raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return string(e.Raw)
}

// Status returns the status code embedded in the worker's error payload,
// or 0 if there is none.
func (e *DomainError) Status() int {
	var body struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(e.Raw, &body); err == nil {
		return body.Status
	}
	return 0
}
