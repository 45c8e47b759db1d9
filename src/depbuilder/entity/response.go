package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
)

// Failure describes an error reply from the language server.
type Failure struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

// Error is an implementation of the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("server error %d: %s", f.Code, f.Message)
}

// Response is the result of one dispatched Request. Exactly one of Payload and Failure is set.
type Response struct {
	CorrelationID string
	Payload       json.RawMessage
	Failure       *Failure
	Elapsed       time.Duration
}

// NewSuccessResponse builds a Response carrying a payload. A nil payload is stored as JSON null.
func NewSuccessResponse(id string, payload json.RawMessage, elapsed time.Duration) *Response {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return &Response{CorrelationID: id, Payload: payload, Elapsed: elapsed}
}

// NewFailureResponse builds a Response carrying a failure descriptor.
func NewFailureResponse(id string, failure Failure, elapsed time.Duration) *Response {
	return &Response{CorrelationID: id, Failure: &failure, Elapsed: elapsed}
}

// Validate enforces the payload XOR failure invariant.
func (r *Response) Validate() error {
	hasPayload := len(r.Payload) > 0
	hasFailure := r.Failure != nil
	switch {
	case hasPayload && hasFailure:
		return errors.Newf(errors.ProtocolError, "response %q has both payload and failure", r.CorrelationID)
	case !hasPayload && !hasFailure:
		return errors.Newf(errors.ProtocolError, "response %q has neither payload nor failure", r.CorrelationID)
	}
	return nil
}

// Outcome is what a lease holder reports back to the pool on release.
type Outcome int

const (
	// OutcomeSuccess means the handle answered normally.
	OutcomeSuccess Outcome = iota
	// OutcomeTimeout means the call exceeded its deadline. The handle is kept but marked suspect.
	OutcomeTimeout
	// OutcomeCancelled means the caller abandoned the call. The handle is kept but marked suspect.
	OutcomeCancelled
	// OutcomeProtocolError means the server produced garbage. The handle is retired.
	OutcomeProtocolError
	// OutcomeConnectionLost means the process went away. The handle is retired.
	OutcomeConnectionLost
)

var _outcomeNames = map[Outcome]string{
	OutcomeSuccess:        "success",
	OutcomeTimeout:        "timeout",
	OutcomeCancelled:      "cancelled",
	OutcomeProtocolError:  "protocol_error",
	OutcomeConnectionLost: "connection_lost",
}

func (o Outcome) String() string {
	if name, ok := _outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Retires reports whether the outcome makes the handle unusable.
func (o Outcome) Retires() bool {
	return o == OutcomeProtocolError || o == OutcomeConnectionLost
}

// OutcomeFor derives the release outcome from a dispatch error. Uncategorized errors retire the handle.
func OutcomeFor(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	c, ok := errors.CategoryOf(err)
	if !ok {
		return OutcomeProtocolError
	}
	switch c {
	case errors.RequestTimeout:
		return OutcomeTimeout
	case errors.Cancelled:
		return OutcomeCancelled
	case errors.ProtocolError:
		return OutcomeProtocolError
	case errors.ConnectionLost:
		return OutcomeConnectionLost
	default:
		return OutcomeSuccess
	}
}
