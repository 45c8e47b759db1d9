package errors

import (
	"context"
	stderr "errors"
	"fmt"
	"strings"
)

// New returns an error that formats as the given text.
// Each call to New returns a distinct error value even if the text is identical.
func New(msg string) error {
	return stderr.New(msg)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderr.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return stderr.As(err, target)
}

// Category classifies a failed query. A Category is itself an error so that
// callers can match on it with Is through any wrap chain.
type Category int

const (
	// InvalidRequest is a deterministic caller error.
	InvalidRequest Category = iota + 1
	// PoolExhausted reports that no server handle became available in time.
	PoolExhausted
	// ConnectionLost reports that the server process died mid-request.
	ConnectionLost
	// RequestTimeout reports that a call exceeded its per-call deadline.
	RequestTimeout
	// ProtocolError reports a malformed, unparseable or failed response from the server.
	ProtocolError
	// Cancelled reports caller-initiated cancellation or shutdown.
	Cancelled
)

var _categoryNames = map[Category]string{
	InvalidRequest: "InvalidRequest",
	PoolExhausted:  "PoolExhausted",
	ConnectionLost: "ConnectionLost",
	RequestTimeout: "RequestTimeout",
	ProtocolError:  "ProtocolError",
	Cancelled:      "Cancelled",
}

// Categories returns every known category in declaration order.
func Categories() []Category {
	return []Category{InvalidRequest, PoolExhausted, ConnectionLost, RequestTimeout, ProtocolError, Cancelled}
}

func (c Category) String() string {
	if name, ok := _categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Error is an implementation of the error interface.
func (c Category) Error() string {
	return c.String()
}

// QueryError is a categorized failure carrying enough detail for a caller to log and skip a single query.
type QueryError struct {
	Category Category
	Method   string
	Path     string
	Position string
	Err      error
}

// Error is an implementation of the error interface.
func (e *QueryError) Error() string {
	var b strings.Builder
	b.WriteString(e.Category.String())
	if e.Method != "" {
		fmt.Fprintf(&b, " method=%s", e.Method)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " file=%s", e.Path)
	}
	if e.Position != "" {
		fmt.Fprintf(&b, " position=%s", e.Position)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// Is matches a Category target against this error's category.
func (e *QueryError) Is(target error) bool {
	c, ok := target.(Category)
	return ok && c == e.Category
}

// Wrap categorizes err.
func Wrap(c Category, err error) error {
	return &QueryError{Category: c, Err: err}
}

// Newf returns a categorized error with a formatted cause.
func Newf(c Category, format string, args ...interface{}) error {
	return Wrap(c, fmt.Errorf(format, args...))
}

// FromContext returns a Cancelled error describing why ctx ended.
func FromContext(ctx context.Context) error {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = context.Canceled
	}
	return Wrap(Cancelled, cause)
}

// CategoryOf returns the category of err, if it has one.
// Context cancellation and deadline errors are reported as Cancelled.
func CategoryOf(err error) (Category, bool) {
	if err == nil {
		return 0, false
	}
	var qe *QueryError
	if stderr.As(err, &qe) {
		return qe.Category, true
	}
	var c Category
	if stderr.As(err, &c) {
		return c, true
	}
	if stderr.Is(err, context.Canceled) || stderr.Is(err, context.DeadlineExceeded) {
		return Cancelled, true
	}
	return 0, false
}

// WithQuery annotates err with the query it belongs to, filling only fields that are still empty.
// Uncategorized errors are reported as ProtocolError.
func WithQuery(err error, method, path, position string) error {
	if err == nil {
		return nil
	}

	var qe *QueryError
	if stderr.As(err, &qe) {
		annotated := *qe
		if annotated.Method == "" {
			annotated.Method = method
		}
		if annotated.Path == "" {
			annotated.Path = path
		}
		if annotated.Position == "" {
			annotated.Position = position
		}
		return &annotated
	}

	c, ok := CategoryOf(err)
	if !ok {
		c = ProtocolError
	}
	return &QueryError{Category: c, Method: method, Path: path, Position: position, Err: err}
}

// IsRetryable reports whether the failure may succeed against fresh pool state.
func IsRetryable(e error) bool {
	return stderr.Is(e, ConnectionLost) || stderr.Is(e, PoolExhausted)
}

// IsBadRequest reports whether the error is a bad request from the caller.
func IsBadRequest(e error) bool {
	return stderr.Is(e, InvalidRequest)
}
