package lookup

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCategory normalizes lookup failures.
type ErrorCategory string

const (
	// ErrorTimeout indicates the lookup service took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadStatus indicates a non-2xx response
	ErrorBadStatus ErrorCategory = "bad_status"

	// ErrorBadData indicates a malformed or incomplete response body
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorTransport indicates the request never produced a response
	ErrorTransport ErrorCategory = "transport"

	// ErrorRateLimited indicates the local limiter refused to wait
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorCanceled indicates the caller gave up on the search
	ErrorCanceled ErrorCategory = "canceled"

	// ErrorUnavailable indicates the circuit breaker is refusing calls
	ErrorUnavailable ErrorCategory = "unavailable"
)

// ErrCircuitOpen is the cause of ErrorUnavailable failures.
var ErrCircuitOpen = errors.New("lookup circuit open")

// User-facing messages.
const (
	MsgFetchFailed = "Failed to fetch addresses"
	MsgBadData     = "Unexpected response from address service"
	MsgTimeout     = "Address lookup timed out"
	MsgCanceled    = "Address search cancelled"
	MsgRateLimited = "Too many address searches, try again shortly"
	MsgUnavailable = "Address service unavailable, try again later"
)

// LookupError is a lookup failure. Message is shown to the user verbatim;
// Err keeps the technical cause for logs.
type LookupError struct {
	Category   ErrorCategory
	Message    string
	StatusCode int
	Err        error
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lookup [%s]: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("lookup [%s]: %s", e.Category, e.Message)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// NewError builds a LookupError.
func NewError(category ErrorCategory, message string, err error) *LookupError {
	return &LookupError{Category: category, Message: message, Err: err}
}

// UserMessage returns the text to surface for err: the LookupError message
// when there is one, otherwise the error text.
func UserMessage(err error) string {
	var le *LookupError
	if errors.As(err, &le) && le.Message != "" {
		return le.Message
	}
	if errors.Is(err, context.Canceled) {
		return MsgCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return MsgTimeout
	}
	return err.Error()
}

// CategoryOf extracts the category of err, or ErrorTransport for foreign errors.
func CategoryOf(err error) ErrorCategory {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Category
	}
	if errors.Is(err, context.Canceled) {
		return ErrorCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	return ErrorTransport
}

// fromContext classifies a failure caused by ctx ending.
func fromContext(err error) *LookupError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrorTimeout, MsgTimeout, err)
	}
	return NewError(ErrorCanceled, MsgCanceled, err)
}
