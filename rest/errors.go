package rest

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

// Kind identifies the classified failure category for one request. The set
// is closed: new classifications are added here, never by defining new error
// types.
type Kind int

const (
	KindUnknown Kind = iota
	KindBadRequest
	KindUnauthenticated
	KindForbidden
	KindHTTPError
	KindTimeout
	KindCancelled
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindHTTPError:
		return "http_error"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is the classified outcome of a failed request. Callers branch on
// Kind rather than on concrete error types; Response carries the raw HTTP
// response for status-code failures.
type Error struct {
	Kind     Kind
	Status   int
	Method   string
	URL      string
	Message  string
	Response *Response
	cause    error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf returns the classification of err, or KindUnknown when err was not
// produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newStatusError(method, url string, resp *Response) *Error {
	kind := KindHTTPError
	switch resp.Status {
	case http.StatusBadRequest:
		kind = KindBadRequest
	case http.StatusUnauthorized:
		kind = KindUnauthenticated
	case http.StatusForbidden:
		kind = KindForbidden
	}
	return &Error{
		Kind:     kind,
		Status:   resp.Status,
		Method:   method,
		URL:      url,
		Message:  fmt.Sprintf("Response code %d (%s)", resp.Status, http.StatusText(resp.Status)),
		Response: resp,
	}
}

func newTimeoutError(method, url string, timeout time.Duration, cause error) *Error {
	return &Error{
		Kind:    KindTimeout,
		Method:  method,
		URL:     url,
		Message: fmt.Sprintf("Timeout awaiting response for %dms", timeout.Milliseconds()),
		cause:   cause,
	}
}

func newCancelledError(method, url string, cause error) *Error {
	return &Error{
		Kind:    KindCancelled,
		Method:  method,
		URL:     url,
		Message: "request cancelled",
		cause:   cause,
	}
}

func newTransportError(method, url string, cause error) *Error {
	return &Error{
		Kind:    KindTransport,
		Method:  method,
		URL:     url,
		Message: fmt.Sprintf("transport failure: %v", cause),
		cause:   cause,
	}
}
