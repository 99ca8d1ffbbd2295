package client

import (
	"errors"
	"fmt"
)

// ErrServiceReported is wrapped by FetchError when the lookup service answers
// with an error field instead of a neighbor list.
var ErrServiceReported = errors.New("lookup service reported an error")

// Kind classifies a failed lookup
type Kind int

const (
	// KindTransport covers connection failures and unexpected HTTP statuses.
	KindTransport Kind = iota + 1
	// KindDecode covers response bodies that cannot be decoded.
	KindDecode
	// KindService covers well-formed bodies that carry an error field.
	KindService
)

// String returns the label used in logs and metrics
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	case KindService:
		return "service"
	default:
		return "unknown"
	}
}

// FetchError reports a failed lookup for one label
type FetchError struct {
	Kind   Kind
	Label  string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error fetching %q (status %d): %v", e.Kind, e.Label, e.Status, e.Err)
	}
	return fmt.Sprintf("%s error fetching %q: %v", e.Kind, e.Label, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind carried by err, or KindTransport for errors that
// did not come from a decoded response.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransport
}

// ParseError reports a malformed neighbor response body
type ParseError struct {
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed neighbor response at offset %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
