package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Common errors returned by the client.
var (
	// ErrForbidden is returned when the upstream answers 403 for every
	// attempt in the retry budget. A 403 from this upstream typically
	// signals transient IP-level throttling.
	ErrForbidden = errors.New("upstream access forbidden")

	// ErrContextCancelled is returned when the context is cancelled
	// during a retry wait.
	ErrContextCancelled = errors.New("context cancelled")
)

// HTTPError is a non-2xx upstream response. The client classifies, it does
// not interpret; deciding whether a status is retryable is the retry
// controller's job.
type HTTPError struct {
	StatusCode int
	Status     string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream http error: %s", e.Status)
}

// NetworkKind classifies transport-level failures.
type NetworkKind string

const (
	// KindDNS represents name resolution failures.
	KindDNS NetworkKind = "dns"

	// KindReset represents connection resets.
	KindReset NetworkKind = "reset"

	// KindTimeout represents network timeouts.
	KindTimeout NetworkKind = "timeout"

	// KindOther represents any other transport failure.
	KindOther NetworkKind = "other"
)

// NetworkError is a transport-level failure reaching the upstream.
type NetworkError struct {
	Kind NetworkKind
	Err  error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("upstream network error (%s): %v", e.Kind, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// classifyNetwork wraps a transport error with its kind.
func classifyNetwork(err error) *NetworkError {
	kind := KindOther

	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.As(err, &dnsErr):
		kind = KindDNS
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		kind = KindReset
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}

	return &NetworkError{Kind: kind, Err: err}
}
