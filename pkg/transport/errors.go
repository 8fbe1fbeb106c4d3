package transport

import "errors"

var (
	// ErrTimeout is returned by SendAndAwait once the configured
	// retry budget is exhausted without receiving the expected (or
	// ErrorResponse) reply.
	ErrTimeout = errors.New("transport: timed out waiting for reply")
	// ErrClosed is returned by SendAndAwait (and surfaces as a write
	// failure) once Close has been called.
	ErrClosed = errors.New("transport: closed")
)
