// Package transport owns the byte stream to the target: it assembles
// inbound frames on a dedicated reader goroutine, publishes them to a
// single-slot mailbox, and serializes outbound request/reply exchanges
// through SendAndAwait with transport-level retry.
package transport

import "io"

// Port is the abstract byte-stream transport: open/close/send/receive
// semantics over an unreliable byte stream. A concrete serial, TCP, or
// loopback implementation satisfies this with no knowledge of the
// framing protocol above it.
type Port interface {
	io.ReadWriteCloser
}
