// Package transport provides the full-duplex, line-delimited byte-stream
// abstraction the kkrpc peer runs over, plus the two conformance
// implementations named in the protocol spec: a stdio pipe pair and a
// WebSocket connection.
package transport

import "errors"

// ErrClosed is returned by Read and Write once the transport has been
// closed, or Read returns it on orderly close/EOF from the underlying
// stream. It is the sentinel spec.md §4.1 calls "absent" on read and the
// basis of every TransportError a Peer surfaces to its callers.
var ErrClosed = errors.New("transport: closed")

// Transport is a full-duplex, line-framed byte channel. One complete
// newline-terminated UTF-8 message is read or written per call.
type Transport interface {
	// Read blocks until one complete line is available (newline stripped)
	// and returns it, or returns ErrClosed on orderly close/EOF/unrecoverable error.
	Read() (string, error)

	// Write transmits line followed by a single '\n' framing byte. It must
	// flush before returning success and must serialize concurrent callers
	// so that no two lines interleave.
	Write(line string) error

	// Close is idempotent and causes any in-flight or subsequent Read to
	// return ErrClosed.
	Close() error
}
