package transport

import (
	"crypto/tls"
	"net"
)

// Conn is the view of a connected Client used by higher layers.
// Implemented by Client.
type Conn interface {
	// Send writes one message (or raw chunk when framing is disabled).
	Send(data []byte) error

	// Close tears the connection down.
	Close() error

	// State returns the lifecycle state.
	State() State

	// LocalAddr returns the local network address.
	LocalAddr() net.Addr

	// RemoteAddr returns the remote network address.
	RemoteAddr() net.Addr

	// TLSState returns the TLS connection state, if encryption is active.
	TLSState() (tls.ConnectionState, bool)

	// Done is closed once teardown has completed.
	Done() <-chan struct{}
}

// Compile-time interface satisfaction checks.
var (
	_ Conn       = (*Client)(nil)
	_ Dispatcher = DispatcherFuncs{}
	_ Negotiator = Passthrough{}
	_ Negotiator = (*TLSNegotiator)(nil)
)
