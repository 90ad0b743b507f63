package transport

// Dispatcher receives lifecycle notifications and data from a Client.
//
// OnData and OnDisconnected are called from the client's receive goroutine,
// one at a time. OnConnected is called from the goroutine running Connect,
// before the receive goroutine starts reading.
type Dispatcher interface {
	// OnConnected is called once the client reaches StateConnected. If it
	// panics, the client is closed, OnDisconnected follows, and Connect
	// returns ErrDispatcherPanic.
	OnConnected(c *Client)

	// OnDisconnected is called once, after teardown, for clients that
	// reached StateConnected.
	OnDisconnected(c *Client)

	// OnData delivers buf[offset:offset+length]. With framing enabled this
	// is exactly one message payload; otherwise it is a raw chunk. buf is
	// reused after the call returns; copy anything that must be retained.
	OnData(c *Client, buf []byte, offset, length int)
}

// DispatcherFuncs adapts optional callbacks to a Dispatcher.
// Nil fields are no-ops.
type DispatcherFuncs struct {
	Connected    func(c *Client)
	Disconnected func(c *Client)
	Data         func(c *Client, buf []byte, offset, length int)
}

// OnConnected calls Connected if set.
func (d DispatcherFuncs) OnConnected(c *Client) {
	if d.Connected != nil {
		d.Connected(c)
	}
}

// OnDisconnected calls Disconnected if set.
func (d DispatcherFuncs) OnDisconnected(c *Client) {
	if d.Disconnected != nil {
		d.Disconnected(c)
	}
}

// OnData calls Data if set.
func (d DispatcherFuncs) OnData(c *Client, buf []byte, offset, length int) {
	if d.Data != nil {
		d.Data(c, buf, offset, length)
	}
}
