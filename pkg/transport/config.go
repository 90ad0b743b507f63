package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/tether-io/tether-go/pkg/bufpool"
	"github.com/tether-io/tether-go/pkg/log"
)

// DefaultConnectTimeout bounds dialing and, separately, negotiation.
const DefaultConnectTimeout = 30 * time.Second

// MaxLingerTimeout is the longest SO_LINGER timeout. The kernel takes whole
// seconds in a 32-bit field; some platforms store only 16 bits.
const MaxLingerTimeout = 65535 * time.Second

// DialFunc opens the underlying transport. It must honor ctx.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// LingerConfig controls SO_LINGER on the socket.
type LingerConfig struct {
	// Enabled turns lingering on.
	Enabled bool

	// Timeout is how long Close blocks sending unsent data. Rounded down to
	// whole seconds.
	Timeout time.Duration
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// LocalAddress optionally binds the local end ("host:port", port may be 0).
	LocalAddress string

	// ConnectTimeout bounds the dial stage and, independently, the
	// negotiation stage. Default: 30s.
	ConnectTimeout time.Duration

	// ReceiveBufferSize and SendBufferSize set SO_RCVBUF / SO_SNDBUF.
	// Zero keeps the OS default.
	ReceiveBufferSize int
	SendBufferSize    int

	// ReceiveTimeout and SendTimeout bound each read and write.
	// Zero disables the deadline.
	ReceiveTimeout time.Duration
	SendTimeout    time.Duration

	// NoDelay disables Nagle's algorithm.
	NoDelay bool

	// Linger configures SO_LINGER. Nil keeps the OS default.
	Linger *LingerConfig

	// Framing enables length-prefixed messages.
	Framing bool

	// MaxMessageSize bounds payload length in both directions when framing
	// is enabled. Default: DefaultMaxMessageSize.
	MaxMessageSize int

	// Pool provides receive and session buffers. When nil a pool is created
	// from BufferSize, PoolInitialCount and PoolGrowBy.
	Pool             *bufpool.Pool
	BufferSize       int
	PoolInitialCount int
	PoolGrowBy       int

	// TLS enables encryption. Ignored when Negotiator is set.
	TLS *TLSConfig

	// Negotiator overrides the stream negotiation step.
	Negotiator Negotiator

	// Dial overrides how the transport is opened.
	Dial DialFunc

	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger

	// ProtocolLogger receives connection events. Nil disables them.
	ProtocolLogger log.Logger

	// OnError is called after teardown when the receive loop ends with an
	// unexpected error.
	OnError func(c *Client, err error)
}

// DefaultClientConfig returns a configuration with sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout: DefaultConnectTimeout,
		NoDelay:        true,
		MaxMessageSize: DefaultMaxMessageSize,
		BufferSize:     bufpool.DefaultBufferSize,
		PoolGrowBy:     bufpool.DefaultGrowBy,
	}
}

// Validate checks the configuration for out-of-range values.
func (c *ClientConfig) Validate() error {
	switch {
	case c.ConnectTimeout < 0:
		return fmt.Errorf("%w: negative connect timeout", ErrInvalidArgument)
	case c.ReceiveTimeout < 0, c.SendTimeout < 0:
		return fmt.Errorf("%w: negative I/O timeout", ErrInvalidArgument)
	case c.ReceiveBufferSize < 0, c.SendBufferSize < 0:
		return fmt.Errorf("%w: negative socket buffer size", ErrInvalidArgument)
	case c.MaxMessageSize < 0 || uint64(c.MaxMessageSize) > uint64(^uint32(0)):
		return fmt.Errorf("%w: max message size %d out of range", ErrInvalidArgument, c.MaxMessageSize)
	case c.BufferSize < 0, c.PoolInitialCount < 0, c.PoolGrowBy < 0:
		return fmt.Errorf("%w: negative pool setting", ErrInvalidArgument)
	case c.Linger != nil && c.Linger.Timeout < 0:
		return fmt.Errorf("%w: negative linger timeout", ErrInvalidArgument)
	case c.Linger != nil && c.Linger.Timeout > MaxLingerTimeout:
		return fmt.Errorf("%w: linger timeout %s exceeds %s", ErrInvalidArgument, c.Linger.Timeout, MaxLingerTimeout)
	}
	if c.LocalAddress != "" {
		if _, _, err := net.SplitHostPort(c.LocalAddress); err != nil {
			return fmt.Errorf("%w: local address: %v", ErrInvalidArgument, err)
		}
	}
	if c.TLS != nil && len(c.TLS.Versions) > 0 {
		if _, _, err := TLSVersionRange(c.TLS.Versions); err != nil {
			return err
		}
	}
	return nil
}

// applyDefaults fills zero values.
func (c *ClientConfig) applyDefaults() {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.ProtocolLogger == nil {
		c.ProtocolLogger = log.NoopLogger{}
	}
}
