package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tether-io/tether-go/pkg/bufpool"
	"github.com/tether-io/tether-go/pkg/log"
)

// Client is a single outbound connection.
//
// A Client moves through Idle, Connecting, Connected and Closed exactly
// once. A failed or dropped client cannot be reused; construct a new one
// to retry.
//
// Connect, Send and Close may be called from any goroutine, but Send must
// not be called concurrently with itself: concurrent writes can interleave.
type Client struct {
	remote     string
	dispatcher Dispatcher
	config     ClientConfig
	pool       *bufpool.Pool
	negotiator Negotiator
	dial       DialFunc
	logger     *slog.Logger
	plog       log.Logger // nil when protocol logging is disabled
	id         string
	maxSize    uint32

	state atomic.Int32

	// mu guards the resources below. Close takes conn and stream; the
	// receive goroutine owns recvBuf and session once loopStarted is set.
	mu          sync.Mutex
	conn        net.Conn
	stream      net.Conn
	localAddr   net.Addr
	remoteAddr  net.Addr
	tlsState    *tls.ConnectionState
	recvBuf     *bufpool.Buffer
	session     *Accumulator
	loopStarted bool
	connected   bool
	err         error

	done chan struct{}
}

// NewClient creates an idle client for remote ("host:port").
func NewClient(remote string, dispatcher Dispatcher, cfg ClientConfig) (*Client, error) {
	if remote == "" {
		return nil, fmt.Errorf("%w: remote address is required", ErrInvalidArgument)
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return nil, fmt.Errorf("%w: remote address: %v", ErrInvalidArgument, err)
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("%w: dispatcher is required", ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	pool := cfg.Pool
	if pool == nil {
		pool = bufpool.New(bufpool.Config{
			BufferSize:   cfg.BufferSize,
			InitialCount: cfg.PoolInitialCount,
			GrowBy:       cfg.PoolGrowBy,
		})
	}

	negotiator := cfg.Negotiator
	if negotiator == nil {
		negotiator = Passthrough{}
		if cfg.TLS != nil {
			tlsCfg := *cfg.TLS
			if tlsCfg.ServerName == "" {
				tlsCfg.ServerName = host
			}
			if tlsCfg.Logger == nil {
				tlsCfg.Logger = cfg.Logger
			}
			n, err := NewTLSNegotiator(&tlsCfg)
			if err != nil {
				return nil, err
			}
			negotiator = n
		}
	}

	dial, err := newDialFunc(&cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: local address: %v", ErrInvalidArgument, err)
	}

	c := &Client{
		remote:     remote,
		dispatcher: dispatcher,
		config:     cfg,
		pool:       pool,
		negotiator: negotiator,
		dial:       dial,
		logger:     cfg.Logger,
		id:         uuid.NewString(),
		maxSize:    uint32(cfg.MaxMessageSize),
		done:       make(chan struct{}),
	}
	if _, noop := cfg.ProtocolLogger.(log.NoopLogger); !noop {
		c.plog = cfg.ProtocolLogger
	}
	c.state.Store(int32(StateIdle))

	return c, nil
}

// Connect opens the transport, negotiates the stream and starts the
// receive goroutine. It returns once OnConnected has been called; it does
// not wait for the receive goroutine.
//
// Any failure tears the client down.
func (c *Client) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		if c.State() == StateClosed {
			return ErrDisposed
		}
		return ErrAlreadyConnected
	}
	c.logStateChange(StateIdle, StateConnecting, "")

	if err := c.connect(ctx); err != nil {
		// A concurrent Close surfaces as I/O errors on the closed socket.
		if c.State() == StateClosed && !errors.Is(err, ErrDispatcherPanic) {
			err = ErrDisposed
		}
		c.Close()
		return err
	}
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	timeout := c.config.ConnectTimeout

	// Dial stage
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	conn, err := c.dial(dialCtx, "tcp", c.remote)
	timedOut := errors.Is(dialCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()
	if err != nil {
		if timedOut {
			c.logger.Warn("connect timed out",
				"remote", c.remote,
				"timeout", timeout,
				"connection", c.id)
			c.logError(log.LayerSocket, err, false, "connect timeout")
			return fmt.Errorf("%w: %s after %s", ErrConnectTimeout, c.remote, timeout)
		}
		c.logError(log.LayerSocket, err, false, "dial")
		return fmt.Errorf("dial %s: %w", c.remote, err)
	}
	if !c.install(func() {
		c.conn = conn
		c.localAddr = conn.LocalAddr()
		c.remoteAddr = conn.RemoteAddr()
	}) {
		_ = conn.Close()
		return ErrDisposed
	}

	if err := applyConnOptions(conn, &c.config); err != nil {
		return fmt.Errorf("configure socket: %w", err)
	}

	// Negotiate stage, bounded independently of the dial stage. The I/O
	// deadline covers negotiators that ignore ctx.
	negCtx, cancel := context.WithTimeout(ctx, timeout)
	_ = conn.SetDeadline(time.Now().Add(timeout))
	stream, err := c.negotiator.Negotiate(negCtx, conn)
	timedOut = ctx.Err() == nil &&
		(errors.Is(negCtx.Err(), context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded))
	cancel()
	if err != nil {
		if timedOut {
			c.logger.Warn("negotiation timed out",
				"remote", c.remote,
				"timeout", timeout,
				"connection", c.id)
			c.logError(log.LayerTLS, err, false, "negotiate timeout")
			return fmt.Errorf("%w: %s after %s", ErrNegotiateTimeout, c.remote, timeout)
		}
		c.logError(log.LayerTLS, err, false, "negotiate")
		return err
	}
	_ = conn.SetDeadline(time.Time{})

	var tlsState *tls.ConnectionState
	if tc, ok := stream.(*tls.Conn); ok {
		cs := tc.ConnectionState()
		tlsState = &cs
	}
	if !c.install(func() {
		c.stream = stream
		c.tlsState = tlsState
	}) {
		if stream != conn {
			_ = stream.Close()
		}
		return ErrDisposed
	}

	recvBuf := c.pool.Borrow()
	session := NewAccumulator(c.pool)

	c.mu.Lock()
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected)) {
		c.mu.Unlock()
		c.pool.Return(recvBuf)
		session.Release()
		return ErrDisposed
	}
	c.recvBuf = recvBuf
	c.session = session
	c.loopStarted = true
	c.connected = true
	c.mu.Unlock()

	c.logStateChange(StateConnecting, StateConnected, "")
	c.logger.Debug("connected",
		"remote", c.remote,
		"local", c.localAddr,
		"tls", tlsState != nil,
		"connection", c.id)

	ready := make(chan struct{})
	go c.receiveLoop(ready)
	defer close(ready)

	return c.notifyConnected()
}

// notifyConnected calls OnConnected. A panic closes the client before the
// receive goroutine may read, and is returned as an error.
func (c *Client) notifyConnected() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: OnConnected: %v", ErrDispatcherPanic, r)
			c.logger.Error("dispatcher panicked",
				"remote", c.remote,
				"connection", c.id,
				"panic", r)
			c.logError(log.LayerClient, err, false, "connected callback")
			c.Close()
		}
	}()
	c.dispatcher.OnConnected(c)
	return nil
}

// install runs set under the resource lock unless the client has been
// closed. It reports whether set ran.
func (c *Client) install(set func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == StateClosed {
		return false
	}
	set()
	return true
}

// Send writes data. See SendSlice.
func (c *Client) Send(data []byte) error {
	return c.SendSlice(data, 0, len(data))
}

// SendSlice writes data[offset:offset+count]. With framing enabled the
// slice is sent as one frame in a single write.
//
// Sending on a closed client is a no-op. Sending before Connect has
// completed returns ErrNotConnected. Write failures caused by teardown or
// transport faults are absorbed and close the client.
func (c *Client) SendSlice(data []byte, offset, count int) error {
	if offset < 0 || count < 0 || offset > len(data) || count > len(data)-offset {
		return fmt.Errorf("%w: offset %d count %d for %d bytes", ErrInvalidArgument, offset, count, len(data))
	}

	switch c.State() {
	case StateClosed:
		return nil
	case StateIdle, StateConnecting:
		return ErrNotConnected
	}

	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		return nil
	}

	payload := data[offset : offset+count]
	out := payload
	layer := log.LayerSocket
	if c.config.Framing {
		if count > c.config.MaxMessageSize {
			return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, count, c.config.MaxMessageSize)
		}
		buf := c.pool.BorrowAtLeast(FrameSize(count))
		defer c.pool.Return(buf)
		out = AppendFrame(buf.Bytes()[:0], payload)
		layer = log.LayerFraming
	}

	if c.config.SendTimeout > 0 {
		if err := stream.SetWriteDeadline(time.Now().Add(c.config.SendTimeout)); err != nil {
			return c.absorbSend(err)
		}
	}
	if _, err := stream.Write(out); err != nil {
		return c.absorbSend(err)
	}

	c.logFrame(log.DirectionOut, layer, payload, len(out))
	return nil
}

// absorbSend swallows expected write failures and closes the client, since
// a partially written frame leaves the stream unusable.
func (c *Client) absorbSend(err error) error {
	if !IsExpected(err) {
		c.logError(log.LayerSocket, err, false, "send")
		return fmt.Errorf("send: %w", err)
	}
	c.logger.Debug("send aborted", "remote", c.remote, "connection", c.id, "error", err)
	c.logError(log.LayerSocket, err, true, "send")
	c.Close()
	return nil
}

// Close tears the client down. It is safe to call any number of times from
// any goroutine; only the first call has an effect.
//
// Close disposes the stream and then the transport. If the receive
// goroutine is running it returns the buffers and fires OnDisconnected as
// it unwinds, so Close may return before that completes; use Done to wait.
func (c *Client) Close() error {
	prev := State(c.state.Swap(int32(StateClosed)))
	if prev == StateClosed {
		return nil
	}
	c.logStateChange(prev, StateClosed, "")

	c.mu.Lock()
	stream, conn := c.stream, c.conn
	c.stream, c.conn = nil, nil
	loopStarted := c.loopStarted
	c.mu.Unlock()

	if stream != nil && stream != conn {
		_ = stream.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}

	if !loopStarted {
		c.finish()
	}
	return nil
}

// finish returns the buffers, fires OnDisconnected for clients that
// reached StateConnected, and closes done. It runs exactly once: inline
// from Close when the receive goroutine never started, otherwise from the
// receive goroutine.
func (c *Client) finish() {
	c.mu.Lock()
	recvBuf, session, connected := c.recvBuf, c.session, c.connected
	c.recvBuf, c.session = nil, nil
	c.mu.Unlock()

	defer close(c.done)

	c.pool.Return(recvBuf)
	if session != nil {
		session.Release()
	}
	if connected {
		c.logger.Debug("disconnected", "remote", c.remote, "connection", c.id)
		c.dispatcher.OnDisconnected(c)
	}
}

// receiveLoop runs until the client leaves StateConnected or the stream
// ends. Teardown always runs before an error is reported.
func (c *Client) receiveLoop(ready <-chan struct{}) {
	var loopErr error
	defer func() {
		if r := recover(); r != nil {
			loopErr = fmt.Errorf("%w: %v", ErrReceivePanic, r)
		}
		c.Close()
		if loopErr != nil {
			c.mu.Lock()
			c.err = loopErr
			c.mu.Unlock()
		}
		c.finish()
		if loopErr != nil {
			c.reportError(loopErr)
		}
	}()

	<-ready
	loopErr = c.receive()
}

func (c *Client) receive() error {
	c.mu.Lock()
	stream, recvBuf, session := c.stream, c.recvBuf, c.session
	c.mu.Unlock()
	if stream == nil {
		return nil
	}

	raw := recvBuf.Bytes()
	for c.State() == StateConnected {
		if c.config.ReceiveTimeout > 0 {
			if err := stream.SetReadDeadline(time.Now().Add(c.config.ReceiveTimeout)); err != nil {
				return c.absorbReceive(err)
			}
		}

		n, err := stream.Read(raw)
		if n > 0 {
			if derr := c.deliver(raw, n, session); derr != nil {
				return derr
			}
		}
		if err != nil {
			return c.absorbReceive(err)
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// deliver dispatches raw[:n] directly, or extracts every complete frame
// from the session buffer. A partial frame stays buffered.
func (c *Client) deliver(raw []byte, n int, session *Accumulator) error {
	if !c.config.Framing {
		c.logFrame(log.DirectionIn, log.LayerSocket, raw[:n], n)
		c.dispatcher.OnData(c, raw, 0, n)
		return nil
	}

	session.Append(raw[:n])
	for c.State() == StateConnected {
		h, ok := DecodeHeader(session.Bytes())
		if !ok {
			return nil
		}
		if err := h.Check(c.maxSize); err != nil {
			return err
		}
		size := h.FrameSize()
		if session.Len() < size {
			return nil
		}

		buf := session.Bytes()
		c.logFrame(log.DirectionIn, log.LayerFraming, buf[HeaderSize:size], size)
		c.dispatcher.OnData(c, buf, HeaderSize, int(h.Length))
		session.Shift(size)
	}
	return nil
}

func (c *Client) absorbReceive(err error) error {
	if !IsExpected(err) {
		return err
	}
	if c.State() == StateConnected {
		c.logger.Debug("receive ended", "remote", c.remote, "connection", c.id, "error", err)
		c.logError(log.LayerSocket, err, true, "receive")
	}
	return nil
}

func (c *Client) reportError(err error) {
	c.logger.Error("receive loop failed",
		"remote", c.remote,
		"connection", c.id,
		"error", err)
	c.logError(log.LayerClient, err, false, "receive")
	if c.config.OnError != nil {
		c.config.OnError(c, err)
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Remote returns the configured remote address.
func (c *Client) Remote() string {
	return c.remote
}

// RemoteAddr returns the resolved remote address, or nil before dialing.
func (c *Client) RemoteAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteAddr
}

// LocalAddr returns the local address, or nil before dialing.
func (c *Client) LocalAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localAddr
}

// ConnectionID returns the identifier used in protocol log events.
func (c *Client) ConnectionID() string {
	return c.id
}

// TLSState returns the negotiated TLS state, if encryption is active.
func (c *Client) TLSState() (tls.ConnectionState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tlsState == nil {
		return tls.ConnectionState{}, false
	}
	return *c.tlsState, true
}

// Pool returns the buffer pool used by the client.
func (c *Client) Pool() *bufpool.Pool {
	return c.pool
}

// Done returns a channel closed once teardown has completed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the receive goroutine, if it was
// unexpected. Valid after Done is closed.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) logStateChange(oldState, newState State, reason string) {
	if c.plog == nil {
		return
	}
	c.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Layer:        log.LayerClient,
		Category:     log.CategoryState,
		RemoteAddr:   c.remote,
		StateChange: &log.StateChangeEvent{
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	})
}

// logFrame records bytes crossing the wire. Payloads are copied and
// truncated to MaxLogFrameDataSize since the buffer is reused.
func (c *Client) logFrame(dir log.Direction, layer log.Layer, payload []byte, size int) {
	if c.plog == nil {
		return
	}
	data := payload
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		data = data[:MaxLogFrameDataSize]
		truncated = true
	}
	c.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    dir,
		Layer:        layer,
		Category:     log.CategoryData,
		RemoteAddr:   c.remote,
		Frame: &log.FrameEvent{
			Size:      size,
			Data:      append([]byte(nil), data...),
			Truncated: truncated,
		},
	})
}

func (c *Client) logError(layer log.Layer, err error, expected bool, where string) {
	if c.plog == nil {
		return
	}
	c.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Layer:        layer,
		Category:     log.CategoryError,
		RemoteAddr:   c.remote,
		Error: &log.ErrorEventData{
			Layer:    layer,
			Message:  err.Error(),
			Context:  where,
			Expected: expected,
		},
	})
}
