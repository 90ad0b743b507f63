package transport_test

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/tether-io/tether-go/pkg/log"
	"github.com/tether-io/tether-go/pkg/transport"
)

const testTimeout = 5 * time.Second

// recorder is a Dispatcher that records every callback.
type recorder struct {
	mu           sync.Mutex
	connected    int
	disconnected int
	messages     [][]byte

	dataCh         chan []byte
	disconnectedCh chan struct{}

	// onData runs inside OnData when set.
	onData func(c *transport.Client, msg []byte)
}

func newRecorder() *recorder {
	return &recorder{
		dataCh:         make(chan []byte, 128),
		disconnectedCh: make(chan struct{}, 8),
	}
}

func (r *recorder) OnConnected(*transport.Client) {
	r.mu.Lock()
	r.connected++
	r.mu.Unlock()
}

func (r *recorder) OnDisconnected(*transport.Client) {
	r.mu.Lock()
	r.disconnected++
	r.mu.Unlock()
	r.disconnectedCh <- struct{}{}
}

func (r *recorder) OnData(c *transport.Client, buf []byte, offset, length int) {
	msg := append([]byte(nil), buf[offset:offset+length]...)
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	if r.onData != nil {
		r.onData(c, msg)
	}
	select {
	case r.dataCh <- msg:
	default:
	}
}

func (r *recorder) counts() (connected, disconnected, messages int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected, r.disconnected, len(r.messages)
}

func (r *recorder) waitData(t *testing.T) []byte {
	t.Helper()
	select {
	case msg := <-r.dataCh:
		return msg
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for data")
		return nil
	}
}

func (r *recorder) expectNoData(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case msg := <-r.dataCh:
		t.Fatalf("unexpected data % x", msg)
	case <-time.After(wait):
	}
}

// eventLog captures protocol events.
type eventLog struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *eventLog) Log(e log.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []log.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]log.Event(nil), l.events...)
}

// testPeer is the remote end of a client under test.
type testPeer struct {
	ln    net.Listener
	conns chan net.Conn
}

func startPeer(t *testing.T) *testPeer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	return servePeer(t, ln)
}

func startTLSPeer(t *testing.T, cfg *tls.Config) *testPeer {
	t.Helper()

	ln, err := tls.Listen("tcp", "127.0.0.1:0", cfg)
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	return servePeer(t, ln)
}

func servePeer(t *testing.T, ln net.Listener) *testPeer {
	p := &testPeer{ln: ln, conns: make(chan net.Conn, 4)}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			p.conns <- conn
		}
	}()
	return p
}

func (p *testPeer) addr() string {
	return p.ln.Addr().String()
}

func (p *testPeer) accept(t *testing.T) net.Conn {
	t.Helper()
	select {
	case conn := <-p.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for client connection")
		return nil
	}
}

// readExactly reads n bytes from conn or fails the test.
func readExactly(t *testing.T, conn net.Conn, n int) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(testTimeout))
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("peer read failed: %v", err)
	}
	return buf
}

func newClient(t *testing.T, addr string, d transport.Dispatcher, cfg transport.ClientConfig) *transport.Client {
	t.Helper()

	c, err := transport.NewClient(addr, d, cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func connectClient(t *testing.T, addr string, d transport.Dispatcher, cfg transport.ClientConfig) *transport.Client {
	t.Helper()

	c := newClient(t, addr, d, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return c
}

func waitDone(t *testing.T, c *transport.Client) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for teardown")
	}
}

func framedConfig() transport.ClientConfig {
	cfg := transport.DefaultClientConfig()
	cfg.Framing = true
	return cfg
}
