package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/tether-io/tether-go/cmd/tether-client/interactive"
	"github.com/tether-io/tether-go/pkg/connection"
	"github.com/tether-io/tether-go/pkg/transport"
	"github.com/tether-io/tether-go/pkg/version"
)

// printer prints connection events and received data.
type printer struct {
	out    io.Writer
	hex    bool
	logger *slog.Logger

	mu sync.Mutex
}

func (p *printer) OnConnected(c *transport.Client) {
	attrs := []any{"remote", c.RemoteAddr(), "local", c.LocalAddr(), "connection", c.ConnectionID()}
	if state, ok := c.TLSState(); ok {
		attrs = append(attrs, "tls", tlsVersionName(state.Version), "alpn", state.NegotiatedProtocol)
		if err := checkALPN(state.NegotiatedProtocol); err != nil {
			p.logger.Error("rejecting peer", "error", err)
			c.Close()
			return
		}
	}
	p.logger.Info("connected", attrs...)
}

func (p *printer) OnDisconnected(c *transport.Client) {
	p.logger.Info("disconnected", "remote", c.Remote(), "connection", c.ConnectionID())
}

func (p *printer) OnData(_ *transport.Client, buf []byte, offset, length int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "<< %s\n", interactive.FormatData(buf[offset:offset+length], p.hex))
}

// checkALPN rejects tether peers of another major version. Protocols
// outside the tether namespace are left to the user.
func checkALPN(alpn string) error {
	if !strings.HasPrefix(alpn, version.ALPNPrefix) {
		return nil
	}
	return version.CheckNegotiated(alpn)
}

func tlsVersionName(v uint16) string {
	for _, s := range []string{"1.0", "1.1", "1.2", "1.3"} {
		if n, err := transport.ParseTLSVersion(s); err == nil && n == v {
			return "TLS " + s
		}
	}
	return fmt.Sprintf("0x%04x", v)
}

// status describes the active connection for the /status command.
type status struct {
	client     *transport.Client
	supervisor *connection.Supervisor
}

func (s *status) String() string {
	var b strings.Builder

	c := s.client
	if s.supervisor != nil {
		fmt.Fprintf(&b, "Supervisor: %s (retries: %d)\n", s.supervisor.State(), s.supervisor.BackoffAttempts())
		c = s.supervisor.Current()
	}
	if c == nil {
		b.WriteString("Not connected")
		return b.String()
	}

	fmt.Fprintf(&b, "Connection: %s\n", c.ConnectionID())
	fmt.Fprintf(&b, "State:      %s\n", c.State())
	fmt.Fprintf(&b, "Remote:     %s (%v)\n", c.Remote(), c.RemoteAddr())
	fmt.Fprintf(&b, "Local:      %v\n", c.LocalAddr())
	if state, ok := c.TLSState(); ok {
		fmt.Fprintf(&b, "TLS:        %s %s\n", tlsVersionName(state.Version), state.NegotiatedProtocol)
	}
	ps := c.Pool().Stats()
	fmt.Fprintf(&b, "Pool:       allocated=%d borrowed=%d returned=%d outstanding=%d",
		ps.Allocated, ps.Borrowed, ps.Returned, ps.Outstanding)
	return b.String()
}
