package tether_test

import (
	"context"
	"crypto/tls"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tether-io/tether-go/cmd/tether-log/commands"
	"github.com/tether-io/tether-go/pkg/cert"
	"github.com/tether-io/tether-go/pkg/config"
	"github.com/tether-io/tether-go/pkg/connection"
	"github.com/tether-io/tether-go/pkg/discovery"
	"github.com/tether-io/tether-go/pkg/log"
	"github.com/tether-io/tether-go/pkg/transport"
	"github.com/tether-io/tether-go/pkg/version"
)

// framedEchoServer accepts TLS connections and echoes every frame back.
type framedEchoServer struct {
	ln    net.Listener
	mu    sync.Mutex
	conns []net.Conn
}

func startFramedEcho(t *testing.T, cfg *tls.Config) *framedEchoServer {
	t.Helper()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", cfg)
	require.NoError(t, err)

	s := &framedEchoServer{ln: ln}
	t.Cleanup(func() {
		ln.Close()
		s.dropAll()
	})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.conns = append(s.conns, conn)
			s.mu.Unlock()
			go s.echo(conn)
		}
	}()
	return s
}

func (s *framedEchoServer) echo(conn net.Conn) {
	defer conn.Close()
	buf := make([]byte, 64*1024)
	var pending []byte
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		pending = append(pending, buf[:n]...)
		for {
			h, ok := transport.DecodeHeader(pending)
			if !ok || len(pending) < h.FrameSize() {
				break
			}
			if _, err := conn.Write(pending[:h.FrameSize()]); err != nil {
				return
			}
			pending = pending[h.FrameSize():]
		}
	}
}

func (s *framedEchoServer) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func (s *framedEchoServer) addr() string {
	return s.ln.Addr().String()
}

type echoDispatcher struct {
	connected chan *transport.Client
	data      chan string
}

func (d *echoDispatcher) OnConnected(c *transport.Client)  { d.connected <- c }
func (d *echoDispatcher) OnDisconnected(*transport.Client) {}
func (d *echoDispatcher) OnData(_ *transport.Client, buf []byte, offset, length int) {
	d.data <- string(buf[offset : offset+length])
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

// TestE2E_ConfiguredSupervisedTLS drives a TLS session configured from
// YAML through a supervisor, survives a dropped connection, and checks the
// protocol capture afterwards.
func TestE2E_ConfiguredSupervisedTLS(t *testing.T) {
	dir := t.TempDir()

	ca, err := cert.NewAuthority("E2E CA")
	require.NoError(t, err)
	server, err := ca.Issue(cert.LeafOptions{
		CommonName:  "peer",
		IPAddresses: []net.IP{net.ParseIP("127.0.0.1")},
	})
	require.NoError(t, err)
	client, err := ca.Issue(cert.LeafOptions{CommonName: "client", Client: true})
	require.NoError(t, err)

	caFile := filepath.Join(dir, "ca.pem")
	certFile := filepath.Join(dir, "client.pem")
	keyFile := filepath.Join(dir, "client.key")
	logFile := filepath.Join(dir, "session.tlog")
	require.NoError(t, cert.WriteCertFile(caFile, ca.Certificate))
	require.NoError(t, cert.WriteCertFile(certFile, client.Certificate))
	require.NoError(t, cert.WriteKeyFile(keyFile, client.PrivateKey))

	peer := startFramedEcho(t, &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{server.TLSCertificate()},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    ca.Pool(),
		NextProtos:   version.SupportedALPN(),
	})

	yaml := `
remote: ` + peer.addr() + `
framing: true
connect_timeout: 5s
protocol_log: ` + logFile + `
tls:
  enabled: true
  ca_file: ` + caFile + `
  cert_file: ` + certFile + `
  key_file: ` + keyFile + `
  alpn: [` + version.SupportedALPN()[0] + `]
reconnect:
  enabled: true
  initial: 10ms
  max: 50ms
`
	cfgPath := filepath.Join(dir, "client.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0600))

	file, err := config.Load(cfgPath)
	require.NoError(t, err)
	require.True(t, file.ReconnectEnabled())

	clientCfg, err := file.ClientConfig()
	require.NoError(t, err)

	capture, err := log.NewFileLogger(file.ProtocolLog)
	require.NoError(t, err)
	clientCfg.ProtocolLogger = capture

	d := &echoDispatcher{
		connected: make(chan *transport.Client, 4),
		data:      make(chan string, 16),
	}
	supCfg := file.SupervisorConfig(clientCfg)
	supCfg.Dispatcher = d

	sup, err := connection.NewSupervisor(supCfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	first := waitFor(t, d.connected, "first connection")
	state, ok := first.TLSState()
	require.True(t, ok)
	assert.NoError(t, version.CheckNegotiated(state.NegotiatedProtocol))
	assert.Equal(t, "tether/1", state.NegotiatedProtocol)

	require.NoError(t, first.Send([]byte("one")))
	assert.Equal(t, "one", waitFor(t, d.data, "first echo"))

	// The peer drops us; the supervisor dials again.
	peer.dropAll()
	second := waitFor(t, d.connected, "reconnect")
	assert.NotEqual(t, first.ConnectionID(), second.ConnectionID())

	require.Eventually(t, func() bool { return sup.State() == connection.StateConnected }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, sup.Send([]byte("two")))
	assert.Equal(t, "two", waitFor(t, d.data, "second echo"))

	cancel()
	require.NoError(t, waitFor(t, done, "supervisor exit"))
	assert.Zero(t, sup.Pool().Stats().Outstanding)
	require.NoError(t, capture.Close())

	stats, err := commands.CollectStats(logFile)
	require.NoError(t, err)
	require.Len(t, stats.Connections, 2)

	for id, cs := range stats.Connections {
		assert.Equal(t, "CLOSED", cs.FinalState, "connection %s", id)
		assert.Positive(t, cs.BytesOut, "connection %s", id)
		assert.Positive(t, cs.BytesIn, "connection %s", id)
	}
}

// TestE2E_DiscoveryTimeout checks that an mDNS lookup for a peer nobody
// advertises gives up within its timeout.
func TestE2E_DiscoveryTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	start := time.Now()
	_, err := discovery.Resolve(context.Background(), discovery.BrowseConfig{
		Service:  "_tether-e2e._tcp",
		Instance: "nobody-here",
		Timeout:  500 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
