package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net"

	"github.com/tether-io/tether-go/pkg/cert"
)

// Negotiator upgrades a freshly dialed connection before framing starts.
// The returned connection replaces conn for all reads and writes; closing it
// must not be relied on to close conn.
type Negotiator interface {
	Negotiate(ctx context.Context, conn net.Conn) (net.Conn, error)
}

// Passthrough is the Negotiator used when encryption is disabled.
type Passthrough struct{}

// Negotiate returns conn unchanged.
func (Passthrough) Negotiate(_ context.Context, conn net.Conn) (net.Conn, error) {
	return conn, nil
}

// Default TLS protocol versions.
var DefaultTLSVersions = []string{"1.2", "1.3"}

// TLSConfig holds configuration for client-side TLS negotiation.
type TLSConfig struct {
	// ServerName is the expected host name of the peer. It is sent as SNI
	// and checked against the peer certificate. Empty defaults to the host
	// part of the remote address.
	ServerName string

	// Certificates is the client certificate set offered to the peer.
	Certificates []tls.Certificate

	// RootCAs are the trust anchors. Nil uses the system pool.
	RootCAs *x509.CertPool

	// Versions enables protocol versions ("1.0" .. "1.3"). The handshake
	// accepts any version between the lowest and highest enabled one.
	Versions []string

	// CheckRevocation enables CRL checking against RevocationLists.
	CheckRevocation bool

	// RevocationLists are the CRLs consulted when CheckRevocation is set.
	RevocationLists []*x509.RevocationList

	// BypassCertificateErrors accepts peer certificates that fail
	// validation. The failure is logged.
	BypassCertificateErrors bool

	// NextProtos is the ALPN protocol list.
	NextProtos []string

	// Logger receives validation warnings. Nil uses slog.Default().
	Logger *slog.Logger
}

// TLSNegotiator performs a client-side TLS handshake.
type TLSNegotiator struct {
	base   *tls.Config
	verify cert.VerifyOptions
	bypass bool
	logger *slog.Logger
}

// NewTLSNegotiator creates a negotiator from cfg.
func NewTLSNegotiator(cfg *TLSConfig) (*TLSNegotiator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: TLSConfig is required", ErrInvalidArgument)
	}

	versions := cfg.Versions
	if len(versions) == 0 {
		versions = DefaultTLSVersions
	}
	minVersion, maxVersion, err := TLSVersionRange(versions)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TLSNegotiator{
		base: &tls.Config{
			MinVersion:   minVersion,
			MaxVersion:   maxVersion,
			Certificates: cfg.Certificates,
			ServerName:   cfg.ServerName,
			NextProtos:   cfg.NextProtos,

			// Chain verification runs in VerifyConnection so that failures
			// can be bypassed by configuration.
			InsecureSkipVerify: true,
		},
		verify: cert.VerifyOptions{
			Roots:           cfg.RootCAs,
			DNSName:         cfg.ServerName,
			CheckRevocation: cfg.CheckRevocation,
			RevocationLists: cfg.RevocationLists,
		},
		bypass: cfg.BypassCertificateErrors,
		logger: logger,
	}, nil
}

// ClientConfig returns a copy of the underlying crypto/tls configuration
// without the verification callback.
func (n *TLSNegotiator) ClientConfig() *tls.Config {
	return n.base.Clone()
}

// Negotiate runs the handshake over conn.
func (n *TLSNegotiator) Negotiate(ctx context.Context, conn net.Conn) (net.Conn, error) {
	var verifyErr error

	cfg := n.base.Clone()
	cfg.VerifyConnection = func(cs tls.ConnectionState) error {
		err := cert.VerifyChain(cs.PeerCertificates, n.verify)
		if err == nil {
			return nil
		}
		if n.bypass {
			n.logger.Warn("accepting peer certificate despite validation error",
				"server", n.verify.DNSName,
				"error", err)
			return nil
		}
		verifyErr = err
		return err
	}

	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		if verifyErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrCertificateValidation, verifyErr)
		}
		return nil, fmt.Errorf("TLS handshake: %w", err)
	}
	return tlsConn, nil
}

// ParseTLSVersion maps "1.0".."1.3" to the crypto/tls constant.
func ParseTLSVersion(s string) (uint16, error) {
	switch s {
	case "1.0":
		return tls.VersionTLS10, nil
	case "1.1":
		return tls.VersionTLS11, nil
	case "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("%w: unknown TLS version %q", ErrInvalidArgument, s)
	}
}

// TLSVersionRange returns the lowest and highest of the given versions.
func TLSVersionRange(versions []string) (minVersion, maxVersion uint16, err error) {
	if len(versions) == 0 {
		return 0, 0, fmt.Errorf("%w: no TLS versions enabled", ErrInvalidArgument)
	}
	for _, s := range versions {
		v, err := ParseTLSVersion(s)
		if err != nil {
			return 0, 0, err
		}
		if minVersion == 0 || v < minVersion {
			minVersion = v
		}
		if v > maxVersion {
			maxVersion = v
		}
	}
	return minVersion, maxVersion, nil
}
