package config

import (
	"crypto/tls"
	"fmt"

	"github.com/tether-io/tether-go/pkg/cert"
	"github.com/tether-io/tether-go/pkg/transport"
)

func (t *TLS) config() (*transport.TLSConfig, error) {
	tc := &transport.TLSConfig{
		ServerName:              t.ServerName,
		Versions:                t.Versions,
		CheckRevocation:         t.CheckRevocation,
		BypassCertificateErrors: t.BypassCertificateErrors,
		NextProtos:              t.ALPN,
	}

	if t.CertFile != "" {
		set, err := cert.LoadCertificateSet(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("tls certificate: %w", err)
		}
		tc.Certificates = []tls.Certificate{set}
	}

	if t.CAFile != "" {
		pool, err := cert.LoadCertPool(t.CAFile)
		if err != nil {
			return nil, fmt.Errorf("tls ca: %w", err)
		}
		tc.RootCAs = pool
	}

	if len(t.CRLFiles) > 0 {
		lists, err := cert.LoadRevocationLists(t.CRLFiles...)
		if err != nil {
			return nil, fmt.Errorf("tls crl: %w", err)
		}
		tc.RevocationLists = lists
	}

	return tc, nil
}
