package cert

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

// Verification errors.
var (
	ErrNoPeerCertificate = errors.New("no peer certificate")
	ErrCertExpired       = errors.New("certificate has expired")
	ErrCertNotYetValid   = errors.New("certificate is not yet valid")
	ErrInvalidChain      = errors.New("invalid certificate chain")
	ErrCertRevoked       = errors.New("certificate has been revoked")
	ErrRevocationUnknown = errors.New("revocation status unknown")
)

// VerifyOptions controls VerifyChain.
type VerifyOptions struct {
	// Roots are the trust anchors. Nil uses the system pool.
	Roots *x509.CertPool

	// DNSName, if set, must match the leaf certificate.
	DNSName string

	// CheckRevocation requires every non-root certificate in the verified
	// chain to be covered by one of RevocationLists and not listed in it.
	CheckRevocation bool

	// RevocationLists are the CRLs consulted when CheckRevocation is set.
	RevocationLists []*x509.RevocationList

	// CurrentTime overrides the verification time. Zero means now.
	CurrentTime time.Time
}

// VerifyChain verifies a peer-presented chain (leaf first) as a server
// certificate. It is suitable for tls.Config.VerifyConnection where the
// built-in verification has been disabled.
func VerifyChain(chain []*x509.Certificate, opts VerifyOptions) error {
	if len(chain) == 0 || chain[0] == nil {
		return ErrNoPeerCertificate
	}
	leaf := chain[0]

	now := opts.CurrentTime
	if now.IsZero() {
		now = time.Now()
	}
	if now.Before(leaf.NotBefore) {
		return ErrCertNotYetValid
	}
	if now.After(leaf.NotAfter) {
		return ErrCertExpired
	}

	intermediates := x509.NewCertPool()
	for _, c := range chain[1:] {
		intermediates.AddCert(c)
	}

	verified, err := leaf.Verify(x509.VerifyOptions{
		Roots:         opts.Roots,
		Intermediates: intermediates,
		DNSName:       opts.DNSName,
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChain, err)
	}

	if !opts.CheckRevocation {
		return nil
	}

	// Any verified path with a clean revocation status is sufficient.
	var lastErr error
	for _, path := range verified {
		if lastErr = checkRevocation(path, opts.RevocationLists, now); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// checkRevocation checks every certificate in path against the CRL issued
// by its parent. The trust anchor itself is not checked.
func checkRevocation(path []*x509.Certificate, lists []*x509.RevocationList, now time.Time) error {
	for i := 0; i+1 < len(path); i++ {
		subject, issuer := path[i], path[i+1]

		crl := findCRL(lists, issuer, now)
		if crl == nil {
			return fmt.Errorf("%w: no current CRL from %q", ErrRevocationUnknown, issuer.Subject.CommonName)
		}
		for _, entry := range crl.RevokedCertificateEntries {
			if entry.SerialNumber != nil && entry.SerialNumber.Cmp(subject.SerialNumber) == 0 {
				return fmt.Errorf("%w: serial %s", ErrCertRevoked, subject.SerialNumber)
			}
		}
	}
	return nil
}

// findCRL returns the first list signed by issuer that has not expired.
func findCRL(lists []*x509.RevocationList, issuer *x509.Certificate, now time.Time) *x509.RevocationList {
	for _, crl := range lists {
		if crl == nil || !bytes.Equal(crl.RawIssuer, issuer.RawSubject) {
			continue
		}
		if !crl.NextUpdate.IsZero() && now.After(crl.NextUpdate) {
			continue
		}
		if err := crl.CheckSignatureFrom(issuer); err != nil {
			continue
		}
		return crl
	}
	return nil
}

// Info is a human-readable summary of a certificate.
type Info struct {
	CommonName string
	Issuer     string
	DNSNames   []string
	Serial     string
	NotBefore  time.Time
	NotAfter   time.Time
	IsCA       bool
}

// GetInfo extracts a summary from a certificate.
func GetInfo(c *x509.Certificate) *Info {
	if c == nil {
		return nil
	}
	return &Info{
		CommonName: c.Subject.CommonName,
		Issuer:     c.Issuer.CommonName,
		DNSNames:   c.DNSNames,
		Serial:     c.SerialNumber.String(),
		NotBefore:  c.NotBefore,
		NotAfter:   c.NotAfter,
		IsCA:       c.IsCA,
	}
}
