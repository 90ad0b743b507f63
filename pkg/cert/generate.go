package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"
)

// Default validity periods for generated certificates.
const (
	AuthorityValidity = 10 * 365 * 24 * time.Hour
	LeafValidity      = 365 * 24 * time.Hour
)

// Authority is a self-signed ECDSA P-256 certificate authority. It is used
// to provision test and development PKI.
type Authority struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// Issued is a certificate signed by an Authority together with its key.
type Issued struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
	Issuer      *x509.Certificate
}

// LeafOptions describes a certificate to issue.
type LeafOptions struct {
	CommonName  string
	DNSNames    []string
	IPAddresses []net.IP

	// Client selects client-auth usage instead of server-auth.
	Client bool

	// NotBefore and NotAfter default to now and now+LeafValidity.
	NotBefore time.Time
	NotAfter  time.Time
}

// NewAuthority creates a self-signed CA.
func NewAuthority(commonName string) (*Authority, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	ski, err := subjectKeyID(&key.PublicKey)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          newSerial(),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(AuthorityValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		SubjectKeyId:          ski,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create CA certificate: %w", err)
	}
	c, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &Authority{Certificate: c, PrivateKey: key}, nil
}

// Issue signs a new leaf certificate.
func (a *Authority) Issue(opts LeafOptions) (*Issued, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	ski, err := subjectKeyID(&key.PublicKey)
	if err != nil {
		return nil, err
	}

	notBefore, notAfter := opts.NotBefore, opts.NotAfter
	if notBefore.IsZero() {
		notBefore = time.Now().Add(-time.Minute)
	}
	if notAfter.IsZero() {
		notAfter = notBefore.Add(LeafValidity)
	}

	usage := x509.ExtKeyUsageServerAuth
	if opts.Client {
		usage = x509.ExtKeyUsageClientAuth
	}

	template := &x509.Certificate{
		SerialNumber:   newSerial(),
		Subject:        pkix.Name{CommonName: opts.CommonName},
		DNSNames:       opts.DNSNames,
		IPAddresses:    opts.IPAddresses,
		NotBefore:      notBefore,
		NotAfter:       notAfter,
		KeyUsage:       x509.KeyUsageDigitalSignature,
		ExtKeyUsage:    []x509.ExtKeyUsage{usage},
		SubjectKeyId:   ski,
		AuthorityKeyId: a.Certificate.SubjectKeyId,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, a.Certificate, &key.PublicKey, a.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	c, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &Issued{Certificate: c, PrivateKey: key, Issuer: a.Certificate}, nil
}

// RevocationList creates a CRL revoking the given certificates.
func (a *Authority) RevocationList(revoked ...*x509.Certificate) (*x509.RevocationList, error) {
	now := time.Now()
	entries := make([]x509.RevocationListEntry, 0, len(revoked))
	for _, c := range revoked {
		entries = append(entries, x509.RevocationListEntry{
			SerialNumber:   c.SerialNumber,
			RevocationTime: now,
		})
	}

	der, err := x509.CreateRevocationList(rand.Reader, &x509.RevocationList{
		Number:                    newSerial(),
		ThisUpdate:                now.Add(-time.Minute),
		NextUpdate:                now.Add(24 * time.Hour),
		RevokedCertificateEntries: entries,
	}, a.Certificate, a.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("create CRL: %w", err)
	}
	return x509.ParseRevocationList(der)
}

// Pool returns a cert pool containing only the authority certificate.
func (a *Authority) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(a.Certificate)
	return pool
}

// TLSCertificate converts the issued certificate to a tls.Certificate
// carrying the leaf and its issuer.
func (i *Issued) TLSCertificate() tls.Certificate {
	if i == nil || i.Certificate == nil || i.PrivateKey == nil {
		return tls.Certificate{}
	}
	chain := [][]byte{i.Certificate.Raw}
	if i.Issuer != nil {
		chain = append(chain, i.Issuer.Raw)
	}
	return tls.Certificate{
		Certificate: chain,
		PrivateKey:  i.PrivateKey,
		Leaf:        i.Certificate,
	}
}

func subjectKeyID(pub *ecdsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	sum := sha1.Sum(der)
	return sum[:], nil
}

func newSerial() *big.Int {
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return big.NewInt(time.Now().UnixNano())
	}
	return n
}
