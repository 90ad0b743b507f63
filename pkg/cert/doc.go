// Package cert loads and verifies the X.509 material used by TLS client
// connections: client certificate sets, trust anchors, revocation lists,
// and chain verification with optional CRL-based revocation checking.
package cert
