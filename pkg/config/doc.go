// Package config loads client settings from YAML.
//
// A minimal file names the peer and turns framing on:
//
//	remote: 192.0.2.10:7000
//	framing: true
//
// Durations use Go syntax ("250ms", "30s"). Omitted values keep the
// defaults of transport.DefaultClientConfig. TLS material is read from PEM
// files when the file is converted with ClientConfig:
//
//	tls:
//	  enabled: true
//	  ca_file: /etc/tether/ca.pem
//	  cert_file: /etc/tether/client.pem
//	  key_file: /etc/tether/client.key
//	  versions: ["1.2", "1.3"]
//
// Instead of a fixed remote, a discovery section resolves the peer over
// mDNS, and a reconnect section keeps the connection alive through
// connection.Supervisor.
package config
