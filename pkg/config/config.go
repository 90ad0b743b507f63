package config

import (
	"time"

	"github.com/tether-io/tether-go/pkg/connection"
	"github.com/tether-io/tether-go/pkg/discovery"
	"github.com/tether-io/tether-go/pkg/transport"
)

// File is the YAML document.
type File struct {
	// Remote is the peer address. Required unless Discovery is set.
	Remote string `yaml:"remote" validate:"required_without=Discovery,omitempty,hostport"`

	// LocalAddress optionally binds the local end.
	LocalAddress string `yaml:"local_address" validate:"omitempty,hostport"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gte=0s"`
	ReceiveTimeout time.Duration `yaml:"receive_timeout" validate:"gte=0s"`
	SendTimeout    time.Duration `yaml:"send_timeout" validate:"gte=0s"`

	ReceiveBufferSize int `yaml:"receive_buffer_size" validate:"gte=0"`
	SendBufferSize    int `yaml:"send_buffer_size" validate:"gte=0"`

	// NoDelay defaults to true when omitted.
	NoDelay *bool `yaml:"no_delay"`

	Linger *Linger `yaml:"linger"`

	Framing        bool `yaml:"framing"`
	MaxMessageSize int  `yaml:"max_message_size" validate:"gte=0,lte=4294967295"`

	BufferSize       int `yaml:"buffer_size" validate:"gte=0"`
	PoolInitialCount int `yaml:"pool_initial_count" validate:"gte=0"`
	PoolGrowBy       int `yaml:"pool_grow_by" validate:"gte=0"`

	TLS *TLS `yaml:"tls"`

	Discovery *Discovery `yaml:"discovery"`
	Reconnect *Reconnect `yaml:"reconnect"`

	// ProtocolLog is the path of the CBOR protocol event log.
	ProtocolLog string `yaml:"protocol_log"`
}

// Linger configures SO_LINGER.
type Linger struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0s,lte=65535s"`
}

// TLS configures client-side TLS.
type TLS struct {
	Enabled    bool     `yaml:"enabled"`
	ServerName string   `yaml:"server_name" validate:"omitempty,hostname_rfc1123|ip"`
	CertFile   string   `yaml:"cert_file" validate:"required_with=KeyFile,omitempty,file"`
	KeyFile    string   `yaml:"key_file" validate:"required_with=CertFile,omitempty,file"`
	CAFile     string   `yaml:"ca_file" validate:"omitempty,file"`
	Versions   []string `yaml:"versions" validate:"dive,oneof=1.0 1.1 1.2 1.3"`

	CheckRevocation bool     `yaml:"check_revocation"`
	CRLFiles        []string `yaml:"crl_files" validate:"dive,file"`

	BypassCertificateErrors bool     `yaml:"bypass_certificate_errors"`
	ALPN                    []string `yaml:"alpn" validate:"dive,required"`
}

// Discovery resolves the peer over mDNS.
type Discovery struct {
	Service   string        `yaml:"service"`
	Instance  string        `yaml:"instance"`
	Interface string        `yaml:"interface"`
	Timeout   time.Duration `yaml:"timeout" validate:"gte=0s"`
}

// Reconnect configures the supervisor.
type Reconnect struct {
	Enabled     bool          `yaml:"enabled"`
	Initial     time.Duration `yaml:"initial" validate:"gte=0s"`
	Max         time.Duration `yaml:"max" validate:"gte=0s"`
	Multiplier  float64       `yaml:"multiplier" validate:"omitempty,gt=1"`
	Jitter      float64       `yaml:"jitter" validate:"gte=0,lte=1"`
	MaxAttempts int           `yaml:"max_attempts" validate:"gte=0"`
}

// ClientConfig converts the file into a transport configuration. PEM
// material referenced by the tls section is loaded here.
func (f *File) ClientConfig() (transport.ClientConfig, error) {
	cfg := transport.DefaultClientConfig()

	cfg.LocalAddress = f.LocalAddress
	if f.ConnectTimeout > 0 {
		cfg.ConnectTimeout = f.ConnectTimeout
	}
	cfg.ReceiveTimeout = f.ReceiveTimeout
	cfg.SendTimeout = f.SendTimeout
	cfg.ReceiveBufferSize = f.ReceiveBufferSize
	cfg.SendBufferSize = f.SendBufferSize
	if f.NoDelay != nil {
		cfg.NoDelay = *f.NoDelay
	}
	if f.Linger != nil {
		cfg.Linger = &transport.LingerConfig{
			Enabled: f.Linger.Enabled,
			Timeout: f.Linger.Timeout,
		}
	}
	cfg.Framing = f.Framing
	if f.MaxMessageSize > 0 {
		cfg.MaxMessageSize = f.MaxMessageSize
	}
	if f.BufferSize > 0 {
		cfg.BufferSize = f.BufferSize
	}
	cfg.PoolInitialCount = f.PoolInitialCount
	if f.PoolGrowBy > 0 {
		cfg.PoolGrowBy = f.PoolGrowBy
	}

	if f.TLS != nil && f.TLS.Enabled {
		tc, err := f.TLS.config()
		if err != nil {
			return transport.ClientConfig{}, err
		}
		cfg.TLS = tc
	}

	if err := cfg.Validate(); err != nil {
		return transport.ClientConfig{}, err
	}
	return cfg, nil
}

// BrowseConfig returns the mDNS lookup settings. ok is false when the
// file has no discovery section.
func (f *File) BrowseConfig() (cfg discovery.BrowseConfig, ok bool) {
	if f.Discovery == nil {
		return discovery.BrowseConfig{}, false
	}
	return discovery.BrowseConfig{
		Service:   f.Discovery.Service,
		Instance:  f.Discovery.Instance,
		Interface: f.Discovery.Interface,
		Timeout:   f.Discovery.Timeout,
	}, true
}

// ReconnectEnabled reports whether the connection should be supervised.
func (f *File) ReconnectEnabled() bool {
	return f.Reconnect != nil && f.Reconnect.Enabled
}

// SupervisorConfig returns a supervisor configuration around client. The
// caller sets the dispatcher.
func (f *File) SupervisorConfig(client transport.ClientConfig) connection.Config {
	cfg := connection.Config{
		Remote: f.Remote,
		Client: client,
	}
	if bc, ok := f.BrowseConfig(); ok {
		cfg.Resolve = discovery.Resolver(bc)
	}
	if f.Reconnect != nil {
		cfg.Backoff = connection.BackoffConfig{
			Initial:    f.Reconnect.Initial,
			Max:        f.Reconnect.Max,
			Multiplier: f.Reconnect.Multiplier,
			Jitter:     f.Reconnect.Jitter,
		}
		cfg.MaxAttempts = f.Reconnect.MaxAttempts
	}
	return cfg
}
