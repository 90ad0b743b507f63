package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Service defaults.
const (
	// DefaultService is the DNS-SD service type tether peers advertise.
	DefaultService = "_tether._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultBrowseTimeout bounds a single Resolve call.
	DefaultBrowseTimeout = 5 * time.Second
)

// ErrNotFound is returned when no matching service answered in time.
var ErrNotFound = errors.New("service not found")

// BrowseConfig configures a lookup.
type BrowseConfig struct {
	// Service is the DNS-SD service type. Empty uses DefaultService.
	Service string

	// Domain is the browse domain. Empty uses Domain.
	Domain string

	// Instance restricts the lookup to one instance name.
	Instance string

	// Interface restricts browsing to one network interface.
	Interface string

	// Timeout bounds the lookup. Zero uses DefaultBrowseTimeout.
	Timeout time.Duration
}

func (c BrowseConfig) withDefaults() BrowseConfig {
	if c.Service == "" {
		c.Service = DefaultService
	}
	if c.Domain == "" {
		c.Domain = Domain
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultBrowseTimeout
	}
	return c
}

// Endpoint is a resolved service instance.
type Endpoint struct {
	Instance string
	HostName string
	Port     int
	IPv4     []net.IP
	IPv6     []net.IP
	Text     []string
}

// Address returns the endpoint as host:port, preferring IPv4.
func (e Endpoint) Address() (string, bool) {
	if e.Port <= 0 || e.Port > 65535 {
		return "", false
	}
	port := strconv.Itoa(e.Port)

	for _, ip := range e.IPv4 {
		if ip != nil && !ip.IsUnspecified() {
			return net.JoinHostPort(ip.String(), port), true
		}
	}
	for _, ip := range e.IPv6 {
		if ip != nil && !ip.IsUnspecified() {
			return net.JoinHostPort(ip.String(), port), true
		}
	}

	host := strings.TrimSuffix(e.HostName, ".")
	if host == "" {
		return "", false
	}
	return net.JoinHostPort(host, port), true
}

func (c BrowseConfig) matches(e Endpoint) bool {
	return c.Instance == "" || e.Instance == c.Instance
}

func endpointFromEntry(entry *zeroconf.ServiceEntry) Endpoint {
	return Endpoint{
		Instance: entry.Instance,
		HostName: entry.HostName,
		Port:     entry.Port,
		IPv4:     entry.AddrIPv4,
		IPv6:     entry.AddrIPv6,
		Text:     entry.Text,
	}
}

// Lookup browses until a matching endpoint with a usable address answers.
func Lookup(ctx context.Context, cfg BrowseConfig) (Endpoint, error) {
	cfg = cfg.withDefaults()

	browseCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	browseErr := make(chan error, 1)

	go func() {
		browseErr <- zeroconf.Browse(browseCtx, cfg.Service, cfg.Domain, entries, removed, browseOptions(cfg)...)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			if entry == nil {
				continue
			}
			ep := endpointFromEntry(entry)
			if !cfg.matches(ep) {
				continue
			}
			if _, ok := ep.Address(); ok {
				return ep, nil
			}

		case <-removed:
			// Removals do not affect a one-shot lookup.

		case err := <-browseErr:
			if err != nil {
				return Endpoint{}, fmt.Errorf("browse %s: %w", cfg.Service, err)
			}
			browseErr = nil

		case <-browseCtx.Done():
			if ctx.Err() != nil {
				return Endpoint{}, ctx.Err()
			}
			return Endpoint{}, notFound(cfg)
		}
	}
}

// Resolve returns the address of the first matching endpoint.
func Resolve(ctx context.Context, cfg BrowseConfig) (string, error) {
	ep, err := Lookup(ctx, cfg)
	if err != nil {
		return "", err
	}
	addr, _ := ep.Address()
	return addr, nil
}

// Resolver returns a function resolving cfg on every call.
func Resolver(cfg BrowseConfig) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return Resolve(ctx, cfg)
	}
}

func notFound(cfg BrowseConfig) error {
	if cfg.Instance != "" {
		return fmt.Errorf("%w: %s.%s.%s", ErrNotFound, cfg.Instance, cfg.Service, cfg.Domain)
	}
	return fmt.Errorf("%w: %s.%s", ErrNotFound, cfg.Service, cfg.Domain)
}

// browseOptions returns zeroconf client options based on config.
func browseOptions(cfg BrowseConfig) []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if cfg.Interface != "" {
		iface, err := net.InterfaceByName(cfg.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}
