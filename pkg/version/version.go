// Package version holds the application protocol version and the ALPN
// identifiers derived from it.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Current is the application protocol version spoken over tether
// connections.
const Current = "1.0"

// Build is the tool version. Release builds set it with
// -ldflags "-X github.com/tether-io/tether-go/pkg/version.Build=v1.2.3".
var Build = "dev"

// ALPNPrefix prefixes every tether ALPN identifier.
const ALPNPrefix = "tether/"

// ErrIncompatible is returned when the peer negotiated a major version
// this library does not speak.
var ErrIncompatible = errors.New("incompatible protocol version")

// Protocol is a parsed "major.minor" protocol version.
type Protocol struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (Protocol, error) {
	majorStr, minorStr, ok := strings.Cut(s, ".")
	if !ok || strings.Contains(minorStr, ".") {
		return Protocol{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(majorStr, 10, 16)
	if err != nil {
		return Protocol{}, fmt.Errorf("invalid version %q: bad major component", s)
	}
	minor, err := strconv.ParseUint(minorStr, 10, 16)
	if err != nil {
		return Protocol{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return Protocol{Major: uint16(major), Minor: uint16(minor)}, nil
}

// MustCurrent returns the parsed Current version.
func MustCurrent() Protocol {
	p, err := Parse(Current)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the version as "major.minor".
func (p Protocol) String() string {
	return fmt.Sprintf("%d.%d", p.Major, p.Minor)
}

// Compatible reports whether other shares the major version.
func (p Protocol) Compatible(other Protocol) bool {
	return p.Major == other.Major
}

// ALPN returns the ALPN identifier for the major version, e.g. "tether/1".
func (p Protocol) ALPN() string {
	return ALPNPrefix + strconv.FormatUint(uint64(p.Major), 10)
}

// MajorFromALPN extracts the major version from an ALPN identifier.
func MajorFromALPN(alpn string) (uint16, error) {
	suffix, ok := strings.CutPrefix(alpn, ALPNPrefix)
	if !ok {
		return 0, fmt.Errorf("not a tether ALPN protocol: %q", alpn)
	}
	if suffix == "" {
		return 0, fmt.Errorf("empty major version in ALPN: %q", alpn)
	}

	major, err := strconv.ParseUint(suffix, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid major version in ALPN %q: %w", alpn, err)
	}
	return uint16(major), nil
}

// SupportedALPN returns the ALPN identifiers offered during TLS
// negotiation. Only the current major version is supported.
func SupportedALPN() []string {
	return []string{MustCurrent().ALPN()}
}

// CheckNegotiated validates the protocol chosen by the peer. An empty
// string means the peer did not take part in ALPN, which is accepted.
func CheckNegotiated(alpn string) error {
	if alpn == "" {
		return nil
	}
	major, err := MajorFromALPN(alpn)
	if err != nil {
		return err
	}
	if major != MustCurrent().Major {
		return fmt.Errorf("%w: peer chose %s", ErrIncompatible, alpn)
	}
	return nil
}
