// Package discovery locates tether peers through mDNS/DNS-SD.
//
// Peers advertise a TCP service (by default _tether._tcp in the local.
// domain). Resolve browses for that service and returns the first
// matching endpoint as a host:port string suitable for
// transport.NewClient.
//
// # Instance Selection
//
// When BrowseConfig.Instance is empty the first answer wins. Otherwise
// only the instance with that exact name is accepted.
//
// # Address Preference
//
// IPv4 addresses are preferred over IPv6. When an answer carries no
// address records the advertised host name is used instead.
//
// # Reconnection
//
// Resolver adapts Resolve to the supervisor's resolver signature so that
// every reconnect attempt looks the peer up again:
//
//	sup, err := connection.NewSupervisor(connection.Config{
//	    Resolve:    discovery.Resolver(discovery.BrowseConfig{Instance: "rack-7"}),
//	    Dispatcher: d,
//	})
package discovery
