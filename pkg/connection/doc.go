// Package connection keeps a transport connection alive.
//
// A transport.Client is single-use: once closed it never returns to Idle.
// The Supervisor therefore builds a fresh client for every attempt and
// waits on its Done channel to detect loss.
//
// # Reconnection Strategy
//
// Failed attempts and lost connections are retried with exponential
// backoff:
//
//  1. Initial delay: 500ms
//  2. Exponential increase: 1s, 2s, 4s, ...
//  3. Maximum delay: 30s
//  4. Reset to the initial delay after a successful connect
//
// # Jitter
//
// To avoid synchronized reconnect storms:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// A Resolver may be supplied to look the peer up before every attempt,
// for example through mDNS (see package discovery).
package connection
