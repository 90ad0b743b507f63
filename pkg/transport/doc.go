// Package transport implements the tether client engine.
//
// A Client owns one outbound TCP connection. It handles:
//   - Connection lifecycle (Idle → Connecting → Connected → Closed)
//   - Optional TLS upgrade through a Negotiator
//   - Length-prefixed message framing (optional)
//   - A detached receive goroutine that feeds a Dispatcher
//   - Exactly-once teardown under concurrent Close calls
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│     Application payloads       │
//	├────────────────────────────────┤
//	│ Length-Prefix Framing (4B, BE) │  optional
//	├────────────────────────────────┤
//	│        TLS 1.2 / 1.3           │  optional
//	├────────────────────────────────┤
//	│             TCP                │
//	└────────────────────────────────┘
//
// # Receive Pipeline
//
// With framing enabled every read is appended to a pooled session buffer
// (Accumulator). Complete frames are dispatched from the front of that
// buffer and the unconsumed tail is shifted back to offset zero, so the
// buffer only ever grows to hold the largest incomplete frame.
//
// # Errors
//
// Failures that arise from teardown or peer closure are "expected" (see
// IsExpected) and are absorbed by Send and the receive loop. Everything else
// is returned to the caller or, for the receive loop, reported after
// teardown via ClientConfig.OnError and Client.Err.
package transport
