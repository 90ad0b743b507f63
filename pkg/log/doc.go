// Package log records protocol events for tether connections.
//
// Events cover state transitions, frames and raw chunks crossing the wire,
// and errors, each tagged with the connection ID. This is separate from
// operational logging through slog: a capture is a machine-readable trace.
//
//	// Console
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Capture file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/tether/client.tlog")
//
//	// Both; Close closes the file
//	cfg.ProtocolLogger = log.NewMultiLogger(a, b)
//
// # File Format
//
// A capture file (.tlog) is the CBOR self-describe tag (0xd9d9f7) followed
// by a sequence of CBOR-encoded events. Appending to an existing file does
// not repeat the tag. The tether-log tool views, filters, exports and
// summarizes captures.
package log
