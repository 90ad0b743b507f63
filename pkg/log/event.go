package log

import (
	"strings"
	"time"
)

// Event is one protocol event on a connection. Exactly one of Frame,
// StateChange and Error is set. Keys are small integers on the wire.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates data flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (host:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"`
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn indicates received data.
	DirectionIn Direction = 0
	// DirectionOut indicates sent data.
	DirectionOut Direction = 1
)

var directionNames = [...]string{
	DirectionIn:  "IN",
	DirectionOut: "OUT",
}

func (d Direction) String() string { return lookup(directionNames[:], int(d)) }

// Layer indicates which part of the stack captured the event.
type Layer uint8

const (
	// LayerSocket is the plain TCP transport.
	LayerSocket Layer = 0
	// LayerTLS is the encrypted stream negotiation.
	LayerTLS Layer = 1
	// LayerFraming is the length-prefix framing layer.
	LayerFraming Layer = 2
	// LayerClient is the client lifecycle.
	LayerClient Layer = 3
)

var layerNames = [...]string{
	LayerSocket:  "SOCKET",
	LayerTLS:     "TLS",
	LayerFraming: "FRAMING",
	LayerClient:  "CLIENT",
}

func (l Layer) String() string { return lookup(layerNames[:], int(l)) }

// Category classifies the event type.
type Category uint8

const (
	// CategoryData indicates a frame or raw chunk.
	CategoryData Category = 0
	// CategoryState indicates a lifecycle state change.
	CategoryState Category = 1
	// CategoryError indicates an error.
	CategoryError Category = 2
)

var categoryNames = [...]string{
	CategoryData:  "DATA",
	CategoryState: "STATE",
	CategoryError: "ERROR",
}

func (c Category) String() string { return lookup(categoryNames[:], int(c)) }

// ParseLayer returns the layer named s, ignoring case.
func ParseLayer(s string) (Layer, bool) {
	i, ok := reverse(layerNames[:], s)
	return Layer(i), ok
}

// ParseDirection returns the direction named s, ignoring case.
func ParseDirection(s string) (Direction, bool) {
	i, ok := reverse(directionNames[:], s)
	return Direction(i), ok
}

// ParseCategory returns the category named s, ignoring case.
func ParseCategory(s string) (Category, bool) {
	i, ok := reverse(categoryNames[:], s)
	return Category(i), ok
}

func lookup(names []string, i int) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return "UNKNOWN"
}

func reverse(names []string, s string) (int, bool) {
	for i, n := range names {
		if strings.EqualFold(n, s) {
			return i, true
		}
	}
	return 0, false
}

// FrameEvent captures bytes crossing the wire.
type FrameEvent struct {
	// Size is the size on the wire (including the length prefix when framed).
	Size int `cbor:"1,keyasint"`

	// Data is the payload (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// StateChangeEvent captures a connection lifecycle transition.
type StateChangeEvent struct {
	// OldState is the previous state.
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures an error.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`

	// Expected marks errors caused by teardown or peer closure.
	Expected bool `cbor:"4,keyasint,omitempty"`
}
