package transport

// State is the lifecycle phase of a Client.
// Transitions only move forward; StateClosed is absorbing.
type State int32

const (
	// StateIdle indicates a client that has not attempted to connect.
	StateIdle State = iota

	// StateConnecting indicates dial or negotiation in progress.
	StateConnecting

	// StateConnected indicates an active connection with a running receive loop.
	StateConnected

	// StateClosed indicates the client has been torn down.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
