/*
Package live maintains the WebSocket connection to a chat channel, applies inbound events
to the local view of the channel and reconnects with exponential backoff.
*/
package live

// State mirrors the ready states of a browser WebSocket.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Label is the human-readable status shown to users.
func (s State) Label() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateOpen:
		return "Connected"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
