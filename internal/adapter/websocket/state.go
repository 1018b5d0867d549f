package websocket

// State is the lifecycle phase of a Bridge. Transitions only move forward.
type State int32

const (
	StateConnecting State = iota // initial ping sent, not yet subscribed
	StateSubscribed              // broker confirmed the subscription
	StateRelaying                // both relay loops running
	StateClosing                 // one loop ended, waiting for the other
	StateClosed                  // subscription released, transport closed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateRelaying:
		return "relaying"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
