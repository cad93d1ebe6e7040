package client

// State is where a Conn is in its lifecycle. A Conn only ever moves forward,
// except that a failed Connect returns it to Disconnected so it can be retried.
type State int32

const (
	Disconnected State = iota
	Connecting
	Open
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
