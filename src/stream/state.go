package stream

// State is the connection state of one Client.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// EventKind discriminates Event.
type EventKind int

const (
	EventState EventKind = iota
	EventMessage
)

// Event is emitted by a Client. State events carry the new State and, for
// Closed or Errored, the cause. Message events carry one decoded message.
// Terminal is set on the last event of a client that gave up reconnecting.
type Event[T any] struct {
	Kind     EventKind
	State    State
	Message  T
	Err      error
	Terminal bool
}
