package relay

// State represents the lifecycle state of a call handler.
type State int32

const (
	// StateCreated - queues and flags allocated, no upstream session
	StateCreated State = iota
	// StateAwaitingConfig - attached to a peer, per-call parameters not yet received
	StateAwaitingConfig
	// StateConnecting - parameters received, upstream session being opened
	StateConnecting
	// StateStreaming - upload and download duties running
	StateStreaming
	// StateShuttingDown - quit flag set, duties draining out
	StateShuttingDown
	// StateClosed - upstream session released, queues discarded
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateAwaitingConfig:
		return "awaiting_config"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateShuttingDown:
		return "shutting_down"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
